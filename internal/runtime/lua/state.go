// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passguess Contributors

// Package lua runs contracts written in Lua inside a sandboxed gopher-lua
// state.
package lua

import (
	"context"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"
)

// safeLibrary is a Lua library that may be opened in a contract state.
type safeLibrary struct {
	name string
	fn   lua.LGFunction
}

// defaultSafeLibraries returns base, table, string and math.
// os, io, debug and package are never opened.
func defaultSafeLibraries() []safeLibrary {
	return []safeLibrary{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	}
}

// unsafeBaseFunctions are removed from the base library. They reach the
// filesystem, load unmetered code or expose nondeterminism.
var unsafeBaseFunctions = []string{
	"dofile", "loadfile", "loadstring", "load", "collectgarbage", "print",
}

// unsafeMathFunctions break determinism.
var unsafeMathFunctions = []string{"random", "randomseed"}

// StateFactory creates sandboxed Lua states.
type StateFactory struct {
	libraries     []safeLibrary
	callStackSize int
	registrySize  int
}

// NewStateFactory creates a state factory with the default sandbox.
func NewStateFactory() *StateFactory {
	return &StateFactory{
		libraries:     defaultSafeLibraries(),
		callStackSize: 120,
		registrySize:  1024 * 20,
	}
}

// NewState creates a fresh state with only safe libraries loaded. The state
// stops with an error once ctx is done.
func (f *StateFactory) NewState(ctx context.Context) (*lua.LState, error) {
	L := lua.NewState(lua.Options{
		SkipOpenLibs:        true,
		CallStackSize:       f.callStackSize,
		RegistrySize:        f.registrySize,
		IncludeGoStackTrace: false,
	})

	for _, lib := range f.libraries {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.fn),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			L.Close()
			return nil, oops.In("lua").With("library", lib.name).Hint("failed to open library").Wrap(err)
		}
	}

	for _, fn := range unsafeBaseFunctions {
		L.SetGlobal(fn, lua.LNil)
	}
	if mathLib, ok := L.GetGlobal(lua.MathLibName).(*lua.LTable); ok {
		for _, fn := range unsafeMathFunctions {
			mathLib.RawSetString(fn, lua.LNil)
		}
	}

	if ctx != nil {
		L.SetContext(ctx)
	}
	return L, nil
}
