// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passguess Contributors

package lua

import (
	"errors"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/saravmajestic/passguess/internal/runtime"
)

// hostFunctions binds the runtime Env of one invocation to the Lua global
// table env. Host aborts cannot unwind through the Lua VM, so the error is
// kept here and a Lua error is raised in its place.
type hostFunctions struct {
	env     runtime.Env
	method  string
	aborted error
}

func (h *hostFunctions) register(L *lua.LState) {
	mod := L.NewTable()
	L.SetField(mod, "sha256", L.NewFunction(h.wrap(h.sha256Fn)))
	L.SetField(mod, "hex", L.NewFunction(h.wrap(h.hexFn)))
	L.SetField(mod, "log", L.NewFunction(h.wrap(h.logFn)))
	L.SetField(mod, "invalid_args", L.NewFunction(h.invalidArgsFn))
	L.SetGlobal("env", mod)
}

// wrap runs fn under runtime.Guard so gas and capability aborts stop the
// contract with the host's error.
func (h *hostFunctions) wrap(fn lua.LGFunction) lua.LGFunction {
	return func(L *lua.LState) int {
		var n int
		err := runtime.Guard(func() error {
			n = fn(L)
			return nil
		})
		if err != nil {
			h.abort(L, err)
			return 0
		}
		return n
	}
}

func (h *hostFunctions) abort(L *lua.LState, err error) {
	if h.aborted == nil {
		h.aborted = err
	}
	L.RaiseError("%s", err.Error())
}

func (h *hostFunctions) sha256Fn(L *lua.LState) int {
	value := L.CheckString(1)
	L.Push(lua.LString(h.env.SHA256([]byte(value))))
	return 1
}

func (h *hostFunctions) hexFn(L *lua.LState) int {
	value := L.CheckString(1)
	L.Push(lua.LString(h.env.HexEncode([]byte(value))))
	return 1
}

func (h *hostFunctions) logFn(L *lua.LState) int {
	h.env.LogStr(L.CheckString(1))
	return 0
}

func (h *hostFunctions) invalidArgsFn(L *lua.LState) int {
	msg := L.OptString(1, "invalid arguments")
	h.abort(L, runtime.InvalidArgs(h.method, errors.New(msg)))
	return 0
}

// result picks the error to report after a failed Lua call.
func (h *hostFunctions) result(luaErr error) error {
	if h.aborted != nil {
		return h.aborted
	}
	return oops.Code(runtime.CodeContractPanic).
		With("method", h.method).
		Wrapf(luaErr, "lua error in %s", h.method)
}
