// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passguess Contributors

package lua

import (
	"bytes"
	"context"
	"sort"
	"time"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/saravmajestic/passguess/internal/borsh"
	"github.com/saravmajestic/passguess/internal/runtime"
)

// Compile-time interface check.
var _ runtime.Contract = (*Contract)(nil)

// DefaultTimeout bounds the wall time of one invocation.
const DefaultTimeout = 2 * time.Second

// initFunction is the global a contract defines to build its initial state.
const initFunction = "init"

// Contract is a compiled Lua contract.
//
// The chunk defines a global table methods mapping each method name to
// "view" or "call", a function init(args) returning the initial state table,
// and one function per method called as fn(state, args). State tables map
// strings to strings. Host primitives are reachable through the env table.
type Contract struct {
	name    string
	proto   *lua.FunctionProto
	methods []runtime.Method
	factory *StateFactory
	timeout time.Duration
}

// Option configures a Contract.
type Option func(*Contract)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Contract) { c.timeout = d }
}

// Load compiles source and reads its method table.
func Load(name string, source []byte, opts ...Option) (*Contract, error) {
	chunk, err := parse.Parse(bytes.NewReader(source), name)
	if err != nil {
		return nil, oops.In("lua").With("contract", name).Hint("syntax error").Wrap(err)
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, oops.In("lua").With("contract", name).Hint("compile error").Wrap(err)
	}

	c := &Contract{
		name:    name,
		proto:   proto,
		factory: NewStateFactory(),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	L, err := c.newState(ctx, &hostFunctions{method: "load"})
	if err != nil {
		return nil, err
	}
	defer L.Close()

	if fn, ok := L.GetGlobal(initFunction).(*lua.LFunction); !ok || fn == nil {
		return nil, oops.In("lua").With("contract", name).Errorf("contract does not define function %s", initFunction)
	}

	tbl, ok := L.GetGlobal("methods").(*lua.LTable)
	if !ok {
		return nil, oops.In("lua").With("contract", name).Errorf("contract does not define a methods table")
	}
	var methodErr error
	tbl.ForEach(func(k, v lua.LValue) {
		if methodErr != nil {
			return
		}
		methodName, kind := k.String(), v.String()
		if k.Type() != lua.LTString || methodName == runtime.InitMethod || methodName == initFunction {
			methodErr = oops.In("lua").With("contract", name).Errorf("invalid method name %v", k)
			return
		}
		if kind != string(runtime.KindView) && kind != string(runtime.KindCall) {
			methodErr = oops.In("lua").With("contract", name).With("method", methodName).
				Errorf("method kind must be view or call, got %q", kind)
			return
		}
		if _, ok := L.GetGlobal(methodName).(*lua.LFunction); !ok {
			methodErr = oops.In("lua").With("contract", name).With("method", methodName).
				Errorf("method %s has no function", methodName)
			return
		}
		c.methods = append(c.methods, runtime.Method{Name: methodName, Kind: runtime.MethodKind(kind)})
	})
	if methodErr != nil {
		return nil, methodErr
	}
	sort.Slice(c.methods, func(i, j int) bool { return c.methods[i].Name < c.methods[j].Name })

	return c, nil
}

// Name returns the chunk name given to Load.
func (c *Contract) Name() string {
	return c.name
}

// Methods implements runtime.Contract.
func (c *Contract) Methods() []runtime.Method {
	out := make([]runtime.Method, len(c.methods))
	copy(out, c.methods)
	return out
}

// Init implements runtime.Contract.
func (c *Contract) Init(env runtime.Env, args []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	host := &hostFunctions{env: env, method: runtime.InitMethod}
	L, err := c.newState(ctx, host)
	if err != nil {
		return nil, err
	}
	defer L.Close()

	argTable, err := decodeArgs(L, args)
	if err != nil {
		return nil, runtime.InvalidArgs(runtime.InitMethod, err)
	}

	if err := L.CallByParam(lua.P{
		Fn:      L.GetGlobal(initFunction),
		NRet:    1,
		Protect: true,
	}, argTable); err != nil {
		return nil, c.callError(ctx, host, err)
	}
	if host.aborted != nil {
		return nil, host.aborted
	}

	ret := L.Get(-1)
	L.Pop(1)
	tbl, ok := ret.(*lua.LTable)
	if !ok {
		return nil, oops.Code(runtime.CodeContractPanic).With("contract", c.name).
			Errorf("init returned %s, expected a state table", ret.Type())
	}
	state, err := tableToState(tbl)
	if err != nil {
		return nil, oops.Code(runtime.CodeContractPanic).With("contract", c.name).Wrap(err)
	}
	return borsh.EncodeStringMap(state), nil
}

// Invoke implements runtime.Contract.
func (c *Contract) Invoke(env runtime.Env, method string, state, args []byte) ([]byte, []byte, error) {
	current, err := borsh.DecodeStringMap(state)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	host := &hostFunctions{env: env, method: method}
	L, err := c.newState(ctx, host)
	if err != nil {
		return nil, nil, err
	}
	defer L.Close()

	fn, ok := L.GetGlobal(method).(*lua.LFunction)
	if !ok || !c.hasMethod(method) {
		return nil, nil, oops.Code(runtime.CodeMethodNotFound).With("contract", c.name).With("method", method).
			Errorf("unknown method %q", method)
	}

	argTable, err := decodeArgs(L, args)
	if err != nil {
		return nil, nil, runtime.InvalidArgs(method, err)
	}
	stateTable := stateToTable(L, current)

	if err := L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, stateTable, argTable); err != nil {
		return nil, nil, c.callError(ctx, host, err)
	}
	if host.aborted != nil {
		return nil, nil, host.aborted
	}

	ret := L.Get(-1)
	L.Pop(1)
	result, err := encodeResult(ret)
	if err != nil {
		return nil, nil, oops.Code(runtime.CodeContractPanic).With("contract", c.name).With("method", method).Wrap(err)
	}

	next, err := tableToState(stateTable)
	if err != nil {
		return nil, nil, oops.Code(runtime.CodeContractPanic).With("contract", c.name).With("method", method).Wrap(err)
	}
	return borsh.EncodeStringMap(next), result, nil
}

func (c *Contract) hasMethod(name string) bool {
	for _, m := range c.methods {
		if m.Name == name {
			return true
		}
	}
	return false
}

// newState creates a sandboxed state with the env table registered and the
// chunk executed.
func (c *Contract) newState(ctx context.Context, host *hostFunctions) (*lua.LState, error) {
	L, err := c.factory.NewState(ctx)
	if err != nil {
		return nil, err
	}
	host.register(L)

	L.Push(L.NewFunctionFromProto(c.proto))
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		L.Close()
		if host.aborted != nil {
			return nil, host.aborted
		}
		return nil, oops.Code(runtime.CodeContractPanic).In("lua").With("contract", c.name).
			Hint("failed to run contract chunk").Wrap(err)
	}
	L.SetTop(0)
	return L, nil
}

func (c *Contract) callError(ctx context.Context, host *hostFunctions, err error) error {
	if ctx.Err() != nil && host.aborted == nil {
		return oops.Code(runtime.CodeContractPanic).
			With("contract", c.name).
			With("method", host.method).
			With("timeout", c.timeout.String()).
			Wrapf(err, "contract exceeded its time limit")
	}
	return host.result(err)
}
