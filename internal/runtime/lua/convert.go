// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passguess Contributors

package lua

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"sort"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"
)

// maxDepth bounds nesting when converting between Lua and Go values.
const maxDepth = 32

// decodeArgs turns a JSON object into a Lua table. Empty input is an empty
// table.
func decodeArgs(L *lua.LState, data []byte) (*lua.LTable, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return L.NewTable(), nil
	}

	var obj map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, oops.Errorf("arguments must be a JSON object")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, oops.Errorf("unexpected data after arguments")
	}

	v, err := toLua(L, obj, 0)
	if err != nil {
		return nil, err
	}
	return v.(*lua.LTable), nil
}

func toLua(L *lua.LState, v any, depth int) (lua.LValue, error) {
	if depth > maxDepth {
		return nil, oops.Errorf("arguments nested deeper than %d levels", maxDepth)
	}
	switch val := v.(type) {
	case nil:
		return lua.LNil, nil
	case bool:
		return lua.LBool(val), nil
	case string:
		return lua.LString(val), nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil, err
		}
		return lua.LNumber(f), nil
	case []any:
		tbl := L.NewTable()
		for _, item := range val {
			lv, err := toLua(L, item, depth+1)
			if err != nil {
				return nil, err
			}
			tbl.Append(lv)
		}
		return tbl, nil
	case map[string]any:
		tbl := L.NewTable()
		for k, item := range val {
			lv, err := toLua(L, item, depth+1)
			if err != nil {
				return nil, err
			}
			tbl.RawSetString(k, lv)
		}
		return tbl, nil
	default:
		return nil, oops.Errorf("unsupported argument type %T", v)
	}
}

// encodeResult converts a Lua return value to JSON.
func encodeResult(v lua.LValue) ([]byte, error) {
	goValue, err := fromLua(v, 0)
	if err != nil {
		return nil, err
	}
	return json.Marshal(goValue)
}

func fromLua(v lua.LValue, depth int) (any, error) {
	if depth > maxDepth {
		return nil, oops.Errorf("result nested deeper than %d levels", maxDepth)
	}
	switch val := v.(type) {
	case *lua.LNilType:
		return nil, nil
	case lua.LBool:
		return bool(val), nil
	case lua.LString:
		return string(val), nil
	case lua.LNumber:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, oops.Errorf("result number %v is not representable in JSON", f)
		}
		return f, nil
	case *lua.LTable:
		if n := val.MaxN(); n > 0 {
			out := make([]any, 0, n)
			for i := 1; i <= n; i++ {
				item, err := fromLua(val.RawGetInt(i), depth+1)
				if err != nil {
					return nil, err
				}
				out = append(out, item)
			}
			return out, nil
		}
		out := make(map[string]any)
		var convErr error
		val.ForEach(func(k, item lua.LValue) {
			if convErr != nil {
				return
			}
			key, ok := k.(lua.LString)
			if !ok {
				convErr = oops.Errorf("result table key %v is not a string", k)
				return
			}
			out[string(key)], convErr = fromLua(item, depth+1)
		})
		if convErr != nil {
			return nil, convErr
		}
		return out, nil
	default:
		return nil, oops.Errorf("result of type %s cannot be returned", v.Type())
	}
}

// tableToState reads a contract state table. Keys and values must be
// strings.
func tableToState(tbl *lua.LTable) (map[string]string, error) {
	state := make(map[string]string)
	var convErr error
	tbl.ForEach(func(k, v lua.LValue) {
		if convErr != nil {
			return
		}
		key, ok := k.(lua.LString)
		if !ok {
			convErr = oops.Errorf("state key %v is not a string", k)
			return
		}
		value, ok := v.(lua.LString)
		if !ok {
			convErr = oops.With("key", string(key)).Errorf("state value of %q is a %s, not a string", string(key), v.Type())
			return
		}
		state[string(key)] = string(value)
	})
	return state, convErr
}

// stateToTable builds the Lua table handed to contract methods.
func stateToTable(L *lua.LState, state map[string]string) *lua.LTable {
	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tbl := L.NewTable()
	for _, k := range keys {
		tbl.RawSetString(k, lua.LString(state[k]))
	}
	return tbl
}
