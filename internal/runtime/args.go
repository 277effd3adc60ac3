// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passguess Contributors

package runtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

var errArgsNotObject = errors.New("arguments must be a single JSON object")

// CheckArgs accepts empty args or exactly one JSON object. The host applies
// it to every method of every contract, views included, so native and Lua
// contracts agree on what malformed input is.
func CheckArgs(method string, args []byte) error {
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 {
		return nil
	}
	if trimmed[0] != '{' {
		return InvalidArgs(method, errArgsNotObject)
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	var obj json.RawMessage
	if err := dec.Decode(&obj); err != nil {
		return InvalidArgs(method, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return InvalidArgs(method, errArgsNotObject)
	}
	return nil
}
