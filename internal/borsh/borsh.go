// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passguess Contributors

// Package borsh persists contract state in the Borsh binary encoding. It
// wraps github.com/near/borsh-go and makes decoding strict: the input must
// be exactly the canonical encoding of the decoded value, so trailing bytes
// and unsorted or duplicate map keys are rejected as corrupt state.
package borsh

import (
	"bytes"
	"reflect"

	nearborsh "github.com/near/borsh-go"
	"github.com/samber/oops"
)

const codeStateCorrupt = "STATE_CORRUPT"

// Marshal encodes v. Structs are encoded as their fields in declaration
// order and maps as a u32 entry count followed by entries sorted by key.
func Marshal(v any) ([]byte, error) {
	data, err := nearborsh.Serialize(v)
	if err != nil {
		return nil, oops.In("borsh").Wrapf(err, "encode %T", v)
	}
	return data, nil
}

// Unmarshal decodes data into the value v points to. It fails with
// STATE_CORRUPT when data is truncated, has bytes left over, or is not the
// canonical encoding of the decoded value.
func Unmarshal(data []byte, v any) error {
	if err := nearborsh.Deserialize(v, data); err != nil {
		return oops.Code(codeStateCorrupt).
			In("borsh").
			With("length", len(data)).
			Wrapf(err, "decode %T", v)
	}

	canonical, err := nearborsh.Serialize(reflect.ValueOf(v).Elem().Interface())
	if err != nil {
		return oops.Code(codeStateCorrupt).In("borsh").Wrapf(err, "re-encode %T", v)
	}
	switch {
	case bytes.Equal(canonical, data):
		return nil
	case bytes.HasPrefix(data, canonical):
		return oops.Code(codeStateCorrupt).
			In("borsh").
			With("trailing", len(data)-len(canonical)).
			Errorf("unexpected trailing bytes")
	default:
		return oops.Code(codeStateCorrupt).
			In("borsh").
			With("length", len(data)).
			Errorf("non-canonical encoding")
	}
}

// EncodeString encodes a single string value.
func EncodeString(s string) []byte {
	data, _ := Marshal(s) //nolint:errcheck // strings always encode
	return data
}

// DecodeString decodes a buffer holding exactly one string.
func DecodeString(data []byte) (string, error) {
	var s string
	if err := Unmarshal(data, &s); err != nil {
		return "", err
	}
	return s, nil
}

// EncodeStringMap encodes a string map.
func EncodeStringMap(m map[string]string) []byte {
	data, _ := Marshal(m) //nolint:errcheck // string maps always encode
	return data
}

// DecodeStringMap decodes a buffer holding exactly one string map.
func DecodeStringMap(data []byte) (map[string]string, error) {
	var m map[string]string
	if err := Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
