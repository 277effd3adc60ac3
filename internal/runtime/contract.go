// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passguess Contributors

package runtime

// MethodKind classifies how a method is routed by the host.
type MethodKind string

// Method kinds.
const (
	KindInit MethodKind = "init"
	KindView MethodKind = "view"
	KindCall MethodKind = "call"
)

// InitMethod is the name receipts use for the initializer.
const InitMethod = "new"

// Method describes one exported contract method.
type Method struct {
	Name string
	Kind MethodKind
}

// Env is the capability object handed to contract code.
type Env interface {
	// SHA256 returns the 32-byte SHA-256 digest of value.
	SHA256(value []byte) []byte
	// HexEncode returns value as lowercase hex without prefix.
	HexEncode(value []byte) string
	// LogStr appends message to the call's ordered log.
	LogStr(message string)
	// GasBurnt returns the gas consumed so far by the call.
	GasBurnt() uint64
}

// Contract is executable contract code.
type Contract interface {
	// Methods lists the view and call methods. The initializer is not listed.
	Methods() []Method
	// Init builds the initial encoded state from JSON args.
	Init(env Env, args []byte) (state []byte, err error)
	// Invoke runs method against the encoded state and returns the encoded
	// state to persist and the JSON result.
	Invoke(env Env, method string, state, args []byte) (newState, result []byte, err error)
}

func findMethod(c Contract, name string) (Method, bool) {
	for _, m := range c.Methods() {
		if m.Name == name {
			return m, true
		}
	}
	return Method{}, false
}
