// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passguess Contributors

package runtime

import (
	"fmt"

	"github.com/samber/oops"
)

// Error codes attached to runtime errors.
const (
	CodeAlreadyInitialized = "ALREADY_INITIALIZED"
	CodeNotInitialized     = "NOT_INITIALIZED"
	CodeInvalidAccount     = "INVALID_ACCOUNT"
	CodeCodeNotFound       = "CODE_NOT_FOUND"
	CodeMethodNotFound     = "METHOD_NOT_FOUND"
	CodeMethodNotView      = "METHOD_NOT_VIEW"
	CodeInvalidArgs        = "INVALID_ARGS"
	CodeGasExceeded        = "GAS_EXCEEDED"
	CodeCapabilityDenied   = "CAPABILITY_DENIED"
	CodeContractPanic      = "CONTRACT_PANIC"
	CodeStateCorrupt       = "STATE_CORRUPT"
	CodeStateConflict      = "STATE_CONFLICT"
)

// InvalidArgs wraps an argument decoding failure of method.
func InvalidArgs(method string, err error) error {
	return oops.Code(CodeInvalidArgs).
		With("method", method).
		Hint("arguments are a JSON object").
		Wrapf(err, "invalid arguments for %s", method)
}

// abort carries an error out of contract code through a panic.
type abort struct {
	err error
}

// Guard runs fn and converts a host abort raised inside it into an error.
// Any other panic is reported as CONTRACT_PANIC.
func Guard(fn func() error) (err error) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		if a, ok := rec.(abort); ok {
			err = a.err
			return
		}
		err = oops.Code(CodeContractPanic).
			With("panic", fmt.Sprint(rec)).
			Errorf("contract panicked")
	}()
	return fn()
}
