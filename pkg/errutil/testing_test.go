// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passguess Contributors

package errutil_test

import (
	"testing"

	"github.com/samber/oops"

	"github.com/saravmajestic/passguess/pkg/errutil"
)

func TestAssertErrorCode_MatchingCode(t *testing.T) {
	err := oops.Code("METHOD_NOT_FOUND").Errorf("no such method")
	errutil.AssertErrorCode(t, err, "METHOD_NOT_FOUND")
}

func TestAssertErrorCode_Wrapped(t *testing.T) {
	inner := oops.Code("GAS_EXCEEDED").Errorf("out of gas")
	errutil.AssertErrorCode(t, oops.With("account", "alice.test").Wrap(inner), "GAS_EXCEEDED")
}

func TestAssertErrorContext_MatchingKeyValue(t *testing.T) {
	err := oops.With("method", "guess_solution").Errorf("test error")
	errutil.AssertErrorContext(t, err, "method", "guess_solution")
}

func TestAssertErrorHint(t *testing.T) {
	err := oops.Code("GAS_EXCEEDED").Hint("attach more gas to the call").Errorf("out of gas")
	errutil.AssertErrorHint(t, err, "more gas")
}
