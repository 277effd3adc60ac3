// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passguess Contributors

package runtime

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/samber/oops"

	"github.com/saravmajestic/passguess/internal/runtime/capability"
)

// Compile-time interface check.
var _ Env = (*hostEnv)(nil)

// hostEnv is the metered Env of a single invocation.
type hostEnv struct {
	code     string
	enforcer *capability.Enforcer
	costs    Costs
	limit    uint64
	burnt    uint64
	logs     []string
}

func newHostEnv(code string, enforcer *capability.Enforcer, costs Costs, limit uint64) *hostEnv {
	return &hostEnv{
		code:     code,
		enforcer: enforcer,
		costs:    costs,
		limit:    limit,
	}
}

// SHA256 implements Env.
func (e *hostEnv) SHA256(value []byte) []byte {
	e.require(capability.SHA256)
	e.charge(linear(e.costs.SHA256Base, e.costs.SHA256PerByte, len(value)))
	sum := sha256.Sum256(value)
	return sum[:]
}

// HexEncode implements Env.
func (e *hostEnv) HexEncode(value []byte) string {
	e.require(capability.Hex)
	e.charge(linear(0, e.costs.HexPerByte, len(value)))
	return hex.EncodeToString(value)
}

// LogStr implements Env.
func (e *hostEnv) LogStr(message string) {
	e.require(capability.Log)
	e.charge(linear(e.costs.LogBase, e.costs.LogPerByte, len(message)))
	e.logs = append(e.logs, message)
}

// GasBurnt implements Env.
func (e *hostEnv) GasBurnt() uint64 {
	return e.burnt
}

func (e *hostEnv) require(name string) {
	if e.enforcer.Check(e.code, name) {
		return
	}
	panic(abort{err: oops.Code(CodeCapabilityDenied).
		With("code", e.code).
		With("capability", name).
		Errorf("capability denied: %s requires %s", e.code, name)})
}

// charge burns amount gas, aborting the invocation once the limit is passed.
func (e *hostEnv) charge(amount uint64) {
	if amount > e.limit-e.burnt {
		e.burnt = e.limit
		panic(abort{err: oops.Code(CodeGasExceeded).
			With("code", e.code).
			With("limit", e.limit).
			Hint("attach more gas to the call").
			Errorf("exceeded the prepaid gas")})
	}
	e.burnt += amount
}
