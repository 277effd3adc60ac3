// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passguess Contributors

package runtime

import (
	"math"
	"math/bits"
)

// Gas budgets.
const (
	Tgas           uint64 = 1_000_000_000_000
	DefaultCallGas        = 30 * Tgas
	DefaultViewGas        = 200 * Tgas
)

// Costs is the gas schedule charged by the host.
type Costs struct {
	Base                uint64
	SHA256Base          uint64
	SHA256PerByte       uint64
	HexPerByte          uint64
	LogBase             uint64
	LogPerByte          uint64
	StorageReadPerByte  uint64
	StorageWritePerByte uint64
}

// DefaultCosts is the production gas schedule.
var DefaultCosts = Costs{
	Base:                2_428_000_000_000,
	SHA256Base:          4_540_970_250,
	SHA256PerByte:       24_117_400,
	HexPerByte:          2_000_000,
	LogBase:             3_543_313_050,
	LogPerByte:          13_198_791,
	StorageReadPerByte:  5_611_005,
	StorageWritePerByte: 31_018_539,
}

// linear returns base + perByte*n, saturating at MaxUint64.
func linear(base, perByte uint64, n int) uint64 {
	hi, lo := bits.Mul64(perByte, uint64(n))
	if hi != 0 {
		return math.MaxUint64
	}
	sum, carry := bits.Add64(base, lo, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return sum
}
