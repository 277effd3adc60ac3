// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passguess Contributors

package password

import (
	"github.com/saravmajestic/passguess/internal/borsh"
)

// PasswordNumber identifies the guess semantics of this contract revision.
const PasswordNumber uint8 = 1

// Log lines emitted by GuessSolution.
const (
	LogRight = "Right password"
	LogWrong = "Wrong password"
)

// Env is the set of host primitives the contract consumes.
type Env interface {
	SHA256(value []byte) []byte
	HexEncode(value []byte) string
	LogStr(message string)
}

// State is the persisted contract state.
type State struct {
	PasswordSolution string
}

// New creates the contract state holding solutionHash exactly as given.
func New(solutionHash string) *State {
	return &State{PasswordSolution: solutionHash}
}

// GetSolution returns the stored digest.
func (s *State) GetSolution() string {
	return s.PasswordSolution
}

// GetPasswordNumber returns PasswordNumber.
func (s *State) GetPasswordNumber() uint8 {
	return PasswordNumber
}

// GuessSolution reports whether the lowercase hex SHA-256 of candidate equals
// the stored digest, and logs the verdict. It does not modify s.
func (s *State) GuessSolution(env Env, candidate string) bool {
	hashed := env.HexEncode(env.SHA256([]byte(candidate)))
	if hashed == s.PasswordSolution {
		env.LogStr(LogRight)
		return true
	}
	env.LogStr(LogWrong)
	return false
}

// MarshalBorsh encodes the state as a struct with one string field.
func (s *State) MarshalBorsh() []byte {
	data, _ := borsh.Marshal(*s) //nolint:errcheck // a struct of strings always encodes
	return data
}

// UnmarshalState decodes state written by MarshalBorsh.
func UnmarshalState(data []byte) (*State, error) {
	var s State
	if err := borsh.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
