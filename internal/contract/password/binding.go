// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passguess Contributors

package password

import (
	"encoding/json"
	"errors"

	"github.com/samber/oops"

	"github.com/saravmajestic/passguess/internal/runtime"
)

// CodeName is the name the native contract is registered under.
const CodeName = "password"

// Method names of the public call surface.
const (
	MethodGetSolution       = "get_solution"
	MethodGetPasswordNumber = "get_password_number"
	MethodGuessSolution     = "guess_solution"
)

// Compile-time interface check.
var _ runtime.Contract = Binding{}

// solutionArgs is the argument object of new and guess_solution.
type solutionArgs struct {
	Solution *string `json:"solution"`
}

// Binding exposes the contract to the runtime.
type Binding struct{}

// Methods implements runtime.Contract.
func (Binding) Methods() []runtime.Method {
	return []runtime.Method{
		{Name: MethodGetSolution, Kind: runtime.KindView},
		{Name: MethodGetPasswordNumber, Kind: runtime.KindView},
		{Name: MethodGuessSolution, Kind: runtime.KindCall},
	}
}

// Init implements runtime.Contract.
func (Binding) Init(_ runtime.Env, args []byte) ([]byte, error) {
	solution, err := decodeSolution(runtime.InitMethod, args)
	if err != nil {
		return nil, err
	}
	return New(solution).MarshalBorsh(), nil
}

// Invoke implements runtime.Contract.
func (Binding) Invoke(env runtime.Env, method string, state, args []byte) ([]byte, []byte, error) {
	s, err := UnmarshalState(state)
	if err != nil {
		return nil, nil, err
	}

	var result any
	switch method {
	case MethodGetSolution:
		result = s.GetSolution()
	case MethodGetPasswordNumber:
		result = s.GetPasswordNumber()
	case MethodGuessSolution:
		candidate, err := decodeSolution(method, args)
		if err != nil {
			return nil, nil, err
		}
		result = s.GuessSolution(env, candidate)
	default:
		return nil, nil, oops.Code(runtime.CodeMethodNotFound).With("method", method).Errorf("unknown method %q", method)
	}

	out, err := json.Marshal(result)
	if err != nil {
		return nil, nil, oops.With("method", method).Wrap(err)
	}
	return s.MarshalBorsh(), out, nil
}

func decodeSolution(method string, args []byte) (string, error) {
	var a solutionArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", runtime.InvalidArgs(method, err)
	}
	if a.Solution == nil {
		return "", runtime.InvalidArgs(method, errors.New("missing field solution"))
	}
	return *a.Solution, nil
}
