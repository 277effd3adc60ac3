// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passguess Contributors

// Package password implements the password-guess contract: a single
// persisted SHA-256 digest of a secret and an operation that checks whether
// a guess hashes to it.
//
// The contract owns no globals. Its state is an explicit State value that
// the runtime loads before and stores after every call, and the host
// primitives it needs (hashing, hex encoding, logging) arrive through Env.
//
// Initialization stores the digest verbatim. A malformed digest is accepted
// and simply never matches; ValidateSolutionHash lets deploy tooling reject
// one before it reaches the contract.
package password
