// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passguess Contributors

// Package runtime is the deterministic contract host.
//
// A Runtime loads an account's persisted state, runs one contract method
// against it with a metered Env, and persists the resulting state together
// with a receipt holding the method's logs. Calls are serialized; a call
// either commits completely or leaves the stored state untouched.
//
// Host primitives abort the running method by panicking with an internal
// abort value when gas runs out or a capability is missing. Execution is
// always wrapped by Guard, which turns the abort back into an error.
package runtime
