// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passguess Contributors

// Package main is the passguess command: it deploys and drives the
// password-guess contract and serves it over RPC.
package main

import (
	"fmt"
	"os"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd := NewRootCmd(nil)
	cmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
