// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passguess Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/saravmajestic/passguess/internal/runtime"
)

// NewVersionCmd creates the version subcommand.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build and host versions",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "passguess %s (commit: %s, built: %s)\n", version, commit, date)
			fmt.Fprintf(w, "contract host %s\n", runtime.HostVersion)
		},
	}
}
