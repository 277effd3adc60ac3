// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passguess Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/saravmajestic/passguess/internal/config"
)

// NewRootCmd creates the root command. A nil deps uses the production
// dependencies.
func NewRootCmd(deps *Deps) *cobra.Command {
	deps = deps.withDefaults()

	cmd := &cobra.Command{
		Use:   "passguess",
		Short: "Password-guess contract host",
		Long: `passguess hosts a password-guess contract: it stores the SHA-256
digest of a secret and checks guesses against it. Every state transition is
persisted and every invocation is metered with gas.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&deps.configFile, "config", "", "config file path")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		NewDeployCmd(deps),
		NewViewCmd(deps),
		NewCallCmd(deps),
		NewLogsCmd(deps),
		NewHashCmd(),
		NewMigrateCmd(deps),
		NewServeCmd(deps),
		NewSchemaCmd(),
		NewVersionCmd(),
	)
	return cmd
}
