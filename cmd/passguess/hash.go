// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passguess Contributors

package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// NewHashCmd creates the hash subcommand.
func NewHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <secret|->",
		Short: "Print the SHA-256 hex digest of a secret",
		Long: `Print the lowercase hex SHA-256 digest of a secret, the value a password
contract is deployed with. Pass "-" to read the secret from stdin; a single
trailing newline is dropped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := args[0]
			if secret == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return oops.With("operation", "read secret").Wrap(err)
				}
				secret = strings.TrimSuffix(strings.TrimSuffix(string(data), "\n"), "\r")
			}
			fmt.Fprintln(cmd.OutOrStdout(), hashHex(secret))
			return nil
		},
	}
}

func hashHex(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
