// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passguess Contributors

package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/saravmajestic/passguess/internal/contract/password"
	"github.com/saravmajestic/passguess/internal/rpc"
	"github.com/saravmajestic/passguess/internal/runtime"
	"github.com/saravmajestic/passguess/pkg/errutil"
)

// deployConfig holds flags for the deploy command.
type deployConfig struct {
	code     string
	args     string
	secret   string
	solution string
	gas      uint64
	strict   bool
}

// NewDeployCmd creates the deploy subcommand.
func NewDeployCmd(deps *Deps) *cobra.Command {
	cfg := &deployConfig{}

	cmd := &cobra.Command{
		Use:   "deploy <account>",
		Short: "Deploy a contract to an account and run its initializer",
		Long: `Deploy a contract to an account. The initializer runs exactly once per
account; deploying again fails.

The password contracts take {"solution": "<sha256 hex>"}. Use --secret to
have the digest computed locally, or --solution to pass it as is.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(cmd, deps, cfg, args[0])
		},
	}

	cmd.Flags().StringVar(&cfg.code, "code", password.CodeName, "registered contract code")
	cmd.Flags().StringVar(&cfg.args, "args", "", "initializer arguments as a JSON object")
	cmd.Flags().StringVar(&cfg.secret, "secret", "", "secret whose SHA-256 hex digest becomes the solution")
	cmd.Flags().StringVar(&cfg.solution, "solution", "", "solution hash stored verbatim")
	cmd.Flags().Uint64Var(&cfg.gas, "gas", 0, "gas to attach (default: runtime.call_gas)")
	cmd.Flags().BoolVar(&cfg.strict, "strict", false, "reject a solution that is not a lowercase hex SHA-256 digest")
	cmd.MarkFlagsMutuallyExclusive("args", "secret", "solution")

	return cmd
}

func runDeploy(cmd *cobra.Command, deps *Deps, cfg *deployConfig, account string) error {
	initArgs, err := deployArgs(cmd.Flags(), cfg)
	if err != nil {
		return err
	}

	a, err := deps.newApp(cmd.Context(), cmd, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := checkSolution(a.logger, initArgs, cfg.strict); err != nil {
		return err
	}

	out, err := a.runtime.Deploy(cmd.Context(), account, cfg.code, initArgs, gasOr(cfg.gas, a.cfg.Runtime.CallGas))
	return printOutcome(cmd, out, err)
}

// deployArgs builds the initializer arguments from the flags. A flag counts
// as given when it was set, even to an empty string.
func deployArgs(flags *pflag.FlagSet, cfg *deployConfig) ([]byte, error) {
	switch {
	case flags.Changed("secret"):
		return json.Marshal(map[string]string{"solution": hashHex(cfg.secret)})
	case flags.Changed("solution"):
		return json.Marshal(map[string]string{"solution": cfg.solution})
	case flags.Changed("args"):
		if !json.Valid([]byte(cfg.args)) {
			return nil, oops.Code("BAD_REQUEST").Hint(`pass a JSON object, e.g. {"solution": "..."}`).Errorf("--args is not valid JSON")
		}
		return []byte(cfg.args), nil
	default:
		return nil, oops.Code("BAD_REQUEST").Errorf("one of --args, --secret or --solution is required")
	}
}

// checkSolution reports a solution that no guess can ever match. The
// contract stores whatever it is given, so this is only a warning unless
// strict is set.
func checkSolution(logger *slog.Logger, initArgs []byte, strict bool) error {
	var a struct {
		Solution *string `json:"solution"`
	}
	if err := json.Unmarshal(initArgs, &a); err != nil || a.Solution == nil {
		return nil
	}
	err := password.ValidateSolutionHash(*a.Solution)
	if err == nil {
		return nil
	}
	if strict {
		return err
	}
	logger.Warn("solution is not a lowercase sha256 hex digest; no guess will match",
		"code", errutil.Code(err), "error", err)
	return nil
}

// NewViewCmd creates the view subcommand.
func NewViewCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "view <account> <method> [args-json]",
		Short: "Run a read-only method",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := deps.newApp(cmd.Context(), cmd, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			out, err := a.runtime.View(cmd.Context(), args[0], args[1], optionalArgs(args, 2))
			return printOutcome(cmd, out, err)
		},
	}
}

// NewCallCmd creates the call subcommand.
func NewCallCmd(deps *Deps) *cobra.Command {
	var gas uint64

	cmd := &cobra.Command{
		Use:   "call <account> <method> [args-json]",
		Short: "Run a method through the mutating path",
		Long: `Run a method as a metered call. The account state is committed together
with a receipt holding the logs, even when the method changes nothing.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := deps.newApp(cmd.Context(), cmd, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			out, err := a.runtime.Call(cmd.Context(), args[0], args[1], optionalArgs(args, 2), gasOr(gas, a.cfg.Runtime.CallGas))
			return printOutcome(cmd, out, err)
		},
	}

	cmd.Flags().Uint64Var(&gas, "gas", 0, "gas to attach (default: runtime.call_gas)")
	return cmd
}

// NewLogsCmd creates the logs subcommand.
func NewLogsCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "logs <account>",
		Short: "Print the execution log of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := deps.newApp(cmd.Context(), cmd, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			logs, err := a.runtime.Logs(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, line := range logs {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
}

func optionalArgs(args []string, i int) []byte {
	if len(args) > i {
		return []byte(args[i])
	}
	return nil
}

func gasOr(gas, fallback uint64) uint64 {
	if gas == 0 {
		return fallback
	}
	return gas
}

// printOutcome writes the outcome as JSON. Outcomes of failed calls are
// printed too, so the logs emitted before the failure stay visible.
func printOutcome(cmd *cobra.Command, out *runtime.Outcome, callErr error) error {
	if out != nil {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(rpc.NewOutcomeResponse(out)); err != nil {
			return oops.With("operation", "print outcome").Wrap(err)
		}
	}
	return callErr
}
