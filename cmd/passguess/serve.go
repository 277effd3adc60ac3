// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passguess Contributors

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/saravmajestic/passguess/internal/rpc"
	"github.com/saravmajestic/passguess/internal/runtime"
)

const shutdownTimeout = 5 * time.Second

// pinger is implemented by stores that can report connectivity.
type pinger interface {
	Ping(ctx context.Context) error
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the RPC API and metrics",
		Long: `Serve the HTTP RPC API over the contract runtime, plus Prometheus metrics
and health endpoints on server.metrics_addr when it is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, deps)
		},
	}
}

func runServe(cmd *cobra.Command, deps *Deps) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	cfg, _, err := deps.loadConfig(cmd)
	if err != nil {
		return err
	}

	var (
		ready     atomic.Bool
		storeRef  atomic.Value
		obsServer ObservabilityServer
		metrics   *runtime.Metrics
	)
	if cfg.Server.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Server.MetricsAddr, func(ctx context.Context) error {
			if !ready.Load() {
				return errNotServing
			}
			return pingStore(ctx, storeRef.Load())
		})
		metrics = runtime.NewMetrics(obsServer.Registry())
	}

	a, err := deps.newApp(ctx, cmd, metrics)
	if err != nil {
		return err
	}
	defer a.Close()

	storeRef.Store(a.store)

	handlerOpts := []rpc.HandlerOption{
		rpc.WithCallGas(a.cfg.Runtime.CallGas),
		rpc.WithLogger(a.logger),
	}
	if obsServer != nil {
		handlerOpts = append(handlerOpts, rpc.WithMetrics(obsServer.Metrics()))
	}
	rpcServer := rpc.NewServer(a.cfg.Server.RPCAddr, rpc.NewHandler(a.runtime, handlerOpts...))
	rpcErrCh, err := rpcServer.Start()
	if err != nil {
		return oops.Code("SERVER_START_FAILED").With("server", "rpc").Wrap(err)
	}
	defer stopServer(a.logger, "rpc", rpcServer.Stop)
	go monitorServerErrors(ctx, cancel, rpcErrCh, "rpc")

	metricsAddr := ""
	if obsServer != nil {
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.Code("SERVER_START_FAILED").With("server", "observability").Wrap(err)
		}
		defer stopServer(a.logger, "observability", obsServer.Stop)
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
		metricsAddr = obsServer.Addr()
	}

	ready.Store(true)
	a.logger.Info("passguess serving",
		"rpc_addr", rpcServer.Addr(),
		"metrics_addr", metricsAddr,
		"contracts", a.codes,
	)
	fmt.Fprintf(cmd.OutOrStdout(), "Serving RPC on %s\n", rpcServer.Addr())
	if deps.Listening != nil {
		deps.Listening(rpcServer.Addr(), metricsAddr)
	}

	<-ctx.Done()
	ready.Store(false)
	a.logger.Info("shutting down")
	if cause := context.Cause(ctx); !errors.Is(cause, context.Canceled) {
		return cause
	}
	return nil
}

var errNotServing = errors.New("not serving")

// pingStore checks stores that can report connectivity. Others are always
// reachable.
func pingStore(ctx context.Context, st any) error {
	p, ok := st.(pinger)
	if !ok {
		return nil
	}
	return p.Ping(ctx)
}

func stopServer(logger *slog.Logger, name string, stop func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := stop(ctx); err != nil {
		logger.Warn("error stopping server", "server", name, "error", err)
	}
}

// monitorServerErrors cancels ctx with a SERVER_FAILED cause when a server
// reports an error.
func monitorServerErrors(ctx context.Context, cancel context.CancelCauseFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel(oops.Code("SERVER_FAILED").With("server", serverName).Wrapf(err, "%s server failed", serverName))
		}
	case <-ctx.Done():
	}
}
