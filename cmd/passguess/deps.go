// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passguess Contributors

package main

import (
	"context"
	"io/fs"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/saravmajestic/passguess/contracts"
	"github.com/saravmajestic/passguess/internal/config"
	"github.com/saravmajestic/passguess/internal/contract/password"
	"github.com/saravmajestic/passguess/internal/loader"
	"github.com/saravmajestic/passguess/internal/logging"
	"github.com/saravmajestic/passguess/internal/observability"
	"github.com/saravmajestic/passguess/internal/runtime"
	luavm "github.com/saravmajestic/passguess/internal/runtime/lua"
	"github.com/saravmajestic/passguess/internal/store"
)

// Migrator is the part of store.Migrator the migrate command uses.
type Migrator interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
	Force(version uint) error
	Pending() ([]uint, error)
	Close() error
}

// ObservabilityServer is the part of observability.Server serve uses.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Registry() *prometheus.Registry
	Metrics() *observability.Metrics
}

// Deps holds injectable dependencies. Nil fields use the defaults.
type Deps struct {
	// StoreFactory opens the configured store.
	// Default: store.Connect for postgres, store.NewMemoryStore for memory.
	StoreFactory func(ctx context.Context, cfg *config.Config) (store.Store, error)

	// MigratorFactory creates a migrator for a database URL.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)

	// ObservabilityServerFactory creates the metrics and health server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker) ObservabilityServer

	// Getenv reads environment variables.
	// Default: os.Getenv
	Getenv func(string) string

	// Listening is called by serve once its servers accept connections.
	Listening func(rpcAddr, metricsAddr string)

	configFile string
}

func (d *Deps) withDefaults() *Deps {
	if d == nil {
		d = &Deps{}
	}
	if d.StoreFactory == nil {
		d.StoreFactory = openStore
	}
	if d.MigratorFactory == nil {
		d.MigratorFactory = func(databaseURL string) (Migrator, error) {
			return store.NewMigrator(databaseURL)
		}
	}
	if d.ObservabilityServerFactory == nil {
		d.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, ready)
		}
	}
	if d.Getenv == nil {
		d.Getenv = os.Getenv
	}
	return d
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		return store.NewMemoryStore(), nil
	default:
		return store.Connect(ctx, cfg.Store.DatabaseURL, store.ConnectOptions{Timeout: cfg.Store.ConnectTimeout})
	}
}

// loadConfig reads the configuration and installs the default logger.
func (d *Deps) loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(d.configFile, cmd.Flags(), d.Getenv)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.SetDefault(logging.Options{
		Service: "passguess",
		Version: version,
		Format:  cfg.LogFormat,
		Level:   cfg.LogLevel,
		Output:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// app is a configured runtime over an open store.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   store.Store
	runtime *runtime.Runtime
	codes   []string
}

// newApp opens the store and registers the built-in contracts plus those in
// contracts.dir. A nil metrics leaves the runtime unmetered.
func (d *Deps) newApp(ctx context.Context, cmd *cobra.Command, metrics *runtime.Metrics) (*app, error) {
	cfg, logger, err := d.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	st, err := d.StoreFactory(ctx, cfg)
	if err != nil {
		return nil, oops.With("driver", cfg.Store.Driver).Wrap(err)
	}

	opts := []runtime.Option{
		runtime.WithLogger(logger),
		runtime.WithViewGas(cfg.Runtime.ViewGas),
	}
	if metrics != nil {
		opts = append(opts, runtime.WithMetrics(metrics))
	}
	rt := runtime.New(st, opts...)

	sources := []fs.FS{contracts.FS}
	if cfg.Contracts.Dir != "" {
		sources = append(sources, os.DirFS(cfg.Contracts.Dir))
	}
	l := loader.New(
		loader.WithNative(password.CodeName, password.Binding{}),
		loader.WithLuaOptions(luavm.WithTimeout(cfg.Runtime.LuaTimeout)),
		loader.WithLogger(logger),
	)
	codes, err := l.LoadAll(ctx, rt, sources...)
	if err != nil {
		st.Close()
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, store: st, runtime: rt, codes: codes}, nil
}

func (a *app) Close() {
	a.store.Close()
}
