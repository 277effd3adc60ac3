// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passguess Contributors

// Package config loads process configuration. Values are layered: built-in
// defaults, then an optional YAML file, then command-line flags that were
// set explicitly.
package config

import (
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/saravmajestic/passguess/internal/logging"
	"github.com/saravmajestic/passguess/internal/runtime"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// DatabaseURLEnv fills store.database_url when the file and flags leave it
// empty.
const DatabaseURLEnv = "DATABASE_URL"

// Config is the process configuration.
type Config struct {
	LogFormat string          `koanf:"log_format"`
	LogLevel  string          `koanf:"log_level"`
	Store     StoreConfig     `koanf:"store"`
	Runtime   RuntimeConfig   `koanf:"runtime"`
	Contracts ContractsConfig `koanf:"contracts"`
	Server    ServerConfig    `koanf:"server"`
}

// StoreConfig selects and configures the state store.
type StoreConfig struct {
	Driver         string        `koanf:"driver"`
	DatabaseURL    string        `koanf:"database_url"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
}

// RuntimeConfig holds gas budgets and Lua limits.
type RuntimeConfig struct {
	CallGas    uint64        `koanf:"call_gas"`
	ViewGas    uint64        `koanf:"view_gas"`
	LuaTimeout time.Duration `koanf:"lua_timeout"`
}

// ContractsConfig points at extra contract manifests.
type ContractsConfig struct {
	// Dir holds one subdirectory per contract. Empty loads only built-ins.
	Dir string `koanf:"dir"`
}

// ServerConfig holds listen addresses for serve.
type ServerConfig struct {
	RPCAddr string `koanf:"rpc_addr"`
	// MetricsAddr empty disables the observability server.
	MetricsAddr string `koanf:"metrics_addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogFormat: "json",
		LogLevel:  "info",
		Store: StoreConfig{
			Driver:         DriverPostgres,
			ConnectTimeout: 30 * time.Second,
		},
		Runtime: RuntimeConfig{
			CallGas:    runtime.DefaultCallGas,
			ViewGas:    runtime.DefaultViewGas,
			LuaTimeout: 2 * time.Second,
		},
		Server: ServerConfig{
			RPCAddr:     "127.0.0.1:3030",
			MetricsAddr: "127.0.0.1:9100",
		},
	}
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"log-format":      "log_format",
	"log-level":       "log_level",
	"store-driver":    "store.driver",
	"database-url":    "store.database_url",
	"connect-timeout": "store.connect_timeout",
	"call-gas":        "runtime.call_gas",
	"view-gas":        "runtime.view_gas",
	"lua-timeout":     "runtime.lua_timeout",
	"contracts-dir":   "contracts.dir",
	"rpc-addr":        "server.rpc_addr",
	"metrics-addr":    "server.metrics_addr",
}

// RegisterFlags adds the configuration flags to fs with the built-in
// defaults shown in help output.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("log-format", d.LogFormat, "log format (json or text)")
	fs.String("log-level", d.LogLevel, "log level (debug, info, warn, error)")
	fs.String("store-driver", d.Store.Driver, "state store (postgres or memory)")
	fs.String("database-url", "", "PostgreSQL connection URL (default: $"+DatabaseURLEnv+")")
	fs.Duration("connect-timeout", d.Store.ConnectTimeout, "how long to retry the initial database connection")
	fs.Uint64("call-gas", d.Runtime.CallGas, "gas attached to deploys and calls")
	fs.Uint64("view-gas", d.Runtime.ViewGas, "gas budget of views")
	fs.Duration("lua-timeout", d.Runtime.LuaTimeout, "wall time limit of one Lua contract invocation")
	fs.String("contracts-dir", "", "directory of additional contract manifests")
	fs.String("rpc-addr", d.Server.RPCAddr, "RPC listen address")
	fs.String("metrics-addr", d.Server.MetricsAddr, "metrics/health listen address (empty = disabled)")
}

// Load builds the configuration. path may be empty, flags may be nil and
// getenv defaults to no environment.
func Load(path string, flags *pflag.FlagSet, getenv func(string) string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_INVALID").
				With("path", path).
				Hint("check that the config file exists and is valid YAML").
				Wrap(err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_INVALID").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}

	if cfg.Store.DatabaseURL == "" && getenv != nil {
		cfg.Store.DatabaseURL = getenv(DatabaseURLEnv)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value constraints.
func (c *Config) Validate() error {
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return invalid("log_format", "must be 'json' or 'text', got %q", c.LogFormat)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return invalid("log_level", "must be one of debug, info, warn or error, got %q", c.LogLevel)
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			return oops.Code("CONFIG_INVALID").
				With("key", "store.database_url").
				Hint("set store.database_url, --database-url or " + DatabaseURLEnv).
				Errorf("a database URL is required for the postgres store")
		}
	default:
		return invalid("store.driver", "must be 'postgres' or 'memory', got %q", c.Store.Driver)
	}
	if c.Runtime.CallGas == 0 {
		return invalid("runtime.call_gas", "must be greater than zero")
	}
	if c.Runtime.ViewGas == 0 {
		return invalid("runtime.view_gas", "must be greater than zero")
	}
	if c.Runtime.LuaTimeout <= 0 {
		return invalid("runtime.lua_timeout", "must be positive")
	}
	return nil
}

func invalid(key, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").With("key", key).Errorf(key+" "+format, args...)
}
