// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passguess Contributors

// Package loader discovers contract manifests and registers their code with
// the runtime.
package loader

import (
	"context"
	"io/fs"
	"log/slog"
	"path"
	"sort"

	"github.com/samber/oops"

	"github.com/saravmajestic/passguess/internal/manifest"
	"github.com/saravmajestic/passguess/internal/runtime"
	luavm "github.com/saravmajestic/passguess/internal/runtime/lua"
)

// ManifestFile is the manifest name inside each contract directory.
const ManifestFile = "contract.yaml"

// Registrar accepts contract code. *runtime.Runtime satisfies it.
type Registrar interface {
	Register(c runtime.Contract, m *manifest.Manifest) error
}

// Discovered is a parsed manifest and the directory it was found in.
type Discovered struct {
	Manifest *manifest.Manifest
	FS       fs.FS
	Dir      string
}

// Loader resolves manifests to contract implementations.
type Loader struct {
	natives map[string]runtime.Contract
	luaOpts []luavm.Option
	logger  *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithNative makes a Go contract available to manifests with runtime native
// and the given name.
func WithNative(name string, c runtime.Contract) Option {
	return func(l *Loader) { l.natives[name] = c }
}

// WithLuaOptions passes options to every compiled Lua contract.
func WithLuaOptions(opts ...luavm.Option) Option {
	return func(l *Loader) { l.luaOpts = append(l.luaOpts, opts...) }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// New creates a Loader.
func New(opts ...Option) *Loader {
	l := &Loader{
		natives: make(map[string]runtime.Contract),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Discover finds every valid manifest one level below the root of fsys.
// Directories without a manifest or with an invalid one are logged and
// skipped.
func (l *Loader) Discover(fsys fs.FS) ([]*Discovered, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, oops.Code("CONTRACTS_UNREADABLE").Wrap(err)
	}

	var found []*Discovered
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		data, err := fs.ReadFile(fsys, path.Join(entry.Name(), ManifestFile))
		if err != nil {
			l.logger.Warn("skipping contract without manifest",
				"dir", entry.Name(),
				"error", err)
			continue
		}

		m, err := manifest.Parse(data)
		if err != nil {
			l.logger.Warn("skipping contract with invalid manifest",
				"dir", entry.Name(),
				"error", err)
			continue
		}

		found = append(found, &Discovered{Manifest: m, FS: fsys, Dir: entry.Name()})
	}
	return found, nil
}

// Resolve builds the contract implementation for d.
func (l *Loader) Resolve(d *Discovered) (runtime.Contract, error) {
	switch d.Manifest.Runtime {
	case manifest.RuntimeNative:
		c, ok := l.natives[d.Manifest.Name]
		if !ok {
			return nil, oops.Code("CONTRACT_UNAVAILABLE").
				With("name", d.Manifest.Name).
				Errorf("no native implementation named %q", d.Manifest.Name)
		}
		return c, nil
	case manifest.RuntimeLua:
		entry := path.Join(d.Dir, d.Manifest.Lua.Entry)
		source, err := fs.ReadFile(d.FS, entry)
		if err != nil {
			return nil, oops.Code("CONTRACT_UNAVAILABLE").
				With("name", d.Manifest.Name).
				With("entry", entry).
				Hint("failed to read lua entry file").
				Wrap(err)
		}
		return luavm.Load(d.Manifest.Name, source, l.luaOpts...)
	default:
		return nil, oops.Code("CONTRACT_UNAVAILABLE").
			With("name", d.Manifest.Name).
			Errorf("unsupported runtime %q", d.Manifest.Runtime)
	}
}

// LoadAll discovers contracts in each of sources in order and registers them
// with reg. A later source replaces a contract of the same name. Contracts
// that fail to resolve or register are logged and skipped. The names of the
// registered contracts are returned sorted.
func (l *Loader) LoadAll(_ context.Context, reg Registrar, sources ...fs.FS) ([]string, error) {
	loaded := make(map[string]bool)
	for _, fsys := range sources {
		discovered, err := l.Discover(fsys)
		if err != nil {
			return nil, err
		}

		for _, d := range discovered {
			c, err := l.Resolve(d)
			if err != nil {
				l.logger.Error("failed to load contract",
					"contract", d.Manifest.Name,
					"error", err)
				continue
			}
			if err := reg.Register(c, d.Manifest); err != nil {
				l.logger.Error("failed to register contract",
					"contract", d.Manifest.Name,
					"error", err)
				continue
			}
			loaded[d.Manifest.Name] = true

			l.logger.Info("loaded contract",
				"contract", d.Manifest.Name,
				"runtime", string(d.Manifest.Runtime),
				"version", d.Manifest.Version)
		}
	}

	names := make([]string, 0, len(loaded))
	for name := range loaded {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
