// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passguess Contributors

// Package manifest parses and validates contract.yaml files.
package manifest

import (
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// Runtime identifies how a contract's code is executed.
type Runtime string

// Supported runtimes.
const (
	RuntimeNative Runtime = "native"
	RuntimeLua    Runtime = "lua"
)

// Manifest represents a contract.yaml file.
type Manifest struct {
	Name         string     `yaml:"name" json:"name" jsonschema:"pattern=^[a-z]([a-z0-9-]*[a-z0-9])?$,maxLength=64"`
	Version      string     `yaml:"version" json:"version" jsonschema:"description=Semantic version of the contract code"`
	Runtime      Runtime    `yaml:"runtime" json:"runtime" jsonschema:"enum=native,enum=lua"`
	Requires     string     `yaml:"requires,omitempty" json:"requires,omitempty" jsonschema:"description=Semver constraint on the host version"`
	Capabilities []string   `yaml:"capabilities,omitempty" json:"capabilities,omitempty"`
	Lua          *LuaConfig `yaml:"lua,omitempty" json:"lua,omitempty"`
}

// LuaConfig holds Lua-specific configuration.
type LuaConfig struct {
	Entry string `yaml:"entry" json:"entry"`
}

const maxNameLength = 64

var namePattern = regexp.MustCompile(`^[a-z]([a-z0-9-]*[a-z0-9])?$`)

// Parse parses and validates a contract.yaml document.
func Parse(data []byte) (*Manifest, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, oops.Code("MANIFEST_INVALID").Errorf("manifest data is empty")
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, oops.Code("MANIFEST_INVALID").Hint("invalid YAML").Wrap(err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks manifest constraints.
func (m *Manifest) Validate() error {
	if len(m.Name) > maxNameLength {
		return oops.Code("MANIFEST_INVALID").With("name", m.Name).
			Errorf("name must be %d characters or less, got %d", maxNameLength, len(m.Name))
	}
	if !namePattern.MatchString(m.Name) {
		return oops.Code("MANIFEST_INVALID").With("name", m.Name).
			Errorf("name %q must start with a-z, contain only a-z, 0-9, hyphens, and not end with a hyphen", m.Name)
	}

	if _, err := semver.StrictNewVersion(m.Version); err != nil {
		return oops.Code("MANIFEST_INVALID").With("name", m.Name).
			Wrapf(err, "version %q is not a semantic version", m.Version)
	}

	if m.Requires != "" {
		if _, err := semver.NewConstraint(m.Requires); err != nil {
			return oops.Code("MANIFEST_INVALID").With("name", m.Name).
				Wrapf(err, "requires %q is not a version constraint", m.Requires)
		}
	}

	for i, c := range m.Capabilities {
		if c == "" {
			return oops.Code("MANIFEST_INVALID").With("name", m.Name).
				Errorf("capability %d is empty", i)
		}
	}

	switch m.Runtime {
	case RuntimeNative:
		if m.Lua != nil {
			return oops.Code("MANIFEST_INVALID").With("name", m.Name).
				Errorf("lua section is only allowed when runtime is lua")
		}
	case RuntimeLua:
		if m.Lua == nil || m.Lua.Entry == "" {
			return oops.Code("MANIFEST_INVALID").With("name", m.Name).
				Errorf("lua.entry is required when runtime is lua")
		}
	default:
		return oops.Code("MANIFEST_INVALID").With("name", m.Name).
			Errorf("runtime must be 'native' or 'lua', got %q", m.Runtime)
	}

	return nil
}

// SemVer returns the parsed contract version.
func (m *Manifest) SemVer() *semver.Version {
	v, err := semver.StrictNewVersion(m.Version)
	if err != nil {
		return nil
	}
	return v
}

// CheckHost reports an error when the host version does not satisfy Requires.
// A manifest without Requires runs on any host.
func (m *Manifest) CheckHost(host *semver.Version) error {
	if m.Requires == "" {
		return nil
	}
	c, err := semver.NewConstraint(m.Requires)
	if err != nil {
		return oops.Code("MANIFEST_INVALID").With("name", m.Name).Wrap(err)
	}
	if !c.Check(host) {
		return oops.Code("HOST_INCOMPATIBLE").
			With("name", m.Name).
			With("requires", m.Requires).
			With("host", host.String()).
			Errorf("contract %s requires host %s", m.Name, m.Requires)
	}
	return nil
}
