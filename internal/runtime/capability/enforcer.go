// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passguess Contributors

// Package capability gates host primitives per contract code.
//
// Grants are gobwas/glob patterns with '.' as the segment separator:
//   - '*' matches a single segment: "env.*" matches "env.sha256"
//   - '**' matches any number of segments: "**" matches everything
package capability

import (
	"sync"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// Host primitive capabilities.
const (
	SHA256 = "env.sha256"
	Hex    = "env.hex"
	Log    = "env.log"
)

type compiledGrant struct {
	pattern string
	glob    glob.Glob
}

// Enforcer checks contract capabilities at runtime. It is safe for
// concurrent use and its zero value is ready to use.
type Enforcer struct {
	grants map[string][]compiledGrant // code name -> compiled grants
	mu     sync.RWMutex
}

// NewEnforcer creates a capability enforcer.
func NewEnforcer() *Enforcer {
	return &Enforcer{grants: make(map[string][]compiledGrant)}
}

// SetGrants replaces the capabilities of a contract code. All patterns are
// compiled before anything changes, so an invalid pattern leaves the
// enforcer untouched.
func (e *Enforcer) SetGrants(code string, patterns []string) error {
	if code == "" {
		return oops.Code("CAPABILITY_INVALID").Errorf("code name cannot be empty")
	}

	compiled := make([]compiledGrant, len(patterns))
	for i, pattern := range patterns {
		if pattern == "" {
			return oops.Code("CAPABILITY_INVALID").With("code", code).Errorf("capability %d: empty pattern", i)
		}
		g, err := glob.Compile(pattern, '.')
		if err != nil {
			return oops.Code("CAPABILITY_INVALID").With("code", code).With("pattern", pattern).Wrap(err)
		}
		compiled[i] = compiledGrant{pattern: pattern, glob: g}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.grants == nil {
		e.grants = make(map[string][]compiledGrant)
	}
	e.grants[code] = compiled
	return nil
}

// RemoveGrants forgets a contract code. Unknown codes are ignored.
func (e *Enforcer) RemoveGrants(code string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.grants, code)
}

// Grants returns a copy of the patterns granted to code, or nil.
func (e *Enforcer) Grants(code string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	grants, ok := e.grants[code]
	if !ok {
		return nil
	}
	patterns := make([]string, len(grants))
	for i, g := range grants {
		patterns[i] = g.pattern
	}
	return patterns
}

// Check reports whether code holds capability. Unknown codes and empty
// capabilities are denied.
func (e *Enforcer) Check(code, capability string) bool {
	if capability == "" {
		return false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, grant := range e.grants[code] {
		if grant.glob.Match(capability) {
			return true
		}
	}
	return false
}
