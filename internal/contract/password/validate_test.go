// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passguess Contributors

package password_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/saravmajestic/passguess/internal/contract/password"
	"github.com/saravmajestic/passguess/pkg/errutil"
)

func TestValidateSolutionHash(t *testing.T) {
	tests := []struct {
		name    string
		hash    string
		wantErr bool
	}{
		{"valid digest", saravHash, false},
		{"all zeros", strings.Repeat("0", 64), false},
		{"uppercase", strings.ToUpper(saravHash), true},
		{"too short", saravHash[:63], true},
		{"too long", saravHash + "0", true},
		{"empty", "", true},
		{"non hex", strings.Repeat("g", 64), true},
		{"prefixed", "0x" + saravHash[:62], true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := password.ValidateSolutionHash(tt.hash)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			errutil.AssertErrorCode(t, err, "MALFORMED_STORED_HASH")
		})
	}
}
