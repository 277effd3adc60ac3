// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passguess Contributors

package password

import (
	"github.com/samber/oops"
)

// digestHexLength is the length of a hex-encoded SHA-256 digest.
const digestHexLength = 64

// ValidateSolutionHash checks that s is 64 lowercase hex characters, the
// only form GuessSolution can ever match.
func ValidateSolutionHash(s string) error {
	if len(s) != digestHexLength {
		return oops.Code("MALFORMED_STORED_HASH").
			With("length", len(s)).
			Hint("expected the lowercase hex SHA-256 digest of the secret").
			Errorf("solution hash must be %d hex characters", digestHexLength)
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return oops.Code("MALFORMED_STORED_HASH").
				With("offset", i).
				Hint("expected the lowercase hex SHA-256 digest of the secret").
				Errorf("solution hash contains non lowercase hex character %q", c)
		}
	}
	return nil
}
