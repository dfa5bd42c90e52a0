// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

package types

import "strings"

// Tier is a caller's subscription tier. The set of valid tiers is defined
// by configuration, not by this package; Tier is a typed string so that
// tier values cannot be confused with provider IDs or modalities.
type Tier string

// NormalizeTier lowercases and trims a tier string.
func NormalizeTier(s string) Tier {
	return Tier(strings.ToLower(strings.TrimSpace(s)))
}
