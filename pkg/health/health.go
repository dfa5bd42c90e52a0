// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

package health

import "time"

// Status is the circuit-breaker state of a provider.
type Status string

const (
	StatusClosed   Status = "closed"
	StatusOpen     Status = "open"
	StatusHalfOpen Status = "half_open"
)

// Valid reports whether s is a recognized circuit status.
func (s Status) Valid() bool {
	switch s {
	case StatusClosed, StatusOpen, StatusHalfOpen:
		return true
	default:
		return false
	}
}

// State exposes the current circuit state of a provider for monitoring
// and operator visibility. All fields are point-in-time snapshots safe
// to serialize to JSON.
type State struct {
	Status              Status     `json:"status"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	Trips               int64      `json:"trips"`
	LastFailureAt       *time.Time `json:"last_failure_at,omitempty"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	CooldownUntil       *time.Time `json:"cooldown_until,omitempty"`
	TrialInFlight       bool       `json:"trial_in_flight,omitempty"`
}
