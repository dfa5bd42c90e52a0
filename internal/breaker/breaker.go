// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

// Package breaker tracks per-provider circuit-breaker state from attempt
// outcomes. A provider starts CLOSED, trips OPEN after a configured run of
// consecutive failures, and recovers through a single-probe HALF_OPEN
// trial once its cooldown elapses. Repeated trips back off exponentially
// up to a cap. State is per-process and best-effort; nothing is shared
// across processes.
package breaker

import (
	"sync"
	"time"

	"github.com/kiln-dev/kiln/pkg/health"
)

// DefaultCooldown is the base cooldown applied on the first trip.
const DefaultCooldown = 60 * time.Second

// Config controls trip and recovery behavior.
type Config struct {
	// FailureThreshold is the consecutive-failure count that trips the
	// breaker from CLOSED to OPEN.
	FailureThreshold int
	// Cooldown is the base OPEN duration after the first trip.
	Cooldown time.Duration
	// BackoffFactor multiplies the cooldown on each consecutive trip.
	BackoffFactor int
	// MaxCooldown caps the backed-off cooldown.
	MaxCooldown time.Duration
}

// DefaultConfig returns the standard breaker tuning.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 3,
		Cooldown:         DefaultCooldown,
		BackoffFactor:    2,
		MaxCooldown:      10 * time.Minute,
	}
}

// withDefaults fills zero fields so a partially-populated Config behaves.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.Cooldown <= 0 {
		c.Cooldown = d.Cooldown
	}
	if c.BackoffFactor < 1 {
		c.BackoffFactor = d.BackoffFactor
	}
	if c.MaxCooldown <= 0 {
		c.MaxCooldown = d.MaxCooldown
	}
	return c
}

// entry is the mutable circuit state for one provider. Each entry carries
// its own lock so outcome recording for one provider never contends with
// eligibility checks for another.
type entry struct {
	mu sync.Mutex

	open          bool
	consecutive   int
	trips         int64 // consecutive trips since last success, drives backoff
	totalTrips    int64
	lastFailureAt time.Time
	lastSuccessAt time.Time
	cooldownUntil time.Time
	trialInFlight bool
}

// Tracker holds breaker state for all known providers. Entries are created
// CLOSED on first reference and never destroyed while the process runs;
// Reset is the only way back to a clean slate.
type Tracker struct {
	cfg Config

	mu      sync.RWMutex
	entries map[string]*entry

	nowFunc func() time.Time // for testing
}

// NewTracker creates a Tracker with entries pre-registered for the given
// provider ids.
func NewTracker(cfg Config, providerIDs ...string) *Tracker {
	t := &Tracker{
		cfg:     cfg.withDefaults(),
		entries: make(map[string]*entry, len(providerIDs)),
		nowFunc: time.Now,
	}
	for _, id := range providerIDs {
		t.entries[id] = &entry{}
	}
	return t
}

// SetNowFunc overrides the time source (for testing).
func (t *Tracker) SetNowFunc(fn func() time.Time) {
	t.mu.Lock()
	t.nowFunc = fn
	t.mu.Unlock()
}

func (t *Tracker) now() time.Time {
	t.mu.RLock()
	fn := t.nowFunc
	t.mu.RUnlock()
	return fn()
}

// ensure returns the entry for id, creating it CLOSED if unknown.
func (t *Tracker) ensure(id string) *entry {
	t.mu.RLock()
	e, ok := t.entries[id]
	t.mu.RUnlock()
	if ok {
		return e
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok = t.entries[id]; ok {
		return e
	}
	e = &entry{}
	t.entries[id] = e
	return e
}

// Eligible reports whether the provider may appear in a candidate list at
// the given instant. CLOSED is always eligible; OPEN becomes eligible once
// its cooldown has elapsed and no recovery trial is already in flight.
// Eligible is a pure read; claiming the trial slot happens in AcquireTrial.
func (t *Tracker) Eligible(id string, now time.Time) bool {
	e := t.ensure(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.open {
		return true
	}
	return !now.Before(e.cooldownUntil) && !e.trialInFlight
}

// AcquireTrial claims the right to attempt the provider. For a CLOSED
// provider it always succeeds without claiming anything. For an OPEN
// provider past its cooldown it claims the single HALF_OPEN trial slot;
// a second concurrent caller sees false and must treat the provider as
// still OPEN. The claim is resolved by RecordOutcome or ReleaseTrial.
func (t *Tracker) AcquireTrial(id string, now time.Time) bool {
	e := t.ensure(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.open {
		return true
	}
	if now.Before(e.cooldownUntil) || e.trialInFlight {
		return false
	}
	e.trialInFlight = true
	return true
}

// ReleaseTrial abandons a claimed trial without recording an outcome, e.g.
// when the caller was cancelled before the probe completed. The provider
// returns to plain OPEN-past-cooldown and the next request may probe it.
func (t *Tracker) ReleaseTrial(id string) {
	e := t.ensure(id)
	e.mu.Lock()
	e.trialInFlight = false
	e.mu.Unlock()
}

// RecordOutcome is the sole state mutator driven by attempt results.
// Success closes the circuit and resets counters; failure increments the
// consecutive count and trips the breaker at the threshold, or re-trips
// with a longer cooldown when a HALF_OPEN trial fails.
func (t *Tracker) RecordOutcome(id string, success bool) {
	now := t.now()
	e := t.ensure(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	if success {
		e.open = false
		e.consecutive = 0
		e.trips = 0
		e.trialInFlight = false
		e.lastSuccessAt = now
		return
	}

	e.lastFailureAt = now

	if e.open {
		// A failed HALF_OPEN probe (or a straggler outcome for an already
		// open circuit) re-trips with backoff.
		e.trialInFlight = false
		e.trips++
		e.totalTrips++
		e.cooldownUntil = now.Add(t.cooldownFor(e.trips))
		return
	}

	e.consecutive++
	if e.consecutive >= t.cfg.FailureThreshold {
		e.open = true
		e.trips++
		e.totalTrips++
		e.cooldownUntil = now.Add(t.cooldownFor(e.trips))
	}
}

// cooldownFor computes the backed-off cooldown for the nth consecutive trip.
func (t *Tracker) cooldownFor(trips int64) time.Duration {
	d := t.cfg.Cooldown
	for i := int64(1); i < trips; i++ {
		d *= time.Duration(t.cfg.BackoffFactor)
		if d >= t.cfg.MaxCooldown {
			return t.cfg.MaxCooldown
		}
	}
	if d > t.cfg.MaxCooldown {
		return t.cfg.MaxCooldown
	}
	return d
}

// Snapshot returns a point-in-time view of every tracked provider. An OPEN
// entry whose cooldown has elapsed reports HALF_OPEN, matching what the
// next candidate build would see.
func (t *Tracker) Snapshot() map[string]health.State {
	now := t.now()

	t.mu.RLock()
	ids := make([]string, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	t.mu.RUnlock()

	out := make(map[string]health.State, len(ids))
	for _, id := range ids {
		e := t.ensure(id)
		e.mu.Lock()
		st := health.State{
			Status:              health.StatusClosed,
			ConsecutiveFailures: e.consecutive,
			Trips:               e.totalTrips,
			TrialInFlight:       e.trialInFlight,
		}
		if !e.lastFailureAt.IsZero() {
			ts := e.lastFailureAt
			st.LastFailureAt = &ts
		}
		if !e.lastSuccessAt.IsZero() {
			ts := e.lastSuccessAt
			st.LastSuccessAt = &ts
		}
		if e.open {
			cu := e.cooldownUntil
			st.CooldownUntil = &cu
			if e.trialInFlight || !now.Before(e.cooldownUntil) {
				st.Status = health.StatusHalfOpen
			} else {
				st.Status = health.StatusOpen
			}
		}
		e.mu.Unlock()
		out[id] = st
	}
	return out
}

// Reset returns one provider to a pristine CLOSED state.
func (t *Tracker) Reset(id string) {
	e := t.ensure(id)
	e.mu.Lock()
	e.open = false
	e.consecutive = 0
	e.trips = 0
	e.totalTrips = 0
	e.lastFailureAt = time.Time{}
	e.lastSuccessAt = time.Time{}
	e.cooldownUntil = time.Time{}
	e.trialInFlight = false
	e.mu.Unlock()
}

// ResetAll clears every tracked provider.
func (t *Tracker) ResetAll() {
	t.mu.RLock()
	ids := make([]string, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	t.mu.RUnlock()

	for _, id := range ids {
		t.Reset(id)
	}
}
