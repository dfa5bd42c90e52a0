// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

// Package orchestrator routes one generation request to the first provider
// that can serve it. Candidates come from the registry ordered by priority
// and price, the breaker filters out unhealthy ones, and failover walks the
// remainder sequentially: at most one provider ever produces the response
// for a request, and a failed attempt never delays the next candidate
// beyond its own attempt timeout.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kiln-dev/kiln/internal/breaker"
	"github.com/kiln-dev/kiln/internal/metrics"
	"github.com/kiln-dev/kiln/internal/provider"
	kilnerrors "github.com/kiln-dev/kiln/pkg/errors"
	"github.com/kiln-dev/kiln/pkg/types"
)

// DefaultAttemptTimeout bounds a single provider attempt.
const DefaultAttemptTimeout = 30 * time.Second

// Config tunes failover behavior.
type Config struct {
	AttemptTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = DefaultAttemptTimeout
	}
	return c
}

// Orchestrator executes generation requests against the provider catalog.
type Orchestrator struct {
	registry *provider.Registry
	tracker  *breaker.Tracker
	metrics  *metrics.Collector
	cfg      Config
	log      *slog.Logger
	nowFunc  func() time.Time
}

// New wires an orchestrator over its collaborators. A nil logger discards.
func New(reg *provider.Registry, tr *breaker.Tracker, col *metrics.Collector, cfg Config, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Orchestrator{
		registry: reg,
		tracker:  tr,
		metrics:  col,
		cfg:      cfg.withDefaults(),
		log:      log,
		nowFunc:  time.Now,
	}
}

// Request is one generation request entering the gateway.
type Request struct {
	// RequestID correlates attempts and metrics; assigned when empty.
	RequestID string
	Modality  types.Modality
	Tier      types.Tier
	Payload   provider.Invocation
}

// Response is the outcome of the single successful attempt.
type Response struct {
	RequestID  string           `json:"request_id"`
	Provider   string           `json:"provider"`
	Modality   types.Modality   `json:"modality"`
	Result     *provider.Result `json:"result"`
	CostMicros int64            `json:"cost_micros"`
	Latency    time.Duration    `json:"latency"`
	// Attempts counts providers tried, including the successful one.
	Attempts int `json:"attempts"`
}

// AttemptFailure summarizes one failed provider attempt for the caller.
type AttemptFailure struct {
	Provider string               `json:"provider"`
	Kind     provider.FailureKind `json:"kind"`
	Message  string               `json:"message"`
}

// Execute routes the request through the eligible candidates in order and
// returns the first success. Failures are recorded against provider health
// and metrics; caller cancellation is not, since it says nothing about the
// provider. When every candidate has been tried the collected failures ride
// on the returned error and are recoverable via ExhaustedFailures.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (*Response, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if !req.Modality.Valid() {
		return nil, kilnerrors.New(kilnerrors.CodeProviderRequestInvalid,
			"unknown modality: "+string(req.Modality),
			kilnerrors.FieldRequestID(req.RequestID))
	}
	tier := types.NormalizeTier(string(req.Tier))

	candidates := o.registry.CandidatesFor(req.Modality, tier)
	eligible := candidates[:0:0]
	now := o.nowFunc()
	for _, d := range candidates {
		if o.tracker.Eligible(d.ID, now) {
			eligible = append(eligible, d)
		}
	}
	if len(eligible) == 0 {
		reason := "none_registered"
		if len(candidates) > 0 {
			reason = "all_circuits_open"
		}
		return nil, kilnerrors.New(kilnerrors.CodeOrchestratorNoEligibleProvider,
			"no eligible provider for request",
			kilnerrors.FieldRequestID(req.RequestID),
			kilnerrors.FieldModality(string(req.Modality)),
			kilnerrors.FieldTier(string(tier)),
			kilnerrors.Field("reason", reason))
	}

	var failures []AttemptFailure
	attempts := 0

	for _, d := range eligible {
		if err := ctx.Err(); err != nil {
			return nil, o.canceled(req, err)
		}
		// Re-check at attempt time: an earlier candidate's slow failure may
		// have outlasted this one's snapshot eligibility, and the HALF_OPEN
		// trial slot is claimed here, not at snapshot time.
		if !o.tracker.AcquireTrial(d.ID, o.nowFunc()) {
			continue
		}

		attempts++
		resp, failure, err := o.attempt(ctx, req, d)
		if err != nil {
			// Caller cancellation mid-attempt. The trial slot is already
			// released and nothing was recorded.
			return nil, err
		}
		if resp != nil {
			resp.Attempts = attempts
			return resp, nil
		}
		failures = append(failures, *failure)
	}

	if attempts == 0 {
		// Every snapshot-eligible candidate lost its trial slot before we
		// reached it.
		return nil, kilnerrors.New(kilnerrors.CodeOrchestratorNoEligibleProvider,
			"no eligible provider for request",
			kilnerrors.FieldRequestID(req.RequestID),
			kilnerrors.FieldModality(string(req.Modality)),
			kilnerrors.FieldTier(string(tier)),
			kilnerrors.Field("reason", "all_circuits_open"))
	}

	o.log.Warn("all providers exhausted",
		"request_id", req.RequestID,
		"modality", req.Modality,
		"tier", tier,
		"attempts", attempts)
	return nil, kilnerrors.New(kilnerrors.CodeOrchestratorAllExhausted,
		"all providers exhausted",
		kilnerrors.FieldRequestID(req.RequestID),
		kilnerrors.FieldModality(string(req.Modality)),
		kilnerrors.FieldTier(string(tier)),
		kilnerrors.Field("failures", failures))
}

// attempt runs one provider attempt. It returns exactly one of:
// a response (success), a failure record (provider fault, already recorded
// against health and metrics), or an error (caller cancellation, recorded
// nowhere).
func (o *Orchestrator) attempt(ctx context.Context, req Request, d provider.Descriptor) (*Response, *AttemptFailure, error) {
	adapter, err := o.registry.Adapter(d.ID)
	if err != nil {
		// Catalog raced a reload between candidate selection and lookup.
		o.tracker.ReleaseTrial(d.ID)
		o.recordAttempt(req, d, false, provider.FailureUnavailable, 0, 0)
		return nil, &AttemptFailure{Provider: d.ID, Kind: provider.FailureUnavailable, Message: err.Error()}, nil
	}

	attemptCtx, cancel := context.WithTimeout(ctx, o.cfg.AttemptTimeout)
	defer cancel()

	start := o.nowFunc()
	result, invokeErr := adapter.Invoke(attemptCtx, req.Payload)
	latency := o.nowFunc().Sub(start)

	if invokeErr != nil {
		if ctx.Err() != nil {
			// The caller went away; the provider did nothing wrong. The
			// attempt timeout lives on attemptCtx only, so a parent error
			// here is always caller-driven.
			o.tracker.ReleaseTrial(d.ID)
			return nil, nil, o.canceled(req, ctx.Err())
		}

		kind := provider.ClassifyInvokeError(invokeErr)
		o.log.Warn("provider attempt failed",
			"request_id", req.RequestID,
			"provider", d.ID,
			"kind", kind,
			"latency", latency,
			"error", invokeErr)
		o.recordAttempt(req, d, false, kind, latency, 0)
		o.tracker.RecordOutcome(d.ID, false)
		return nil, &AttemptFailure{Provider: d.ID, Kind: kind, Message: invokeErr.Error()}, nil
	}

	o.recordAttempt(req, d, true, "", latency, result.BilledUnits)
	o.tracker.RecordOutcome(d.ID, true)
	o.log.Info("provider attempt succeeded",
		"request_id", req.RequestID,
		"provider", d.ID,
		"latency", latency,
		"billed_units", result.BilledUnits)

	return &Response{
		RequestID:  req.RequestID,
		Provider:   d.ID,
		Modality:   req.Modality,
		Result:     result,
		CostMicros: result.BilledUnits * d.UnitPriceMicros,
		Latency:    latency,
	}, nil, nil
}

func (o *Orchestrator) recordAttempt(req Request, d provider.Descriptor, success bool, kind provider.FailureKind, latency time.Duration, units int64) {
	if o.metrics == nil {
		return
	}
	o.metrics.Record(metrics.Attempt{
		Time:        o.nowFunc(),
		RequestID:   req.RequestID,
		Provider:    d.ID,
		Modality:    req.Modality,
		Tier:        types.NormalizeTier(string(req.Tier)),
		Success:     success,
		FailureKind: kind,
		Latency:     latency,
		BilledUnits: units,
	})
}

func (o *Orchestrator) canceled(req Request, cause error) error {
	return kilnerrors.Wrap(cause, kilnerrors.CodeOrchestratorCanceled,
		"request canceled by caller",
		kilnerrors.FieldRequestID(req.RequestID))
}

// ExhaustedFailures extracts the per-provider failure records from an
// all-exhausted error; nil for any other error.
func ExhaustedFailures(err error) []AttemptFailure {
	if !kilnerrors.HasCode(err, kilnerrors.CodeOrchestratorAllExhausted) {
		return nil
	}
	fields := kilnerrors.FieldsOf(err)
	failures, _ := fields["failures"].([]AttemptFailure)
	return failures
}
