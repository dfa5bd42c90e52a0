// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/kiln-dev/kiln/internal/breaker"
	"github.com/kiln-dev/kiln/internal/config"
	"github.com/kiln-dev/kiln/internal/cost"
	"github.com/kiln-dev/kiln/internal/metrics"
	"github.com/kiln-dev/kiln/internal/provider"
	"github.com/kiln-dev/kiln/internal/store"
	"github.com/kiln-dev/kiln/pkg/health"
	"github.com/kiln-dev/kiln/pkg/types"
)

// Services holds the collaborators the admin routes operate on. Snapshots
// and ReloadCatalog are optional; their routes degrade to 503 when unset.
type Services struct {
	Registry *provider.Registry
	Tracker  *breaker.Tracker
	Metrics  *metrics.Collector
	Tiers    map[string]config.TierConfig
	// Snapshots lists persisted metrics history when a store is configured.
	Snapshots store.SnapshotStore
	// ReloadCatalog re-reads the provider catalog from disk and swaps it in,
	// returning the new number of descriptors.
	ReloadCatalog func(ctx context.Context) (int, error)
}

// RegisterServices sets the service dependencies and registers REST routes.
func (s *Server) RegisterServices(svc *Services) {
	s.services = svc
	s.registerRoutes()
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "gateway-status",
		Method:      http.MethodGet,
		Path:        "/api/v1/status",
		Summary:     "Gateway status",
		Tags:        []string{"system"},
	}, s.handleStatus)

	// Provider endpoints
	huma.Register(s.api, huma.Operation{
		OperationID: "list-providers",
		Method:      http.MethodGet,
		Path:        "/api/v1/providers",
		Summary:     "List catalog providers",
		Tags:        []string{"providers"},
	}, s.handleListProviders)

	huma.Register(s.api, huma.Operation{
		OperationID: "reload-providers",
		Method:      http.MethodPost,
		Path:        "/api/v1/providers/reload",
		Summary:     "Reload the provider catalog from disk",
		Tags:        []string{"providers"},
	}, s.handleReloadProviders)

	// Circuit health endpoints
	huma.Register(s.api, huma.Operation{
		OperationID: "provider-health",
		Method:      http.MethodGet,
		Path:        "/api/v1/providers/health",
		Summary:     "Per-provider circuit breaker state",
		Tags:        []string{"health"},
	}, s.handleProviderHealth)

	huma.Register(s.api, huma.Operation{
		OperationID: "reset-provider-health",
		Method:      http.MethodPost,
		Path:        "/api/v1/providers/{id}/health/reset",
		Summary:     "Reset one provider's circuit breaker",
		Tags:        []string{"health"},
	}, s.handleResetProviderHealth)

	// Metrics endpoints
	huma.Register(s.api, huma.Operation{
		OperationID: "get-metrics",
		Method:      http.MethodGet,
		Path:        "/api/v1/metrics",
		Summary:     "Aggregated attempt metrics",
		Tags:        []string{"metrics"},
	}, s.handleGetMetrics)

	huma.Register(s.api, huma.Operation{
		OperationID: "clear-metrics",
		Method:      http.MethodDelete,
		Path:        "/api/v1/metrics",
		Summary:     "Discard all recorded metrics",
		Tags:        []string{"metrics"},
	}, s.handleClearMetrics)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-snapshots",
		Method:      http.MethodGet,
		Path:        "/api/v1/metrics/snapshots",
		Summary:     "Persisted metrics snapshots, newest first",
		Tags:        []string{"metrics"},
	}, s.handleListSnapshots)

	// Cost endpoint
	huma.Register(s.api, huma.Operation{
		OperationID: "estimate-cost",
		Method:      http.MethodGet,
		Path:        "/api/v1/cost/{tier}",
		Summary:     "Projected monthly cost for a tier",
		Tags:        []string{"cost"},
	}, s.handleEstimateCost)
}

// --- Request/Response types for huma ---

type statusOutput struct {
	Body struct {
		Status       string `json:"status" example:"ok" doc:"Gateway status"`
		Providers    int    `json:"providers" doc:"Descriptors in the catalog"`
		OpenCircuits int    `json:"open_circuits" doc:"Providers currently unroutable"`
	}
}

type listProvidersOutput struct {
	Body struct {
		Providers []providerSummary `json:"providers"`
	}
}

type providerSummary struct {
	ID              string       `json:"id"`
	Kind            string       `json:"kind"`
	Modality        string       `json:"modality"`
	Model           string       `json:"model"`
	UnitPriceMicros int64        `json:"unit_price_micros"`
	Priority        int          `json:"priority"`
	Tiers           []types.Tier `json:"tiers"`
}

type reloadProvidersOutput struct {
	Body struct {
		Status    string `json:"status"`
		Providers int    `json:"providers" doc:"Descriptors after reload"`
	}
}

type providerHealthOutput struct {
	Body struct {
		Providers map[string]health.State `json:"providers"`
	}
}

type providerIDInput struct {
	ID string `path:"id"`
}

type resetHealthOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

type metricsOutput struct {
	Body metrics.Report
}

type clearMetricsOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

type listSnapshotsInput struct {
	Limit int `query:"limit" minimum:"0" doc:"Maximum snapshots to return; 0 for all"`
}
type listSnapshotsOutput struct {
	Body struct {
		Snapshots []store.Snapshot `json:"snapshots"`
	}
}

type estimateCostInput struct {
	Tier string `path:"tier"`
}
type estimateCostOutput struct {
	Body costProjection
}

type costProjection struct {
	Tier        types.Tier  `json:"tier"`
	Lines       []cost.Line `json:"lines"`
	TotalMicros int64       `json:"total_micros"`
	Total       string      `json:"total" example:"$47.50" doc:"Formatted total"`
}

// --- Handlers ---

func (s *Server) handleStatus(_ context.Context, _ *struct{}) (*statusOutput, error) {
	out := &statusOutput{}
	out.Body.Status = "ok"
	out.Body.Providers = len(s.services.Registry.Descriptors())

	for _, st := range s.services.Tracker.Snapshot() {
		if st.Status == health.StatusOpen {
			out.Body.OpenCircuits++
		}
	}
	return out, nil
}

func (s *Server) handleListProviders(_ context.Context, _ *struct{}) (*listProvidersOutput, error) {
	descs := s.services.Registry.Descriptors()
	out := &listProvidersOutput{}
	out.Body.Providers = make([]providerSummary, 0, len(descs))
	for _, d := range descs {
		out.Body.Providers = append(out.Body.Providers, providerSummary{
			ID:              d.ID,
			Kind:            d.Kind,
			Modality:        string(d.Modality),
			Model:           d.Model,
			UnitPriceMicros: d.UnitPriceMicros,
			Priority:        d.Priority,
			Tiers:           d.Tiers,
		})
	}
	return out, nil
}

func (s *Server) handleReloadProviders(ctx context.Context, _ *struct{}) (*reloadProvidersOutput, error) {
	if s.services.ReloadCatalog == nil {
		return nil, huma.Error503ServiceUnavailable("catalog reload not configured")
	}

	n, err := s.services.ReloadCatalog(ctx)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity("reloading provider catalog", err)
	}

	out := &reloadProvidersOutput{}
	out.Body.Status = "reloaded"
	out.Body.Providers = n
	return out, nil
}

func (s *Server) handleProviderHealth(_ context.Context, _ *struct{}) (*providerHealthOutput, error) {
	out := &providerHealthOutput{}
	out.Body.Providers = s.services.Tracker.Snapshot()
	return out, nil
}

func (s *Server) handleResetProviderHealth(_ context.Context, input *providerIDInput) (*resetHealthOutput, error) {
	if _, err := s.services.Registry.Descriptor(input.ID); err != nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("provider %q not found", input.ID))
	}

	s.services.Tracker.Reset(input.ID)
	out := &resetHealthOutput{}
	out.Body.Status = "reset"
	return out, nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *struct{}) (*metricsOutput, error) {
	return &metricsOutput{Body: s.services.Metrics.Report()}, nil
}

func (s *Server) handleClearMetrics(_ context.Context, _ *struct{}) (*clearMetricsOutput, error) {
	s.services.Metrics.Clear()
	out := &clearMetricsOutput{}
	out.Body.Status = "cleared"
	return out, nil
}

func (s *Server) handleListSnapshots(ctx context.Context, input *listSnapshotsInput) (*listSnapshotsOutput, error) {
	if s.services.Snapshots == nil {
		return nil, huma.Error503ServiceUnavailable("snapshot storage not configured")
	}

	snaps, err := s.services.Snapshots.List(ctx, input.Limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing snapshots", err)
	}

	out := &listSnapshotsOutput{}
	out.Body.Snapshots = snaps
	return out, nil
}

func (s *Server) handleEstimateCost(_ context.Context, input *estimateCostInput) (*estimateCostOutput, error) {
	tier := types.NormalizeTier(input.Tier)
	tc, ok := s.services.Tiers[string(tier)]
	if !ok {
		return nil, huma.Error404NotFound(fmt.Sprintf("tier %q not configured", input.Tier))
	}

	proj, err := cost.Estimate(s.services.Registry, cost.TierPlan{
		Tier:                tier,
		ExpectedUsers:       tc.ExpectedUsers,
		TextUnitsPerUser:    tc.TextUnitsPerUser,
		ImageUnitsPerUser:   tc.ImageUnitsPerUser,
		AllowanceTextUnits:  tc.AllowanceTextUnits,
		AllowanceImageUnits: tc.AllowanceImageUnits,
	})
	if err != nil {
		return nil, huma.Error422UnprocessableEntity("estimating tier cost", err)
	}

	return &estimateCostOutput{Body: costProjection{
		Tier:        proj.Tier,
		Lines:       proj.Lines,
		TotalMicros: proj.TotalMicros,
		Total:       proj.TotalDollars(),
	}}, nil
}
