// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/kiln-dev/kiln/internal/breaker"
	"github.com/kiln-dev/kiln/internal/config"
	"github.com/kiln-dev/kiln/internal/metrics"
	"github.com/kiln-dev/kiln/internal/orchestrator"
	"github.com/kiln-dev/kiln/internal/provider"
	anthropicprov "github.com/kiln-dev/kiln/internal/provider/anthropic"
	googleprov "github.com/kiln-dev/kiln/internal/provider/google"
	openaiprov "github.com/kiln-dev/kiln/internal/provider/openai"
	"github.com/kiln-dev/kiln/internal/secrets"
	"github.com/kiln-dev/kiln/internal/server"
	"github.com/kiln-dev/kiln/internal/store"
	_ "github.com/kiln-dev/kiln/internal/store/sqlite" // register sqlite backend
	kilnerr "github.com/kiln-dev/kiln/pkg/errors"
)

// Gateway holds all wired subsystems and manages their lifecycle.
type Gateway struct {
	Server       *server.Server
	Registry     *provider.Registry
	Tracker      *breaker.Tracker
	Metrics      *metrics.Collector
	Orchestrator *orchestrator.Orchestrator
	Snapshots    store.SnapshotStore
}

// WireGateway creates all subsystems and wires them together.
func WireGateway(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Gateway, error) {
	if log == nil {
		log = slog.Default()
	}

	resolver := secrets.NewResolver(secrets.NewKeyringStore())

	// 1. Provider catalog: descriptors from YAML, one adapter per
	// descriptor whose credential resolves. Liveness is re-evaluated on
	// every reload, so adding a credential and reloading brings a
	// provider online without a restart.
	descs, err := provider.LoadCatalog(cfg.Catalog.Path)
	if err != nil {
		return nil, kilnerr.Wrapf(err, kilnerr.CodeCLISetupFailure,
			"loading provider catalog %s", cfg.Catalog.Path)
	}

	adapters, err := buildAdapters(ctx, descs, resolver, log)
	if err != nil {
		return nil, err
	}

	live := func(d provider.Descriptor) bool {
		return resolver.Available(d.CredentialEnv)
	}

	registry, err := provider.NewRegistry(descs, adapters, live)
	if err != nil {
		return nil, kilnerr.Wrapf(err, kilnerr.CodeCLISetupFailure, "building provider registry")
	}

	// 2. Circuit breakers, one per catalog entry.
	ids := make([]string, 0, len(descs))
	for _, d := range descs {
		ids = append(ids, d.ID)
	}
	tracker := breaker.NewTracker(breaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		Cooldown:         cfg.Breaker.Cooldown,
		BackoffFactor:    cfg.Breaker.BackoffFactor,
		MaxCooldown:      cfg.Breaker.MaxCooldown,
	}, ids...)

	// 3. Metrics collector.
	collector := metrics.NewCollector(cfg.Metrics.Retention)

	// 4. Routing engine.
	orc := orchestrator.New(registry, tracker, collector, orchestrator.Config{
		AttemptTimeout: cfg.Orchestrator.AttemptTimeout,
	}, log)

	// 5. Optional snapshot persistence.
	var snapshots store.SnapshotStore
	if cfg.Metrics.Snapshot.Enabled {
		snapshots, err = store.Open(cfg.Storage.Backend, cfg.Storage.Path)
		if err != nil {
			_ = registry.Close()
			return nil, kilnerr.Wrapf(err, kilnerr.CodeCLISetupFailure,
				"opening snapshot store %s", cfg.Storage.Path)
		}
	}

	// 6. Admin HTTP server.
	srv, err := server.New(server.Config{ListenAddr: cfg.Server.Listen})
	if err != nil {
		if snapshots != nil {
			_ = snapshots.Close()
		}
		_ = registry.Close()
		return nil, kilnerr.Wrapf(err, kilnerr.CodeCLISetupFailure, "creating server")
	}

	srv.RegisterServices(&server.Services{
		Registry:  registry,
		Tracker:   tracker,
		Metrics:   collector,
		Tiers:     cfg.Tiers,
		Snapshots: snapshots,
		ReloadCatalog: func(ctx context.Context) (int, error) {
			next, err := provider.LoadCatalog(cfg.Catalog.Path)
			if err != nil {
				return 0, err
			}
			nextAdapters, err := buildAdapters(ctx, next, resolver, log)
			if err != nil {
				return 0, err
			}
			if err := registry.Reload(next, nextAdapters); err != nil {
				return 0, err
			}
			return len(next), nil
		},
	})

	return &Gateway{
		Server:       srv,
		Registry:     registry,
		Tracker:      tracker,
		Metrics:      collector,
		Orchestrator: orc,
		Snapshots:    snapshots,
	}, nil
}

// Close releases all gateway resources.
func (g *Gateway) Close() error {
	var errs []error
	if g.Snapshots != nil {
		errs = append(errs, g.Snapshots.Close())
	}
	if g.Registry != nil {
		errs = append(errs, g.Registry.Close())
	}
	return kilnerr.Join(errs...)
}

// buildAdapters constructs one adapter per descriptor whose credential
// resolves. A missing credential is not fatal — the descriptor simply is
// not live until its credential appears and the catalog is reloaded. A
// malformed descriptor that defeats adapter construction is fatal.
func buildAdapters(ctx context.Context, descs []provider.Descriptor, resolver *secrets.Resolver, log *slog.Logger) (map[string]provider.Adapter, error) {
	adapters := make(map[string]provider.Adapter, len(descs))
	for _, d := range descs {
		key, err := resolver.Credential(d.CredentialEnv)
		if err != nil {
			log.Warn("provider credential missing, skipping adapter",
				"provider", d.ID, "credential_env", d.CredentialEnv)
			continue
		}

		var (
			adapter  provider.Adapter
			buildErr error
		)
		switch d.Kind {
		case provider.KindOpenAI:
			adapter, buildErr = openaiprov.New(d.ID, d.Modality, openaiprov.Config{
				APIKey:  key,
				Model:   d.Model,
				BaseURL: d.Endpoint,
			})
		case provider.KindAnthropic:
			adapter, buildErr = anthropicprov.New(d.ID, d.Modality, anthropicprov.Config{
				APIKey:  key,
				Model:   d.Model,
				BaseURL: d.Endpoint,
			})
		case provider.KindGoogle:
			adapter, buildErr = googleprov.New(ctx, d.ID, d.Modality, googleprov.Config{
				APIKey:  key,
				Model:   d.Model,
				BaseURL: d.Endpoint,
			})
		default:
			buildErr = kilnerr.Errorf(kilnerr.CodeProviderRequestInvalid,
				"unknown provider kind %q", d.Kind)
		}
		if buildErr != nil {
			for _, a := range adapters {
				_ = a.Close()
			}
			return nil, kilnerr.Wrapf(buildErr, kilnerr.CodeCLISetupFailure,
				"building adapter for provider %s", d.ID)
		}
		adapters[d.ID] = adapter
	}
	return adapters, nil
}
