// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

// Package store persists aggregated metrics snapshots so that operators keep
// a spend and reliability history across gateway restarts. Backends register
// themselves by name; the sqlite backend is the only one shipped.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/kiln-dev/kiln/internal/metrics"
	kilnerrors "github.com/kiln-dev/kiln/pkg/errors"
)

// Snapshot is one persisted metrics report.
type Snapshot struct {
	ID      int64          `json:"id"`
	TakenAt time.Time      `json:"taken_at"`
	Report  metrics.Report `json:"report"`
}

// SnapshotStore persists and retrieves metrics snapshots.
type SnapshotStore interface {
	// Save persists one report, stamped with the given time.
	Save(ctx context.Context, takenAt time.Time, rep metrics.Report) error

	// List returns up to limit snapshots, newest first. A non-positive
	// limit returns everything.
	List(ctx context.Context, limit int) ([]Snapshot, error)

	// Prune deletes all but the newest keep snapshots.
	Prune(ctx context.Context, keep int) error

	Close() error
}

// Factory creates a SnapshotStore at the given path.
type Factory func(path string) (SnapshotStore, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers a factory for a named storage backend. Backend
// packages call this from init(); goroutine-safe.
func RegisterBackend(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Open creates a SnapshotStore using the named backend.
func Open(backend, path string) (SnapshotStore, error) {
	if backend == "" {
		backend = "sqlite"
	}

	factoriesMu.RLock()
	f, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, kilnerrors.Errorf(kilnerrors.CodeStoreBackendUnsupported,
			"unsupported storage backend: %q", backend)
	}
	return f(path)
}
