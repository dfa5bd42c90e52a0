// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

// Package sqlite implements the snapshot store on a single SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kiln-dev/kiln/internal/metrics"
	"github.com/kiln-dev/kiln/internal/store"
	kilnerrors "github.com/kiln-dev/kiln/pkg/errors"
)

func init() {
	store.RegisterBackend("sqlite", func(path string) (store.SnapshotStore, error) {
		return NewSnapshotStore(path)
	})
}

// Compile-time interface check.
var _ store.SnapshotStore = (*SnapshotStore)(nil)

// SnapshotStore implements store.SnapshotStore backed by SQLite.
type SnapshotStore struct {
	db *sql.DB
}

// NewSnapshotStore opens (or creates) a SQLite database at dbPath and
// initialises the snapshots table.
func NewSnapshotStore(dbPath string) (*SnapshotStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, kilnerrors.Wrapf(err, kilnerrors.CodeStoreDatabaseFailure,
			"opening sqlite db %s", dbPath)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, kilnerrors.Wrapf(err, kilnerrors.CodeStoreDatabaseFailure,
			"pinging sqlite db %s", dbPath)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, kilnerrors.Wrap(err, kilnerrors.CodeStoreDatabaseFailure,
			"migrating sqlite db")
	}

	return &SnapshotStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS metrics_snapshots (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	taken_at TEXT NOT NULL,
	report   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_taken ON metrics_snapshots(taken_at);
`
	_, err := db.Exec(ddl)
	return err
}

// Close closes the underlying database connection.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

func (s *SnapshotStore) Save(ctx context.Context, takenAt time.Time, rep metrics.Report) error {
	data, err := json.Marshal(rep)
	if err != nil {
		return kilnerrors.Wrap(err, kilnerrors.CodeStoreInvalidInput,
			"encoding metrics report")
	}

	const q = `INSERT INTO metrics_snapshots (taken_at, report) VALUES (?, ?)`
	if _, err := s.db.ExecContext(ctx, q, takenAt.UTC().Format(time.RFC3339Nano), string(data)); err != nil {
		return kilnerrors.Wrap(err, kilnerrors.CodeStoreDatabaseFailure,
			"inserting metrics snapshot")
	}
	return nil
}

func (s *SnapshotStore) List(ctx context.Context, limit int) ([]store.Snapshot, error) {
	q := `SELECT id, taken_at, report FROM metrics_snapshots ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, kilnerrors.Wrap(err, kilnerrors.CodeStoreDatabaseFailure,
			"listing metrics snapshots")
	}
	defer rows.Close()

	var out []store.Snapshot
	for rows.Next() {
		var snap store.Snapshot
		var takenAt, report string
		if err := rows.Scan(&snap.ID, &takenAt, &report); err != nil {
			return nil, kilnerrors.Wrap(err, kilnerrors.CodeStoreDatabaseFailure,
				"scanning metrics snapshot")
		}
		snap.TakenAt, err = time.Parse(time.RFC3339Nano, takenAt)
		if err != nil {
			return nil, kilnerrors.Wrapf(err, kilnerrors.CodeStoreDatabaseFailure,
				"parsing snapshot %d timestamp", snap.ID)
		}
		if err := json.Unmarshal([]byte(report), &snap.Report); err != nil {
			return nil, kilnerrors.Wrapf(err, kilnerrors.CodeStoreDatabaseFailure,
				"decoding snapshot %d report", snap.ID)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, kilnerrors.Wrap(err, kilnerrors.CodeStoreDatabaseFailure,
			"iterating metrics snapshots")
	}
	return out, nil
}

func (s *SnapshotStore) Prune(ctx context.Context, keep int) error {
	if keep < 0 {
		return kilnerrors.Errorf(kilnerrors.CodeStoreInvalidInput,
			"prune keep count must be non-negative, got %d", keep)
	}

	const q = `DELETE FROM metrics_snapshots
WHERE id NOT IN (SELECT id FROM metrics_snapshots ORDER BY id DESC LIMIT ?)`
	if _, err := s.db.ExecContext(ctx, q, keep); err != nil {
		return kilnerrors.Wrap(err, kilnerrors.CodeStoreDatabaseFailure,
			"pruning metrics snapshots")
	}
	return nil
}
