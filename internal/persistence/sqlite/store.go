// Package sqlite stores the snapshot in a single-file SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"example.com/runlog/internal/domain"
	"example.com/runlog/internal/observability"
)

//go:embed schema.sql
var schema string

// Store is a remote-tier EntryStore with version-checked writes.
type Store struct {
	db  *sql.DB
	key string
}

// Open opens the database at path and applies the schema.
func Open(path, key string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer at a time keeps conditional updates serialised.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db, key: key}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the stored snapshot or domain.ErrSnapshotNotFound.
func (s *Store) Load(ctx context.Context) (domain.Snapshot, error) {
	defer observability.ObserveStoreOp("sqlite", "load", time.Now())

	var (
		payload string
		version int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT payload, version FROM snapshots WHERE key = ?`, s.key).Scan(&payload, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Snapshot{}, domain.ErrSnapshotNotFound
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("query snapshot: %w", err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode snapshot %s (version %d): %w", s.key, version, err)
	}
	snap = snap.Normalize()
	snap.Version = version
	return snap, nil
}

// Save writes snap when snap.Version still matches the stored version.
func (s *Store) Save(ctx context.Context, snap domain.Snapshot, m domain.Mutation) (domain.Snapshot, error) {
	defer observability.ObserveStoreOp("sqlite", "save", time.Now())

	snap = snap.Normalize()
	payload, err := json.Marshal(snap)
	if err != nil {
		return domain.Snapshot{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Snapshot{}, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	next := snap.Version + 1

	var res sql.Result
	if snap.Version == 0 {
		res, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO snapshots (key, payload, version, updated_at) VALUES (?, ?, ?, ?)`,
			s.key, string(payload), next, now)
	} else {
		res, err = tx.ExecContext(ctx,
			`UPDATE snapshots SET payload = ?, version = ?, updated_at = ? WHERE key = ? AND version = ?`,
			string(payload), next, now, s.key, snap.Version)
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("write snapshot: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return domain.Snapshot{}, err
	} else if n == 0 {
		return domain.Snapshot{}, domain.ErrVersionConflict
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshot_changes (key, version, reason, activity_count, weight_count, incoming_activities, incoming_weights, dropped, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.key, next, reasonOrDefault(m.Reason), len(snap.ActivityEntries), len(snap.WeightEntries), m.IncomingActivities, m.IncomingWeights, m.Dropped, now,
	); err != nil {
		return domain.Snapshot{}, fmt.Errorf("record change: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Snapshot{}, err
	}
	observability.RecordSnapshotSaved(now, len(snap.ActivityEntries), len(snap.WeightEntries))
	snap.Version = next
	return snap, nil
}

// Change is one row of the change log.
type Change struct {
	Version   int64
	Reason    string
	Dropped   int
	CreatedAt time.Time
}

// Changes lists the change log newest first.
func (s *Store) Changes(ctx context.Context, limit int) ([]Change, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT version, reason, dropped, created_at FROM snapshot_changes WHERE key = ? ORDER BY version DESC LIMIT ?`, s.key, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Change
	for rows.Next() {
		var c Change
		if err := rows.Scan(&c.Version, &c.Reason, &c.Dropped, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func reasonOrDefault(reason string) string {
	if reason == "" {
		return domain.ReasonSubmit
	}
	return reason
}
