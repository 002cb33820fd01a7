// Package postgres stores the snapshot in Postgres and records change events in the outbox.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/runlog/internal/domain"
	"example.com/runlog/internal/events"
	"example.com/runlog/internal/observability"
)

// Store is the remote-tier EntryStore. Writes are conditional on the version column.
type Store struct {
	pool *pgxpool.Pool
	key  string
}

// NewStore constructs a Store for the snapshot stored under key.
func NewStore(pool *pgxpool.Pool, key string) *Store {
	return &Store{pool: pool, key: key}
}

// Load returns the stored snapshot or domain.ErrSnapshotNotFound.
func (s *Store) Load(ctx context.Context) (domain.Snapshot, error) {
	defer observability.ObserveStoreOp("postgres", "load", time.Now())

	var (
		payload []byte
		version int64
	)
	err := s.pool.QueryRow(ctx, `SELECT payload, version FROM snapshots WHERE snapshot_key = $1`, s.key).Scan(&payload, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Snapshot{}, domain.ErrSnapshotNotFound
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("query snapshot: %w", err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode snapshot %s (version %d): %w", s.key, version, err)
	}
	snap = snap.Normalize()
	snap.Version = version
	return snap, nil
}

// Save writes snap when snap.Version matches, and inserts the matching outbox
// event inside the same transaction.
func (s *Store) Save(ctx context.Context, snap domain.Snapshot, m domain.Mutation) (saved domain.Snapshot, err error) {
	defer observability.ObserveStoreOp("postgres", "save", time.Now())

	snap = snap.Normalize()
	payload, err := json.Marshal(snap)
	if err != nil {
		return domain.Snapshot{}, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Snapshot{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	next := snap.Version + 1
	var updatedAt time.Time
	if snap.Version == 0 {
		err = tx.QueryRow(ctx,
			`INSERT INTO snapshots (snapshot_key, payload, version, updated_at) VALUES ($1, $2, $3, NOW())
             ON CONFLICT (snapshot_key) DO NOTHING
             RETURNING updated_at`,
			s.key, payload, next).Scan(&updatedAt)
	} else {
		err = tx.QueryRow(ctx,
			`UPDATE snapshots SET payload = $2, version = $3, updated_at = NOW()
             WHERE snapshot_key = $1 AND version = $4
             RETURNING updated_at`,
			s.key, payload, next, snap.Version).Scan(&updatedAt)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		err = domain.ErrVersionConflict
		return domain.Snapshot{}, err
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("write snapshot: %w", err)
	}

	snap.Version = next
	if err = s.insertOutbox(ctx, tx, snap, m, updatedAt); err != nil {
		return domain.Snapshot{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return domain.Snapshot{}, err
	}
	observability.RecordSnapshotSaved(updatedAt, len(snap.ActivityEntries), len(snap.WeightEntries))
	return snap, nil
}

func (s *Store) insertOutbox(ctx context.Context, tx pgx.Tx, snap domain.Snapshot, m domain.Mutation, at time.Time) error {
	eventType := events.TypeSnapshotSaved
	var body any = events.SnapshotSaved{
		EventID:            uuid.NewString(),
		SnapshotKey:        s.key,
		Version:            snap.Version,
		ActivityCount:      len(snap.ActivityEntries),
		WeightCount:        len(snap.WeightEntries),
		IncomingActivities: m.IncomingActivities,
		IncomingWeights:    m.IncomingWeights,
		Dropped:            m.Dropped,
		SavedAt:            at.UTC(),
	}
	if m.Reason == domain.ReasonRetention {
		eventType = events.TypeSnapshotPruned
		body = events.SnapshotPruned{
			EventID:     uuid.NewString(),
			SnapshotKey: s.key,
			Version:     snap.Version,
			Dropped:     m.Dropped,
			PrunedAt:    at.UTC(),
		}
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err = tx.Exec(ctx, stmt,
		"snapshot",
		s.key,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		s.key,
		raw,
		fmt.Sprintf("%s:%d:%s", s.key, snap.Version, eventType),
	)
	return err
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic         string
	SchemaSubject string
}

var eventCatalog = map[string]EventMetadata{
	events.TypeSnapshotSaved: {
		Topic:         "runlog_snapshots",
		SchemaSubject: "runlog_snapshots-saved-value",
	},
	events.TypeSnapshotPruned: {
		Topic:         "runlog_snapshots",
		SchemaSubject: "runlog_snapshots-pruned-value",
	},
}
