package consumer

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PersistenceHandler appends consumed events to snapshot_event_log, once per event id.
type PersistenceHandler struct {
	pool *pgxpool.Pool
}

// NewPersistenceHandler constructs a handler backed by pool.
func NewPersistenceHandler(pool *pgxpool.Pool) *PersistenceHandler {
	return &PersistenceHandler{pool: pool}
}

// Handle stores msg. Events already logged, whether redelivered or published twice, are skipped.
func (h *PersistenceHandler) Handle(ctx context.Context, msg Message) error {
	dropped := 0
	switch {
	case msg.Saved != nil:
		dropped = msg.Saved.Dropped
	case msg.Pruned != nil:
		dropped = msg.Pruned.Dropped
	}

	_, err := h.pool.Exec(ctx, `
		INSERT INTO snapshot_event_log
			(event_id, event_type, aggregate_id, snapshot_version, dropped, schema_id, schema_subject, topic, partition, record_offset, payload, received_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (event_id) DO NOTHING`,
		msg.EventID, msg.EventType, msg.SnapshotKey, msg.Version, dropped,
		msg.SchemaID, msg.SchemaSubject, msg.Topic, msg.Partition, msg.Offset,
		msg.Payload, msg.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("log event %s: %w", msg.EventID, err)
	}
	return nil
}
