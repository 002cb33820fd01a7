package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const quarantineReason = "retry limit reached"

// writeDLQ inserts msg into outbox_dlq, due for retry immediately.
func writeDLQ(ctx context.Context, db execer, msg Message, reason string) error {
	_, err := db.Exec(ctx, `
		INSERT INTO outbox_dlq (event_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, reason, next_retry_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())`,
		msg.EventID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Topic, msg.SchemaSubject, msg.PartitionKey, msg.Payload, reason,
	)
	return err
}

// DLQManager moves dead-lettered events back into the outbox once their retry
// is due. Entries that cannot be replayed back off exponentially and are
// quarantined after maxRetries attempts.
type DLQManager struct {
	pool       *pgxpool.Pool
	maxRetries int
	baseDelay  time.Duration
}

// NewDLQManager defaults to 5 retries starting at one minute.
func NewDLQManager(pool *pgxpool.Pool, maxRetries int, baseDelay time.Duration) *DLQManager {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	if baseDelay <= 0 {
		baseDelay = time.Minute
	}
	return &DLQManager{pool: pool, maxRetries: maxRetries, baseDelay: baseDelay}
}

type dlqEntry struct {
	ID            int64
	EventType     string
	Topic         string
	SchemaSubject string
	RetryCount    int
}

type dlqAction int

const (
	actionRequeue dlqAction = iota
	actionRetry
	actionQuarantine
)

// RunOnce settles up to batchSize due entries in one transaction and reports
// how many went back to the outbox.
func (m *DLQManager) RunOnce(ctx context.Context, batchSize int) (requeued int, err error) {
	defer updateBacklogGauge(ctx, m.pool)

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	rows, err := tx.Query(ctx, `
		SELECT dlq_id, event_type, topic, schema_subject, retry_count
		FROM outbox_dlq
		WHERE quarantined_at IS NULL AND (next_retry_at IS NULL OR next_retry_at <= NOW())
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, batchSize)
	if err != nil {
		return 0, fmt.Errorf("select due dlq entries: %w", err)
	}
	entries, err := pgx.CollectRows(rows, pgx.RowToStructByPos[dlqEntry])
	if err != nil {
		return 0, fmt.Errorf("scan dlq entries: %w", err)
	}

	outcomes := make([]dlqAction, len(entries))
	for i, entry := range entries {
		action, reason := m.plan(entry)
		switch action {
		case actionQuarantine:
			err = quarantine(ctx, tx, entry.ID)
		case actionRetry:
			err = m.reschedule(ctx, tx, entry, reason)
		default:
			err = requeue(ctx, tx, entry.ID)
		}
		if err != nil {
			return 0, fmt.Errorf("dlq entry %d: %w", entry.ID, err)
		}
		outcomes[i] = action
	}
	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}

	for i, entry := range entries {
		recordDLQAction(entry, outcomes[i])
		if outcomes[i] == actionRequeue {
			requeued++
		}
	}
	return requeued, nil
}

// plan decides what happens to entry and, for a retry, why it cannot be replayed yet.
func (m *DLQManager) plan(entry dlqEntry) (dlqAction, string) {
	if entry.RetryCount >= m.maxRetries {
		return actionQuarantine, ""
	}
	if entry.SchemaSubject == "" {
		return actionRetry, "missing schema_subject"
	}
	if _, ok := schemaCatalog[entry.EventType]; !ok {
		return actionRetry, fmt.Sprintf("unknown event_type %q", entry.EventType)
	}
	return actionRequeue, ""
}

func requeue(ctx context.Context, tx pgx.Tx, id int64) error {
	_, err := tx.Exec(ctx, `
		WITH moved AS (
			DELETE FROM outbox_dlq WHERE dlq_id = $1
			RETURNING aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload
		)
		INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload)
		SELECT aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload FROM moved`, id)
	return err
}

func (m *DLQManager) reschedule(ctx context.Context, tx pgx.Tx, entry dlqEntry, reason string) error {
	delay := m.backoffDelay(entry.RetryCount + 1)
	_, err := tx.Exec(ctx, `
		UPDATE outbox_dlq
		SET retry_count = retry_count + 1,
		    last_attempt_at = NOW(),
		    next_retry_at = NOW() + make_interval(secs => $1),
		    reason = $2
		WHERE dlq_id = $3`,
		delay.Seconds(), reason, entry.ID)
	return err
}

func quarantine(ctx context.Context, tx pgx.Tx, id int64) error {
	_, err := tx.Exec(ctx, `UPDATE outbox_dlq SET quarantined_at = NOW(), quarantine_reason = $1 WHERE dlq_id = $2`, quarantineReason, id)
	return err
}

// backoffDelay doubles baseDelay per attempt, capped at one hour.
func (m *DLQManager) backoffDelay(attempt int) time.Duration {
	delay := m.baseDelay
	for i := 1; i < attempt; i++ {
		if delay >= time.Hour/2 {
			return time.Hour
		}
		delay *= 2
	}
	return min(delay, time.Hour)
}
