// Package outbox relays snapshot change events from the Postgres outbox table to Kafka.
package outbox

import (
	"cmp"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

type schemaRegistrar interface {
	EnsureSchema(context.Context, string, string) (int, error)
}

type execer interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger overrides the dispatcher logger.
func WithLogger(logger *log.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// Dispatcher claims unpublished outbox rows and publishes them with Schema
// Registry framing. Events that cannot be published move to outbox_dlq in the
// same transaction that marks the batch done.
type Dispatcher struct {
	pool         *pgxpool.Pool
	producer     messageWriter
	registry     schemaRegistrar
	pollInterval time.Duration
	batchSize    int
	logger       *log.Logger

	schemaIDs sync.Map // subject -> schema id
	done      chan struct{}
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(pool *pgxpool.Pool, producer messageWriter, registry schemaRegistrar, pollInterval time.Duration, batchSize int, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		pool:         pool,
		producer:     producer,
		registry:     registry,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		logger:       log.New(log.Writer(), "[outbox] ", log.LstdFlags),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start runs until ctx is cancelled. A full batch is followed immediately by
// another; otherwise the dispatcher sleeps for the poll interval.
func (d *Dispatcher) Start(ctx context.Context) {
	defer close(d.done)

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		n, err := d.processBatch(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Printf("dispatch error: %v", err)
		}
		if err == nil && n == d.batchSize {
			timer.Reset(0)
			continue
		}
		timer.Reset(d.pollInterval)
	}
}

// Wait blocks until Start has returned.
func (d *Dispatcher) Wait() {
	<-d.done
}

// processBatch publishes one claimed batch and reports its size.
func (d *Dispatcher) processBatch(ctx context.Context) (int, error) {
	messages, err := d.claim(ctx)
	if err != nil || len(messages) == 0 {
		return 0, err
	}
	start := time.Now()
	defer func() { batchDuration.Observe(time.Since(start).Seconds()) }()

	failures := d.deliver(ctx, messages)
	if len(failures) > 0 {
		d.logger.Printf("%d of %d events failed, routing them to the dlq", len(failures), len(messages))
	}
	if err := d.settle(ctx, messages, failures); err != nil {
		return 0, err
	}
	recordBatch(len(messages)-len(failures), len(failures))
	return len(messages), nil
}

// claim stamps claimed_at on the oldest unpublished rows, skipping rows locked
// by a concurrent dispatcher.
func (d *Dispatcher) claim(ctx context.Context) ([]Message, error) {
	rows, err := d.pool.Query(ctx, `
		WITH next AS (
			SELECT event_id FROM outbox
			WHERE published_at IS NULL
			ORDER BY event_id
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE outbox o SET claimed_at = NOW()
		FROM next WHERE o.event_id = next.event_id
		RETURNING o.event_id, o.aggregate_type, o.aggregate_id, o.event_type, o.topic, o.schema_subject, o.partition_key, o.payload`,
		d.batchSize)
	if err != nil {
		return nil, fmt.Errorf("claim outbox rows: %w", err)
	}
	messages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Message, error) {
		var m Message
		err := row.Scan(&m.EventID, &m.AggregateType, &m.AggregateID, &m.EventType, &m.Topic, &m.SchemaSubject, &m.PartitionKey, &m.Payload)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan outbox rows: %w", err)
	}
	// RETURNING order is unspecified.
	slices.SortFunc(messages, func(a, b Message) int { return cmp.Compare(a.EventID, b.EventID) })
	return messages, nil
}

// deliver publishes messages grouped by topic and returns the reason each
// undelivered event failed. A failed topic write fails only that topic's events.
func (d *Dispatcher) deliver(ctx context.Context, messages []Message) map[int64]error {
	failures := make(map[int64]error)
	byTopic := make(map[string][]Message)
	var topics []string

	for _, msg := range messages {
		if _, ok := byTopic[msg.Topic]; !ok {
			topics = append(topics, msg.Topic)
		}
		byTopic[msg.Topic] = append(byTopic[msg.Topic], msg)
	}

	for _, topic := range topics {
		var (
			records []kafka.Message
			sent    []Message
		)
		for _, msg := range byTopic[topic] {
			record, err := d.record(ctx, msg)
			if err != nil {
				failures[msg.EventID] = err
				continue
			}
			records = append(records, record)
			sent = append(sent, msg)
		}
		if len(records) == 0 {
			continue
		}
		if err := d.producer.WriteMessages(ctx, topic, records...); err != nil {
			for _, msg := range sent {
				failures[msg.EventID] = fmt.Errorf("write %s: %w", topic, err)
			}
		}
	}
	return failures
}

func (d *Dispatcher) record(ctx context.Context, msg Message) (kafka.Message, error) {
	schemaID, err := d.schemaID(ctx, msg)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(msg.PartitionKey),
		Value: encodeWireFormat(schemaID, msg.Payload),
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(msg.EventType)},
			{Key: "aggregate_id", Value: []byte(msg.AggregateID)},
			{Key: "schema_subject", Value: []byte(msg.SchemaSubject)},
			{Key: "event_id", Value: []byte(strconv.FormatInt(msg.EventID, 10))},
		},
	}, nil
}

func (d *Dispatcher) schemaID(ctx context.Context, msg Message) (int, error) {
	schema, ok := schemaCatalog[msg.EventType]
	if !ok {
		return 0, fmt.Errorf("no schema registered for event_type %q", msg.EventType)
	}
	if id, ok := d.schemaIDs.Load(msg.SchemaSubject); ok {
		return id.(int), nil
	}
	id, err := d.registry.EnsureSchema(ctx, msg.SchemaSubject, schema)
	if err != nil {
		return 0, fmt.Errorf("schema %s: %w", msg.SchemaSubject, err)
	}
	d.schemaIDs.Store(msg.SchemaSubject, id)
	return id, nil
}

// settle marks the whole batch published and dead-letters the failures atomically.
func (d *Dispatcher) settle(ctx context.Context, messages []Message, failures map[int64]error) (err error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	ids := make([]int64, 0, len(messages))
	for _, msg := range messages {
		ids = append(ids, msg.EventID)
		if cause, failed := failures[msg.EventID]; failed {
			if err = writeDLQ(ctx, tx, msg, cause.Error()); err != nil {
				return fmt.Errorf("dead-letter event %d: %w", msg.EventID, err)
			}
			dlqCounter.WithLabelValues(msg.Topic).Inc()
		}
	}
	if _, err = tx.Exec(ctx, `UPDATE outbox SET published_at = NOW() WHERE event_id = ANY($1)`, ids); err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	return tx.Commit(ctx)
}

// Message is one outbox row.
type Message struct {
	EventID       int64
	AggregateType string
	AggregateID   string
	EventType     string
	Topic         string
	SchemaSubject string
	PartitionKey  string
	Payload       json.RawMessage
}

// encodeWireFormat prefixes payload with magic byte 0 and the big-endian schema id.
func encodeWireFormat(schemaID int, payload []byte) []byte {
	frame := make([]byte, 5, 5+len(payload))
	binary.BigEndian.PutUint32(frame[1:], uint32(schemaID))
	return append(frame, payload...)
}
