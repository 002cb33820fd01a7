// Package consumer reads snapshot change events back from Kafka for auditing.
package consumer

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// Reader is the subset of *kafka.Reader the processor needs.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler receives decoded messages.
type Handler interface {
	Handle(context.Context, Message) error
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger overrides the processor logger.
func WithLogger(logger *log.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithHandlerRetry sets how many times a message is offered to the handler
// and the pause between attempts.
func WithHandlerRetry(attempts int, delay time.Duration) Option {
	return func(p *Processor) {
		if attempts > 0 {
			p.attempts = attempts
		}
		p.retryDelay = delay
	}
}

// Processor fetches and decodes messages, committing an offset once the
// handler accepted it or once it proved undecodable. A message the handler
// keeps rejecting stays uncommitted so the group redelivers it after a restart.
type Processor struct {
	reader     Reader
	handler    Handler
	logger     *log.Logger
	attempts   int
	retryDelay time.Duration
}

// NewProcessor constructs a Processor.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:     reader,
		handler:    handler,
		logger:     log.New(log.Writer(), "[consumer] ", log.LstdFlags|log.Lshortfile),
		attempts:   3,
		retryDelay: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run blocks until ctx is cancelled or the reader reports cancellation.
func (p *Processor) Run(ctx context.Context) error {
	fetchFailures := 0
	for {
		raw, err := p.reader.FetchMessage(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, context.Canceled) {
			return err
		}
		if err != nil {
			fetchFailures++
			p.logger.Printf("fetch failed (%d in a row): %v", fetchFailures, err)
			if !sleep(ctx, backoff(fetchFailures)) {
				return ctx.Err()
			}
			continue
		}
		fetchFailures = 0

		if p.process(ctx, raw) {
			if err := p.reader.CommitMessages(ctx, raw); err != nil {
				p.logger.Printf("commit failed (topic=%s, partition=%d, offset=%d): %v", raw.Topic, raw.Partition, raw.Offset, err)
			}
		}
	}
}

// process reports whether raw's offset may be committed.
func (p *Processor) process(ctx context.Context, raw kafka.Message) bool {
	msg, err := decodeMessage(raw)
	if err != nil {
		p.logger.Printf("dropping undecodable message (topic=%s, partition=%d, offset=%d): %v", raw.Topic, raw.Partition, raw.Offset, err)
		recordOutcome(raw.Topic, "", outcomeUndecodable)
		return true
	}

	for attempt := 1; attempt <= p.attempts; attempt++ {
		err = p.handler.Handle(ctx, msg)
		if err == nil {
			recordHandled(msg)
			return true
		}
		p.logger.Printf("handler attempt %d/%d failed (event=%s, type=%s, version=%d): %v", attempt, p.attempts, msg.EventID, msg.EventType, msg.Version, err)
		if attempt < p.attempts && !sleep(ctx, p.retryDelay) {
			break
		}
	}
	recordOutcome(msg.Topic, msg.EventType, outcomeFailed)
	return false
}

func backoff(failures int) time.Duration {
	d := 100 * time.Millisecond << min(failures, 6)
	return min(d, 5*time.Second)
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
