// Package domain defines the run log entities and the service that reconciles them across stores.
package domain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"example.com/runlog/internal/observability"
	"example.com/runlog/internal/reconcile"
	"example.com/runlog/internal/timeutil"
)

var (
	// ErrSnapshotNotFound is returned by a store that has never been written.
	ErrSnapshotNotFound = errors.New("snapshot not found")
	// ErrVersionConflict is returned when a conditional write loses to a concurrent one.
	ErrVersionConflict = errors.New("snapshot version conflict")
)

// EntryStore persists whole snapshots. Remote stores make Save conditional on
// snap.Version; local caches mirror unconditionally.
type EntryStore interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot, m Mutation) (Snapshot, error)
}

// ReadResult is a snapshot plus where it came from.
type ReadResult struct {
	Snapshot Snapshot
	// Stale is set when the remote store was unreachable and the local cache answered.
	Stale bool
}

// SubmitResult summarises a successful submit.
type SubmitResult struct {
	Snapshot Snapshot
	Dropped  int
	Attempts int
}

// Option configures the Service.
type Option func(*Service)

// WithLocalCache sets the cache used as read fallback and mirror.
func WithLocalCache(cache EntryStore) Option {
	return func(s *Service) {
		s.local = cache
	}
}

// WithLogger overrides the service logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithLocation sets the zone used for day keys.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithRetentionCutoff drops entries dated before cutoff on every read and write.
func WithRetentionCutoff(cutoff timeutil.Date) Option {
	return func(s *Service) {
		s.cutoff = cutoff
	}
}

// WithMaxAttempts bounds conditional-write retries.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// Service is the only component that decides precedence between the remote store and the local cache.
type Service struct {
	remote      EntryStore
	local       EntryStore
	loc         *time.Location
	cutoff      timeutil.Date
	maxAttempts int
	logger      *log.Logger
}

// NewService constructs a Service over the remote store.
func NewService(remote EntryStore, opts ...Option) *Service {
	s := &Service{
		remote:      remote,
		loc:         time.UTC,
		maxAttempts: 3,
		logger:      log.New(log.Writer(), "[runlog] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location returns the zone used for day keys.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Snapshot returns the canonical state. A missing remote snapshot reads as
// empty; a failing remote falls back to the local cache when one is set.
func (s *Service) Snapshot(ctx context.Context) (ReadResult, error) {
	snap, err := s.loadRemote(ctx)
	if err != nil {
		if s.local == nil {
			return ReadResult{}, err
		}
		s.logger.Printf("remote load failed, serving local cache: %v", err)
		observability.RecordCacheFallback()
		cached, cacheErr := s.local.Load(ctx)
		if errors.Is(cacheErr, ErrSnapshotNotFound) {
			cached = EmptySnapshot()
		} else if cacheErr != nil {
			return ReadResult{}, errors.Join(err, fmt.Errorf("local cache: %w", cacheErr))
		}
		pruned, _ := s.merge(cached.Normalize(), Snapshot{})
		pruned.Version = cached.Version
		return ReadResult{Snapshot: pruned, Stale: true}, nil
	}

	s.mirror(ctx, snap)
	pruned, _ := s.merge(snap, Snapshot{})
	pruned.Version = snap.Version
	return ReadResult{Snapshot: pruned}, nil
}

// Submit merges delta into the remote snapshot with a conditional write,
// re-reading and retrying when another writer wins the race.
func (s *Service) Submit(ctx context.Context, delta Snapshot) (SubmitResult, error) {
	delta = delta.Normalize()

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		current, err := s.loadRemote(ctx)
		if err != nil {
			return SubmitResult{}, fmt.Errorf("load remote snapshot: %w", err)
		}

		res, err := s.store(ctx, current, delta)
		if errors.Is(err, ErrVersionConflict) {
			s.logger.Printf("submit attempt %d lost a version race (version=%d)", attempt, current.Version)
			lastErr = err
			continue
		}
		if err != nil {
			return SubmitResult{}, err
		}
		res.Attempts = attempt
		return res, nil
	}
	return SubmitResult{}, fmt.Errorf("submit gave up after %d attempts: %w", s.maxAttempts, lastErr)
}

// SubmitIfVersion merges delta only when the remote snapshot is still at
// version expected, the version the caller last read. It never retries: a
// moved version returns ErrVersionConflict so the caller can re-read.
func (s *Service) SubmitIfVersion(ctx context.Context, delta Snapshot, expected int64) (SubmitResult, error) {
	current, err := s.loadRemote(ctx)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("load remote snapshot: %w", err)
	}
	if current.Version != expected {
		return SubmitResult{}, fmt.Errorf("%w: read version %d, stored version %d", ErrVersionConflict, expected, current.Version)
	}
	res, err := s.store(ctx, current, delta.Normalize())
	if err != nil {
		return SubmitResult{}, err
	}
	res.Attempts = 1
	return res, nil
}

// store writes current merged with delta, conditional on current.Version.
func (s *Service) store(ctx context.Context, current, delta Snapshot) (SubmitResult, error) {
	merged, dropped := s.merge(current, delta)
	merged.Version = current.Version
	mutation := Mutation{
		Reason:             ReasonSubmit,
		IncomingActivities: len(delta.ActivityEntries),
		IncomingWeights:    len(delta.WeightEntries),
		Dropped:            dropped,
	}

	saved, err := s.remote.Save(ctx, merged, mutation)
	if errors.Is(err, ErrVersionConflict) {
		return SubmitResult{}, err
	}
	if err != nil {
		return SubmitResult{}, fmt.Errorf("save remote snapshot: %w", err)
	}

	s.logger.Printf("stored snapshot version=%d activities=%d weights=%d (incoming activities=%d weights=%d dropped=%d)",
		saved.Version, len(saved.ActivityEntries), len(saved.WeightEntries), mutation.IncomingActivities, mutation.IncomingWeights, dropped)
	s.mirror(ctx, saved)
	return SubmitResult{Snapshot: saved, Dropped: dropped}, nil
}

// ApplyRetention removes entries older than the cutoff from the remote snapshot.
// It returns the number of entries dropped and writes only when that is positive.
func (s *Service) ApplyRetention(ctx context.Context) (int, error) {
	if s.cutoff.IsZero() {
		return 0, nil
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		current, err := s.loadRemote(ctx)
		if err != nil {
			return 0, err
		}
		pruned, dropped := s.merge(current, Snapshot{})
		if dropped == 0 {
			return 0, nil
		}
		pruned.Version = current.Version

		saved, err := s.remote.Save(ctx, pruned, Mutation{Reason: ReasonRetention, Dropped: dropped})
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		if err != nil {
			return 0, err
		}
		s.mirror(ctx, saved)
		return dropped, nil
	}
	return 0, ErrVersionConflict
}

func (s *Service) loadRemote(ctx context.Context) (Snapshot, error) {
	snap, err := s.remote.Load(ctx)
	if errors.Is(err, ErrSnapshotNotFound) {
		return EmptySnapshot(), nil
	}
	if err != nil {
		return Snapshot{}, err
	}
	return snap.Normalize(), nil
}

func (s *Service) merge(current, delta Snapshot) (Snapshot, int) {
	opts := reconcile.Options{Location: s.loc, Cutoff: s.cutoff}
	activities := reconcile.ByDay(current.ActivityEntries, delta.ActivityEntries, func(e ActivityEntry) time.Time { return e.Date }, opts)
	weights := reconcile.ByDay(current.WeightEntries, delta.WeightEntries, func(e WeightEntry) time.Time { return e.Date }, opts)
	return Snapshot{
		ActivityEntries: activities.Entries,
		WeightEntries:   weights.Entries,
	}, activities.Dropped + weights.Dropped
}

func (s *Service) mirror(ctx context.Context, snap Snapshot) {
	if s.local == nil {
		return
	}
	if _, err := s.local.Save(ctx, snap, Mutation{Reason: ReasonSubmit}); err != nil {
		s.logger.Printf("local cache update failed: %v", err)
	}
}

// FindActivity returns the activity recorded on day, if any.
func FindActivity(entries []ActivityEntry, day timeutil.Date, loc *time.Location) (ActivityEntry, bool) {
	for _, e := range entries {
		if e.Day(loc) == day {
			return e, true
		}
	}
	return ActivityEntry{}, false
}
