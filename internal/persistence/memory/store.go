// Package memory provides an in-process EntryStore used for local development and tests.
package memory

import (
	"context"
	"sync"

	"example.com/runlog/internal/domain"
)

// Store keeps a single snapshot guarded by a RWMutex.
type Store struct {
	mu     sync.RWMutex
	snap   domain.Snapshot
	exists bool
	// Unconditional makes Save ignore versions, as a local cache does.
	Unconditional bool
}

// NewStore returns an empty store. Seed snapshots are stored as version 1.
func NewStore(seed ...domain.Snapshot) *Store {
	s := &Store{}
	if len(seed) > 0 {
		s.snap = clone(seed[0])
		s.snap.Version = 1
		s.exists = true
	}
	return s
}

// Load returns a copy of the stored snapshot.
func (s *Store) Load(ctx context.Context) (domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.exists {
		return domain.Snapshot{}, domain.ErrSnapshotNotFound
	}
	return clone(s.snap), nil
}

// Save replaces the snapshot when snap.Version matches the stored version.
func (s *Store) Save(ctx context.Context, snap domain.Snapshot, _ domain.Mutation) (domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Unconditional && snap.Version != s.snap.Version {
		return domain.Snapshot{}, domain.ErrVersionConflict
	}
	next := clone(snap)
	next.Version = s.snap.Version + 1
	s.snap = next
	s.exists = true
	return clone(next), nil
}

func clone(snap domain.Snapshot) domain.Snapshot {
	out := domain.Snapshot{
		ActivityEntries: append([]domain.ActivityEntry{}, snap.ActivityEntries...),
		WeightEntries:   append([]domain.WeightEntry{}, snap.WeightEntries...),
		Version:         snap.Version,
	}
	return out
}
