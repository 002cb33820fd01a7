package filecache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/runlog/internal/domain"
)

func TestCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	cache := New(t.TempDir())

	_, err := cache.Load(ctx)
	require.ErrorIs(t, err, domain.ErrSnapshotNotFound)

	snap := domain.Snapshot{
		ActivityEntries: []domain.ActivityEntry{{Date: time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC), Distance: 6, Time: 36, Pace: 6}},
		Version:         7,
	}
	_, err = cache.Save(ctx, snap, domain.Mutation{})
	require.NoError(t, err)

	loaded, err := cache.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(7), loaded.Version)
	require.Len(t, loaded.ActivityEntries, 1)
	require.True(t, loaded.ActivityEntries[0].Date.Equal(snap.ActivityEntries[0].Date))
	require.NotNil(t, loaded.WeightEntries)

	require.NoError(t, cache.Clear())
	_, err = cache.Load(ctx)
	require.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}

func TestCacheSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	_, err := New(dir).Save(ctx, domain.Snapshot{
		WeightEntries: []domain.WeightEntry{{Date: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), Weight: 88}},
	}, domain.Mutation{})
	require.NoError(t, err)

	loaded, err := New(dir).Load(ctx)
	require.NoError(t, err)
	require.Equal(t, 88.0, loaded.WeightEntries[0].Weight)
}
