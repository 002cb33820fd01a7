package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/runlog/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "runlog.db"), "data.json")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreVersionedWrites(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	_, err := store.Load(ctx)
	require.ErrorIs(t, err, domain.ErrSnapshotNotFound)

	first, err := store.Save(ctx, domain.Snapshot{
		WeightEntries: []domain.WeightEntry{{Date: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), Weight: 90}},
	}, domain.Mutation{Reason: domain.ReasonSubmit, IncomingWeights: 1})
	require.NoError(t, err)
	require.Equal(t, int64(1), first.Version)

	_, err = store.Save(ctx, domain.Snapshot{Version: 0}, domain.Mutation{})
	require.ErrorIs(t, err, domain.ErrVersionConflict, "second create loses")

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), loaded.Version)
	require.Equal(t, 90.0, loaded.WeightEntries[0].Weight)
	require.NotNil(t, loaded.ActivityEntries)

	loaded.WeightEntries[0].Weight = 88
	second, err := store.Save(ctx, loaded, domain.Mutation{Reason: domain.ReasonSubmit})
	require.NoError(t, err)
	require.Equal(t, int64(2), second.Version)

	_, err = store.Save(ctx, loaded, domain.Mutation{})
	require.ErrorIs(t, err, domain.ErrVersionConflict, "stale version loses")

	changes, err := store.Changes(ctx, 10)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	require.Equal(t, int64(2), changes[0].Version)
}

func TestServiceOverSQLite(t *testing.T) {
	ctx := context.Background()
	svc := domain.NewService(openTestStore(t))

	_, err := svc.Submit(ctx, domain.Snapshot{
		WeightEntries: []domain.WeightEntry{{Date: time.Date(2026, 1, 5, 6, 0, 0, 0, time.UTC), Weight: 90}},
	})
	require.NoError(t, err)
	res, err := svc.Submit(ctx, domain.Snapshot{
		WeightEntries: []domain.WeightEntry{{Date: time.Date(2026, 1, 5, 20, 0, 0, 0, time.UTC), Weight: 88}},
	})
	require.NoError(t, err)

	require.Len(t, res.Snapshot.WeightEntries, 1)
	require.Equal(t, 88.0, res.Snapshot.WeightEntries[0].Weight)
	require.Equal(t, int64(2), res.Snapshot.Version)
}

func TestUnreadablePayloadFailsInsteadOfReadingEmpty(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	svc := domain.NewService(store)

	_, err := svc.Submit(ctx, domain.Snapshot{
		WeightEntries: []domain.WeightEntry{{Date: time.Date(2026, 1, 5, 6, 0, 0, 0, time.UTC), Weight: 90}},
	})
	require.NoError(t, err)
	_, err = store.db.ExecContext(ctx, `UPDATE snapshots SET payload = '{"weightEntries": 12' WHERE key = ?`, "data.json")
	require.NoError(t, err)

	_, err = store.Load(ctx)
	require.ErrorContains(t, err, "decode snapshot data.json (version 1)")

	_, err = svc.Submit(ctx, domain.Snapshot{
		WeightEntries: []domain.WeightEntry{{Date: time.Date(2026, 1, 6, 6, 0, 0, 0, time.UTC), Weight: 89}},
	})
	require.Error(t, err)

	var payload string
	require.NoError(t, store.db.QueryRowContext(ctx, `SELECT payload FROM snapshots WHERE key = ?`, "data.json").Scan(&payload))
	require.Equal(t, `{"weightEntries": 12`, payload, "stored blob is left untouched")
}
