package remote

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/runlog/internal/api"
	"example.com/runlog/internal/domain"
	"example.com/runlog/internal/persistence/memory"
)

func newAPI(t *testing.T) *httptest.Server {
	t.Helper()
	svc := domain.NewService(memory.NewStore(), domain.WithLogger(log.New(io.Discard, "", 0)))
	mux := http.NewServeMux()
	api.NewHandler(svc).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := NewClient(newAPI(t).URL + "/")

	snap, err := client.Load(ctx)
	require.NoError(t, err)
	require.Zero(t, snap.Version)
	require.Empty(t, snap.ActivityEntries)

	saved, err := client.Save(ctx, domain.Snapshot{
		ActivityEntries: []domain.ActivityEntry{{Date: time.Date(2026, 1, 6, 6, 0, 0, 0, time.UTC), Distance: 6, Time: 36, Pace: 6}},
	}, domain.Mutation{Reason: domain.ReasonSubmit})
	require.NoError(t, err)
	require.Equal(t, int64(1), saved.Version)

	snap, err = client.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), snap.Version)
	require.Len(t, snap.ActivityEntries, 1)
}

func TestServiceOverClientWithCache(t *testing.T) {
	ctx := context.Background()
	cache := memory.NewStore()
	cache.Unconditional = true
	svc := domain.NewService(NewClient(newAPI(t).URL), domain.WithLocalCache(cache), domain.WithLogger(log.New(io.Discard, "", 0)))

	_, err := svc.Submit(ctx, domain.Snapshot{
		WeightEntries: []domain.WeightEntry{{Date: time.Date(2026, 1, 5, 7, 0, 0, 0, time.UTC), Weight: 90}},
	})
	require.NoError(t, err)

	cached, err := cache.Load(ctx)
	require.NoError(t, err)
	require.Len(t, cached.WeightEntries, 1)
}

func TestStaleClientSaveIsRejected(t *testing.T) {
	ctx := context.Background()
	url := newAPI(t).URL
	a, b := NewClient(url), NewClient(url)

	seed := domain.Snapshot{WeightEntries: []domain.WeightEntry{{Date: time.Date(2026, 1, 5, 7, 0, 0, 0, time.UTC), Weight: 90}}}
	_, err := a.Save(ctx, seed, domain.Mutation{Reason: domain.ReasonSubmit})
	require.NoError(t, err)

	snapA, err := a.Load(ctx)
	require.NoError(t, err)
	snapB, err := b.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), snapA.Version)
	require.Equal(t, int64(1), snapB.Version)

	snapB.WeightEntries[0].Weight = 88
	saved, err := b.Save(ctx, snapB, domain.Mutation{Reason: domain.ReasonSubmit})
	require.NoError(t, err)
	require.Equal(t, int64(2), saved.Version)

	snapA.WeightEntries[0].Weight = 95
	_, err = a.Save(ctx, snapA, domain.Mutation{Reason: domain.ReasonSubmit})
	require.ErrorIs(t, err, domain.ErrVersionConflict)

	final, err := a.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), final.Version)
	require.Equal(t, 88.0, final.WeightEntries[0].Weight)

	// A service over the client re-reads and wins on its next attempt.
	svc := domain.NewService(a, domain.WithLogger(log.New(io.Discard, "", 0)))
	res, err := svc.Submit(ctx, domain.Snapshot{
		WeightEntries: []domain.WeightEntry{{Date: time.Date(2026, 1, 6, 7, 0, 0, 0, time.UTC), Weight: 87}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(3), res.Snapshot.Version)
	require.Len(t, res.Snapshot.WeightEntries, 2)
}

func TestClientSendsDataKey(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("x-data-key")
		w.Header().Set("ETag", `W/"7"`)
		_, _ = w.Write([]byte(`{"activityEntries":null}`))
	}))
	defer srv.Close()

	snap, err := NewClient(srv.URL, WithDataKey("s3cret")).Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "s3cret", got)
	require.Equal(t, int64(7), snap.Version)
	require.NotNil(t, snap.ActivityEntries)
	require.NotNil(t, snap.WeightEntries)
}

func TestClientMapsStatuses(t *testing.T) {
	status := http.StatusNotFound
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"type":"validation_failed","detail":"weightEntries[0].weight must be > 0"}`))
	}))
	defer srv.Close()
	client := NewClient(srv.URL)
	ctx := context.Background()

	_, err := client.Load(ctx)
	require.ErrorIs(t, err, domain.ErrSnapshotNotFound)

	status = http.StatusConflict
	_, err = client.Save(ctx, domain.Snapshot{}, domain.Mutation{})
	require.ErrorIs(t, err, domain.ErrVersionConflict)

	status = http.StatusBadRequest
	_, err = client.Save(ctx, domain.Snapshot{}, domain.Mutation{})
	require.ErrorIs(t, err, domain.ErrValidation)
	require.ErrorContains(t, err, "weight must be > 0")

	status = http.StatusInternalServerError
	_, err = client.Load(ctx)
	require.ErrorContains(t, err, "500")
}
