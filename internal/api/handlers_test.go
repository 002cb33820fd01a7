package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/runlog/internal/calendar"
	"example.com/runlog/internal/domain"
	"example.com/runlog/internal/persistence/memory"
	"example.com/runlog/internal/timeutil"
)

var fixedNow = time.Date(2026, time.January, 14, 9, 30, 0, 0, time.UTC)

func newTestServer(t *testing.T, store domain.EntryStore, opts ...Option) *httptest.Server {
	t.Helper()
	svc := domain.NewService(store, domain.WithLogger(log.New(io.Discard, "", 0)))
	return newServerFor(t, svc, opts...)
}

func newServerFor(t *testing.T, svc *domain.Service, opts ...Option) *httptest.Server {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	mux := http.NewServeMux()
	NewHandler(svc, opts...).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestGetDataOnEmptyStore(t *testing.T) {
	srv := newTestServer(t, memory.NewStore())

	resp, err := http.Get(srv.URL + "/api/data")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	require.Equal(t, `"0"`, resp.Header.Get("ETag"))
	body, _ := io.ReadAll(resp.Body)
	require.JSONEq(t, `{"activityEntries":[],"weightEntries":[]}`, string(body))
}

func TestPostDataMergesByDay(t *testing.T) {
	srv := newTestServer(t, memory.NewStore())

	resp := postJSON(t, srv.URL+"/api/data", `{"weightEntries":[{"date":"2026-01-05T06:00:00Z","weight":90}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/api/data", `{
		"activityEntries":[{"date":"2026-01-06T06:00:00Z","distance":6,"time":36,"avgHeartRate":150}],
		"weightEntries":[{"date":"2026-01-05T20:00:00Z","weight":88}]
	}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var submitted SubmitResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&submitted))
	require.True(t, submitted.Success)
	require.Equal(t, int64(2), submitted.Version)
	require.Equal(t, 1, submitted.ActivityCount)
	require.Equal(t, 1, submitted.WeightCount)

	var snap domain.Snapshot
	getJSON(t, srv.URL+"/api/data", &snap)
	require.Len(t, snap.WeightEntries, 1)
	require.Equal(t, 88.0, snap.WeightEntries[0].Weight)
	require.Len(t, snap.ActivityEntries, 1)
	require.Equal(t, 6.0, snap.ActivityEntries[0].Pace)
}

func TestPostDataRejectsInvalidEntries(t *testing.T) {
	srv := newTestServer(t, memory.NewStore())

	resp := postJSON(t, srv.URL+"/api/data", `{"activityEntries":[{"date":"2026-01-06T06:00:00Z","distance":0,"time":30}]}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var problem map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&problem))
	require.Equal(t, "validation_failed", problem["type"])
	require.Contains(t, problem["detail"], "activityEntries[0].distance must be > 0")

	resp = postJSON(t, srv.URL+"/api/data", `[1,2,3]`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var snap domain.Snapshot
	getJSON(t, srv.URL+"/api/data", &snap)
	require.Empty(t, snap.ActivityEntries, "rejected payloads are not stored")
}

func TestPostDataTreatsMissingArraysAsEmpty(t *testing.T) {
	srv := newTestServer(t, memory.NewStore())

	resp := postJSON(t, srv.URL+"/api/data", `{"weightEntries":"nope"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPostDataAcceptsBareDays(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	svc := domain.NewService(memory.NewStore(), domain.WithLocation(loc), domain.WithLogger(log.New(io.Discard, "", 0)))
	srv := newServerFor(t, svc)

	resp := postJSON(t, srv.URL+"/api/data", `{"weightEntries":[{"date":"2026-01-05","weight":88}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap domain.Snapshot
	getJSON(t, srv.URL+"/api/data", &snap)
	require.Len(t, snap.WeightEntries, 1)
	require.Equal(t, 88.0, snap.WeightEntries[0].Weight)
	require.True(t, time.Date(2026, 1, 5, 5, 0, 0, 0, time.UTC).Equal(snap.WeightEntries[0].Date))

	resp = postJSON(t, srv.URL+"/api/data", `{"weightEntries":[{"date":"05/01/2026","weight":88}]}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func postIfMatch(t *testing.T, url, etag, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("If-Match", etag)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestPostDataRejectsStaleIfMatch(t *testing.T) {
	srv := newTestServer(t, memory.NewStore())

	resp := postIfMatch(t, srv.URL+"/api/data", `"0"`, `{"weightEntries":[{"date":"2026-01-05T06:00:00Z","weight":90}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, `"1"`, resp.Header.Get("ETag"))

	// A writer still holding version 0 must not overwrite version 1.
	resp = postIfMatch(t, srv.URL+"/api/data", `"0"`, `{"weightEntries":[{"date":"2026-01-05T06:00:00Z","weight":70}]}`)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = postIfMatch(t, srv.URL+"/api/data", `W/"1"`, `{"weightEntries":[{"date":"2026-01-05T06:00:00Z","weight":89}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postIfMatch(t, srv.URL+"/api/data", `*`, `{"weightEntries":[]}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var snap domain.Snapshot
	getJSON(t, srv.URL+"/api/data", &snap)
	require.Len(t, snap.WeightEntries, 1)
	require.Equal(t, 89.0, snap.WeightEntries[0].Weight)
}

func TestGetDataHonoursIfNoneMatch(t *testing.T) {
	srv := newTestServer(t, memory.NewStore(domain.EmptySnapshot()))

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/data", nil)
	require.NoError(t, err)
	req.Header.Set("If-None-Match", `"1"`)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotModified, resp.StatusCode)
}

type failingStore struct{ err error }

func (s failingStore) Load(context.Context) (domain.Snapshot, error) { return domain.Snapshot{}, s.err }

func (s failingStore) Save(context.Context, domain.Snapshot, domain.Mutation) (domain.Snapshot, error) {
	return domain.Snapshot{}, s.err
}

func TestGetDataFallsBackToCache(t *testing.T) {
	cache := memory.NewStore(domain.Snapshot{
		WeightEntries: []domain.WeightEntry{{Date: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), Weight: 90}},
	})
	cache.Unconditional = true
	svc := domain.NewService(failingStore{err: errors.New("connection refused")},
		domain.WithLocalCache(cache), domain.WithLogger(log.New(io.Discard, "", 0)))
	srv := newServerFor(t, svc)

	var snap domain.Snapshot
	resp := getJSON(t, srv.URL+"/api/data", &snap)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "true", resp.Header.Get("X-Runlog-Stale"))
	require.Len(t, snap.WeightEntries, 1)

	post := postJSON(t, srv.URL+"/api/data", `{"weightEntries":[{"date":"2026-01-06T00:00:00Z","weight":89}]}`)
	require.Equal(t, http.StatusInternalServerError, post.StatusCode)
}

func TestGetDataWithoutCacheFails(t *testing.T) {
	srv := newTestServer(t, failingStore{err: errors.New("connection refused")})

	resp := getJSON(t, srv.URL+"/api/data", nil)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestCalendarMonth(t *testing.T) {
	store := memory.NewStore(domain.Snapshot{
		ActivityEntries: []domain.ActivityEntry{
			{Date: time.Date(2026, 1, 6, 6, 0, 0, 0, time.UTC), Distance: 6.2, Time: 37, Pace: 5.97},
		},
		WeightEntries: []domain.WeightEntry{{Date: time.Date(2026, 1, 5, 7, 0, 0, 0, time.UTC), Weight: 90}},
	})
	highlight := calendar.HighlightRange{Label: "Training block", Start: timeutil.NewDate(2026, 1, 5), End: timeutil.NewDate(2026, 1, 11)}
	srv := newTestServer(t, store, WithHighlights([]calendar.HighlightRange{highlight}))

	var cal CalendarResponse
	resp := getJSON(t, srv.URL+"/api/calendar?year=2026&month=1", &cal)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, cal.Weeks, 5)
	require.Equal(t, timeutil.NewDate(2025, 12, 28), cal.Weeks[0][0].Date)

	tuesday := cal.Weeks[1][2]
	require.Equal(t, timeutil.NewDate(2026, 1, 6), tuesday.Date)
	require.NotNil(t, tuesday.Activity)
	require.Equal(t, 6.2, tuesday.Activity.Distance)
	require.NotNil(t, tuesday.TargetDistance)
	require.Equal(t, 6.0, *tuesday.TargetDistance)
	require.True(t, tuesday.IsPast)
	require.Equal(t, []string{"Training block"}, tuesday.Highlights)

	today := cal.Weeks[2][3]
	require.True(t, today.IsToday)
	require.False(t, today.IsPast)
	require.Equal(t, 1, cal.Summary.TotalRuns)
}

func TestCalendarRejectsBadMonth(t *testing.T) {
	srv := newTestServer(t, memory.NewStore())

	resp := getJSON(t, srv.URL+"/api/calendar?year=2026&month=13", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSummaryScopes(t *testing.T) {
	store := memory.NewStore(domain.Snapshot{
		ActivityEntries: []domain.ActivityEntry{
			{Date: time.Date(2025, 12, 30, 6, 0, 0, 0, time.UTC), Distance: 5, Time: 30, Pace: 6},
			{Date: time.Date(2026, 1, 6, 6, 0, 0, 0, time.UTC), Distance: 10, Time: 55, Pace: 5.5},
			{Date: time.Date(2026, 2, 7, 6, 0, 0, 0, time.UTC), Distance: 21.1, Time: 120, Pace: 5.69},
			{Date: time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC), Distance: 7, Kind: domain.KindTarget},
		},
	})
	srv := newTestServer(t, store)

	var all, year, month SummaryResponse
	getJSON(t, srv.URL+"/api/summary", &all)
	getJSON(t, srv.URL+"/api/summary?year=2026", &year)
	getJSON(t, srv.URL+"/api/summary?year=2026&month=2", &month)

	require.Equal(t, "all", all.Scope)
	require.Equal(t, 3, all.Summary.TotalRuns)
	require.Equal(t, 1, all.Summary.HalfMarathons)

	require.Equal(t, "year", year.Scope)
	require.Equal(t, 2, year.Summary.TotalRuns)

	require.Equal(t, "month", month.Scope)
	require.Equal(t, 2, month.Month)
	require.Equal(t, 1, month.Summary.TotalRuns)
	require.Equal(t, 21.1, month.Summary.LongestRun)
}

func TestTargets(t *testing.T) {
	srv := newTestServer(t, memory.NewStore())

	var one TargetResponse
	getJSON(t, srv.URL+"/api/targets?date=2026-01-06", &one)
	require.True(t, one.Scheduled)
	require.Equal(t, 6.0, *one.Distance)

	var none TargetResponse
	getJSON(t, srv.URL+"/api/targets?date=2026-04-01", &none)
	require.False(t, none.Scheduled)
	require.Nil(t, none.Distance)

	var all TargetsResponse
	getJSON(t, srv.URL+"/api/targets", &all)
	require.Equal(t, "training-plan-2026-q1", all.Source)
	require.Len(t, all.Targets, 50)

	resp := getJSON(t, srv.URL+"/api/targets?date=06/01/2026", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProgress(t *testing.T) {
	store := memory.NewStore(domain.Snapshot{
		ActivityEntries: []domain.ActivityEntry{
			{Date: time.Date(2026, 1, 6, 6, 0, 0, 0, time.UTC), Distance: 100, Time: 600, Pace: 6},
		},
		WeightEntries: []domain.WeightEntry{
			{Date: time.Date(2026, 1, 1, 7, 0, 0, 0, time.UTC), Weight: 90},
			{Date: time.Date(2026, 1, 12, 7, 0, 0, 0, time.UTC), Weight: 89},
		},
	})
	srv := newTestServer(t, store, WithGoals(Goals{StartWeight: 91.5, TargetWeight: 80, MonthlyWeightLoss: 2, DistanceGoalKm: 1000}))

	var progress ProgressResponse
	getJSON(t, srv.URL+"/api/progress", &progress)
	require.Equal(t, 2026, progress.Year)
	require.Equal(t, 1, progress.Month)
	require.Equal(t, 89.0, progress.Weight.Current)
	require.InDelta(t, 2.5/11.5*100, progress.Weight.Progress, 0.001)
	require.NotNil(t, progress.MonthlyWeight)
	require.Equal(t, 90.0, progress.MonthlyWeight.Start)
	require.Equal(t, 88.0, progress.MonthlyWeight.Target)
	require.InDelta(t, 50, progress.MonthlyWeight.Progress, 0.001)
	require.InDelta(t, 10, progress.Distance.Progress, 0.001)
	require.Equal(t, 900.0, progress.Distance.Remaining)

	var february ProgressResponse
	getJSON(t, srv.URL+"/api/progress?month=2", &february)
	require.Nil(t, february.MonthlyWeight)
}

func TestCountdown(t *testing.T) {
	srv := newTestServer(t, memory.NewStore())
	resp := getJSON(t, srv.URL+"/api/countdown", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	srv = newTestServer(t, memory.NewStore(), WithCountdown(start, end))

	var view calendar.CountdownView
	resp = getJSON(t, srv.URL+"/api/countdown", &view)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 16, view.Days)
	require.Equal(t, 14, view.Hours)
	require.Equal(t, 30, view.Minutes)
	require.False(t, view.Finished)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, memory.NewStore())

	for _, path := range []string{"/api/data", "/api/calendar", "/api/summary", "/api/targets", "/api/progress", "/api/countdown"} {
		req, err := http.NewRequest(http.MethodDelete, srv.URL+path, nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode, path)
	}
}
