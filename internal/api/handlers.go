// Package api exposes the run log over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/runlog/internal/calendar"
	"example.com/runlog/internal/domain"
	"example.com/runlog/internal/observability"
	"example.com/runlog/internal/timeutil"
)

const maxBodyBytes = 1 << 20

// Goals are the fixed targets progress is measured against.
type Goals struct {
	StartWeight       float64
	TargetWeight      float64
	MonthlyWeightLoss float64
	DistanceGoalKm    float64
}

// Option configures a Handler.
type Option func(*Handler)

// WithHighlights sets the labelled ranges shown on the calendar.
func WithHighlights(ranges []calendar.HighlightRange) Option {
	return func(h *Handler) {
		h.highlights = ranges
	}
}

// WithPlan sets the training plan used for targets.
func WithPlan(plan calendar.Plan) Option {
	return func(h *Handler) {
		h.plan = plan
	}
}

// WithGoals sets the progress goals.
func WithGoals(goals Goals) Option {
	return func(h *Handler) {
		h.goals = goals
	}
}

// WithCountdown enables /api/countdown for the window [start, end].
func WithCountdown(start, end time.Time) Option {
	return func(h *Handler) {
		h.countdownStart, h.countdownEnd = start, end
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		h.now = now
	}
}

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service        *domain.Service
	highlights     []calendar.HighlightRange
	plan           calendar.Plan
	goals          Goals
	countdownStart time.Time
	countdownEnd   time.Time
	now            func() time.Time
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, opts ...Option) *Handler {
	h := &Handler{
		service: service,
		plan:    calendar.Q1Plan2026(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/data", h.data)
	mux.HandleFunc("/api/calendar", h.calendarMonth)
	mux.HandleFunc("/api/summary", h.summary)
	mux.HandleFunc("/api/targets", h.targets)
	mux.HandleFunc("/api/progress", h.progress)
	mux.HandleFunc("/api/countdown", h.countdown)
	mux.HandleFunc("/healthz", healthz)
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) data(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getData(w, r)
	case http.MethodPost:
		h.postData(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) getData(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "failed to load data: "+err.Error())
		return
	}

	etag := formatETag(res.Snapshot.Version)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("ETag", etag)
	if res.Stale {
		w.Header().Set("X-Runlog-Stale", "true")
	} else if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, res.Snapshot)
}

func (h *Handler) postData(w http.ResponseWriter, r *http.Request) {
	payload, err := domain.DecodePayload(http.MaxBytesReader(w, r.Body, maxBodyBytes), h.service.Location())
	if err != nil {
		observability.RecordSubmit("invalid")
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	delta, err := payload.Snapshot()
	if err != nil {
		observability.RecordSubmit("invalid")
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	var res domain.SubmitResult
	if raw := r.Header.Get("If-Match"); raw != "" {
		expected, ok := parseETag(raw)
		if !ok {
			observability.RecordSubmit("invalid")
			writeError(w, http.StatusBadRequest, "invalid_request", "If-Match must be a quoted snapshot version")
			return
		}
		res, err = h.service.SubmitIfVersion(r.Context(), delta, expected)
	} else {
		res, err = h.service.Submit(r.Context(), delta)
	}
	if err != nil {
		observability.RecordSubmit("error")
		if errors.Is(err, domain.ErrVersionConflict) {
			writeError(w, http.StatusConflict, "conflict", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", "failed to save data: "+err.Error())
		return
	}
	observability.RecordSubmit("ok")

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("ETag", formatETag(res.Snapshot.Version))
	writeJSON(w, http.StatusOK, SubmitResponse{
		Success:       true,
		Version:       res.Snapshot.Version,
		ActivityCount: len(res.Snapshot.ActivityEntries),
		WeightCount:   len(res.Snapshot.WeightEntries),
		Dropped:       res.Dropped,
	})
}

func (h *Handler) calendarMonth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	loc := h.service.Location()
	today := timeutil.Today(h.now(), loc)
	year, month, _, err := parseYearMonth(r, today)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	res, err := h.service.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	days := calendar.ClassifyMonth(year, month, today, h.highlights, calendar.NewIndex(res.Snapshot, loc))
	calendar.AttachPlan(days, h.plan)
	writeJSON(w, http.StatusOK, CalendarResponse{
		Year:    year,
		Month:   int(month),
		Weeks:   calendar.Weeks(days),
		Summary: calendar.MonthlySummary(res.Snapshot.ActivityEntries, year, month, loc),
		Stale:   res.Stale,
	})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	loc := h.service.Location()
	year, month, hasMonth, err := parseYearMonth(r, timeutil.Today(h.now(), loc))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	res, err := h.service.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	entries := res.Snapshot.ActivityEntries
	resp := SummaryResponse{Stale: res.Stale}
	switch {
	case r.URL.Query().Get("year") == "":
		resp.Scope = "all"
		resp.Summary = calendar.Totals(entries)
	case hasMonth:
		resp.Scope = "month"
		resp.Year, resp.Month = year, int(month)
		resp.Summary = calendar.MonthlySummary(entries, year, month, loc)
	default:
		resp.Scope = "year"
		resp.Year = year
		resp.Summary = calendar.YearlySummary(entries, year, loc)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) targets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	raw := r.URL.Query().Get("date")
	if raw == "" {
		writeJSON(w, http.StatusOK, TargetsResponse{Source: h.plan.Source, Targets: h.plan.Targets(h.service.Location())})
		return
	}

	day, err := timeutil.ParseDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "date must be YYYY-MM-DD")
		return
	}
	km, ok := h.plan.TargetFor(day)
	resp := TargetResponse{Date: day, Scheduled: ok}
	if ok {
		resp.Distance = &km
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) progress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	loc := h.service.Location()
	year, month, _, err := parseYearMonth(r, timeutil.Today(h.now(), loc))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	res, err := h.service.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	current := h.goals.StartWeight
	if latest, ok := calendar.LatestWeight(res.Snapshot.WeightEntries); ok {
		current = latest.Weight
	}
	resp := ProgressResponse{
		Year:     year,
		Month:    int(month),
		Weight:   calendar.NewWeightProgress(h.goals.StartWeight, h.goals.TargetWeight, current),
		Distance: calendar.NewDistanceProgress(calendar.YearlySummary(res.Snapshot.ActivityEntries, year, loc).TotalDistance, h.goals.DistanceGoalKm),
		Stale:    res.Stale,
	}
	if monthly, ok := calendar.MonthlyWeightProgress(res.Snapshot.WeightEntries, year, month, h.goals.MonthlyWeightLoss, loc); ok {
		resp.MonthlyWeight = &monthly
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) countdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if h.countdownStart.IsZero() || h.countdownEnd.IsZero() {
		writeError(w, http.StatusNotFound, "not_configured", "no countdown configured")
		return
	}
	writeJSON(w, http.StatusOK, calendar.Countdown(h.countdownStart, h.countdownEnd, h.now(), h.service.Location()))
}

// parseYearMonth reads ?year and ?month, defaulting to today's.
func parseYearMonth(r *http.Request, today timeutil.Date) (int, time.Month, bool, error) {
	year, month := today.Year, today.Month
	q := r.URL.Query()

	if raw := q.Get("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 9999 {
			return 0, 0, false, fmt.Errorf("year must be a number between 1 and 9999")
		}
		year = parsed
	}

	raw := q.Get("month")
	if raw == "" {
		return year, month, false, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 1 || parsed > 12 {
		return 0, 0, false, fmt.Errorf("month must be a number between 1 and 12")
	}
	return year, time.Month(parsed), true, nil
}

func formatETag(version int64) string {
	return `"` + strconv.FormatInt(version, 10) + `"`
}

func parseETag(raw string) (int64, bool) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "W/")
	if len(raw) < 2 || raw[0] != '"' || raw[len(raw)-1] != '"' {
		return 0, false
	}
	v, err := strconv.ParseInt(raw[1:len(raw)-1], 10, 64)
	return v, err == nil && v >= 0
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
