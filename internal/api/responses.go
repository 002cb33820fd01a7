package api

import (
	"example.com/runlog/internal/calendar"
	"example.com/runlog/internal/domain"
	"example.com/runlog/internal/timeutil"
)

// SubmitResponse is returned by POST /api/data.
type SubmitResponse struct {
	Success       bool  `json:"success"`
	Version       int64 `json:"version"`
	ActivityCount int   `json:"activityCount"`
	WeightCount   int   `json:"weightCount"`
	Dropped       int   `json:"dropped"`
}

// CalendarResponse is a month grid split into weeks.
type CalendarResponse struct {
	Year    int              `json:"year"`
	Month   int              `json:"month"`
	Weeks   [][]calendar.Day `json:"weeks"`
	Summary calendar.Summary `json:"summary"`
	Stale   bool             `json:"stale,omitempty"`
}

// SummaryResponse carries a summary for the requested scope: all, year or month.
type SummaryResponse struct {
	Scope   string           `json:"scope"`
	Year    int              `json:"year,omitempty"`
	Month   int              `json:"month,omitempty"`
	Summary calendar.Summary `json:"summary"`
	Stale   bool             `json:"stale,omitempty"`
}

// TargetsResponse lists every planned target.
type TargetsResponse struct {
	Source  string                 `json:"source"`
	Targets []domain.ActivityEntry `json:"targets"`
}

// TargetResponse is the plan lookup for a single day.
type TargetResponse struct {
	Date      timeutil.Date `json:"date"`
	Scheduled bool          `json:"scheduled"`
	Distance  *float64      `json:"distance,omitempty"`
}

// ProgressResponse groups weight and distance progress.
type ProgressResponse struct {
	Year          int                       `json:"year"`
	Month         int                       `json:"month"`
	Weight        calendar.WeightProgress   `json:"weight"`
	MonthlyWeight *calendar.WeightProgress  `json:"monthlyWeight,omitempty"`
	Distance      calendar.DistanceProgress `json:"distance"`
	Stale         bool                      `json:"stale,omitempty"`
}
