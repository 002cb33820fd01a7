package calendar

import (
	"time"

	"example.com/runlog/internal/domain"
	"example.com/runlog/internal/timeutil"
)

// HalfMarathonKm is the distance at or above which a run counts as a half marathon.
const HalfMarathonKm = 21.1

// Summary aggregates completed runs. Averages of empty sets are zero.
type Summary struct {
	TotalDistance float64 `json:"totalDistance"`
	TotalTime     float64 `json:"totalTime"`
	TotalRuns     int     `json:"totalRuns"`
	AvgPace       float64 `json:"avgPace"`
	AvgHeartRate  float64 `json:"avgHeartRate"`
	MaxHeartRate  int     `json:"maxHeartRate"`
	AvgVO2Max     float64 `json:"avgVo2Max"`
	LongestRun    float64 `json:"longestRun"`
	HalfMarathons int     `json:"halfMarathons"`
}

// MonthlySummary aggregates the completed runs dated in year/month (in loc).
func MonthlySummary(entries []domain.ActivityEntry, year int, month time.Month, loc *time.Location) Summary {
	return summarize(entries, func(d timeutil.Date) bool { return d.SameMonth(year, month) }, loc)
}

// YearlySummary aggregates the completed runs dated in year.
func YearlySummary(entries []domain.ActivityEntry, year int, loc *time.Location) Summary {
	return summarize(entries, func(d timeutil.Date) bool { return d.Year == year }, loc)
}

// Totals aggregates every completed run.
func Totals(entries []domain.ActivityEntry) Summary {
	return summarize(entries, func(timeutil.Date) bool { return true }, time.UTC)
}

func summarize(entries []domain.ActivityEntry, include func(timeutil.Date) bool, loc *time.Location) Summary {
	var (
		s             Summary
		hrSum, vo2Sum float64
	)
	for _, e := range entries {
		if e.IsTarget() || !include(e.Day(loc)) {
			continue
		}
		s.TotalRuns++
		s.TotalDistance += e.Distance
		s.TotalTime += e.Time
		hrSum += float64(e.AvgHeartRate)
		if e.MaxHeartRate > s.MaxHeartRate {
			s.MaxHeartRate = e.MaxHeartRate
		}
		vo2Sum += float64(e.VO2Max)
		if e.Distance > s.LongestRun {
			s.LongestRun = e.Distance
		}
		if e.Distance >= HalfMarathonKm {
			s.HalfMarathons++
		}
	}

	if s.TotalDistance > 0 {
		s.AvgPace = s.TotalTime / s.TotalDistance
	}
	// Unrecorded readings are zero and count toward the mean.
	if s.TotalRuns > 0 {
		s.AvgHeartRate = hrSum / float64(s.TotalRuns)
		s.AvgVO2Max = vo2Sum / float64(s.TotalRuns)
	}
	return s
}
