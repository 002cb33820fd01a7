package calendar

import (
	"sort"
	"time"

	"example.com/runlog/internal/domain"
	"example.com/runlog/internal/timeutil"
)

// ProgressFraction returns how far current has moved from start toward target,
// as a percentage clamped to [0,100]. It works for decreasing goals (weight)
// and increasing ones. A zero-length goal reports 0.
func ProgressFraction(current, start, target float64) float64 {
	span := target - start
	if span == 0 {
		return 0
	}
	return clamp01((current-start)/span) * 100
}

// GoalProgress is ProgressFraction for an increasing goal that starts at zero.
func GoalProgress(current, goal float64) float64 {
	return ProgressFraction(current, 0, goal)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// WeightProgress describes movement toward a weight target.
type WeightProgress struct {
	Start    float64 `json:"start"`
	Target   float64 `json:"target"`
	Current  float64 `json:"current"`
	Change   float64 `json:"change"`
	Progress float64 `json:"progress"`
}

// NewWeightProgress computes progress from start to target given the current weight.
func NewWeightProgress(start, target, current float64) WeightProgress {
	return WeightProgress{
		Start:    start,
		Target:   target,
		Current:  current,
		Change:   start - current,
		Progress: ProgressFraction(current, start, target),
	}
}

// LatestWeight returns the most recent reading.
func LatestWeight(entries []domain.WeightEntry) (domain.WeightEntry, bool) {
	if len(entries) == 0 {
		return domain.WeightEntry{}, false
	}
	latest := entries[0]
	for _, e := range entries[1:] {
		if e.Date.After(latest.Date) {
			latest = e
		}
	}
	return latest, true
}

// MonthlyWeightProgress measures a month against a fixed loss goal. The start is
// the reading on the 1st, or else the earliest reading of the month; the current
// weight is the latest reading. ok is false when the month has no readings.
func MonthlyWeightProgress(entries []domain.WeightEntry, year int, month time.Month, lossGoal float64, loc *time.Location) (WeightProgress, bool) {
	var inMonth []domain.WeightEntry
	for _, e := range entries {
		if e.Day(loc).SameMonth(year, month) {
			inMonth = append(inMonth, e)
		}
	}
	if len(inMonth) == 0 {
		return WeightProgress{}, false
	}
	sort.SliceStable(inMonth, func(i, j int) bool { return inMonth[i].Date.Before(inMonth[j].Date) })

	start := inMonth[0].Weight
	first := timeutil.NewDate(year, month, 1)
	for _, e := range inMonth {
		if e.Day(loc) == first {
			start = e.Weight
			break
		}
	}
	current := inMonth[len(inMonth)-1].Weight
	return NewWeightProgress(start, start-lossGoal, current), true
}

// DistanceProgress describes total distance against a goal.
type DistanceProgress struct {
	Total     float64 `json:"total"`
	Goal      float64 `json:"goal"`
	Remaining float64 `json:"remaining"`
	Progress  float64 `json:"progress"`
}

// NewDistanceProgress computes progress toward an increasing distance goal.
func NewDistanceProgress(total, goal float64) DistanceProgress {
	remaining := goal - total
	if remaining < 0 {
		remaining = 0
	}
	return DistanceProgress{Total: total, Goal: goal, Remaining: remaining, Progress: GoalProgress(total, goal)}
}
