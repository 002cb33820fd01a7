// Package calendar buckets run log entries into calendar grids, plans and summaries.
// Everything here is a pure function of its inputs.
package calendar

import (
	"time"

	"example.com/runlog/internal/domain"
	"example.com/runlog/internal/timeutil"
)

// HighlightRange labels a span of days. Both ends are inclusive unless ExcludeEnd is set.
type HighlightRange struct {
	Label      string        `json:"label"`
	Start      timeutil.Date `json:"start"`
	End        timeutil.Date `json:"end"`
	ExcludeEnd bool          `json:"excludeEnd,omitempty"`
}

// Contains reports whether d falls inside the range.
func (r HighlightRange) Contains(d timeutil.Date) bool {
	if d.Before(r.Start) {
		return false
	}
	if r.ExcludeEnd {
		return d.Before(r.End)
	}
	return !d.After(r.End)
}

// Day is one cell of a month grid.
type Day struct {
	Date           timeutil.Date         `json:"date"`
	DayOfMonth     int                   `json:"dayOfMonth"`
	IsCurrentMonth bool                  `json:"isCurrentMonth"`
	IsPast         bool                  `json:"isPast"`
	IsToday        bool                  `json:"isToday"`
	Highlights     []string              `json:"highlights,omitempty"`
	IsOverlapping  bool                  `json:"isOverlapping"`
	Activity       *domain.ActivityEntry `json:"activity,omitempty"`
	Weight         *domain.WeightEntry   `json:"weight,omitempty"`
	TargetDistance *float64              `json:"targetDistance,omitempty"`
}

// Index looks entries up by calendar day.
type Index struct {
	activities map[timeutil.Date]domain.ActivityEntry
	targets    map[timeutil.Date]domain.ActivityEntry
	weights    map[timeutil.Date]domain.WeightEntry
}

// NewIndex buckets a snapshot by day in loc. Target entries are kept apart from completed runs.
func NewIndex(snap domain.Snapshot, loc *time.Location) Index {
	idx := Index{
		activities: make(map[timeutil.Date]domain.ActivityEntry, len(snap.ActivityEntries)),
		targets:    make(map[timeutil.Date]domain.ActivityEntry),
		weights:    make(map[timeutil.Date]domain.WeightEntry, len(snap.WeightEntries)),
	}
	for _, e := range snap.ActivityEntries {
		if e.IsTarget() {
			idx.targets[e.Day(loc)] = e
			continue
		}
		idx.activities[e.Day(loc)] = e
	}
	for _, e := range snap.WeightEntries {
		idx.weights[e.Day(loc)] = e
	}
	return idx
}

// Activity returns the completed run on d.
func (idx Index) Activity(d timeutil.Date) (domain.ActivityEntry, bool) {
	e, ok := idx.activities[d]
	return e, ok
}

// Target returns the stored target entry on d.
func (idx Index) Target(d timeutil.Date) (domain.ActivityEntry, bool) {
	e, ok := idx.targets[d]
	return e, ok
}

// Weight returns the weight reading on d.
func (idx Index) Weight(d timeutil.Date) (domain.WeightEntry, bool) {
	e, ok := idx.weights[d]
	return e, ok
}

// GridBounds returns the Sunday on or before the 1st and the Saturday on or after the last day of the month.
func GridBounds(year int, month time.Month) (timeutil.Date, timeutil.Date) {
	first := timeutil.NewDate(year, month, 1)
	last := timeutil.NewDate(year, month+1, 0)
	start := first.AddDays(-int(first.Weekday()))
	end := last.AddDays(int(time.Saturday - last.Weekday()))
	return start, end
}

// ClassifyMonth builds the Sunday-first grid for year/month. Each cell is
// flagged against today, tagged with every highlight range containing it and
// joined with the entries recorded on that day.
func ClassifyMonth(year int, month time.Month, today timeutil.Date, highlights []HighlightRange, idx Index) []Day {
	start, end := GridBounds(year, month)
	days := make([]Day, 0, start.DaysUntil(end)+1)

	for d := start; !d.After(end); d = d.AddDays(1) {
		cell := Day{
			Date:           d,
			DayOfMonth:     d.Day,
			IsCurrentMonth: d.SameMonth(year, month),
			IsPast:         d.Before(today),
			IsToday:        d == today,
		}
		for _, r := range highlights {
			if r.Contains(d) {
				cell.Highlights = append(cell.Highlights, r.Label)
			}
		}
		cell.IsOverlapping = !cell.IsCurrentMonth && len(cell.Highlights) > 0

		if e, ok := idx.Activity(d); ok {
			cell.Activity = &e
		}
		if e, ok := idx.Weight(d); ok {
			cell.Weight = &e
		}
		if e, ok := idx.Target(d); ok {
			km := e.Distance
			cell.TargetDistance = &km
		}
		days = append(days, cell)
	}
	return days
}

// AttachPlan sets TargetDistance from plan on every cell that has no stored target.
func AttachPlan(days []Day, plan Plan) {
	for i := range days {
		if days[i].TargetDistance != nil {
			continue
		}
		if km, ok := plan.TargetFor(days[i].Date); ok {
			days[i].TargetDistance = &km
		}
	}
}

// Weeks splits a grid into rows of seven.
func Weeks(days []Day) [][]Day {
	rows := make([][]Day, 0, len(days)/7)
	for i := 0; i+7 <= len(days); i += 7 {
		rows = append(rows, days[i:i+7])
	}
	return rows
}
