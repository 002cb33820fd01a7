package domain

import (
	"time"

	"example.com/runlog/internal/timeutil"
)

// KindTarget marks an activity entry that records a planned distance rather than a completed run.
const KindTarget = "target"

// ActivityEntry is one recorded (or planned) run keyed by its calendar day.
type ActivityEntry struct {
	Date         time.Time `json:"date"`
	Distance     float64   `json:"distance"`
	Time         float64   `json:"time"`
	Pace         float64   `json:"pace"`
	AvgHeartRate int       `json:"avgHeartRate"`
	MaxHeartRate int       `json:"maxHeartRate"`
	VO2Max       int       `json:"vo2Max"`
	Kind         string    `json:"kind,omitempty"`
	Source       string    `json:"source,omitempty"`
}

// IsTarget reports whether the entry is a planned target.
func (e ActivityEntry) IsTarget() bool {
	return e.Kind == KindTarget
}

// Day returns the calendar day of the entry in loc.
func (e ActivityEntry) Day(loc *time.Location) timeutil.Date {
	return timeutil.DateOf(e.Date, loc)
}

// WeightEntry is one body-weight reading in kilograms.
type WeightEntry struct {
	Date   time.Time `json:"date"`
	Weight float64   `json:"weight"`
}

// Day returns the calendar day of the entry in loc.
func (e WeightEntry) Day(loc *time.Location) timeutil.Date {
	return timeutil.DateOf(e.Date, loc)
}

// Snapshot is the full persisted state. Version is 0 for a snapshot that has never been stored.
type Snapshot struct {
	ActivityEntries []ActivityEntry `json:"activityEntries"`
	WeightEntries   []WeightEntry   `json:"weightEntries"`
	Version         int64           `json:"-"`
}

// EmptySnapshot returns a snapshot with non-nil empty collections.
func EmptySnapshot() Snapshot {
	return Snapshot{
		ActivityEntries: []ActivityEntry{},
		WeightEntries:   []WeightEntry{},
	}
}

// Normalize replaces nil collections with empty ones.
func (s Snapshot) Normalize() Snapshot {
	if s.ActivityEntries == nil {
		s.ActivityEntries = []ActivityEntry{}
	}
	if s.WeightEntries == nil {
		s.WeightEntries = []WeightEntry{}
	}
	return s
}

// Runs returns the completed (non-target) activity entries.
func (s Snapshot) Runs() []ActivityEntry {
	out := make([]ActivityEntry, 0, len(s.ActivityEntries))
	for _, e := range s.ActivityEntries {
		if !e.IsTarget() {
			out = append(out, e)
		}
	}
	return out
}

// Mutation describes why a snapshot is being saved. Stores that publish change events use it.
type Mutation struct {
	Reason             string
	IncomingActivities int
	IncomingWeights    int
	Dropped            int
}

// Mutation reasons.
const (
	ReasonSubmit    = "submit"
	ReasonRetention = "retention"
)
