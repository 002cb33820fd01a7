package calendar

import (
	"time"

	"example.com/runlog/internal/domain"
	"example.com/runlog/internal/timeutil"
)

// PlanRule schedules Km on Weekday for days between Start and End inclusive.
type PlanRule struct {
	Start   timeutil.Date `json:"start"`
	End     timeutil.Date `json:"end"`
	Weekday time.Weekday  `json:"weekday"`
	Km      float64       `json:"km"`
}

// Plan is an ordered rule list; the first matching rule wins.
type Plan struct {
	Source string     `json:"source"`
	Rules  []PlanRule `json:"rules"`
}

// TargetFor returns the planned distance for d.
func (p Plan) TargetFor(d timeutil.Date) (float64, bool) {
	wd := d.Weekday()
	for _, r := range p.Rules {
		if r.Weekday == wd && d.Between(r.Start, r.End) {
			return r.Km, true
		}
	}
	return 0, false
}

// Bounds returns the first and last day any rule covers.
func (p Plan) Bounds() (timeutil.Date, timeutil.Date) {
	var first, last timeutil.Date
	for i, r := range p.Rules {
		if i == 0 || r.Start.Before(first) {
			first = r.Start
		}
		if i == 0 || r.End.After(last) {
			last = r.End
		}
	}
	return first, last
}

// Targets expands the plan into target entries dated at midnight (in loc) of each scheduled day.
func (p Plan) Targets(loc *time.Location) []domain.ActivityEntry {
	first, last := p.Bounds()
	if first.IsZero() {
		return nil
	}
	var out []domain.ActivityEntry
	for d := first; !d.After(last); d = d.AddDays(1) {
		km, ok := p.TargetFor(d)
		if !ok {
			continue
		}
		out = append(out, domain.ActivityEntry{
			Date:     d.In(loc).UTC(),
			Distance: km,
			Kind:     domain.KindTarget,
			Source:   p.Source,
		})
	}
	return out
}

type week struct {
	monday timeutil.Date
	km     map[time.Weekday]float64
}

func weeklyRules(weeks []week) []PlanRule {
	var rules []PlanRule
	for _, w := range weeks {
		end := w.monday.AddDays(6)
		for _, wd := range []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday} {
			km, ok := w.km[wd]
			if !ok {
				continue
			}
			rules = append(rules, PlanRule{Start: w.monday, End: end, Weekday: wd, Km: km})
		}
	}
	return rules
}

// Q1Plan2026 is the 2026 first-quarter build: three runs a week in January,
// four in February and five in March, ending on 31 March.
func Q1Plan2026() Plan {
	d := func(m time.Month, day int) timeutil.Date { return timeutil.NewDate(2026, m, day) }
	const (
		mon = time.Monday
		tue = time.Tuesday
		wed = time.Wednesday
		thu = time.Thursday
		fri = time.Friday
		sat = time.Saturday
	)

	rules := weeklyRules([]week{
		{d(time.January, 5), map[time.Weekday]float64{tue: 6, thu: 6, sat: 10}},
		{d(time.January, 12), map[time.Weekday]float64{tue: 6, thu: 7, sat: 11}},
		{d(time.January, 19), map[time.Weekday]float64{tue: 7, thu: 7, sat: 12}},
		{d(time.January, 26), map[time.Weekday]float64{tue: 7, thu: 8, sat: 14}},

		{d(time.February, 2), map[time.Weekday]float64{mon: 7, wed: 7, fri: 6, sat: 14}},
		{d(time.February, 9), map[time.Weekday]float64{mon: 7, wed: 8, fri: 7, sat: 15}},
		{d(time.February, 16), map[time.Weekday]float64{mon: 8, wed: 8, fri: 7, sat: 16}},
		{d(time.February, 23), map[time.Weekday]float64{mon: 8, wed: 8, fri: 8, sat: 18}},

		{d(time.March, 2), map[time.Weekday]float64{mon: 7, tue: 8, thu: 7, fri: 6, sat: 18}},
		{d(time.March, 9), map[time.Weekday]float64{mon: 8, tue: 8, thu: 8, fri: 6, sat: 19}},
		{d(time.March, 16), map[time.Weekday]float64{mon: 8, tue: 9, thu: 8, fri: 7, sat: 20}},
		{d(time.March, 23), map[time.Weekday]float64{mon: 8, tue: 9, thu: 8, fri: 8, sat: 21}},
	})
	// Final partial week.
	rules = append(rules,
		PlanRule{Start: d(time.March, 30), End: d(time.March, 31), Weekday: mon, Km: 8},
		PlanRule{Start: d(time.March, 30), End: d(time.March, 31), Weekday: tue, Km: 9},
	)
	return Plan{Source: "training-plan-2026-q1", Rules: rules}
}
