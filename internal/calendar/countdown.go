package calendar

import (
	"time"

	"example.com/runlog/internal/timeutil"
)

// CountdownDay is one day of the countdown window.
type CountdownDay struct {
	Date   timeutil.Date `json:"date"`
	IsPast bool          `json:"isPast"`
}

// CountdownView is the state of a fixed window at a given instant.
type CountdownView struct {
	Start    time.Time      `json:"start"`
	End      time.Time      `json:"end"`
	Days     int            `json:"daysLeft"`
	Hours    int            `json:"hoursLeft"`
	Minutes  int            `json:"minutesLeft"`
	Progress float64        `json:"progress"`
	Finished bool           `json:"finished"`
	Window   []CountdownDay `json:"days"`
}

// Countdown reports the time remaining until end and how much of [start,end] has elapsed.
func Countdown(start, end, now time.Time, loc *time.Location) CountdownView {
	view := CountdownView{Start: start, End: end}

	remaining := end.Sub(now)
	if remaining <= 0 {
		view.Finished = true
		remaining = 0
	}
	view.Days = int(remaining / (24 * time.Hour))
	view.Hours = int(remaining%(24*time.Hour)) / int(time.Hour)
	view.Minutes = int(remaining%time.Hour) / int(time.Minute)

	total := end.Sub(start)
	if total > 0 {
		view.Progress = clamp01(float64(now.Sub(start))/float64(total)) * 100
	}

	today := timeutil.Today(now, loc)
	last := timeutil.DateOf(end, loc)
	for d := timeutil.DateOf(start, loc); !d.After(last); d = d.AddDays(1) {
		view.Window = append(view.Window, CountdownDay{Date: d, IsPast: d.Before(today)})
	}
	return view
}
