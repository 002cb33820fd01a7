// Package render prints run log views to a terminal.
package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"example.com/runlog/internal/calendar"
	"example.com/runlog/internal/domain"
	"example.com/runlog/internal/timeutil"
)

const cellWidth = 8

var (
	title    = color.New(color.Bold, color.Underline)
	faint    = color.New(color.Faint)
	ran      = color.New(color.Bold, color.FgGreen)
	planned  = color.New(color.FgYellow)
	missed   = color.New(color.FgRed)
	today    = color.New(color.Bold, color.Underline)
	plain    = color.New()
	progress = color.New(color.FgCyan)
)

// Calendar prints a Sunday-first month grid. Each cell shows the day number and
// the distance run, or the planned distance when nothing was recorded.
func Calendar(w io.Writer, year int, month time.Month, weeks [][]calendar.Day) {
	heading := fmt.Sprintf("%s %d", month, year)
	mid := (cellWidth*7 - len(heading)) / 2
	_, _ = title.Fprintf(w, "%s%s\n", strings.Repeat(" ", mid), heading)

	for _, wd := range []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"} {
		_, _ = faint.Fprintf(w, "%-*s", cellWidth, wd)
	}
	_, _ = fmt.Fprintln(w)

	for _, week := range weeks {
		for _, day := range week {
			printCell(w, day)
		}
		_, _ = fmt.Fprintln(w)
	}
}

func printCell(w io.Writer, day calendar.Day) {
	label := fmt.Sprintf("%2d", day.DayOfMonth)
	if len(day.Highlights) > 0 {
		label += "*"
	}

	printer, detail := plain, ""
	switch {
	case !day.IsCurrentMonth:
		printer = faint
	case day.Activity != nil:
		printer, detail = ran, fmt.Sprintf("%.1f", day.Activity.Distance)
	case day.TargetDistance != nil && day.IsPast:
		printer, detail = missed, fmt.Sprintf("%.0f", *day.TargetDistance)
	case day.TargetDistance != nil:
		printer, detail = planned, fmt.Sprintf("%.0f", *day.TargetDistance)
	}
	if day.IsToday {
		printer = today
	}

	text := label
	if detail != "" {
		text += " " + detail
	}
	_, _ = printer.Fprintf(w, "%-*s", cellWidth, text)
}

// Summary prints an aggregate as a two-column table.
func Summary(w io.Writer, heading string, s calendar.Summary) {
	_, _ = title.Fprintln(w, heading)
	if s.TotalRuns == 0 {
		_, _ = faint.Fprintln(w, " no runs")
		return
	}

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow("Runs", s.TotalRuns)
	tbl.AddRow("Distance", fmt.Sprintf("%.2f km", s.TotalDistance))
	tbl.AddRow("Time", timeutil.FormatClock(s.TotalTime))
	tbl.AddRow("Avg pace", timeutil.FormatPace(s.AvgPace)+" /km")
	tbl.AddRow("Longest", fmt.Sprintf("%.2f km", s.LongestRun))
	tbl.AddRow("Half marathons", s.HalfMarathons)
	if s.AvgHeartRate > 0 {
		tbl.AddRow("Avg HR", fmt.Sprintf("%.0f bpm", s.AvgHeartRate))
		tbl.AddRow("Max HR", fmt.Sprintf("%d bpm", s.MaxHeartRate))
	}
	if s.AvgVO2Max > 0 {
		tbl.AddRow("Avg VO2 max", fmt.Sprintf("%.1f", s.AvgVO2Max))
	}
	_, _ = fmt.Fprintln(w, tbl)
}

// Activities lists entries one per row, in the order given.
func Activities(w io.Writer, entries []domain.ActivityEntry, loc *time.Location) {
	if len(entries) == 0 {
		_, _ = faint.Fprintln(w, " none")
		return
	}
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow("DATE", "KM", "TIME", "PACE", "HR", "SOURCE")
	for _, e := range entries {
		hr := "-"
		if e.AvgHeartRate > 0 {
			hr = fmt.Sprintf("%d/%d", e.AvgHeartRate, e.MaxHeartRate)
		}
		tbl.AddRow(e.Day(loc).String(), fmt.Sprintf("%.2f", e.Distance), timeutil.FormatClock(e.Time), timeutil.FormatPace(e.Pace), hr, e.Source)
	}
	_, _ = fmt.Fprintln(w, tbl)
}

// Targets lists planned distances by day.
func Targets(w io.Writer, source string, targets []domain.ActivityEntry, loc *time.Location) {
	_, _ = title.Fprintf(w, "Plan %s\n", source)
	tbl := uitable.New()
	tbl.Separator = "  "
	for _, t := range targets {
		d := t.Day(loc)
		tbl.AddRow(d.String(), d.Weekday().String()[:3], fmt.Sprintf("%.0f km", t.Distance))
	}
	_, _ = fmt.Fprintln(w, tbl)
}

// Progress prints weight and distance progress bars.
func Progress(w io.Writer, weight calendar.WeightProgress, monthly *calendar.WeightProgress, distance calendar.DistanceProgress) {
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow("Weight", bar(weight.Progress), fmt.Sprintf("%.1f kg -> %.1f kg (now %.1f)", weight.Start, weight.Target, weight.Current))
	if monthly != nil {
		tbl.AddRow("This month", bar(monthly.Progress), fmt.Sprintf("%.1f kg -> %.1f kg (now %.1f)", monthly.Start, monthly.Target, monthly.Current))
	}
	tbl.AddRow("Distance", bar(distance.Progress), fmt.Sprintf("%.1f / %.0f km, %.1f to go", distance.Total, distance.Goal, distance.Remaining))
	_, _ = fmt.Fprintln(w, tbl)
}

// Countdown prints the remaining time and a strip of the window's days.
func Countdown(w io.Writer, view calendar.CountdownView) {
	if view.Finished {
		_, _ = ran.Fprintln(w, "Finished")
	} else {
		_, _ = title.Fprintf(w, "%dd %dh %dm left\n", view.Days, view.Hours, view.Minutes)
	}
	_, _ = fmt.Fprintln(w, bar(view.Progress))

	var b strings.Builder
	for _, d := range view.Window {
		if d.IsPast {
			b.WriteString(faint.Sprint("x"))
		} else {
			b.WriteString(progress.Sprint("o"))
		}
	}
	_, _ = fmt.Fprintln(w, b.String())
}

const barWidth = 20

// bar draws a percentage in [0,100].
func bar(percent float64) string {
	filled := int(percent/100*barWidth + 0.5)
	if filled > barWidth {
		filled = barWidth
	}
	if filled < 0 {
		filled = 0
	}
	return progress.Sprint(strings.Repeat("#", filled)) + strings.Repeat(".", barWidth-filled) + fmt.Sprintf(" %3.0f%%", percent)
}
