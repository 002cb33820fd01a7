package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"example.com/runlog/internal/calendar"
	"example.com/runlog/internal/domain"
	"example.com/runlog/internal/timeutil"
)

func init() {
	color.NoColor = true
}

func TestCalendarGrid(t *testing.T) {
	snap := domain.Snapshot{
		ActivityEntries: []domain.ActivityEntry{
			{Date: time.Date(2026, 1, 6, 7, 0, 0, 0, time.UTC), Distance: 6.2, Time: 33, Pace: 5.3},
		},
	}
	today := timeutil.NewDate(2026, 1, 14)
	days := calendar.ClassifyMonth(2026, time.January, today, nil, calendar.NewIndex(snap, time.UTC))
	calendar.AttachPlan(days, calendar.Q1Plan2026())

	var buf bytes.Buffer
	Calendar(&buf, 2026, time.January, calendar.Weeks(days))

	out := buf.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Contains(t, lines[0], "January 2026")
	require.True(t, strings.HasPrefix(lines[1], "Sun"))
	require.Len(t, lines, 2+len(calendar.Weeks(days)))
	require.Contains(t, out, " 6 6.2")
}

func TestSummaryEmpty(t *testing.T) {
	var buf bytes.Buffer
	Summary(&buf, "January", calendar.Summary{})
	require.Contains(t, buf.String(), "no runs")
}

func TestSummaryTable(t *testing.T) {
	var buf bytes.Buffer
	Summary(&buf, "2026", calendar.Summary{
		TotalRuns:     2,
		TotalDistance: 27.1,
		TotalTime:     150,
		AvgPace:       5.5,
		LongestRun:    21.1,
		HalfMarathons: 1,
	})

	out := buf.String()
	require.Contains(t, out, "27.10 km")
	require.Contains(t, out, "2:30:00")
	require.Contains(t, out, "5:30 /km")
	require.NotContains(t, out, "Avg HR")
}

func TestActivities(t *testing.T) {
	var buf bytes.Buffer
	Activities(&buf, []domain.ActivityEntry{
		{Date: time.Date(2026, 1, 6, 7, 0, 0, 0, time.UTC), Distance: 5, Time: 25, Pace: 5, AvgHeartRate: 150, MaxHeartRate: 170, Source: "fit"},
	}, time.UTC)

	out := buf.String()
	require.Contains(t, out, "2026-01-06")
	require.Contains(t, out, "150/170")
	require.Contains(t, out, "fit")
}

func TestCountdown(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 11, 0, 0, 0, 0, time.UTC)
	view := calendar.Countdown(start, end, time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC), time.UTC)

	var buf bytes.Buffer
	Countdown(&buf, view)
	require.Contains(t, buf.String(), "5d 0h 0m left")
	require.Contains(t, buf.String(), " 50%")
}

func TestBarClamps(t *testing.T) {
	require.True(t, strings.HasPrefix(bar(150), strings.Repeat("#", barWidth)))
	require.True(t, strings.HasPrefix(bar(-1), strings.Repeat(".", barWidth)))
}
