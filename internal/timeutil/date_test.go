package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDateOfUsesLocation(t *testing.T) {
	riyadh := time.FixedZone("UTC+3", 3*60*60)
	instant := time.Date(2026, time.January, 4, 22, 30, 0, 0, time.UTC)

	require.Equal(t, "2026-01-04", DayKey(instant, time.UTC))
	require.Equal(t, "2026-01-05", DayKey(instant, riyadh))
}

func TestDateArithmetic(t *testing.T) {
	d := NewDate(2026, time.February, 28)
	require.Equal(t, NewDate(2026, time.March, 1), d.AddDays(1))
	require.Equal(t, NewDate(2025, time.December, 31), NewDate(2026, time.January, 1).AddDays(-1))
	require.Equal(t, time.Tuesday, NewDate(2026, time.January, 6).Weekday())
	require.Equal(t, 29, NewDate(2026, time.March, 1).DaysUntil(NewDate(2026, time.March, 30)))
}

func TestDateOrdering(t *testing.T) {
	a := NewDate(2025, time.December, 31)
	b := NewDate(2026, time.January, 1)

	require.True(t, a.Before(b))
	require.True(t, b.After(a))
	require.Equal(t, 0, a.Compare(a))
	require.True(t, b.Between(a, b))
	require.False(t, a.Between(b, b.AddDays(3)))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-01-05")
	require.NoError(t, err)
	require.Equal(t, NewDate(2026, time.January, 5), d)

	_, err = ParseDate("05/01/2026")
	require.Error(t, err)

	var decoded Date
	require.NoError(t, decoded.UnmarshalText([]byte("2026-03-31")))
	require.Equal(t, "2026-03-31", decoded.String())
}

func TestParseClockMinutes(t *testing.T) {
	cases := map[string]float64{
		"1:00:00":  60,
		"00:55:30": 55.5,
		"45:30":    45.5,
	}
	for input, want := range cases {
		got, err := ParseClockMinutes(input)
		require.NoErrorf(t, err, input)
		require.InDeltaf(t, want, got, 1e-9, input)
	}

	for _, bad := range []string{"", "abc", "1:2:3:4", "-5:00", "NaN:00", "Inf:00", "45:+Inf"} {
		_, err := ParseClockMinutes(bad)
		require.Errorf(t, err, bad)
	}

	_, err := ParsePace("1:05:00")
	require.Error(t, err)
	pace, err := ParsePace("5:30")
	require.NoError(t, err)
	require.InDelta(t, 5.5, pace, 1e-9)
}

func TestFormatClock(t *testing.T) {
	require.Equal(t, "55:30", FormatClock(55.5))
	require.Equal(t, "1:02:03", FormatClock(62.05))
	require.Equal(t, "5:30", FormatPace(5.5))
}
