package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/runlog/internal/timeutil"
)

type reading struct {
	At    time.Time
	Value float64
}

func dateOf(r reading) time.Time { return r.At }

func day(y int, m time.Month, d, hour int) time.Time {
	return time.Date(y, m, d, hour, 0, 0, 0, time.UTC)
}

func TestIncomingOverwritesRemoteOnSameDay(t *testing.T) {
	remote := []reading{{At: day(2026, time.January, 5, 7), Value: 90}}
	incoming := []reading{{At: day(2026, time.January, 5, 21), Value: 88}}

	res := ByDay(remote, incoming, dateOf, Options{})

	require.Len(t, res.Entries, 1)
	require.Equal(t, 88.0, res.Entries[0].Value)
	require.Equal(t, 0, res.Dropped)
}

func TestLastEntryInBatchWins(t *testing.T) {
	incoming := []reading{
		{At: day(2026, time.January, 7, 6), Value: 1},
		{At: day(2026, time.January, 6, 6), Value: 2},
		{At: day(2026, time.January, 7, 18), Value: 3},
	}

	res := ByDay(nil, incoming, dateOf, Options{})

	require.Len(t, res.Entries, 2)
	require.Equal(t, 2.0, res.Entries[0].Value)
	require.Equal(t, 3.0, res.Entries[1].Value)
}

func TestResultSortedAscending(t *testing.T) {
	remote := []reading{
		{At: day(2026, time.March, 1, 0), Value: 3},
		{At: day(2026, time.January, 1, 0), Value: 1},
	}
	incoming := []reading{{At: day(2026, time.February, 1, 0), Value: 2}}

	res := ByDay(remote, incoming, dateOf, Options{})

	values := []float64{}
	for _, r := range res.Entries {
		values = append(values, r.Value)
	}
	require.Equal(t, []float64{1, 2, 3}, values)
}

func TestRetentionCutoffDropsEarlierDays(t *testing.T) {
	var remote []reading
	for d := day(2025, time.December, 20, 12); !d.After(day(2026, time.January, 10, 12)); d = d.AddDate(0, 0, 1) {
		remote = append(remote, reading{At: d, Value: float64(d.Day())})
	}

	res := ByDay(remote, nil, dateOf, Options{Cutoff: timeutil.NewDate(2026, time.January, 1)})

	require.Len(t, res.Entries, 10)
	require.Equal(t, 12, res.Dropped)
	for _, r := range res.Entries {
		require.False(t, r.At.Before(day(2026, time.January, 1, 0)), "kept %s", r.At)
	}
}

func TestDayKeyFollowsLocation(t *testing.T) {
	plus3 := time.FixedZone("UTC+3", 3*60*60)
	remote := []reading{{At: time.Date(2026, time.January, 4, 22, 0, 0, 0, time.UTC), Value: 1}}
	incoming := []reading{{At: time.Date(2026, time.January, 5, 9, 0, 0, 0, time.UTC), Value: 2}}

	require.Len(t, ByDay(remote, incoming, dateOf, Options{}).Entries, 2)

	res := ByDay(remote, incoming, dateOf, Options{Location: plus3})
	require.Len(t, res.Entries, 1)
	require.Equal(t, 2.0, res.Entries[0].Value)
}

func TestIdempotent(t *testing.T) {
	remote := []reading{
		{At: day(2026, time.January, 2, 0), Value: 1},
		{At: day(2025, time.December, 30, 0), Value: 9},
	}
	incoming := []reading{
		{At: day(2026, time.January, 2, 8), Value: 4},
		{At: day(2026, time.January, 3, 8), Value: 5},
	}
	opts := Options{Cutoff: timeutil.NewDate(2026, time.January, 1)}

	once := ByDay(remote, incoming, dateOf, opts)
	twice := ByDay(once.Entries, nil, dateOf, opts)

	require.Equal(t, once.Entries, twice.Entries)
	require.Equal(t, 0, twice.Dropped)
}

func TestInputsNotModified(t *testing.T) {
	remote := []reading{{At: day(2026, time.January, 2, 0), Value: 1}}
	incoming := []reading{{At: day(2026, time.January, 2, 5), Value: 2}}

	_ = ByDay(remote, incoming, dateOf, Options{})

	require.Equal(t, 1.0, remote[0].Value)
	require.Equal(t, 2.0, incoming[0].Value)
}
