// Package reconcile merges entry collections keyed by calendar day.
package reconcile

import (
	"slices"
	"time"

	"example.com/runlog/internal/timeutil"
)

// Options controls how collections are keyed and pruned.
type Options struct {
	// Location is the zone used to derive day keys. Nil means UTC.
	Location *time.Location
	// Cutoff, when non-zero, drops entries whose day is strictly before it.
	Cutoff timeutil.Date
}

// Result is a merged collection plus the number of entries removed by the cutoff.
type Result[T any] struct {
	Entries []T
	Dropped int
}

// ByDay merges remote and incoming so that each calendar day holds one entry.
// Incoming entries overwrite remote ones, and within one collection the later
// element wins. The result is sorted by date ascending. Inputs are not modified.
func ByDay[T any](remote, incoming []T, dateOf func(T) time.Time, opts Options) Result[T] {
	index := make(map[timeutil.Date]int, len(remote)+len(incoming))
	merged := make([]T, 0, len(remote)+len(incoming))

	put := func(entry T) {
		key := timeutil.DateOf(dateOf(entry), opts.Location)
		if i, ok := index[key]; ok {
			merged[i] = entry
			return
		}
		index[key] = len(merged)
		merged = append(merged, entry)
	}
	for _, e := range remote {
		put(e)
	}
	for _, e := range incoming {
		put(e)
	}

	kept := merged[:0]
	dropped := 0
	for _, e := range merged {
		if !opts.Cutoff.IsZero() && timeutil.DateOf(dateOf(e), opts.Location).Before(opts.Cutoff) {
			dropped++
			continue
		}
		kept = append(kept, e)
	}

	slices.SortStableFunc(kept, func(a, b T) int {
		return dateOf(a).Compare(dateOf(b))
	})
	return Result[T]{Entries: kept, Dropped: dropped}
}
