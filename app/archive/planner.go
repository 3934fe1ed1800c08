package archive

import (
	"sort"
	"time"
)

const (
	day             = 24 * time.Hour
	minInterval     = day
	maxInterval     = 30 * day
	defaultInterval = 30 * day
)

// EstimateInterval derives the target spacing between backfilled snapshots.
// Preference order: half the mean gap between observed fetches, half the
// item publication span, then the 30-day default; always clamped to
// [1 day, 30 days].
func EstimateInterval(fetchTimes []time.Time, itemSpan time.Duration) time.Duration {
	interval := defaultInterval

	if len(fetchTimes) > 1 {
		span := fetchTimes[len(fetchTimes)-1].Sub(fetchTimes[0])
		interval = span / time.Duration(len(fetchTimes)-1) / 2
	} else if itemSpan > 0 {
		interval = itemSpan / 2
	}

	if interval < minInterval {
		interval = minInterval
	}
	if interval > maxInterval {
		interval = maxInterval
	}
	return interval
}

// SelectSnapshots picks the subset of snapshots to backfill: always the
// oldest and newest, a forward walk keeping captures at least interval
// apart, plus both endpoints of any gap wider than interval. Input order is
// preserved and must be chronological.
func SelectSnapshots(snapshots []Snapshot, interval time.Duration) []Snapshot {
	if len(snapshots) == 0 {
		return nil
	}

	selected := make(map[int]struct{})
	selected[0] = struct{}{}
	selected[len(snapshots)-1] = struct{}{}

	last := snapshots[0].Timestamp
	for i := 1; i < len(snapshots); i++ {
		if snapshots[i].Timestamp.Sub(last) >= interval {
			selected[i] = struct{}{}
			last = snapshots[i].Timestamp
		}
	}

	// Wide gaps get both endpoints so neither side of the gap is lost.
	for i := 1; i < len(snapshots); i++ {
		if snapshots[i].Timestamp.Sub(snapshots[i-1].Timestamp) > interval {
			selected[i-1] = struct{}{}
			selected[i] = struct{}{}
		}
	}

	indices := make([]int, 0, len(selected))
	for i := range selected {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	result := make([]Snapshot, 0, len(indices))
	for _, i := range indices {
		result = append(result, snapshots[i])
	}
	return result
}
