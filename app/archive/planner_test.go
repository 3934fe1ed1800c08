package archive

import (
	"testing"
	"time"
)

func snapshotsAtDays(days ...int) []Snapshot {
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	snapshots := make([]Snapshot, 0, len(days))
	for _, d := range days {
		snapshots = append(snapshots, Snapshot{
			Timestamp: base.AddDate(0, 0, d),
			Original:  "https://example.com/feed.xml",
		})
	}
	return snapshots
}

func timestamps(snapshots []Snapshot) []time.Time {
	ts := make([]time.Time, 0, len(snapshots))
	for _, s := range snapshots {
		ts = append(ts, s.Timestamp)
	}
	return ts
}

func TestSelectSnapshotsEmpty(t *testing.T) {
	if got := SelectSnapshots(nil, day); got != nil {
		t.Errorf("Expected nil for empty input, got %v", got)
	}
}

func TestSelectSnapshotsSingle(t *testing.T) {
	got := SelectSnapshots(snapshotsAtDays(0), day)
	if len(got) != 1 {
		t.Fatalf("Expected 1 snapshot, got %d", len(got))
	}
}

func TestSelectSnapshotsEndpointsAlwaysIncluded(t *testing.T) {
	snapshots := snapshotsAtDays(0, 1, 2)
	got := SelectSnapshots(snapshots, 365*day)

	if len(got) != 2 {
		t.Fatalf("Expected first and last only, got %d", len(got))
	}
	if !got[0].Timestamp.Equal(snapshots[0].Timestamp) || !got[1].Timestamp.Equal(snapshots[2].Timestamp) {
		t.Errorf("Expected endpoints, got %v", timestamps(got))
	}
}

func TestSelectSnapshotsDailyWithTwoDayInterval(t *testing.T) {
	// Five daily snapshots with a two-day interval: the walk keeps
	// indices 0, 2 and 4.
	snapshots := snapshotsAtDays(0, 1, 2, 3, 4)
	got := SelectSnapshots(snapshots, 2*day)

	if len(got) != 3 {
		t.Fatalf("Expected 3 snapshots, got %d: %v", len(got), timestamps(got))
	}
	for i, wantDay := range []int{0, 2, 4} {
		want := snapshots[wantDay].Timestamp
		if !got[i].Timestamp.Equal(want) {
			t.Errorf("Expected snapshot at day %d at position %d, got %v", wantDay, i, got[i].Timestamp)
		}
	}
}

func TestSelectSnapshotsGapBridging(t *testing.T) {
	// Dense run, a wide gap, dense run: both gap endpoints survive even
	// though the walk alone would skip the pre-gap snapshot.
	snapshots := snapshotsAtDays(0, 1, 2, 100, 101, 102)
	got := SelectSnapshots(snapshots, 10*day)

	gapStart := snapshots[2].Timestamp
	gapEnd := snapshots[3].Timestamp

	var hasStart, hasEnd bool
	for _, s := range got {
		if s.Timestamp.Equal(gapStart) {
			hasStart = true
		}
		if s.Timestamp.Equal(gapEnd) {
			hasEnd = true
		}
	}
	if !hasStart || !hasEnd {
		t.Errorf("Expected both gap endpoints selected, got %v", timestamps(got))
	}

	// Selection must be sorted and duplicate-free.
	for i := 1; i < len(got); i++ {
		if !got[i].Timestamp.After(got[i-1].Timestamp) {
			t.Errorf("Selection out of order at %d: %v", i, timestamps(got))
		}
	}
}

func TestEstimateIntervalFromFetchHistory(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	// Fetches 10 days apart: half the mean gap is 5 days.
	fetches := []time.Time{base, base.AddDate(0, 0, 10), base.AddDate(0, 0, 20)}

	got := EstimateInterval(fetches, 0)
	if got != 5*day {
		t.Errorf("Expected 5 days, got %v", got)
	}
}

func TestEstimateIntervalFromItemSpan(t *testing.T) {
	got := EstimateInterval(nil, 20*day)
	if got != 10*day {
		t.Errorf("Expected 10 days, got %v", got)
	}
}

func TestEstimateIntervalDefault(t *testing.T) {
	if got := EstimateInterval(nil, 0); got != 30*day {
		t.Errorf("Expected 30-day default, got %v", got)
	}
}

func TestEstimateIntervalClamped(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// Hourly fetches clamp up to one day.
	hourly := []time.Time{base, base.Add(time.Hour), base.Add(2 * time.Hour)}
	if got := EstimateInterval(hourly, 0); got != day {
		t.Errorf("Expected 1-day minimum, got %v", got)
	}

	// A decade-long item span clamps down to 30 days.
	if got := EstimateInterval(nil, 3650*day); got != 30*day {
		t.Errorf("Expected 30-day maximum, got %v", got)
	}
}
