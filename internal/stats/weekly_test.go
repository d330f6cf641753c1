package stats

import (
	"testing"
	"time"
)

func TestWeeklyActivity(t *testing.T) {
	ref := time.Date(2024, 6, 9, 15, 0, 0, 0, time.UTC) // Sunday
	times := []time.Time{
		ref,
		ref.Add(-2 * time.Hour),
		ref.AddDate(0, 0, -1),
		ref.AddDate(0, 0, -6),
		ref.AddDate(0, 0, -7), // outside window
		ref.AddDate(0, 0, 1),  // future
	}

	buckets := WeeklyActivity(times, ref)
	if len(buckets) != 7 {
		t.Fatalf("expected 7 buckets, got %d", len(buckets))
	}
	if !buckets[0].Date.Equal(Day(ref.AddDate(0, 0, -6))) {
		t.Errorf("first bucket %v, want %v", buckets[0].Date, Day(ref.AddDate(0, 0, -6)))
	}
	if buckets[0].Weekday != "Mon" || buckets[6].Weekday != "Sun" {
		t.Errorf("unexpected weekday labels %s..%s", buckets[0].Weekday, buckets[6].Weekday)
	}

	want := []int{1, 0, 0, 0, 0, 1, 2}
	for i, w := range want {
		if buckets[i].Count != w {
			t.Errorf("bucket %d count = %d, want %d", i, buckets[i].Count, w)
		}
	}
}
