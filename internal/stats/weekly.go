package stats

import (
	"time"

	"performance-service/internal/models"
)

// WeeklyActivity buckets completion times into the seven UTC days ending on
// reference, oldest first.
func WeeklyActivity(times []time.Time, reference time.Time) []models.DayActivity {
	end := Day(reference)
	start := end.AddDate(0, 0, -6)

	buckets := make([]models.DayActivity, 7)
	for i := range buckets {
		d := start.AddDate(0, 0, i)
		buckets[i] = models.DayActivity{Date: d, Weekday: d.Weekday().String()[:3]}
	}
	for _, t := range times {
		d := Day(t)
		if d.Before(start) || d.After(end) {
			continue
		}
		idx := int(d.Sub(start).Hours() / 24)
		buckets[idx].Count++
	}
	return buckets
}
