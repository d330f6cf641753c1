package stats

import (
	"time"

	"performance-service/internal/models"
)

// Day truncates t to the start of its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AdvanceStreak applies one submission made at "at" to the streak.
// A submission older than the last recorded day is ignored.
func AdvanceStreak(s models.StreakData, at time.Time) models.StreakData {
	today := Day(at)
	if s.LastQuizDate == nil {
		s.CurrentStreak = 1
	} else {
		last := Day(*s.LastQuizDate)
		switch {
		case today.Equal(last):
		case today.Before(last):
			return s
		case today.Equal(last.AddDate(0, 0, 1)):
			s.CurrentStreak++
		default:
			s.CurrentStreak = 1
		}
	}
	if s.CurrentStreak > s.LongestStreak {
		s.LongestStreak = s.CurrentStreak
	}
	s.LastQuizDate = &today
	return s
}
