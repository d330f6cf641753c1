// Package topic keeps one running performance record per topic.
package topic

import (
	"time"

	"performance-service/internal/models"
)

func Find(records []models.TopicPerformance, topic string) (int, bool) {
	for i := range records {
		if records[i].Topic == topic {
			return i, true
		}
	}
	return -1, false
}

// RecordAttempt folds one score into the topic's record, creating it on first
// attempt. The average is the incremental mean over every attempt, so the
// full history never has to be stored. The returned slice may share storage
// with records.
func RecordAttempt(records []models.TopicPerformance, topic string, score float64, at time.Time) ([]models.TopicPerformance, models.TopicPerformance) {
	i, ok := Find(records, topic)
	if !ok {
		rec := models.TopicPerformance{
			Topic:        topic,
			AverageScore: score,
			QuizzesTaken: 1,
			BestScore:    score,
			Improvement:  0,
			LastAttempt:  at,
		}
		return append(records, rec), rec
	}

	rec := records[i]
	n := float64(rec.QuizzesTaken)
	oldAvg := rec.AverageScore
	rec.AverageScore = (oldAvg*n + score) / (n + 1)
	rec.QuizzesTaken++
	if score > rec.BestScore {
		rec.BestScore = score
	}
	rec.Improvement = rec.AverageScore - oldAvg
	rec.LastAttempt = at
	records[i] = rec
	return records, rec
}
