package stats

import (
	"math"

	"performance-service/internal/models"
)

// PushRecentScore returns a new slice holding entry and list, most recent
// first, truncated to limit entries. entry goes ahead of every entry not
// newer than it, so a late result keeps its place by date and equal dates
// favour the newcomer. A non-positive limit falls back to
// models.MaxRecentScores.
func PushRecentScore(list []models.RecentScore, entry models.RecentScore, limit int) []models.RecentScore {
	if limit <= 0 {
		limit = models.MaxRecentScores
	}
	pos := len(list)
	for i, s := range list {
		if !s.Date.After(entry.Date) {
			pos = i
			break
		}
	}
	if pos >= limit {
		out := make([]models.RecentScore, min(len(list), limit))
		copy(out, list)
		return out
	}

	out := make([]models.RecentScore, 0, min(len(list)+1, limit))
	out = append(out, list[:pos]...)
	out = append(out, entry)
	for _, s := range list[pos:] {
		if len(out) == limit {
			break
		}
		out = append(out, s)
	}
	return out
}

func RunningAverage(list []models.RecentScore) float64 {
	if len(list) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range list {
		sum += s.Score
	}
	return sum / float64(len(list))
}

func UpdateExtremes(best, worst, score float64) (float64, float64) {
	return math.Max(best, score), math.Min(worst, score)
}

func Mean(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

// StdDev is the population standard deviation.
func StdDev(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	mean := Mean(scores)
	variance := 0.0
	for _, s := range scores {
		d := s - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(scores)))
}

// Consistency maps score spread onto [0,100]; fewer than two samples count as
// perfectly consistent.
func Consistency(scores []float64) int {
	if len(scores) < 2 {
		return 100
	}
	c := math.Round(100 - 2*StdDev(scores))
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return int(c)
}

func MasteryLevel(avg float64) string {
	switch {
	case avg >= MasteredThreshold:
		return "mastered"
	case avg >= ProficientThreshold:
		return "proficient"
	default:
		return "learning"
	}
}
