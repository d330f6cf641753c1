package service

import (
	"fmt"
	"strings"

	"performance-service/internal/models"
)

const maxFlaggedQuestions = 2

// GenerateFeedback derives the one-off feedback stored on a result.
func GenerateFeedback(questions []models.QuestionDetail, score float64, topic string) models.Feedback {
	fb := models.Feedback{
		Strengths:       []string{},
		Weaknesses:      []string{},
		Recommendations: []string{},
	}

	switch {
	case score >= 80:
		fb.Strengths = append(fb.Strengths, fmt.Sprintf("Excellent performance in %s", topic))
		fb.Recommendations = append(fb.Recommendations, fmt.Sprintf("Try advanced level questions in %s", topic))
	case score >= 60:
		fb.Strengths = append(fb.Strengths, fmt.Sprintf("Good understanding of %s basics", topic))
		fb.Recommendations = append(fb.Recommendations, "Review challenging concepts and practice more")
	default:
		fb.Weaknesses = append(fb.Weaknesses, fmt.Sprintf("Needs improvement in %s fundamentals", topic))
		fb.Recommendations = append(fb.Recommendations, "Focus on basic concepts and take practice quizzes")
	}

	var flagged []string
	for _, q := range questions {
		if q.IsCorrect {
			continue
		}
		flagged = append(flagged, q.Question)
		if len(flagged) == maxFlaggedQuestions {
			break
		}
	}
	if len(flagged) > 0 {
		fb.Weaknesses = append(fb.Weaknesses, "Difficulty with: "+strings.Join(flagged, ", "))
	}
	return fb
}
