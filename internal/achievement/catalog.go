package achievement

import "performance-service/internal/models"

const (
	FirstSteps   = "First Steps"
	PerfectScore = "Perfect Score"
	WeekWarrior  = "Week Warrior"
	QuizExplorer = "Quiz Explorer"
)

func DefaultCatalog() Catalog {
	return Catalog{
		{
			Achievement: models.Achievement{Title: FirstSteps, Description: "Completed your first quiz!", Icon: "🎯", Category: "milestone"},
			Predicate: func(s *models.StudentRecord, _ *models.QuizResult) bool {
				return s.PerformanceMetrics.TotalQuizzesTaken == 1
			},
		},
		{
			Achievement: models.Achievement{Title: PerfectScore, Description: "Achieved 100% on a quiz!", Icon: "⭐", Category: "performance"},
			Predicate: func(_ *models.StudentRecord, r *models.QuizResult) bool {
				return r.Score == 100
			},
		},
		{
			Achievement: models.Achievement{Title: WeekWarrior, Description: "Completed quizzes for 7 days straight!", Icon: "🔥", Category: "streak"},
			Predicate: func(s *models.StudentRecord, _ *models.QuizResult) bool {
				return s.PerformanceMetrics.StreakData.CurrentStreak == 7
			},
		},
		{
			Achievement: models.Achievement{Title: QuizExplorer, Description: "Completed 10 quizzes!", Icon: "🎓", Category: "milestone"},
			Predicate: func(s *models.StudentRecord, _ *models.QuizResult) bool {
				return s.PerformanceMetrics.TotalQuizzesTaken == 10
			},
		},
	}
}
