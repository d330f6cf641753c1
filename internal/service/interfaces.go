package service

import (
	"context"
	"time"

	"performance-service/internal/models"
	"performance-service/internal/repository"
)

type StudentStore interface {
	FindByUserID(ctx context.Context, userID string) (*models.StudentRecord, error)
	Create(ctx context.Context, student *models.StudentRecord) error
	UpdateIfVersion(ctx context.Context, student *models.StudentRecord, expected int64) error
}

type ResultStore interface {
	Insert(ctx context.Context, result *models.QuizResult) error
	MarkApplied(ctx context.Context, ids []string) error
	CountAttempts(ctx context.Context, userID, quizTitle, topic string) (int64, error)
	Count(ctx context.Context, q repository.ResultQuery) (int64, error)
	Find(ctx context.Context, q repository.ResultQuery) ([]models.QuizResult, error)
	Leaderboard(ctx context.Context, topic string, since time.Time, limit int) ([]models.UserStats, error)
}

// Cache holds read-side views. Analytics writes carry the generation read
// before the view was computed; a write whose generation has since moved on
// (because InvalidateUser ran) must be dropped.
type Cache interface {
	GetAnalytics(ctx context.Context, userID string, windowDays int) (*models.Analytics, bool, error)
	AnalyticsGeneration(ctx context.Context, userID string) (int64, error)
	SetAnalytics(ctx context.Context, userID string, windowDays int, generation int64, a *models.Analytics) error
	InvalidateUser(ctx context.Context, userID string) error
	GetLeaderboard(ctx context.Context, topic string, windowDays int) ([]models.LeaderboardEntry, bool, error)
	SetLeaderboard(ctx context.Context, topic string, windowDays int, entries []models.LeaderboardEntry) error
}

type Publisher interface {
	Publish(eventType string, payload interface{}) error
}

type noopCache struct{}

func (noopCache) GetAnalytics(context.Context, string, int) (*models.Analytics, bool, error) {
	return nil, false, nil
}
func (noopCache) AnalyticsGeneration(context.Context, string) (int64, error) { return 0, nil }
func (noopCache) SetAnalytics(context.Context, string, int, int64, *models.Analytics) error {
	return nil
}
func (noopCache) InvalidateUser(context.Context, string) error { return nil }
func (noopCache) GetLeaderboard(context.Context, string, int) ([]models.LeaderboardEntry, bool, error) {
	return nil, false, nil
}
func (noopCache) SetLeaderboard(context.Context, string, int, []models.LeaderboardEntry) error {
	return nil
}
