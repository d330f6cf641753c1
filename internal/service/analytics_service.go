package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"performance-service/internal/apperr"
	"performance-service/internal/config"
	"performance-service/internal/logger"
	"performance-service/internal/metrics"
	"performance-service/internal/models"
	"performance-service/internal/observability"
	"performance-service/internal/repository"
	"performance-service/internal/stats"
)

const (
	DefaultAnalyticsWindow   = 30
	DefaultLeaderboardWindow = 7
	LeaderboardSize          = 10
	trendSize                = 10
	recentActivitySize       = 5
)

type AnalyticsServiceDeps struct {
	Results ResultStore
	Cache   Cache
	Clock   stats.Clock
	Log     *logger.Logger
}

// AnalyticsService serves read-only views over persisted quiz history.
type AnalyticsService struct {
	results      ResultStore
	cache        Cache
	clock        stats.Clock
	log          *logger.Logger
	group        singleflight.Group
	storeTimeout time.Duration
}

func NewAnalyticsService(deps AnalyticsServiceDeps, cfg config.PerformanceConfig) *AnalyticsService {
	s := &AnalyticsService{
		results:      deps.Results,
		cache:        deps.Cache,
		clock:        deps.Clock,
		log:          deps.Log,
		storeTimeout: cfg.StoreTimeout,
	}
	if s.cache == nil {
		s.cache = noopCache{}
	}
	if s.clock == nil {
		s.clock = stats.SystemClock{}
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	if s.storeTimeout <= 0 {
		s.storeTimeout = 5 * time.Second
	}
	return s
}

func (s *AnalyticsService) Analytics(ctx context.Context, userID string, windowDays int) (*models.Analytics, error) {
	ctx, span := observability.Tracer().Start(ctx, "AnalyticsService.Analytics")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.Int("window.days", windowDays))

	if windowDays <= 0 {
		return nil, apperr.Validation("INVALID_TIMEFRAME", "timeframe must be a positive number of days, got %d", windowDays)
	}

	if cached, ok, err := s.cache.GetAnalytics(ctx, userID, windowDays); err != nil {
		s.log.Warn("analytics cache read failed", "user_id", userID, "error", err)
	} else if ok {
		metrics.CacheLookups.WithLabelValues("analytics", "hit").Inc()
		return cached, nil
	}
	metrics.CacheLookups.WithLabelValues("analytics", "miss").Inc()

	key := "analytics:" + userID + ":" + strconv.Itoa(windowDays)
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		// read before the query so an invalidation during it fences the write
		gen, genErr := s.cache.AnalyticsGeneration(ctx, userID)
		if genErr != nil {
			s.log.Warn("analytics cache generation read failed", "user_id", userID, "error", genErr)
		}

		now := s.clock.Now()
		var results []models.QuizResult
		err := s.withTimeout(ctx, func(ctx context.Context) error {
			var err error
			results, err = s.results.Find(ctx, repository.ResultQuery{
				UserID: userID,
				Since:  now.AddDate(0, 0, -windowDays),
			})
			return err
		})
		if err != nil {
			return nil, apperr.Persistence("RESULT_STORE_UNAVAILABLE", fmt.Errorf("load analytics window: %w", err))
		}

		a := computeAnalytics(results, now)
		if genErr == nil {
			err := s.cache.SetAnalytics(ctx, userID, windowDays, gen, a)
			switch {
			case errors.Is(err, repository.ErrStaleGeneration):
				s.log.Debug("analytics invalidated while computing, not cached", "user_id", userID)
			case err != nil:
				s.log.Warn("analytics cache write failed", "user_id", userID, "error", err)
			}
		}
		return a, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Analytics), nil
}

// Leaderboard ranks users by average score over the window, optionally for a
// single topic. The store ranks and limits; users missing from the directory
// are left out there.
func (s *AnalyticsService) Leaderboard(ctx context.Context, topic string, windowDays int) ([]models.LeaderboardEntry, error) {
	ctx, span := observability.Tracer().Start(ctx, "AnalyticsService.Leaderboard")
	defer span.End()
	span.SetAttributes(attribute.String("topic", topic), attribute.Int("window.days", windowDays))

	if windowDays <= 0 {
		return nil, apperr.Validation("INVALID_TIMEFRAME", "timeframe must be a positive number of days, got %d", windowDays)
	}

	if cached, ok, err := s.cache.GetLeaderboard(ctx, topic, windowDays); err != nil {
		s.log.Warn("leaderboard cache read failed", "topic", topic, "error", err)
	} else if ok {
		metrics.CacheLookups.WithLabelValues("leaderboard", "hit").Inc()
		return cached, nil
	}
	metrics.CacheLookups.WithLabelValues("leaderboard", "miss").Inc()

	key := "leaderboard:" + topic + ":" + strconv.Itoa(windowDays)
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		since := s.clock.Now().AddDate(0, 0, -windowDays)

		var rows []models.UserStats
		err := s.withTimeout(ctx, func(ctx context.Context) error {
			var err error
			rows, err = s.results.Leaderboard(ctx, topic, since, LeaderboardSize)
			return err
		})
		if err != nil {
			return nil, apperr.Persistence("LEADERBOARD_UNAVAILABLE", fmt.Errorf("build leaderboard: %w", err))
		}

		entries := rankLeaderboard(rows, LeaderboardSize)
		if err := s.cache.SetLeaderboard(ctx, topic, windowDays, entries); err != nil {
			s.log.Warn("leaderboard cache write failed", "topic", topic, "error", err)
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.LeaderboardEntry), nil
}

func (s *AnalyticsService) withTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return fn(ctx)
}

// computeAnalytics builds the analytics view from results ordered newest
// first. Best and worst are 0 for an empty window.
func computeAnalytics(results []models.QuizResult, now time.Time) *models.Analytics {
	a := &models.Analytics{
		TotalQuizzes:     len(results),
		TopicBreakdown:   map[string]models.TopicBreakdown{},
		PerformanceTrend: []models.TrendPoint{},
		RecentActivity:   []models.QuizResult{},
	}

	scores := make([]float64, 0, len(results))
	times := make([]time.Time, 0, len(results))
	for i, r := range results {
		scores = append(scores, r.Score)
		times = append(times, r.CompletedAt)
		if i == 0 || r.Score > a.BestScore {
			a.BestScore = r.Score
		}
		if i == 0 || r.Score < a.WorstScore {
			a.WorstScore = r.Score
		}

		tb := a.TopicBreakdown[r.Topic]
		tb.Count++
		tb.TotalScore += r.Score
		a.TopicBreakdown[r.Topic] = tb
	}
	for name, tb := range a.TopicBreakdown {
		tb.AverageScore = tb.TotalScore / float64(tb.Count)
		tb.Mastery = stats.MasteryLevel(tb.AverageScore)
		a.TopicBreakdown[name] = tb
	}

	a.AverageScore = stats.Mean(scores)
	a.Consistency = stats.Consistency(scores)
	a.WeeklyActivity = stats.WeeklyActivity(times, now)

	n := min(trendSize, len(results))
	for i := n - 1; i >= 0; i-- {
		r := results[i]
		a.PerformanceTrend = append(a.PerformanceTrend, models.TrendPoint{
			Score:     r.Score,
			Topic:     r.Topic,
			Date:      r.CompletedAt,
			QuizTitle: r.QuizTitle,
		})
	}
	a.RecentActivity = append(a.RecentActivity, results[:min(recentActivitySize, len(results))]...)
	return a
}

// rankLeaderboard orders by average desc, then quiz count desc, then earliest
// registration, then user id. Displayed averages are rounded to one decimal
// after sorting on the raw value.
func rankLeaderboard(rows []models.UserStats, limit int) []models.LeaderboardEntry {
	rows = append([]models.UserStats(nil), rows...)
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.AverageScore != b.AverageScore {
			return a.AverageScore > b.AverageScore
		}
		if a.TotalQuizzes != b.TotalQuizzes {
			return a.TotalQuizzes > b.TotalQuizzes
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.UserID < b.UserID
	})

	if len(rows) > limit {
		rows = rows[:limit]
	}
	entries := make([]models.LeaderboardEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, models.LeaderboardEntry{
			UserID:       r.UserID,
			Name:         r.Name,
			AverageScore: math.Round(r.AverageScore*10) / 10,
			TotalQuizzes: r.TotalQuizzes,
			BestScore:    r.BestScore,
		})
	}
	return entries
}
