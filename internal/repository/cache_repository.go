package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"performance-service/internal/models"
)

const (
	analyticsKeyPrefix    = "performance:analytics:"
	analyticsGenKeyPrefix = "performance:analytics-gen:"
	leaderboardKeyPrefix  = "performance:leaderboard:"

	// generationTTL outlives any analytics computation by a wide margin.
	generationTTL = 24 * time.Hour
)

// CacheRepository keeps read-side views in Redis. Analytics for a user live
// in one hash (field = window) so a submission can drop all of them at once.
// A per-user generation counter, bumped on every invalidation, fences writes
// computed before the invalidation.
type CacheRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCacheRepository(client *redis.Client, ttl time.Duration) *CacheRepository {
	return &CacheRepository{client: client, ttl: ttl}
}

func (r *CacheRepository) GetAnalytics(ctx context.Context, userID string, windowDays int) (*models.Analytics, bool, error) {
	raw, err := r.client.HGet(ctx, analyticsKeyPrefix+userID, strconv.Itoa(windowDays)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("error get analytics in cache: %w", err)
	}
	var a models.Analytics
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, false, fmt.Errorf("error decoding cached analytics: %w", err)
	}
	return &a, true, nil
}

// AnalyticsGeneration returns the user's current generation, 0 if none was
// ever recorded.
func (r *CacheRepository) AnalyticsGeneration(ctx context.Context, userID string) (int64, error) {
	gen, err := r.client.Get(ctx, analyticsGenKeyPrefix+userID).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("error get analytics generation in cache: %w", err)
	}
	return gen, nil
}

// SetAnalytics stores a only while the user's generation still equals
// generation. Otherwise it returns ErrStaleGeneration and writes nothing.
func (r *CacheRepository) SetAnalytics(ctx context.Context, userID string, windowDays int, generation int64, a *models.Analytics) error {
	val, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("error saving analytics to cache: %w", err)
	}
	key := analyticsKeyPrefix + userID
	genKey := analyticsGenKeyPrefix + userID

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != generation {
			return ErrStaleGeneration
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, strconv.Itoa(windowDays), val)
			pipe.Expire(ctx, key, r.ttl)
			return nil
		})
		return err
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) {
		// genKey changed between the check and EXEC
		return ErrStaleGeneration
	}
	if err != nil && !errors.Is(err, ErrStaleGeneration) {
		return fmt.Errorf("error saving analytics to cache: %w", err)
	}
	return err
}

// InvalidateUser bumps the user's generation and drops every cached window.
func (r *CacheRepository) InvalidateUser(ctx context.Context, userID string) error {
	key := analyticsKeyPrefix + userID
	genKey := analyticsGenKeyPrefix + userID
	pipe := r.client.TxPipeline()
	pipe.Incr(ctx, genKey)
	pipe.Expire(ctx, genKey, generationTTL)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("error deleting key %s: %w", key, err)
	}
	return nil
}

func leaderboardKey(topic string, windowDays int) string {
	return leaderboardKeyPrefix + strconv.Itoa(windowDays) + ":" + topic
}

func (r *CacheRepository) GetLeaderboard(ctx context.Context, topic string, windowDays int) ([]models.LeaderboardEntry, bool, error) {
	raw, err := r.client.Get(ctx, leaderboardKey(topic, windowDays)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("error get leaderboard in cache: %w", err)
	}
	var entries []models.LeaderboardEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, false, fmt.Errorf("error decoding cached leaderboard: %w", err)
	}
	return entries, true, nil
}

func (r *CacheRepository) SetLeaderboard(ctx context.Context, topic string, windowDays int, entries []models.LeaderboardEntry) error {
	val, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("error saving leaderboard to cache: %w", err)
	}
	if err := r.client.Set(ctx, leaderboardKey(topic, windowDays), val, r.ttl).Err(); err != nil {
		return fmt.Errorf("error saving leaderboard to cache: %w", err)
	}
	return nil
}
