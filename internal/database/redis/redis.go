package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"performance-service/internal/config"
	"performance-service/internal/logger"
)

func Connect(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	log.Info("connected to Redis", "addr", cfg.Address)
	return client, nil
}
