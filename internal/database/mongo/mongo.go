package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"performance-service/internal/config"
	"performance-service/internal/logger"
)

func Connect(ctx context.Context, cfg config.MongoDBConfig, log *logger.Logger) (*mongo.Client, *mongo.Database, error) {
	clientOptions := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.PoolSize).
		SetTimeout(cfg.Timeout)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		log.Error("error connecting to MongoDB", "error", err)
		return nil, nil, err
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		log.Error("error pinging MongoDB", "error", err)
		return nil, nil, err
	}

	log.Info("connected to MongoDB", "database", cfg.Database)
	return client, client.Database(cfg.Database), nil
}

func Disconnect(client *mongo.Client, log *logger.Logger) {
	if client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		log.Error("error disconnecting from MongoDB", "error", err)
	}
}
