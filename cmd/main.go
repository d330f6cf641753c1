package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"performance-service/internal/achievement"
	"performance-service/internal/config"
	"performance-service/internal/database/mongo"
	"performance-service/internal/database/redis"
	"performance-service/internal/event"
	"performance-service/internal/handlers"
	"performance-service/internal/logger"
	"performance-service/internal/middleware"
	"performance-service/internal/observability"
	"performance-service/internal/repository"
	"performance-service/internal/service"
	"performance-service/internal/stats"
	"performance-service/pkg/discovery"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Observability.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := observability.InitOTel(ctx, log, observability.OtelConfig{
		Enabled:     cfg.Observability.OtelEnabled,
		ServiceName: cfg.Server.ServiceName,
		Environment: cfg.Observability.Environment,
		Version:     cfg.Observability.Version,
	})

	mongoClient, database, err := mongo.Connect(ctx, cfg.MongoDB, log)
	if err != nil {
		log.Fatal("failed to connect to MongoDB", "error", err)
	}

	studentRepo := repository.NewStudentRepository(database)
	resultRepo := repository.NewResultRepository(database)

	idxCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if err := studentRepo.CreateIndexes(idxCtx); err != nil {
		log.Warn("failed to create student indexes", "error", err)
	}
	if err := resultRepo.CreateIndexes(idxCtx); err != nil {
		log.Warn("failed to create quiz result indexes", "error", err)
	}
	cancel()

	var cache service.Cache
	if cfg.Redis.Enabled {
		redisClient, err := redis.Connect(ctx, cfg.Redis, log)
		if err != nil {
			log.Warn("Redis unavailable, analytics caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			cache = repository.NewCacheRepository(redisClient, cfg.Performance.CacheTTL)
		}
	}

	// publisher stays a nil interface unless RabbitMQ is reachable
	var publisher service.Publisher
	var eventPublisher *event.EventPublisher
	if cfg.RabbitMQ.URI != "" {
		eventPublisher, err = event.NewEventPublisher(cfg.RabbitMQ.URI, cfg.RabbitMQ.Exchange, log)
		if err != nil {
			log.Warn("failed to initialize event publisher", "error", err)
		} else {
			publisher = eventPublisher
		}
	} else {
		log.Info("RabbitMQ not configured, events will not be published")
	}

	clock := stats.SystemClock{}
	resultService := service.NewResultService(service.ResultServiceDeps{
		Students:  studentRepo,
		Results:   resultRepo,
		Evaluator: achievement.NewEvaluator(achievement.DefaultCatalog()),
		Publisher: publisher,
		Cache:     cache,
		Clock:     clock,
		Log:       log.With("component", "results"),
	}, cfg.Performance)
	analyticsService := service.NewAnalyticsService(service.AnalyticsServiceDeps{
		Results: resultRepo,
		Cache:   cache,
		Clock:   clock,
		Log:     log.With("component", "analytics"),
	}, cfg.Performance)

	var consumer *event.EventConsumer
	if cfg.RabbitMQ.URI != "" {
		consumer, err = event.NewEventConsumer(cfg.RabbitMQ.URI, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.QueueName,
			resultService, log.With("component", "consumer"))
		if err != nil {
			log.Warn("failed to initialize event consumer", "error", err)
		} else if err := consumer.Start(ctx); err != nil {
			log.Warn("failed to start event consumer", "error", err)
			consumer.Close()
			consumer = nil
		}
	}

	gin.SetMode(gin.ReleaseMode)
	if cfg.Observability.LogMode == "dev" {
		gin.SetMode(gin.DebugMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.Server.ServiceName))
	r.Use(middleware.RequestLogger(log.With("component", "http")))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Content-Length", "Accept-Encoding", "Authorization", "accept", "origin", "Cache-Control", "X-Requested-With", middleware.UserIDHeader},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterRoutes(r,
		handlers.NewResultHandler(resultService),
		handlers.NewAnalyticsHandler(analyticsService),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	var registry *discovery.ServiceRegistry
	if cfg.Consul.ConsulAddress != "" {
		registry, err = discovery.NewServiceRegistry(cfg, log)
		if err != nil {
			log.Warn("service discovery init failed", "error", err)
		} else if err := registry.Register(); err != nil {
			log.Warn("service registration failed", "error", err)
			registry = nil
		}
	}

	go func() {
		log.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("error starting server", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if registry != nil {
		if err := registry.Deregister(); err != nil {
			log.Warn("error deregistering from service discovery", "error", err)
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("error shutting down HTTP server", "error", err)
	}
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			log.Warn("error closing event consumer", "error", err)
		}
	}
	if eventPublisher != nil {
		eventPublisher.Close()
	}
	mongo.Disconnect(mongoClient, log)
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("error shutting down tracing", "error", err)
	}
	log.Info("server shutdown complete")
}
