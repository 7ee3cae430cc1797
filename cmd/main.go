/**
 * @description
 * Entry point for the subscription tracker.
 * It wires configuration, Postgres, the optional Redis and RabbitMQ integrations,
 * the renewal reminder scheduler, and the HTTP API, then serves until signalled.
 */
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/MajXin/Subscription-management-sys/internal/api"
	"github.com/MajXin/Subscription-management-sys/internal/app"
	"github.com/MajXin/Subscription-management-sys/internal/config"
	"github.com/MajXin/Subscription-management-sys/internal/store"
	subrabbit "github.com/MajXin/Subscription-management-sys/pkg/rabbitmq"
	"github.com/MajXin/Subscription-management-sys/pkg/ratelimit"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Load .env file for local development.
	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, using environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	pgConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("unable to parse database URL", "error", err)
		os.Exit(1)
	}
	pgConfig.MaxConns = 100
	pgConfig.MinConns = 20
	pgConfig.MaxConnLifetime = 30 * time.Minute
	pgConfig.MaxConnIdleTime = 5 * time.Minute
	pgConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(ctx, pgConfig)
	if err != nil {
		logger.Error("unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()
	logger.Info("database connection established")

	repository := store.NewRepository(dbpool)

	var publisher app.EventPublisher = &subrabbit.EventProducerFallback{}
	if cfg.RabbitMQURL != "" {
		if producer, err := subrabbit.NewEventProducer(cfg.RabbitMQURL); err == nil {
			publisher = producer
			defer producer.Close()
			logger.Info("rabbitmq producer connected", "exchange", cfg.EventsExchange)
		} else {
			logger.Warn("failed to connect to RabbitMQ, using fallback publisher", "error", err)
		}
	}

	var (
		ledger  app.ReminderLedger
		limiter api.RateLimiter
	)
	if redisClient := connectRedis(ctx, logger, cfg.RedisURL); redisClient != nil {
		defer redisClient.Close()
		ledger = store.NewReminderLedger(redisClient, cfg.RedisKeyPrefix)
		limiter = ratelimit.NewRedisLimiter(redisClient, cfg.RedisKeyPrefix)
	} else {
		logger.Warn("redis unavailable; rate limiting and reminder de-duplication disabled")
	}

	service := app.NewService(repository, publisher, ledger, cfg.EventsExchange)

	scheduler := app.NewScheduler(service, logger, cfg.ReminderSchedule, cfg.ReminderWindowDays)
	if err := scheduler.Start(); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	handler := api.NewHandler(service, cfg.UpcomingWindowDays, cfg.ReminderWindowDays)
	router := api.NewRouter(handler, api.RouterOptions{
		Auth: api.AuthOptions{
			JWKSURL:  cfg.AuthJWKSURL,
			Audience: cfg.AuthAudience,
			Issuer:   cfg.AuthIssuer,
		},
		InternalAPIKey:    cfg.InternalAPIKey,
		Limiter:           limiter,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-sigCh
	logger.Info("shutdown signal received, gracefully shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
		logger.Info("scheduler stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Warn("scheduler did not stop before shutdown deadline")
	}

	logger.Info("server stopped")
}

// connectRedis returns a connected client, or nil when Redis is not configured or unreachable.
func connectRedis(ctx context.Context, logger *slog.Logger, redisURL string) *redis.Client {
	if redisURL == "" {
		return nil
	}

	options, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("redis url parse failed", "error", err)
		return nil
	}

	client := redis.NewClient(options)
	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	defer cancelPing()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis ping failed", "error", err)
		client.Close()
		return nil
	}

	logger.Info("redis connected")
	return client
}
