package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/sujalbistaa/slidont/internal/cache"
	"github.com/sujalbistaa/slidont/internal/config"
	"github.com/sujalbistaa/slidont/internal/db"
	routes "github.com/sujalbistaa/slidont/internal/http"
	"github.com/sujalbistaa/slidont/internal/moderation"
	"github.com/sujalbistaa/slidont/internal/queue"
	"github.com/sujalbistaa/slidont/internal/worker"
	"github.com/sujalbistaa/slidont/internal/ws"
	"github.com/sujalbistaa/slidont/pkg/logger"
)

func main() {
	// A missing .env is fine; production sets the environment directly.
	envErr := godotenv.Load()

	cfg := config.Get()
	logger.SetDefault(logger.New(os.Stdout, logger.ParseLevel(cfg.LogLevel)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if envErr != nil {
		logger.Debug(ctx, "No .env file found, reading from environment")
	}

	database, err := db.Init(ctx, cfg.DatabaseURL, db.Options{
		MaxOpenConns: cfg.DBMaxOpenConns,
		Debug:        cfg.LogLevel == "debug",
	})
	if err != nil {
		logger.Error(ctx, "Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close(database)

	logger.Info(ctx, "Running database migrations")
	if err := db.Migrate(database); err != nil {
		logger.Error(ctx, "Failed to run migrations", "error", err)
		os.Exit(1)
	}

	hub := ws.NewHub()
	go hub.Run(ctx)

	var listCache *cache.Cache
	if cfg.RedisURL != "" {
		listCache, err = cache.New(ctx, cfg.RedisURL, time.Duration(cfg.CacheTTL)*time.Second)
		if err != nil {
			// Lists are served straight from the database instead.
			logger.Warn(ctx, "Redis unavailable, list cache disabled", "error", err)
		}
		defer listCache.Close()
	}

	// With Kafka, changes reach the local hub through the relay so every
	// replica broadcasts the same stream.
	notifiers := moderation.Notifiers{listCache}
	if cfg.KafkaEnabled() {
		queue.EnsureTopic(ctx, cfg.KafkaBrokers, cfg.KafkaTopic)
		publisher := queue.NewPublisher(ctx, cfg.KafkaBrokers, cfg.KafkaTopic)
		defer publisher.Close()
		notifiers = append(notifiers, publisher)
		go worker.RunRelay(ctx, worker.RelayConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic}, hub)
	} else {
		notifiers = append(notifiers, hub)
	}

	svc := moderation.NewService(database, moderation.Options{
		Seed: moderation.SeedConfig{
			Slug:   cfg.SeedSlug,
			Title:  cfg.SeedTitle,
			Secret: cfg.PresenterSecret,
		},
		Notifier: notifiers,
	})
	event, err := svc.Events.EnsureSeed(ctx)
	if err != nil {
		logger.Error(ctx, "Failed to seed default event", "error", err)
		os.Exit(1)
	}
	logger.Info(ctx, "Default event ready", "slug", event.Slug, "event_id", event.ID)
	if cfg.PresenterSecret == "" {
		logger.Warn(ctx, "PRESENTER_SECRET not set; a random secret was stored for a new event. Use slidontctl event --show-secret to read it.")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	routes.SetupRoutes(ctx, router, &routes.Env{DB: database, Svc: svc, Cache: listCache}, routes.RouterOptions{
		CORSOrigin: cfg.CORSOrigin,
		Hub:        hub,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info(ctx, "HTTP server listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "Server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info(context.Background(), "Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "Server forced to shutdown", "error", err)
	}
	logger.Info(shutdownCtx, "Server exiting")
}
