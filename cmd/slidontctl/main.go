package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/sujalbistaa/slidont/internal/cache"
	"github.com/sujalbistaa/slidont/internal/config"
	"github.com/sujalbistaa/slidont/internal/db"
	"github.com/sujalbistaa/slidont/internal/moderation"
	"github.com/sujalbistaa/slidont/pkg/logger"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return true
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

func main() {
	_ = godotenv.Load()
	cfg := config.Get()
	// stdout carries command output; logs go to stderr.
	logger.SetDefault(logger.New(os.Stderr, logger.ParseLevel(cfg.LogLevel)))

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil, cfg)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx := context.Background()
	database, err := db.Init(ctx, cfg.DatabaseURL, db.Options{MaxOpenConns: cfg.DBMaxOpenConns})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close(database)

	if err := db.Migrate(database); err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to migrate database: %v\n", err)
		os.Exit(1)
	}

	// Writes made here bump the shared list cache so servers stop serving stale
	// lists. Websocket clients see them on their next fetch.
	var notifiers moderation.Notifiers
	if cfg.RedisURL != "" {
		listCache, err := cache.New(ctx, cfg.RedisURL, time.Duration(cfg.CacheTTL)*time.Second)
		if err != nil {
			logger.Warn(ctx, "Redis unavailable, cached lists may be stale until they expire", "error", err)
		} else {
			defer listCache.Close()
			notifiers = append(notifiers, listCache)
		}
	}

	svc := moderation.NewService(database, moderation.Options{
		Seed:     moderation.SeedConfig{Slug: cfg.SeedSlug, Title: cfg.SeedTitle, Secret: cfg.PresenterSecret},
		Notifier: notifiers,
	})

	app := newCLIApp(svc, cfg)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
