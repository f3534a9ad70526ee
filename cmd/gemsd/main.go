// Package main is the entry point for the gems mediation service.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gems-mediator/internal/config"
	"gems-mediator/internal/pkg/db"
	"gems-mediator/internal/pkg/lock"
	"gems-mediator/internal/platform"
	"gems-mediator/internal/repository"
	"gems-mediator/internal/service"
	"gems-mediator/internal/transport"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().Msg("Configuration loaded successfully")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	// Run database migrations
	if err := runMigrations(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Platform boundary: session registry, event bus, tick loop
	sessions := platform.NewSessionRegistry()
	bus := platform.NewEventBus()
	loop := platform.NewTickLoop()

	// Transport doubles as the placeholder oracle once a platform attaches
	platformServer := transport.NewServer(bus, sessions, loop)

	// Repositories and locks
	profileRepo := repository.NewProfileRepository(dbPool.Pool)
	playerLock := lock.NewPlayerLock()

	// Core services
	resolver := service.NewMultiplierResolver(cfg.Prestige.Namespace)
	gateway := service.NewGrantGateway(profileRepo, playerLock, cfg.Economy.StartingGems)

	mediator := service.NewCommandMediator(sessions, resolver, gateway)
	mediator.Register(bus)

	tracker := service.NewPrestigeTracker(
		profileRepo,
		gateway,
		platformServer,
		resolver,
		loop,
		playerLock,
		cfg.Economy.StartingGems,
		service.PrestigeConfig{
			GemRewardBase:      cfg.Prestige.GemRewardBase,
			MultiplierPerLevel: cfg.Prestige.MultiplierPerLevel,
			PlaceholderKey:     cfg.Prestige.PlaceholderKey,
			CommandKeyword:     cfg.Prestige.CommandKeyword,
		},
	)
	tracker.Register(bus)

	accrual := service.NewPlaytimeAccrual(
		gateway,
		platformServer,
		resolver,
		gateway.EnsureProfile,
		service.PlaytimeConfig{
			PerHour:        cfg.Playtime.PerHour,
			DailyCap:       cfg.Playtime.DailyCap,
			PlaceholderKey: cfg.Playtime.PlaceholderKey,
		},
	)
	accrual.Register(bus)

	leaderboard := service.NewLeaderboard(profileRepo, sessions, service.LeaderboardConfig{
		Entries:        cfg.Leaderboard.Entries,
		UpdateInterval: cfg.Leaderboard.UpdateInterval,
		Broadcast:      cfg.Leaderboard.Broadcast,
		Title:          cfg.Leaderboard.Title,
	})

	go loop.Run(ctx)
	go leaderboard.Run(ctx)

	// HTTP listener for the platform channel
	mux := http.NewServeMux()
	mux.HandleFunc("/platform", platformServer.Handler())

	httpServer := &http.Server{
		Addr:    cfg.Transport.ListenAddr,
		Handler: mux,
	}

	go func() {
		log.Info().Str("addr", cfg.Transport.ListenAddr).Msg("Listening for platform connection")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	cancel()
	log.Info().Msg("Stopped gracefully")
}

// runMigrations executes database migrations.
func runMigrations(ctx context.Context, pool *db.Pool) error {
	log.Info().Msg("Running database migrations...")

	// Migration 1: Create player_profiles table
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS player_profiles (
			name VARCHAR(64) PRIMARY KEY,
			balance DOUBLE PRECISION NOT NULL DEFAULT 0,
			prestige_level INT NOT NULL DEFAULT 0,
			gem_multiplier DOUBLE PRECISION NOT NULL DEFAULT 1.0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_player_profiles_balance ON player_profiles(balance DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 1: player_profiles table created")

	log.Info().Msg("All migrations completed successfully")
	return nil
}
