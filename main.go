package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"market-signals/config"
	"market-signals/internal/api"
	"market-signals/internal/auth"
	"market-signals/internal/cache"
	"market-signals/internal/database"
	"market-signals/internal/engine"
	"market-signals/internal/events"
	"market-signals/internal/logging"
	"market-signals/internal/marketdata"
	"market-signals/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config error: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := logging.New(cfg.LoggingConfig)
	logger.Info().Msg("Starting market-signals")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional Redis cache.
	var cacheSvc *cache.Service
	if cfg.RedisConfig.Enabled {
		cacheSvc, err = cache.New(cfg.RedisConfig, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("Cache unavailable, continuing without it")
			cacheSvc = nil
		}
	}

	// Optional PostgreSQL persistence.
	var repo *database.Repository
	if cfg.DatabaseConfig.Enabled {
		db, err := database.New(cfg.DatabaseConfig.URL, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Database connection failed")
		}
		defer db.Close()

		if err := db.RunMigrations(ctx); err != nil {
			logger.Fatal().Err(err).Msg("Migrations failed")
		}
		repo = database.NewRepository(db)
	}

	// Candle providers behind a shared rate limiter, chart API first with
	// CSV fallback.
	limiter := marketdata.NewRateLimiter(cfg.MarketDataConfig.RequestsPerMinute, time.Minute)
	provider := marketdata.NewChain(logger,
		marketdata.NewChartClient(cfg.MarketDataConfig.ChartBaseURL, limiter),
		marketdata.NewCSVClient(cfg.MarketDataConfig.CSVBaseURL, limiter),
	)

	bus := events.NewBus()
	eng := engine.New(cfg, provider, cacheSvc, repo, bus, logger)

	var authService *auth.Service
	if cfg.AuthConfig.Enabled {
		if repo == nil {
			logger.Fatal().Msg("Auth requires the database to be enabled")
		}
		authService = auth.NewService(repo, cfg.AuthConfig.JWTSecret,
			cfg.AuthConfig.AccessTokenDuration, cfg.AuthConfig.MinPasswordLength, logger)
	}

	if cfg.SchedulerConfig.Enabled {
		sched := scheduler.New(eng, bus, cfg.SchedulerConfig.Markets,
			time.Duration(cfg.SchedulerConfig.RefreshInterval)*time.Minute, logger)
		go sched.Run(ctx)
	}

	server := api.NewServer(cfg.ServerConfig, eng, repo, authService, bus, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("Server exited")
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Shutdown error")
	}
	if cacheSvc != nil {
		cacheSvc.Close()
	}
	logger.Info().Msg("Stopped")
}
