package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fortuna/pickem/internal/api/rest"
	"github.com/fortuna/pickem/internal/api/websocket"
	"github.com/fortuna/pickem/internal/cache"
	"github.com/fortuna/pickem/internal/config"
	"github.com/fortuna/pickem/internal/gamesync"
	"github.com/fortuna/pickem/internal/grading"
	"github.com/fortuna/pickem/internal/logging"
	"github.com/fortuna/pickem/internal/odds"
	"github.com/fortuna/pickem/internal/publisher"
	"github.com/fortuna/pickem/internal/report"
	"github.com/fortuna/pickem/internal/runs"
	"github.com/fortuna/pickem/internal/store"
	"github.com/fortuna/pickem/internal/store/repository"
	"github.com/fortuna/pickem/internal/tank01"
	"github.com/fortuna/pickem/internal/task"
)

const (
	serviceName    = "pickem-server"
	serviceVersion = "1.0.0"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat, serviceName)
	logger.Info("starting", "version", serviceVersion)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection
	db, err := store.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		logger.Error("failed to run database migrations", "error", err)
		os.Exit(1)
	}

	teams := repository.NewTeamRepository(db)
	games := repository.NewGameRepository(db)
	betOptions := repository.NewBetOptionRepository(db)

	client := tank01.NewClient(tank01.Config{
		BaseURL: cfg.Tank01BaseURL,
		APIKey:  cfg.RapidAPIKey,
		APIHost: cfg.RapidAPIHost,
		Timeout: cfg.HTTPTimeout,
	})
	sync := gamesync.NewService(client, teams, games, betOptions, odds.NewSelector(cfg.PreferredBooks...))
	engine := grading.NewEngine(repository.NewPickRepository(db))
	runner := task.NewRunner(sync, engine)

	hub := websocket.NewHub()
	go hub.Run(ctx)

	observers := []runs.ReporterFactory{
		hub.Reporter,
		func(runID string) report.Reporter {
			return logging.NewReporter(logger.With("run_id", runID))
		},
	}

	deps := rest.Deps{
		Teams:      teams,
		Games:      games,
		BetOptions: betOptions,
		CacheTTL:   cfg.GamesCacheTTL,
		DB:         db,
	}

	// Redis is optional: it backs the grading lock, the games cache and the event stream
	if cfg.RedisURL != "" {
		redisCache, err := connectRedis(cfg.RedisURL, logger)
		if err != nil {
			logger.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer redisCache.Close()

		runner.WithLocker(redisCache, cfg.GradeLockTTL).WithCache(redisCache)
		deps.Cache = redisCache
		deps.Redis = redisCache

		pub := publisher.NewRedisStreamPublisher(redisCache.Client())
		observers = append(observers, pub.Reporter)
	} else {
		logger.Warn("REDIS_URL not set; grading lock, games cache and event stream disabled")
	}

	manager := runs.NewManager(runner, cfg.MaxRunHistory, observers...)
	manager.Start()
	deps.Runs = manager

	restServer := rest.NewServer(cfg.RESTPort, deps)
	websocket.NewServer(ctx, hub).RegisterRoutes(restServer.Router())

	go func() {
		logger.Info("REST API listening", "port", cfg.RESTPort)
		if err := restServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("REST server error", "error", err)
			cancel()
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := restServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("REST server shutdown error", "error", err)
	}
	// Cancel the in-flight run and wait for its final events before the hub goes away
	if err := manager.Shutdown(shutdownCtx); err != nil {
		logger.Error("run manager shutdown error", "error", err)
	}
	cancel()

	logger.Info("stopped")
}

// connectRedis retries while Redis comes up alongside the service
func connectRedis(url string, logger *slog.Logger) (*cache.RedisCache, error) {
	const (
		maxRetries = 10
		retryDelay = 2 * time.Second
	)

	var err error
	for i := 0; i < maxRetries; i++ {
		var rc *cache.RedisCache
		rc, err = cache.NewRedisCache(url)
		if err == nil {
			return rc, nil
		}
		logger.Warn("Redis connection attempt failed", "attempt", i+1, "max", maxRetries, "error", err)
		time.Sleep(retryDelay)
	}
	return nil, err
}
