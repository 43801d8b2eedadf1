package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fortuna/pickem/internal/cache"
	"github.com/fortuna/pickem/internal/config"
	"github.com/fortuna/pickem/internal/gamesync"
	"github.com/fortuna/pickem/internal/grading"
	"github.com/fortuna/pickem/internal/logging"
	"github.com/fortuna/pickem/internal/odds"
	"github.com/fortuna/pickem/internal/store"
	"github.com/fortuna/pickem/internal/store/repository"
	"github.com/fortuna/pickem/internal/tank01"
	"github.com/fortuna/pickem/internal/task"
)

const (
	appName    = "pickem"
	appVersion = "1.0.0"
)

func main() {
	cmd, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(2)
	}

	if err := run(cmd); err != nil {
		slog.Error("command failed", "command", cmd.name, "error", err)
		os.Exit(1)
	}
}

func run(cmd command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat, appName)
	logger.Debug("starting", "version", appVersion, "command", cmd.name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cmd.name == cmdMigrate {
		if cfg.DatabaseURL == "" {
			return errors.New("missing required configuration: DATABASE_URL")
		}
		db, err := store.NewDatabase(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		return db.RunMigrations(ctx)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	db, err := store.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	runner := newRunner(cfg, db)

	if cfg.RedisURL != "" {
		rc, err := cache.NewRedisCache(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rc.Close()
		runner.WithLocker(rc, cfg.GradeLockTTL).WithCache(rc)
	}

	if err := runner.Run(ctx, cmd.request, logging.NewReporter(logger)); err != nil {
		return err
	}
	logger.Info("done", "command", cmd.name)
	return nil
}

func newRunner(cfg *config.Config, db *store.Database) *task.Runner {
	client := tank01.NewClient(tank01.Config{
		BaseURL: cfg.Tank01BaseURL,
		APIKey:  cfg.RapidAPIKey,
		APIHost: cfg.RapidAPIHost,
		Timeout: cfg.HTTPTimeout,
	})

	sync := gamesync.NewService(
		client,
		repository.NewTeamRepository(db),
		repository.NewGameRepository(db),
		repository.NewBetOptionRepository(db),
		odds.NewSelector(cfg.PreferredBooks...),
	)
	engine := grading.NewEngine(repository.NewPickRepository(db))

	return task.NewRunner(sync, engine)
}
