// Package task composes the sync and grading flows into the named
// operations exposed by the CLI and the ops server.
package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fortuna/pickem/internal/config"
	"github.com/fortuna/pickem/internal/gamesync"
	"github.com/fortuna/pickem/internal/grading"
	"github.com/fortuna/pickem/internal/report"
)

// Name identifies a task
type Name string

const (
	SyncTeams    Name = "sync-teams"
	SyncSeason   Name = "sync-season"
	UpdateGames  Name = "update-games"
	SetupBetting Name = "setup-betting"
	GradePicks   Name = "grade-picks"
)

// Names lists every task in display order
var Names = []Name{SyncTeams, SyncSeason, UpdateGames, SetupBetting, GradePicks}

// Request selects a task and the season/week it runs on
type Request struct {
	Task Name `json:"task"`
	Year int  `json:"year,omitempty"`
	Week int  `json:"week,omitempty"`
}

// NeedsYear reports whether the task takes a season year
func (n Name) NeedsYear() bool {
	return n != SyncTeams
}

// NeedsWeek reports whether the task takes a week
func (n Name) NeedsWeek() bool {
	return n != SyncTeams && n != SyncSeason
}

// Known reports whether n names a task
func (n Name) Known() bool {
	switch n {
	case SyncTeams, SyncSeason, UpdateGames, SetupBetting, GradePicks:
		return true
	}
	return false
}

// Validate checks the task name and the arguments it needs
func (r Request) Validate() error {
	if !r.Task.Known() {
		return fmt.Errorf("unknown task %q", r.Task)
	}
	if r.Task.NeedsYear() {
		if err := config.ValidateYear(r.Year); err != nil {
			return err
		}
	}
	if r.Task.NeedsWeek() {
		if err := config.ValidateWeek(r.Week); err != nil {
			return err
		}
	}
	return nil
}

// Syncer runs the upstream sync flows
type Syncer interface {
	ImportTeams(ctx context.Context) error
	ImportSeasonGames(ctx context.Context, year int) error
	SyncGameData(ctx context.Context, year, week int) error
	ImportBettingOptions(ctx context.Context, year, week int) error
}

// Grader grades a week of picks
type Grader interface {
	GradeWeekPicks(ctx context.Context, year, week int) error
}

// Locker serializes grading of a week across processes
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (unlock func(context.Context) error, err error)
}

// Invalidator drops cached game listings after games change
type Invalidator interface {
	InvalidateWeek(ctx context.Context, year, week int) error
	InvalidateSeason(ctx context.Context, year int) error
}

// Runner executes tasks
type Runner struct {
	flows   func(report.Reporter) (Syncer, Grader)
	locker  Locker
	lockTTL time.Duration
	cache   Invalidator
}

// NewRunner creates a Runner over the sync service and grading engine
func NewRunner(sync *gamesync.Service, engine *grading.Engine) *Runner {
	return newRunner(func(r report.Reporter) (Syncer, Grader) {
		return sync.WithReporter(r), engine.WithReporter(r)
	})
}

func newRunner(flows func(report.Reporter) (Syncer, Grader)) *Runner {
	return &Runner{flows: flows, lockTTL: 5 * time.Minute}
}

// WithLocker makes grade-picks hold a lock for the week while it runs
func (r *Runner) WithLocker(l Locker, ttl time.Duration) *Runner {
	r.locker = l
	if ttl > 0 {
		r.lockTTL = ttl
	}
	return r
}

// WithCache makes successful runs invalidate the cached game listings
func (r *Runner) WithCache(c Invalidator) *Runner {
	r.cache = c
	return r
}

// LockKey names the grading lock of a week
func LockKey(year, week int) string {
	return fmt.Sprintf("pickem:lock:grade:%d:%d", year, week)
}

// Run validates the request and executes it, reporting to rep
func (r *Runner) Run(ctx context.Context, req Request, rep report.Reporter) error {
	if err := req.Validate(); err != nil {
		return err
	}

	// A failed flow may still have committed some writes
	defer r.invalidate(ctx, req)

	sync, grader := r.flows(report.Or(rep))

	var err error
	switch req.Task {
	case SyncTeams:
		err = sync.ImportTeams(ctx)
	case SyncSeason:
		err = sync.ImportSeasonGames(ctx, req.Year)
	case UpdateGames:
		err = sync.SyncGameData(ctx, req.Year, req.Week)
	case SetupBetting:
		err = r.setupBetting(ctx, sync, req.Year, req.Week)
	case GradePicks:
		err = r.gradePicks(ctx, sync, grader, req.Year, req.Week)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", req.Task, err)
	}
	return nil
}

func (r *Runner) setupBetting(ctx context.Context, sync Syncer, year, week int) error {
	if err := sync.SyncGameData(ctx, year, week); err != nil {
		return err
	}
	return sync.ImportBettingOptions(ctx, year, week)
}

func (r *Runner) gradePicks(ctx context.Context, sync Syncer, grader Grader, year, week int) (err error) {
	if r.locker != nil {
		unlock, lockErr := r.locker.Lock(ctx, LockKey(year, week), r.lockTTL)
		if lockErr != nil {
			return lockErr
		}
		defer func() {
			if uErr := unlock(context.WithoutCancel(ctx)); uErr != nil {
				err = errors.Join(err, uErr)
			}
		}()
	}

	if err := sync.SyncGameData(ctx, year, week); err != nil {
		return err
	}
	return grader.GradeWeekPicks(ctx, year, week)
}

func (r *Runner) invalidate(ctx context.Context, req Request) {
	if r.cache == nil || req.Task == SyncTeams {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	var err error
	if req.Task == SyncSeason {
		err = r.cache.InvalidateSeason(ctx, req.Year)
	} else {
		err = r.cache.InvalidateWeek(ctx, req.Year, req.Week)
	}
	if err != nil {
		slog.Warn("invalidate games cache failed", "task", req.Task, "year", req.Year, "week", req.Week, "error", err)
	}
}
