// Package grading settles user picks against final game results.
//
// Grading is all or nothing per week: every pick is checked and its outcome
// computed before any status is written, and the writes share one
// transaction.
package grading

import (
	"context"
	"errors"
	"fmt"

	"github.com/fortuna/pickem/internal/report"
	"github.com/fortuna/pickem/internal/store"
	"github.com/fortuna/pickem/internal/store/repository"
)

// OpGradeWeekPicks names the grading flow in reports
const OpGradeWeekPicks = "grade_week_picks"

// PickStore reads picks with their relations and persists outcomes
type PickStore interface {
	GetWithGameAndOption(ctx context.Context, year, week int) ([]*store.PickRecord, error)
	UpdateStatuses(ctx context.Context, transitions []store.PickTransition) error
}

// Summary counts what a grading pass did
type Summary struct {
	Picks     int `json:"picks"`
	Won       int `json:"won"`
	Lost      int `json:"lost"`
	Push      int `json:"push"`
	Unchanged int `json:"unchanged"`
}

// Engine grades picks
type Engine struct {
	picks    PickStore
	reporter report.Reporter
}

// NewEngine creates a grading engine
func NewEngine(picks PickStore) *Engine {
	return &Engine{picks: picks, reporter: report.Nop{}}
}

// WithReporter returns a copy of the engine that reports to r
func (e *Engine) WithReporter(r report.Reporter) *Engine {
	cpy := *e
	cpy.reporter = report.Or(r)
	return &cpy
}

// GradeWeekPicks grades every pick placed on the week's games
func (e *Engine) GradeWeekPicks(ctx context.Context, year, week int) error {
	_, err := e.Grade(ctx, year, week)
	return err
}

// Grade is GradeWeekPicks returning the per-outcome counts
func (e *Engine) Grade(ctx context.Context, year, week int) (*Summary, error) {
	e.reporter.OnStart(OpGradeWeekPicks, map[string]any{"year": year, "week": week})

	records, err := e.picks.GetWithGameAndOption(ctx, year, week)
	if err != nil {
		return nil, e.fail(&Error{Year: year, Week: week, Err: err})
	}

	transitions, summary, planErr := plan(records)
	if planErr != nil {
		planErr.Year, planErr.Week = year, week
		return nil, e.fail(planErr)
	}
	e.reporter.OnProgress(OpGradeWeekPicks, fmt.Sprintf("%d picks checked, %d to update", len(records), len(transitions)), len(records), len(records))

	if err := e.picks.UpdateStatuses(ctx, transitions); err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			err = fmt.Errorf("%w: %w", ErrGradeConflict, err)
		}
		return nil, e.fail(&Error{Year: year, Week: week, Err: err})
	}

	e.reporter.OnComplete(OpGradeWeekPicks, map[string]any{
		"year":      year,
		"week":      week,
		"picks":     summary.Picks,
		"won":       summary.Won,
		"lost":      summary.Lost,
		"push":      summary.Push,
		"unchanged": summary.Unchanged,
	})
	return summary, nil
}

// plan validates every record and computes the transitions to apply.
// It writes nothing.
func plan(records []*store.PickRecord) ([]store.PickTransition, *Summary, *Error) {
	summary := &Summary{Picks: len(records)}
	var transitions []store.PickTransition

	for _, rec := range records {
		if rec.BetOption == nil {
			return nil, nil, &Error{PickID: rec.Pick.ID, Err: ErrMissingBetOption}
		}
		if rec.Game == nil {
			return nil, nil, &Error{PickID: rec.Pick.ID, Err: ErrMissingGame}
		}
		if rec.Game.Status != store.GameStatusCompleted {
			return nil, nil, &Error{
				PickID: rec.Pick.ID,
				Err:    fmt.Errorf("game %s is %s: %w", rec.Game.ExternalID, rec.Game.Status, ErrGameNotCompleted),
			}
		}

		outcome, err := Grade(rec.BetOption, rec.Game)
		if err != nil {
			return nil, nil, &Error{PickID: rec.Pick.ID, Err: err}
		}

		switch {
		case rec.Pick.Status == store.PickStatusPending:
			transitions = append(transitions, store.PickTransition{PickID: rec.Pick.ID, Status: outcome})
		case !rec.Pick.Status.Terminal():
			return nil, nil, &Error{
				PickID: rec.Pick.ID,
				Err:    fmt.Errorf("stored status %q is not gradeable: %w", rec.Pick.Status, ErrGradeConflict),
			}
		case rec.Pick.Status == outcome:
			summary.Unchanged++
			continue
		default:
			return nil, nil, &Error{
				PickID: rec.Pick.ID,
				Err:    fmt.Errorf("stored %s, computed %s: %w", rec.Pick.Status, outcome, ErrGradeConflict),
			}
		}

		switch outcome {
		case store.PickStatusWon:
			summary.Won++
		case store.PickStatusLost:
			summary.Lost++
		case store.PickStatusPush:
			summary.Push++
		}
	}

	return transitions, summary, nil
}

func (e *Engine) fail(err error) error {
	e.reporter.OnError(OpGradeWeekPicks, err)
	return err
}
