// Package gamesync imports teams, schedules, scores and betting lines from
// the upstream provider into the store. Every flow aborts on its first
// failure; re-running a flow is safe because all writes are idempotent.
package gamesync

import (
	"context"
	"fmt"
	"sync"

	"github.com/fortuna/pickem/internal/odds"
	"github.com/fortuna/pickem/internal/report"
	"github.com/fortuna/pickem/internal/store"
	"github.com/fortuna/pickem/internal/tank01"
)

// Operation names used in errors and reports
const (
	OpImportTeams          = "import_teams"
	OpImportSeasonGames    = "import_season_games"
	OpSyncGameData         = "sync_game_data"
	OpImportBettingOptions = "import_betting_options"
)

// SeasonWeeks is the number of regular-season weeks
const SeasonWeeks = 18

// Upstream is the provider the service reads from
type Upstream interface {
	FetchWeekGames(ctx context.Context, year, week int) ([]tank01.Game, error)
	FetchGameStatus(ctx context.Context, externalID string) (*tank01.GameStatus, error)
	FetchGameOdds(ctx context.Context, externalID string) ([]odds.SourceQuote, error)
	FetchAllTeams(ctx context.Context) ([]tank01.Team, error)
}

// TeamStore persists teams
type TeamStore interface {
	Upsert(ctx context.Context, team *store.Team) (int, error)
	GetByAbbr(ctx context.Context, abbr string) (*store.Team, error)
}

// GameStore persists games
type GameStore interface {
	Upsert(ctx context.Context, game store.GameUpsert) (int, error)
	UpsertWeek(ctx context.Context, games []store.GameUpsert) error
	GetGames(ctx context.Context, year, week int) ([]*store.Game, error)
}

// BetOptionStore persists bet options
type BetOptionStore interface {
	InsertIfAbsent(ctx context.Context, opt *store.BetOption) (bool, error)
}

// Service runs the sync flows
type Service struct {
	upstream   Upstream
	teams      TeamStore
	games      GameStore
	betOptions BetOptionStore
	selector   *odds.Selector
	reporter   report.Reporter
}

// NewService wires the sync flows to their collaborators.
// A nil selector uses the default sportsbook preference.
func NewService(upstream Upstream, teams TeamStore, games GameStore, betOptions BetOptionStore, selector *odds.Selector) *Service {
	if selector == nil {
		selector = odds.NewSelector()
	}
	return &Service{
		upstream:   upstream,
		teams:      teams,
		games:      games,
		betOptions: betOptions,
		selector:   selector,
		reporter:   report.Nop{},
	}
}

// WithReporter returns a copy of the service that reports to r
func (s *Service) WithReporter(r report.Reporter) *Service {
	cpy := *s
	cpy.reporter = report.Or(r)
	return &cpy
}

// ImportTeams fetches every team and upserts it by abbreviation
func (s *Service) ImportTeams(ctx context.Context) error {
	s.reporter.OnStart(OpImportTeams, nil)

	teams, err := s.upstream.FetchAllTeams(ctx)
	if err != nil {
		return s.fail(&Error{Op: OpImportTeams, Err: err})
	}

	for i, t := range teams {
		team := &store.Team{
			Abbr:           t.Abbr,
			Name:           t.FullName(),
			Conference:     t.Conference,
			ConferenceAbbr: t.ConferenceAbbr,
			Division:       t.Division,
		}
		if _, err := s.teams.Upsert(ctx, team); err != nil {
			return s.fail(&Error{Op: OpImportTeams, Team: t.Abbr, Err: err})
		}
		s.reporter.OnProgress(OpImportTeams, fmt.Sprintf("upserted %s", t.Abbr), i+1, len(teams))
	}

	s.reporter.OnComplete(OpImportTeams, map[string]any{"teams": len(teams)})
	return nil
}

// ImportSeasonGames imports the schedule for weeks 1 through 18.
// Each week is written atomically after all its teams resolve; a failing
// week aborts the import and leaves earlier weeks committed.
func (s *Service) ImportSeasonGames(ctx context.Context, year int) error {
	s.reporter.OnStart(OpImportSeasonGames, map[string]any{"year": year})

	teamIDs := make(map[string]int)
	total := 0

	for week := 1; week <= SeasonWeeks; week++ {
		if err := ctx.Err(); err != nil {
			return s.fail(&Error{Op: OpImportSeasonGames, Year: year, Week: week, Err: err})
		}

		n, weekErr := s.importWeek(ctx, year, week, teamIDs)
		if weekErr != nil {
			return s.fail(weekErr)
		}
		total += n

		s.reporter.OnProgress(OpImportSeasonGames, fmt.Sprintf("week %d: %d games", week, n), week, SeasonWeeks)
	}

	s.reporter.OnComplete(OpImportSeasonGames, map[string]any{"year": year, "games": total})
	return nil
}

func (s *Service) importWeek(ctx context.Context, year, week int, teamIDs map[string]int) (int, *Error) {
	games, err := s.upstream.FetchWeekGames(ctx, year, week)
	if err != nil {
		return 0, &Error{Op: OpImportSeasonGames, Year: year, Week: week, Err: err}
	}

	upserts := make([]store.GameUpsert, 0, len(games))
	for _, g := range games {
		homeID, err := s.resolveTeam(ctx, g.Home, teamIDs)
		if err != nil {
			return 0, &Error{Op: OpImportSeasonGames, Year: year, Week: week, GameID: g.ExternalID, Team: g.Home, Err: err}
		}
		awayID, err := s.resolveTeam(ctx, g.Away, teamIDs)
		if err != nil {
			return 0, &Error{Op: OpImportSeasonGames, Year: year, Week: week, GameID: g.ExternalID, Team: g.Away, Err: err}
		}

		upserts = append(upserts, store.GameUpsert{
			ExternalID: g.ExternalID,
			Year:       year,
			Week:       week,
			Date:       g.Kickoff,
			HomeTeamID: homeID,
			AwayTeamID: awayID,
		})
	}

	if len(upserts) == 0 {
		return 0, nil
	}
	if err := s.games.UpsertWeek(ctx, upserts); err != nil {
		return 0, &Error{Op: OpImportSeasonGames, Year: year, Week: week, Err: err}
	}
	return len(upserts), nil
}

func (s *Service) resolveTeam(ctx context.Context, abbr string, cache map[string]int) (int, error) {
	if id, ok := cache[abbr]; ok {
		return id, nil
	}
	team, err := s.teams.GetByAbbr(ctx, abbr)
	if err != nil {
		return 0, err
	}
	cache[abbr] = team.ID
	return team.ID, nil
}

// SyncGameData refreshes score, status and kickoff for every stored game of the week
func (s *Service) SyncGameData(ctx context.Context, year, week int) error {
	s.reporter.OnStart(OpSyncGameData, map[string]any{"year": year, "week": week})

	games, err := s.games.GetGames(ctx, year, week)
	if err != nil {
		return s.fail(&Error{Op: OpSyncGameData, Year: year, Week: week, Err: err})
	}

	completed := 0
	for i, game := range games {
		live, err := s.upstream.FetchGameStatus(ctx, game.ExternalID)
		if err != nil {
			return s.fail(&Error{Op: OpSyncGameData, Year: year, Week: week, GameID: game.ExternalID, Err: err})
		}

		date := game.Date
		if live.Kickoff.Valid {
			date = live.Kickoff
		}
		status := live.Status
		home, away := live.HomeScore, live.AwayScore

		_, err = s.games.Upsert(ctx, store.GameUpsert{
			ExternalID: game.ExternalID,
			Year:       game.Year,
			Week:       game.Week,
			Date:       date,
			HomeTeamID: game.HomeTeamID,
			AwayTeamID: game.AwayTeamID,
			Status:     &status,
			HomeScore:  &home,
			AwayScore:  &away,
		})
		if err != nil {
			return s.fail(&Error{Op: OpSyncGameData, Year: year, Week: week, GameID: game.ExternalID, Err: err})
		}

		if status == store.GameStatusCompleted {
			completed++
		}
		s.reporter.OnProgress(OpSyncGameData, fmt.Sprintf("%s %s %d-%d", game.ExternalID, status, away, home), i+1, len(games))
	}

	s.reporter.OnComplete(OpSyncGameData, map[string]any{
		"year":      year,
		"week":      week,
		"games":     len(games),
		"completed": completed,
	})
	return nil
}

// ImportBettingOptions records spread and total options for every stored game
// of the week. Existing options are left untouched.
func (s *Service) ImportBettingOptions(ctx context.Context, year, week int) error {
	s.reporter.OnStart(OpImportBettingOptions, map[string]any{
		"year":  year,
		"week":  week,
		"books": s.selector.Preference(),
	})

	games, err := s.games.GetGames(ctx, year, week)
	if err != nil {
		return s.fail(&Error{Op: OpImportBettingOptions, Year: year, Week: week, Err: err})
	}

	inserted := 0
	for i, game := range games {
		quotes, err := s.upstream.FetchGameOdds(ctx, game.ExternalID)
		if err != nil {
			return s.fail(&Error{Op: OpImportBettingOptions, Year: year, Week: week, GameID: game.ExternalID, Err: err})
		}

		sel, err := s.selector.Select(game.ExternalID, quotes)
		if err != nil {
			return s.fail(&Error{Op: OpImportBettingOptions, Year: year, Week: week, GameID: game.ExternalID, Err: err})
		}

		n, err := s.insertOptions(ctx, BetOptionsFromQuote(game.ID, sel.Quote))
		if err != nil {
			return s.fail(&Error{Op: OpImportBettingOptions, Year: year, Week: week, GameID: game.ExternalID, Err: err})
		}
		inserted += n

		s.reporter.OnProgress(OpImportBettingOptions, fmt.Sprintf("%s: %s, %d new", game.ExternalID, sel.Source, n), i+1, len(games))
	}

	s.reporter.OnComplete(OpImportBettingOptions, map[string]any{
		"year":     year,
		"week":     week,
		"games":    len(games),
		"inserted": inserted,
	})
	return nil
}

// insertOptions writes a game's options concurrently. They have disjoint keys.
// The first error in option order is returned.
func (s *Service) insertOptions(ctx context.Context, opts []*store.BetOption) (int, error) {
	var wg sync.WaitGroup
	created := make([]bool, len(opts))
	errs := make([]error, len(opts))

	for i, opt := range opts {
		wg.Add(1)
		go func(i int, opt *store.BetOption) {
			defer wg.Done()
			created[i], errs[i] = s.betOptions.InsertIfAbsent(ctx, opt)
		}(i, opt)
	}
	wg.Wait()

	n := 0
	for i := range opts {
		if errs[i] != nil {
			return 0, errs[i]
		}
		if created[i] {
			n++
		}
	}
	return n, nil
}

// BetOptionsFromQuote expands a complete quote into the four bet options of a game
func BetOptionsFromQuote(gameID int, q odds.Quote) []*store.BetOption {
	return []*store.BetOption{
		{GameID: gameID, Type: store.BetTypeSpread, Target: store.BetTargetHome, Line: q.HomeSpread, Odds: q.HomeSpreadOdds},
		{GameID: gameID, Type: store.BetTypeSpread, Target: store.BetTargetAway, Line: q.AwaySpread, Odds: q.AwaySpreadOdds},
		{GameID: gameID, Type: store.BetTypeTotal, Target: store.BetTargetOver, Line: q.TotalOver, Odds: q.TotalOverOdds},
		{GameID: gameID, Type: store.BetTypeTotal, Target: store.BetTargetUnder, Line: q.TotalUnder, Odds: q.TotalUnderOdds},
	}
}

func (s *Service) fail(err *Error) error {
	s.reporter.OnError(err.Op, err)
	return err
}
