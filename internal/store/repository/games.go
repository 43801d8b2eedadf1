package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fortuna/pickem/internal/store"
)

const gameColumns = `id, external_id, year, week, date, home_team_id, away_team_id,
	home_team_score, away_team_score, game_status, system_status, created_at, updated_at`

// Nil status/scores fall back to the stored value, or to the column default on insert.
const upsertGameQuery = `
	INSERT INTO games (
		external_id, year, week, date, home_team_id, away_team_id,
		game_status, home_team_score, away_team_score
	)
	VALUES (
		$1, $2, $3, $4, $5, $6,
		COALESCE($7::game_status, 'not-started'), COALESCE($8::int, 0), COALESCE($9::int, 0)
	)
	ON CONFLICT (year, week, home_team_id, away_team_id) DO UPDATE SET
		date = EXCLUDED.date,
		game_status = COALESCE($7::game_status, games.game_status),
		home_team_score = COALESCE($8::int, games.home_team_score),
		away_team_score = COALESCE($9::int, games.away_team_score),
		updated_at = NOW()
	RETURNING id
`

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GameRepository handles game data access
type GameRepository struct {
	db *store.Database
}

// NewGameRepository creates a new game repository
func NewGameRepository(db *store.Database) *GameRepository {
	return &GameRepository{db: db}
}

// Upsert inserts a game keyed by (year, week, home, away) or refreshes its
// date, status and scores. External ID and team references are kept from creation.
func (r *GameRepository) Upsert(ctx context.Context, game store.GameUpsert) (int, error) {
	return upsertGame(ctx, r.db.DB(), game)
}

// UpsertWeek upserts a batch of games in one transaction.
// Either every game is written or none is.
func (r *GameRepository) UpsertWeek(ctx context.Context, games []store.GameUpsert) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, game := range games {
			if _, err := upsertGame(ctx, tx, game); err != nil {
				return err
			}
		}
		return nil
	})
}

func upsertGame(ctx context.Context, q queryRower, game store.GameUpsert) (int, error) {
	var status sql.NullString
	if game.Status != nil {
		if !game.Status.Valid() {
			return 0, fmt.Errorf("upsert game %s: unknown status %q", game.ExternalID, *game.Status)
		}
		status = sql.NullString{String: string(*game.Status), Valid: true}
	}

	var id int
	err := q.QueryRowContext(ctx, upsertGameQuery,
		game.ExternalID, game.Year, game.Week, game.Date,
		game.HomeTeamID, game.AwayTeamID,
		status, nullInt(game.HomeScore), nullInt(game.AwayScore),
	).Scan(&id)
	if err != nil {
		return 0, store.Wrap("upsert game", err, map[string]any{
			"external_id": game.ExternalID,
			"year":        game.Year,
			"week":        game.Week,
		})
	}
	return id, nil
}

// GetByID finds a game by its database ID
func (r *GameRepository) GetByID(ctx context.Context, id int) (*store.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE id = $1`

	game, err := scanGame(r.db.DB().QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("game %d: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, store.Wrap("query game", err, map[string]any{"id": id})
	}

	return game, nil
}

// GetByExternalID finds a game by its upstream ID
func (r *GameRepository) GetByExternalID(ctx context.Context, externalID string) (*store.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE external_id = $1`

	game, err := scanGame(r.db.DB().QueryRowContext(ctx, query, externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("game %s: %w", externalID, store.ErrNotFound)
	}
	if err != nil {
		return nil, store.Wrap("query game", err, map[string]any{"external_id": externalID})
	}

	return game, nil
}

// GetGames returns the games of one week, or of the whole season when week is 0
func (r *GameRepository) GetGames(ctx context.Context, year, week int) ([]*store.Game, error) {
	query := `
		SELECT ` + gameColumns + `
		FROM games
		WHERE year = $1 AND ($2 = 0 OR week = $2)
		ORDER BY week, date NULLS LAST, id
	`

	params := map[string]any{"year": year, "week": week}

	rows, err := r.db.DB().QueryContext(ctx, query, year, week)
	if err != nil {
		return nil, store.Wrap("query games", err, params)
	}
	defer rows.Close()

	var games []*store.Game
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, store.Wrap("scan game", err, params)
		}
		games = append(games, game)
	}

	return games, store.Wrap("query games", rows.Err(), params)
}

func scanGame(row rowScanner) (*store.Game, error) {
	game := &store.Game{}
	err := row.Scan(
		&game.ID, &game.ExternalID, &game.Year, &game.Week, &game.Date,
		&game.HomeTeamID, &game.AwayTeamID, &game.HomeScore, &game.AwayScore,
		&game.Status, &game.SystemStatus, &game.CreatedAt, &game.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return game, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
