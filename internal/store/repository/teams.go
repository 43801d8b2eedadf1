package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fortuna/pickem/internal/store"
)

const teamColumns = `id, abbr, name, conference, conference_abbr, division, created_at, updated_at`

// TeamRepository handles team data access
type TeamRepository struct {
	db *store.Database
}

// NewTeamRepository creates a new team repository
func NewTeamRepository(db *store.Database) *TeamRepository {
	return &TeamRepository{db: db}
}

// Upsert inserts a team or refreshes the descriptive fields of an existing one.
// The abbreviation is the natural key and is never rewritten.
func (r *TeamRepository) Upsert(ctx context.Context, team *store.Team) (int, error) {
	query := `
		INSERT INTO teams (abbr, name, conference, conference_abbr, division)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (abbr) DO UPDATE SET
			name = EXCLUDED.name,
			conference = EXCLUDED.conference,
			conference_abbr = EXCLUDED.conference_abbr,
			division = EXCLUDED.division,
			updated_at = NOW()
		RETURNING id
	`

	var id int
	err := r.db.DB().QueryRowContext(ctx, query,
		team.Abbr, team.Name, team.Conference, team.ConferenceAbbr, team.Division,
	).Scan(&id)
	if err != nil {
		return 0, store.Wrap("upsert team", err, map[string]any{"abbr": team.Abbr})
	}

	team.ID = id
	return id, nil
}

// GetAll returns every team ordered by abbreviation
func (r *TeamRepository) GetAll(ctx context.Context) ([]*store.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams ORDER BY abbr`

	rows, err := r.db.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, store.Wrap("query teams", err, nil)
	}
	defer rows.Close()

	var teams []*store.Team
	for rows.Next() {
		team, err := scanTeam(rows)
		if err != nil {
			return nil, store.Wrap("scan team", err, nil)
		}
		teams = append(teams, team)
	}

	return teams, store.Wrap("query teams", rows.Err(), nil)
}

// GetByID finds a team by ID
func (r *TeamRepository) GetByID(ctx context.Context, id int) (*store.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE id = $1`

	team, err := scanTeam(r.db.DB().QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("team %d: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, store.Wrap("query team", err, map[string]any{"id": id})
	}

	return team, nil
}

// GetByAbbr finds a team by abbreviation (e.g., "KC", "SF")
func (r *TeamRepository) GetByAbbr(ctx context.Context, abbr string) (*store.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE abbr = $1`

	team, err := scanTeam(r.db.DB().QueryRowContext(ctx, query, abbr))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("team %s: %w", abbr, store.ErrNotFound)
	}
	if err != nil {
		return nil, store.Wrap("query team", err, map[string]any{"abbr": abbr})
	}

	return team, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTeam(row rowScanner) (*store.Team, error) {
	team := &store.Team{}
	err := row.Scan(
		&team.ID, &team.Abbr, &team.Name, &team.Conference,
		&team.ConferenceAbbr, &team.Division, &team.CreatedAt, &team.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return team, nil
}
