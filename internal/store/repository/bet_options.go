package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fortuna/pickem/internal/store"
)

// BetOptionRepository handles bet option data access
type BetOptionRepository struct {
	db *store.Database
}

// NewBetOptionRepository creates a new bet option repository
func NewBetOptionRepository(db *store.Database) *BetOptionRepository {
	return &BetOptionRepository{db: db}
}

// InsertIfAbsent records a bet option unless one already exists for
// (game, type, target). Existing rows are never modified. Reports whether
// a new row was written.
func (r *BetOptionRepository) InsertIfAbsent(ctx context.Context, opt *store.BetOption) (bool, error) {
	if !opt.Target.ValidFor(opt.Type) {
		return false, fmt.Errorf("insert bet option: target %q does not belong to %q", opt.Target, opt.Type)
	}

	query := `
		INSERT INTO bet_options (game_id, type, target, line, odds)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (game_id, type, target) DO NOTHING
		RETURNING id
	`

	var id int
	err := r.db.DB().QueryRowContext(ctx, query,
		opt.GameID, opt.Type, opt.Target, opt.Line, opt.Odds,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, store.Wrap("insert bet option", err, map[string]any{
			"game_id": opt.GameID,
			"type":    opt.Type,
			"target":  opt.Target,
		})
	}

	opt.ID = id
	return true, nil
}

// GetByGame returns the bet options recorded for a game
func (r *BetOptionRepository) GetByGame(ctx context.Context, gameID int) ([]*store.BetOption, error) {
	query := `
		SELECT id, game_id, type, target, line, odds, created_at
		FROM bet_options
		WHERE game_id = $1
		ORDER BY type, target
	`

	rows, err := r.db.DB().QueryContext(ctx, query, gameID)
	if err != nil {
		return nil, store.Wrap("query bet options", err, map[string]any{"game_id": gameID})
	}
	defer rows.Close()

	var options []*store.BetOption
	for rows.Next() {
		opt := &store.BetOption{}
		if err := rows.Scan(&opt.ID, &opt.GameID, &opt.Type, &opt.Target, &opt.Line, &opt.Odds, &opt.CreatedAt); err != nil {
			return nil, store.Wrap("scan bet option", err, map[string]any{"game_id": gameID})
		}
		options = append(options, opt)
	}

	return options, store.Wrap("query bet options", rows.Err(), map[string]any{"game_id": gameID})
}
