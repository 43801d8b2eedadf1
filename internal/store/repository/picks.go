package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fortuna/pickem/internal/store"
)

// ErrStaleTransition is returned when a pick is no longer pending at write time
var ErrStaleTransition = errors.New("pick is no longer pending")

// PickRepository handles pick data access
type PickRepository struct {
	db *store.Database
}

// NewPickRepository creates a new pick repository
func NewPickRepository(db *store.Database) *PickRepository {
	return &PickRepository{db: db}
}

// GetWithGameAndOption returns every pick placed on a game of the given week,
// joined with its bet option and game.
func (r *PickRepository) GetWithGameAndOption(ctx context.Context, year, week int) ([]*store.PickRecord, error) {
	query := `
		SELECT
			p.id, p.user_id, p.bet_option_id, p.status, p.created_at, p.updated_at,
			bo.id, bo.game_id, bo.type, bo.target, bo.line, bo.odds, bo.created_at,
			g.id, g.external_id, g.year, g.week, g.date, g.home_team_id, g.away_team_id,
			g.home_team_score, g.away_team_score, g.game_status, g.system_status,
			g.created_at, g.updated_at
		FROM picks p
		LEFT JOIN bet_options bo ON bo.id = p.bet_option_id
		LEFT JOIN games g ON g.id = bo.game_id
		WHERE g.year = $1 AND g.week = $2
		ORDER BY p.id
	`

	params := map[string]any{"year": year, "week": week}

	rows, err := r.db.DB().QueryContext(ctx, query, year, week)
	if err != nil {
		return nil, store.Wrap("query picks", err, params)
	}
	defer rows.Close()

	var records []*store.PickRecord
	for rows.Next() {
		rec, err := scanPickRecord(rows)
		if err != nil {
			return nil, store.Wrap("scan pick", err, params)
		}
		records = append(records, rec)
	}

	return records, store.Wrap("query picks", rows.Err(), params)
}

// UpdateStatuses applies pending -> graded transitions atomically.
// A pick that is no longer pending aborts the batch with ErrStaleTransition.
func (r *PickRepository) UpdateStatuses(ctx context.Context, transitions []store.PickTransition) error {
	if len(transitions) == 0 {
		return nil
	}

	query := `
		UPDATE picks
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, t := range transitions {
			params := map[string]any{"pick_id": t.PickID, "status": t.Status}

			res, err := tx.ExecContext(ctx, query, t.PickID, t.Status)
			if err != nil {
				return store.Wrap("update pick status", err, params)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return store.Wrap("update pick status", err, params)
			}
			if n == 0 {
				return fmt.Errorf("pick %d: %w", t.PickID, ErrStaleTransition)
			}
		}
		return nil
	})
}

func scanPickRecord(row rowScanner) (*store.PickRecord, error) {
	var (
		rec store.PickRecord

		boID, boGameID, boOdds sql.NullInt64
		boType, boTarget       sql.NullString
		boLine                 decimal.NullDecimal
		boCreatedAt            sql.NullTime

		gID, gYear, gWeek, gHome, gAway, gHomeScore, gAwayScore sql.NullInt64
		gExternalID, gStatus, gSystemStatus                     sql.NullString
		gDate, gCreatedAt, gUpdatedAt                           sql.NullTime
	)

	err := row.Scan(
		&rec.Pick.ID, &rec.Pick.UserID, &rec.Pick.BetOptionID, &rec.Pick.Status,
		&rec.Pick.CreatedAt, &rec.Pick.UpdatedAt,
		&boID, &boGameID, &boType, &boTarget, &boLine, &boOdds, &boCreatedAt,
		&gID, &gExternalID, &gYear, &gWeek, &gDate, &gHome, &gAway,
		&gHomeScore, &gAwayScore, &gStatus, &gSystemStatus, &gCreatedAt, &gUpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if boID.Valid {
		rec.BetOption = &store.BetOption{
			ID:        int(boID.Int64),
			GameID:    int(boGameID.Int64),
			Type:      store.BetType(boType.String),
			Target:    store.BetTarget(boTarget.String),
			Line:      boLine.Decimal,
			Odds:      int(boOdds.Int64),
			CreatedAt: boCreatedAt.Time,
		}
	}

	if gID.Valid {
		rec.Game = &store.Game{
			ID:           int(gID.Int64),
			ExternalID:   gExternalID.String,
			Year:         int(gYear.Int64),
			Week:         int(gWeek.Int64),
			Date:         gDate,
			HomeTeamID:   int(gHome.Int64),
			AwayTeamID:   int(gAway.Int64),
			HomeScore:    int(gHomeScore.Int64),
			AwayScore:    int(gAwayScore.Int64),
			Status:       store.GameStatus(gStatus.String),
			SystemStatus: gSystemStatus.String,
			CreatedAt:    gCreatedAt.Time,
			UpdatedAt:    gUpdatedAt.Time,
		}
	}

	return &rec, nil
}
