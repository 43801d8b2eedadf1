package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GameStatus is the lifecycle state of a game as reported upstream
type GameStatus string

const (
	GameStatusNotStarted GameStatus = "not-started"
	GameStatusInProgress GameStatus = "in-progress"
	GameStatusCompleted  GameStatus = "completed"
	GameStatusPostponed  GameStatus = "postponed"
	GameStatusSuspended  GameStatus = "suspended"
)

// Valid reports whether s is one of the known game statuses
func (s GameStatus) Valid() bool {
	switch s {
	case GameStatusNotStarted, GameStatusInProgress, GameStatusCompleted,
		GameStatusPostponed, GameStatusSuspended:
		return true
	}
	return false
}

// BetType is the market a bet option belongs to
type BetType string

const (
	BetTypeSpread BetType = "spread"
	BetTypeTotal  BetType = "total"
)

// BetTarget is the side of a market a bet option backs
type BetTarget string

const (
	BetTargetHome  BetTarget = "home"
	BetTargetAway  BetTarget = "away"
	BetTargetOver  BetTarget = "over"
	BetTargetUnder BetTarget = "under"
)

// ValidFor reports whether the target belongs to the given bet type.
// Spreads take home/away, totals take over/under.
func (t BetTarget) ValidFor(bt BetType) bool {
	switch bt {
	case BetTypeSpread:
		return t == BetTargetHome || t == BetTargetAway
	case BetTypeTotal:
		return t == BetTargetOver || t == BetTargetUnder
	}
	return false
}

// PickStatus is the grading state of a user pick
type PickStatus string

const (
	PickStatusPending PickStatus = "pending"
	PickStatusWon     PickStatus = "won"
	PickStatusLost    PickStatus = "lost"
	PickStatusPush    PickStatus = "push"
)

// Terminal reports whether the status is a graded outcome
func (s PickStatus) Terminal() bool {
	return s == PickStatusWon || s == PickStatusLost || s == PickStatusPush
}

// Team represents an NFL franchise, keyed by abbreviation
type Team struct {
	ID             int       `json:"id" db:"id"`
	Abbr           string    `json:"abbr" db:"abbr"`
	Name           string    `json:"name" db:"name"`
	Conference     string    `json:"conference" db:"conference"`
	ConferenceAbbr string    `json:"conference_abbr" db:"conference_abbr"`
	Division       string    `json:"division" db:"division"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// Game represents one regular-season matchup.
// ExternalID and team references never change after creation.
type Game struct {
	ID           int          `json:"id" db:"id"`
	ExternalID   string       `json:"external_id" db:"external_id"`
	Year         int          `json:"year" db:"year"`
	Week         int          `json:"week" db:"week"`
	Date         sql.NullTime `json:"date,omitempty" db:"date"`
	HomeTeamID   int          `json:"home_team_id" db:"home_team_id"`
	AwayTeamID   int          `json:"away_team_id" db:"away_team_id"`
	HomeScore    int          `json:"home_team_score" db:"home_team_score"`
	AwayScore    int          `json:"away_team_score" db:"away_team_score"`
	Status       GameStatus   `json:"game_status" db:"game_status"`
	SystemStatus string       `json:"system_status" db:"system_status"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}

// GameUpsert carries the fields written by a game upsert.
// Nil Status or scores keep whatever is stored (or the column default on insert).
type GameUpsert struct {
	ExternalID string
	Year       int
	Week       int
	Date       sql.NullTime
	HomeTeamID int
	AwayTeamID int
	Status     *GameStatus
	HomeScore  *int
	AwayScore  *int
}

// BetOption is a single market line offered on a game.
// Rows are append-only per (game, type, target).
type BetOption struct {
	ID        int             `json:"id" db:"id"`
	GameID    int             `json:"game_id" db:"game_id"`
	Type      BetType         `json:"type" db:"type"`
	Target    BetTarget       `json:"target" db:"target"`
	Line      decimal.Decimal `json:"line" db:"line"`
	Odds      int             `json:"odds" db:"odds"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// Pick is a user's wager on a bet option
type Pick struct {
	ID          int        `json:"id" db:"id"`
	UserID      uuid.UUID  `json:"user_id" db:"user_id"`
	BetOptionID int        `json:"bet_option_id" db:"bet_option_id"`
	Status      PickStatus `json:"status" db:"status"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// PickRecord joins a pick with its bet option and game.
// BetOption or Game is nil when the relation is broken.
type PickRecord struct {
	Pick      Pick
	BetOption *BetOption
	Game      *Game
}

// PickTransition moves one pick from pending to a graded status
type PickTransition struct {
	PickID int
	Status PickStatus
}
