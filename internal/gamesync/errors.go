package gamesync

import (
	"fmt"
	"strings"
)

// Error reports which flow failed and on which week, game or team.
// The cause keeps its category: errors.As still finds *tank01.APIError,
// *odds.MissingOddsError, *store.PersistenceError and store.ErrNotFound.
type Error struct {
	Op     string
	Year   int
	Week   int
	GameID string
	Team   string
	Err    error
}

func (e *Error) Error() string {
	var ctx []string
	if e.Year != 0 {
		ctx = append(ctx, fmt.Sprintf("year=%d", e.Year))
	}
	if e.Week != 0 {
		ctx = append(ctx, fmt.Sprintf("week=%d", e.Week))
	}
	if e.GameID != "" {
		ctx = append(ctx, "game="+e.GameID)
	}
	if e.Team != "" {
		ctx = append(ctx, "team="+e.Team)
	}
	if len(ctx) == 0 {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, strings.Join(ctx, " "), e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
