package grading

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fortuna/pickem/internal/store"
)

// GradeSpread settles a spread pick. The line is added to the backed team's
// score and compared with the opponent's.
func GradeSpread(line decimal.Decimal, target store.BetTarget, home, away int) (store.PickStatus, error) {
	var mine, theirs int
	switch target {
	case store.BetTargetHome:
		mine, theirs = home, away
	case store.BetTargetAway:
		mine, theirs = away, home
	default:
		return "", fmt.Errorf("spread target %q: %w", target, ErrInvalidBetOption)
	}

	net := decimal.NewFromInt(int64(mine)).Add(line)
	return compare(net, decimal.NewFromInt(int64(theirs))), nil
}

// GradeTotal settles an over/under pick against the combined score
func GradeTotal(line decimal.Decimal, target store.BetTarget, home, away int) (store.PickStatus, error) {
	sum := decimal.NewFromInt(int64(home + away))

	switch target {
	case store.BetTargetOver:
		return compare(sum, line), nil
	case store.BetTargetUnder:
		return compare(line, sum), nil
	default:
		return "", fmt.Errorf("total target %q: %w", target, ErrInvalidBetOption)
	}
}

// Grade settles a bet option against a final score
func Grade(opt *store.BetOption, game *store.Game) (store.PickStatus, error) {
	if !opt.Target.ValidFor(opt.Type) {
		return "", fmt.Errorf("bet type %q target %q: %w", opt.Type, opt.Target, ErrInvalidBetOption)
	}

	switch opt.Type {
	case store.BetTypeSpread:
		return GradeSpread(opt.Line, opt.Target, game.HomeScore, game.AwayScore)
	case store.BetTypeTotal:
		return GradeTotal(opt.Line, opt.Target, game.HomeScore, game.AwayScore)
	default:
		return "", fmt.Errorf("bet type %q: %w", opt.Type, ErrInvalidBetOption)
	}
}

func compare(mine, theirs decimal.Decimal) store.PickStatus {
	switch mine.Cmp(theirs) {
	case 1:
		return store.PickStatusWon
	case -1:
		return store.PickStatusLost
	default:
		return store.PickStatusPush
	}
}
