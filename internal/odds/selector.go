package odds

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultPreference is the sportsbook priority used when none is configured
var DefaultPreference = []string{
	"bet365",
	"fanduel",
	"draftkings",
	"caesars_sportsbook",
	"betmgm",
}

// PartialQuote is one sportsbook's odds for a game. Any field may be missing.
type PartialQuote struct {
	TotalOver      *decimal.Decimal
	TotalOverOdds  *int
	TotalUnder     *decimal.Decimal
	TotalUnderOdds *int
	HomeSpread     *decimal.Decimal
	HomeSpreadOdds *int
	AwaySpread     *decimal.Decimal
	AwaySpreadOdds *int
}

// Quote is a quote with every line and price present
type Quote struct {
	TotalOver      decimal.Decimal
	TotalOverOdds  int
	TotalUnder     decimal.Decimal
	TotalUnderOdds int
	HomeSpread     decimal.Decimal
	HomeSpreadOdds int
	AwaySpread     decimal.Decimal
	AwaySpreadOdds int
}

// Complete returns the full quote when all eight fields are present
func (q PartialQuote) Complete() (Quote, bool) {
	if q.TotalOver == nil || q.TotalOverOdds == nil ||
		q.TotalUnder == nil || q.TotalUnderOdds == nil ||
		q.HomeSpread == nil || q.HomeSpreadOdds == nil ||
		q.AwaySpread == nil || q.AwaySpreadOdds == nil {
		return Quote{}, false
	}

	return Quote{
		TotalOver:      *q.TotalOver,
		TotalOverOdds:  *q.TotalOverOdds,
		TotalUnder:     *q.TotalUnder,
		TotalUnderOdds: *q.TotalUnderOdds,
		HomeSpread:     *q.HomeSpread,
		HomeSpreadOdds: *q.HomeSpreadOdds,
		AwaySpread:     *q.AwaySpread,
		AwaySpreadOdds: *q.AwaySpreadOdds,
	}, true
}

// SourceQuote pairs a sportsbook name with its quote
type SourceQuote struct {
	Source string
	Quote  PartialQuote
}

// Selection is the quote chosen for a game and where it came from
type Selection struct {
	Source string
	Quote  Quote
}

// MissingOddsError means no source offered a complete quote for the game
type MissingOddsError struct {
	GameID  string
	Sources int
}

func (e *MissingOddsError) Error() string {
	return fmt.Sprintf("no sportsbook provided complete odds for game %s (%d sources checked)", e.GameID, e.Sources)
}

// Selector picks one complete quote per game by sportsbook preference
type Selector struct {
	preference []string
}

// NewSelector creates a selector. An empty preference list uses DefaultPreference.
func NewSelector(preference ...string) *Selector {
	if len(preference) == 0 {
		preference = DefaultPreference
	}
	return &Selector{preference: append([]string(nil), preference...)}
}

// Preference returns the sportsbook priority order
func (s *Selector) Preference() []string {
	return append([]string(nil), s.preference...)
}

// Select returns the first complete quote from a preferred book, falling
// back to the first complete quote in input order. Quotes are never merged.
func (s *Selector) Select(gameID string, quotes []SourceQuote) (Selection, error) {
	for _, book := range s.preference {
		for _, sq := range quotes {
			if sq.Source != book {
				continue
			}
			// only the first entry for a book counts
			if q, ok := sq.Quote.Complete(); ok {
				return Selection{Source: sq.Source, Quote: q}, nil
			}
			break
		}
	}

	for _, sq := range quotes {
		if q, ok := sq.Quote.Complete(); ok {
			return Selection{Source: sq.Source, Quote: q}, nil
		}
	}

	return Selection{}, &MissingOddsError{GameID: gameID, Sources: len(quotes)}
}
