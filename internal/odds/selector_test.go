package odds

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func price(v int) *int { return &v }

func completeQuote(spread string) PartialQuote {
	away := decimal.RequireFromString(spread).Neg()
	return PartialQuote{
		TotalOver:      dec("44.5"),
		TotalOverOdds:  price(-110),
		TotalUnder:     dec("44.5"),
		TotalUnderOdds: price(-110),
		HomeSpread:     dec(spread),
		HomeSpreadOdds: price(-105),
		AwaySpread:     &away,
		AwaySpreadOdds: price(-115),
	}
}

func TestPartialQuoteComplete(t *testing.T) {
	q := completeQuote("-3")
	if _, ok := q.Complete(); !ok {
		t.Fatal("full quote reported incomplete")
	}

	q.AwaySpreadOdds = nil
	if _, ok := q.Complete(); ok {
		t.Fatal("quote missing away spread odds reported complete")
	}
}

func TestSelect(t *testing.T) {
	partial := completeQuote("-3")
	partial.TotalUnderOdds = nil

	tests := []struct {
		name       string
		quotes     []SourceQuote
		wantSource string
		wantSpread string
	}{
		{
			name: "preferred source beats input order",
			quotes: []SourceQuote{
				{Source: "fanduel", Quote: completeQuote("-2.5")},
				{Source: "bet365", Quote: completeQuote("-3")},
			},
			wantSource: "bet365",
			wantSpread: "-3",
		},
		{
			name: "incomplete preferred source is skipped",
			quotes: []SourceQuote{
				{Source: "bet365", Quote: partial},
				{Source: "draftkings", Quote: completeQuote("-3.5")},
				{Source: "fanduel", Quote: completeQuote("-2.5")},
			},
			wantSource: "fanduel",
			wantSpread: "-2.5",
		},
		{
			name: "falls back to first complete unpreferred source",
			quotes: []SourceQuote{
				{Source: "bet365", Quote: partial},
				{Source: "pointsbet", Quote: partial},
				{Source: "espnbet", Quote: completeQuote("-1")},
				{Source: "unibet", Quote: completeQuote("-7")},
			},
			wantSource: "espnbet",
			wantSpread: "-1",
		},
	}

	s := NewSelector()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Select("20240908_BUF@KC", tt.quotes)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Source != tt.wantSource {
				t.Errorf("source = %s, want %s", got.Source, tt.wantSource)
			}
			if !got.Quote.HomeSpread.Equal(decimal.RequireFromString(tt.wantSpread)) {
				t.Errorf("home spread = %s, want %s", got.Quote.HomeSpread, tt.wantSpread)
			}
		})
	}
}

func TestSelectMissingOdds(t *testing.T) {
	partial := completeQuote("-3")
	partial.HomeSpread = nil

	_, err := NewSelector().Select("20240908_BUF@KC", []SourceQuote{
		{Source: "bet365", Quote: partial},
		{Source: "fanduel", Quote: PartialQuote{}},
	})

	var missing *MissingOddsError
	if !errors.As(err, &missing) {
		t.Fatalf("err = %v, want *MissingOddsError", err)
	}
	if missing.GameID != "20240908_BUF@KC" {
		t.Errorf("GameID = %q", missing.GameID)
	}
	if !strings.Contains(err.Error(), "20240908_BUF@KC") {
		t.Errorf("message does not name the game: %s", err)
	}
}

func TestSelectCustomPreference(t *testing.T) {
	got, err := NewSelector("betmgm").Select("g", []SourceQuote{
		{Source: "bet365", Quote: completeQuote("-3")},
		{Source: "betmgm", Quote: completeQuote("-4")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Source != "betmgm" {
		t.Errorf("source = %s, want betmgm", got.Source)
	}
}
