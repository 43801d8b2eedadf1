package tank01

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/fortuna/pickem/internal/odds"
	"github.com/fortuna/pickem/internal/store"
)

// Game is one entry of a weekly schedule
type Game struct {
	ExternalID string
	Home       string
	Away       string
	Kickoff    sql.NullTime
}

// GameStatus is the live state of a single game
type GameStatus struct {
	ExternalID string
	HomeScore  int
	AwayScore  int
	Status     store.GameStatus
	Kickoff    sql.NullTime
}

// Team is a franchise as listed by the provider
type Team struct {
	Abbr           string
	City           string
	Name           string
	Conference     string
	ConferenceAbbr string
	Division       string
}

// FullName joins city and nickname, e.g. "Kansas City Chiefs"
func (t Team) FullName() string {
	return strings.TrimSpace(t.City + " " + t.Name)
}

// fieldErrors collects validation failures for one payload
type fieldErrors []string

func (f *fieldErrors) add(format string, args ...any) {
	*f = append(*f, fmt.Sprintf(format, args...))
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return errors.New(strings.Join(f, "; "))
}

type gameRecord struct {
	GameID        string     `json:"gameID"`
	Home          string     `json:"home"`
	Away          string     `json:"away"`
	GameTimeEpoch epochValue `json:"gameTime_epoch"`
}

func (r gameRecord) validate(i int, errs *fieldErrors) Game {
	if r.GameID == "" {
		errs.add("[%d].gameID: required", i)
	}
	if !Teams[r.Home] {
		errs.add("[%d].home: unknown team %q", i, r.Home)
	}
	if !Teams[r.Away] {
		errs.add("[%d].away: unknown team %q", i, r.Away)
	}
	return Game{
		ExternalID: r.GameID,
		Home:       r.Home,
		Away:       r.Away,
		Kickoff:    sql.NullTime{Time: r.GameTimeEpoch.Time, Valid: r.GameTimeEpoch.Valid},
	}
}

type statusRecord struct {
	AwayPts        pointsValue `json:"awayPts"`
	HomePts        pointsValue `json:"homePts"`
	GameStatusCode *statusCode `json:"gameStatusCode"`
	GameTimeEpoch  epochValue  `json:"gameTime_epoch"`
}

func (r statusRecord) validate(externalID string, errs *fieldErrors) GameStatus {
	if !r.AwayPts.Valid {
		errs.add("awayPts: required")
	}
	if !r.HomePts.Valid {
		errs.add("homePts: required")
	}
	status := store.GameStatusNotStarted
	if r.GameStatusCode == nil {
		errs.add("gameStatusCode: required")
	} else {
		status = r.GameStatusCode.GameStatus()
	}
	return GameStatus{
		ExternalID: externalID,
		HomeScore:  r.HomePts.Value,
		AwayScore:  r.AwayPts.Value,
		Status:     status,
		Kickoff:    sql.NullTime{Time: r.GameTimeEpoch.Time, Valid: r.GameTimeEpoch.Valid},
	}
}

type oddsRecord struct {
	TotalUnder         totalValue  `json:"totalUnder"`
	TotalUnderOdds     priceValue  `json:"totalUnderOdds"`
	TotalOver          totalValue  `json:"totalOver"`
	TotalOverOdds      priceValue  `json:"totalOverOdds"`
	AwayTeamSpread     spreadValue `json:"awayTeamSpread"`
	AwayTeamSpreadOdds priceValue  `json:"awayTeamSpreadOdds"`
	HomeTeamSpread     spreadValue `json:"homeTeamSpread"`
	HomeTeamSpreadOdds priceValue  `json:"homeTeamSpreadOdds"`
}

func (r oddsRecord) partial() odds.PartialQuote {
	var q odds.PartialQuote
	if r.TotalOver.Valid {
		q.TotalOver = &r.TotalOver.Value
	}
	if r.TotalOverOdds.Valid {
		q.TotalOverOdds = &r.TotalOverOdds.Value
	}
	if r.TotalUnder.Valid {
		q.TotalUnder = &r.TotalUnder.Value
	}
	if r.TotalUnderOdds.Valid {
		q.TotalUnderOdds = &r.TotalUnderOdds.Value
	}
	if r.HomeTeamSpread.Valid {
		q.HomeSpread = &r.HomeTeamSpread.Value
	}
	if r.HomeTeamSpreadOdds.Valid {
		q.HomeSpreadOdds = &r.HomeTeamSpreadOdds.Value
	}
	if r.AwayTeamSpread.Valid {
		q.AwaySpread = &r.AwayTeamSpread.Value
	}
	if r.AwayTeamSpreadOdds.Valid {
		q.AwaySpreadOdds = &r.AwayTeamSpreadOdds.Value
	}
	return q
}

type sportsBookRecord struct {
	SportsBook string      `json:"sportsBook"`
	Odds       *oddsRecord `json:"odds"`
}

type oddsBody struct {
	SportsBooks *[]sportsBookRecord `json:"sportsBooks"`
}

func (b oddsBody) validate(errs *fieldErrors) []odds.SourceQuote {
	if b.SportsBooks == nil {
		errs.add("sportsBooks: required")
		return nil
	}
	quotes := make([]odds.SourceQuote, 0, len(*b.SportsBooks))
	for i, book := range *b.SportsBooks {
		if book.SportsBook == "" {
			errs.add("sportsBooks[%d].sportsBook: required", i)
		}
		if book.Odds == nil {
			errs.add("sportsBooks[%d].odds: required", i)
			continue
		}
		quotes = append(quotes, odds.SourceQuote{Source: book.SportsBook, Quote: book.Odds.partial()})
	}
	return quotes
}

type teamRecord struct {
	TeamAbv       string `json:"teamAbv"`
	TeamCity      string `json:"teamCity"`
	TeamName      string `json:"teamName"`
	Conference    string `json:"conference"`
	ConferenceAbv string `json:"conferenceAbv"`
	Division      string `json:"division"`
}

func (r teamRecord) validate(i int, errs *fieldErrors) Team {
	if !Teams[r.TeamAbv] {
		errs.add("[%d].teamAbv: unknown team %q", i, r.TeamAbv)
	}
	required := []struct{ field, value string }{
		{"teamCity", r.TeamCity},
		{"teamName", r.TeamName},
		{"conference", r.Conference},
		{"conferenceAbv", r.ConferenceAbv},
		{"division", r.Division},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			errs.add("[%d].%s: required", i, f.field)
		}
	}
	if len(r.ConferenceAbv) > 3 {
		errs.add("[%d].conferenceAbv: %q longer than 3 characters", i, r.ConferenceAbv)
	}
	return Team{
		Abbr:           r.TeamAbv,
		City:           r.TeamCity,
		Name:           r.TeamName,
		Conference:     r.Conference,
		ConferenceAbbr: r.ConferenceAbv,
		Division:       r.Division,
	}
}
