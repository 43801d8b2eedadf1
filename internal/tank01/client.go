package tank01

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fortuna/pickem/internal/odds"
)

const (
	// DefaultBaseURL is the RapidAPI endpoint for the Tank01 NFL API
	DefaultBaseURL = "https://tank01-nfl-live-in-game-real-time-statistics-nfl.p.rapidapi.com"

	defaultTimeout = 15 * time.Second
	maxErrorBody   = 512
)

// Config holds the settings for a Client
type Config struct {
	BaseURL string
	APIKey  string
	APIHost string
	Timeout time.Duration
}

// Client fetches schedules, scores, odds and teams from Tank01.
// Every response is validated and normalized before it is returned.
type Client struct {
	baseURL    string
	apiKey     string
	apiHost    string
	httpClient *http.Client
}

// NewClient creates a client. An empty BaseURL uses DefaultBaseURL.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		apiHost:    cfg.APIHost,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// FetchWeekGames returns the regular-season schedule for one week
func (c *Client) FetchWeekGames(ctx context.Context, year, week int) ([]Game, error) {
	const resource = "getNFLGamesForWeek"
	params := url.Values{
		"week":       {strconv.Itoa(week)},
		"season":     {strconv.Itoa(year)},
		"seasonType": {"reg"},
	}

	var records []gameRecord
	if err := c.get(ctx, resource, params, &records); err != nil {
		return nil, err
	}

	var errs fieldErrors
	games := make([]Game, 0, len(records))
	for i, rec := range records {
		games = append(games, rec.validate(i, &errs))
	}
	if err := errs.err(); err != nil {
		return nil, &SchemaError{Resource: resource, Params: params, Err: err}
	}

	return games, nil
}

// FetchGameStatus returns the current score and state of a game
func (c *Client) FetchGameStatus(ctx context.Context, externalID string) (*GameStatus, error) {
	const resource = "getNFLScoresOnly"
	params := url.Values{
		"gameID":        {externalID},
		"topPerformers": {"false"},
	}

	var body map[string]json.RawMessage
	if err := c.get(ctx, resource, params, &body); err != nil {
		return nil, err
	}

	raw, ok := body[externalID]
	if !ok {
		return nil, &SchemaError{Resource: resource, Params: params, Err: fmt.Errorf("no entry for game %s", externalID)}
	}

	var rec statusRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, &SchemaError{Resource: resource, Params: params, Err: err}
	}

	var errs fieldErrors
	status := rec.validate(externalID, &errs)
	if err := errs.err(); err != nil {
		return nil, &SchemaError{Resource: resource, Params: params, Err: err}
	}

	return &status, nil
}

// FetchGameOdds returns every sportsbook's quote for a game, in provider order.
// Quotes may be partial; choosing one is left to odds.Selector.
func (c *Client) FetchGameOdds(ctx context.Context, externalID string) ([]odds.SourceQuote, error) {
	const resource = "getNFLBettingOdds"
	params := url.Values{
		"gameID":     {externalID},
		"itemFormat": {"list"},
	}

	var body oddsBody
	if err := c.get(ctx, resource, params, &body); err != nil {
		return nil, err
	}

	var errs fieldErrors
	quotes := body.validate(&errs)
	if err := errs.err(); err != nil {
		return nil, &SchemaError{Resource: resource, Params: params, Err: err}
	}

	return quotes, nil
}

// FetchAllTeams returns every NFL franchise
func (c *Client) FetchAllTeams(ctx context.Context) ([]Team, error) {
	const resource = "getNFLTeams"
	params := url.Values{}

	var records []teamRecord
	if err := c.get(ctx, resource, params, &records); err != nil {
		return nil, err
	}

	var errs fieldErrors
	teams := make([]Team, 0, len(records))
	for i, rec := range records {
		teams = append(teams, rec.validate(i, &errs))
	}
	if err := errs.err(); err != nil {
		return nil, &SchemaError{Resource: resource, Params: params, Err: err}
	}

	return teams, nil
}

// envelope wraps every Tank01 response
type envelope struct {
	StatusCode *int            `json:"statusCode"`
	Body       json.RawMessage `json:"body"`
}

// get performs the request and decodes the envelope body into out
func (c *Client) get(ctx context.Context, resource string, params url.Values, out any) error {
	endpoint := c.baseURL + "/" + resource
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &APIError{Resource: resource, Params: params, Err: err}
	}
	req.Header.Set("X-RapidAPI-Key", c.apiKey)
	req.Header.Set("X-RapidAPI-Host", c.apiHost)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Resource: resource, Params: params, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{
			Resource:   resource,
			Params:     params,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(snippet))),
		}
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Resource: resource, Params: params, Err: fmt.Errorf("reading body: %w", err)}
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return &SchemaError{Resource: resource, Params: params, Err: fmt.Errorf("decoding envelope: %w", err)}
	}
	if env.StatusCode == nil {
		return &SchemaError{Resource: resource, Params: params, Err: errors.New("statusCode: required")}
	}
	if *env.StatusCode < 200 || *env.StatusCode > 299 {
		return &APIError{
			Resource:   resource,
			Params:     params,
			StatusCode: *env.StatusCode,
			Err:        fmt.Errorf("upstream reported failure: %s", truncate(env.Body, maxErrorBody)),
		}
	}
	if len(env.Body) == 0 || string(env.Body) == "null" {
		return &SchemaError{Resource: resource, Params: params, Err: errors.New("body: required")}
	}

	if err := json.Unmarshal(env.Body, out); err != nil {
		return &SchemaError{Resource: resource, Params: params, Err: fmt.Errorf("decoding body: %w", err)}
	}

	return nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
