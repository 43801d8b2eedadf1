package rest

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fortuna/pickem/internal/runs"
	"github.com/fortuna/pickem/internal/store"
	"github.com/fortuna/pickem/internal/task"
)

type fakeTeams struct{ teams []*store.Team }

func (f *fakeTeams) GetAll(context.Context) ([]*store.Team, error) { return f.teams, nil }

func (f *fakeTeams) GetByID(_ context.Context, id int) (*store.Team, error) {
	for _, team := range f.teams {
		if team.ID == id {
			return team, nil
		}
	}
	return nil, fmt.Errorf("team %d: %w", id, store.ErrNotFound)
}

type fakeGames struct {
	games []*store.Game
	calls int
}

func (f *fakeGames) GetGames(_ context.Context, year, week int) ([]*store.Game, error) {
	f.calls++
	var out []*store.Game
	for _, g := range f.games {
		if g.Year == year && (week == 0 || g.Week == week) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeGames) GetByID(_ context.Context, id int) (*store.Game, error) {
	for _, g := range f.games {
		if g.ID == id {
			return g, nil
		}
	}
	return nil, fmt.Errorf("game %d: %w", id, store.ErrNotFound)
}

func (f *fakeGames) GetByExternalID(_ context.Context, externalID string) (*store.Game, error) {
	for _, g := range f.games {
		if g.ExternalID == externalID {
			return g, nil
		}
	}
	return nil, fmt.Errorf("game %s: %w", externalID, store.ErrNotFound)
}

type fakeOptions struct{ opts []*store.BetOption }

func (f *fakeOptions) GetByGame(_ context.Context, gameID int) ([]*store.BetOption, error) {
	var out []*store.BetOption
	for _, o := range f.opts {
		if o.GameID == gameID {
			out = append(out, o)
		}
	}
	return out, nil
}

type fakeRuns struct {
	submitted []task.Request
	err       error
	runs      map[string]*runs.Run
}

func (f *fakeRuns) Submit(req task.Request) (*runs.Run, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	f.submitted = append(f.submitted, req)
	return &runs.Run{ID: "run-1", Request: req, Status: runs.StatusQueued}, nil
}

func (f *fakeRuns) Get(id string) (*runs.Run, bool) {
	r, ok := f.runs[id]
	return r, ok
}

func (f *fakeRuns) List() []*runs.Run {
	out := make([]*runs.Run, 0, len(f.runs))
	for _, r := range f.runs {
		out = append(out, r)
	}
	return out
}

type mapCache struct {
	data map[string][]byte
	sets int
}

func (c *mapCache) GetJSON(_ context.Context, key string, dst any) (bool, error) {
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (c *mapCache) SetJSON(_ context.Context, key string, v any, _ time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.sets++
	c.data[key] = raw
	return nil
}

type healthFunc func(context.Context) error

func (f healthFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func newTestServer(deps Deps) *httptest.Server {
	return httptest.NewServer(NewServer("0", deps).Router())
}

func testDeps() Deps {
	return Deps{
		Teams: &fakeTeams{teams: []*store.Team{{ID: 1, Abbr: "KC"}, {ID: 2, Abbr: "BUF"}}},
		Games: &fakeGames{games: []*store.Game{
			{ID: 10, ExternalID: "20240908_BUF@KC", Year: 2024, Week: 1, HomeTeamID: 1, AwayTeamID: 2,
				Date: sql.NullTime{Time: time.Date(2024, 9, 8, 17, 0, 0, 0, time.UTC), Valid: true}},
			{ID: 11, ExternalID: "20240915_KC@BUF", Year: 2024, Week: 2, HomeTeamID: 2, AwayTeamID: 1},
		}},
		BetOptions: &fakeOptions{opts: []*store.BetOption{
			{ID: 1, GameID: 10, Type: store.BetTypeSpread, Target: store.BetTargetHome, Line: decimal.RequireFromString("-3"), Odds: -110},
			{ID: 2, GameID: 10, Type: store.BetTypeSpread, Target: store.BetTargetAway, Line: decimal.RequireFromString("3.25"), Odds: -110},
		}},
		Runs: &fakeRuns{runs: map[string]*runs.Run{}},
	}
}

func getJSON(t *testing.T, url string, wantStatus int) map[string]json.RawMessage {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s status = %d, want %d", url, resp.StatusCode, wantStatus)
	}
	var body map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	return body
}

func TestHealthCheck(t *testing.T) {
	deps := testDeps()
	deps.DB = healthFunc(func(context.Context) error { return nil })
	srv := newTestServer(deps)
	defer srv.Close()

	body := getJSON(t, srv.URL+"/health", http.StatusOK)
	if string(body["status"]) != `"healthy"` {
		t.Errorf("status = %s", body["status"])
	}

	deps.Redis = healthFunc(func(context.Context) error { return errors.New("connection refused") })
	srv2 := newTestServer(deps)
	defer srv2.Close()
	body = getJSON(t, srv2.URL+"/health", http.StatusServiceUnavailable)
	if string(body["status"]) != `"degraded"` {
		t.Errorf("status = %s", body["status"])
	}
}

func TestGetTeams(t *testing.T) {
	srv := newTestServer(testDeps())
	defer srv.Close()

	body := getJSON(t, srv.URL+"/api/v1/teams", http.StatusOK)
	if string(body["count"]) != "2" {
		t.Errorf("count = %s", body["count"])
	}
}

func TestGetTeam(t *testing.T) {
	srv := newTestServer(testDeps())
	defer srv.Close()

	body := getJSON(t, srv.URL+"/api/v1/teams/2", http.StatusOK)
	var team store.Team
	if err := json.Unmarshal(body["team"], &team); err != nil || team.Abbr != "BUF" {
		t.Errorf("team = %+v, %v", team, err)
	}
	getJSON(t, srv.URL+"/api/v1/teams/99", http.StatusNotFound)
}

func TestGameDateIsTimestampOrNull(t *testing.T) {
	srv := newTestServer(testDeps())
	defer srv.Close()

	tests := []struct {
		id   string
		want string
	}{
		{"10", `"2024-09-08T17:00:00Z"`},
		{"11", `null`},
	}
	for _, tt := range tests {
		body := getJSON(t, srv.URL+"/api/v1/games/"+tt.id, http.StatusOK)
		var game map[string]json.RawMessage
		if err := json.Unmarshal(body["game"], &game); err != nil {
			t.Fatal(err)
		}
		if got := string(game["date"]); got != tt.want {
			t.Errorf("game %s date = %s, want %s", tt.id, got, tt.want)
		}
	}
}

func TestGetGames(t *testing.T) {
	srv := newTestServer(testDeps())
	defer srv.Close()

	tests := []struct {
		query  string
		status int
		count  string
	}{
		{"?year=2024", http.StatusOK, "2"},
		{"?year=2024&week=2", http.StatusOK, "1"},
		{"?year=2023", http.StatusOK, "0"},
		{"", http.StatusBadRequest, ""},
		{"?year=1999", http.StatusBadRequest, ""},
		{"?year=2024&week=19", http.StatusBadRequest, ""},
		{"?year=2024&week=x", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			body := getJSON(t, srv.URL+"/api/v1/games"+tt.query, tt.status)
			if tt.count != "" && string(body["count"]) != tt.count {
				t.Errorf("count = %s, want %s", body["count"], tt.count)
			}
		})
	}
}

func TestGetGamesUsesCache(t *testing.T) {
	deps := testDeps()
	games := deps.Games.(*fakeGames)
	c := &mapCache{data: map[string][]byte{}}
	deps.Cache = c
	srv := newTestServer(deps)
	defer srv.Close()

	for i := 0; i < 3; i++ {
		getJSON(t, srv.URL+"/api/v1/games?year=2024&week=1", http.StatusOK)
	}
	if games.calls != 1 {
		t.Errorf("store calls = %d, want 1", games.calls)
	}
	if c.sets != 1 {
		t.Errorf("cache sets = %d, want 1", c.sets)
	}
	if _, ok := c.data["pickem:games:2024:1"]; !ok {
		t.Errorf("cache keys = %v", c.data)
	}
}

func TestGetGame(t *testing.T) {
	srv := newTestServer(testDeps())
	defer srv.Close()

	body := getJSON(t, srv.URL+"/api/v1/games/10", http.StatusOK)
	var g store.Game
	if err := json.Unmarshal(body["game"], &g); err != nil || g.ExternalID != "20240908_BUF@KC" {
		t.Errorf("game = %+v, %v", g, err)
	}

	body = getJSON(t, srv.URL+"/api/v1/games/20240915_KC@BUF", http.StatusOK)
	if err := json.Unmarshal(body["game"], &g); err != nil || g.ID != 11 {
		t.Errorf("game = %+v, %v", g, err)
	}

	getJSON(t, srv.URL+"/api/v1/games/99", http.StatusNotFound)
}

func TestGetBetOptions(t *testing.T) {
	srv := newTestServer(testDeps())
	defer srv.Close()

	body := getJSON(t, srv.URL+"/api/v1/games/10/bet-options", http.StatusOK)
	var views []struct {
		Target             string          `json:"target"`
		Line               decimal.Decimal `json:"line"`
		DisplayLine        decimal.Decimal `json:"display_line"`
		Odds               int             `json:"odds"`
		ImpliedProbability float64         `json:"implied_probability"`
		NoVigProbability   *float64        `json:"no_vig_probability"`
	}
	if err := json.Unmarshal(body["bet_options"], &views); err != nil {
		t.Fatal(err)
	}
	if len(views) != 2 {
		t.Fatalf("options = %d, want 2", len(views))
	}
	for _, v := range views {
		if v.Target == "away" {
			if !v.Line.Equal(decimal.RequireFromString("3.25")) || !v.DisplayLine.Equal(decimal.RequireFromString("3.5")) {
				t.Errorf("away line = %s display %s, want 3.25 shown as 3.5", v.Line, v.DisplayLine)
			}
		}
		if v.Odds != -110 {
			t.Errorf("odds = %d", v.Odds)
		}
		if v.ImpliedProbability < 0.523 || v.ImpliedProbability > 0.524 {
			t.Errorf("implied = %f", v.ImpliedProbability)
		}
		if v.NoVigProbability == nil || *v.NoVigProbability < 0.4999 || *v.NoVigProbability > 0.5001 {
			t.Errorf("no vig = %v", v.NoVigProbability)
		}
	}
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestSubmitRun(t *testing.T) {
	deps := testDeps()
	fr := deps.Runs.(*fakeRuns)
	srv := newTestServer(deps)
	defer srv.Close()

	resp := post(t, srv.URL+"/api/v1/runs", `{"task":"grade-picks","year":2024,"week":3}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if len(fr.submitted) != 1 || fr.submitted[0] != (task.Request{Task: task.GradePicks, Year: 2024, Week: 3}) {
		t.Errorf("submitted = %+v", fr.submitted)
	}

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed", `{"task":`, http.StatusBadRequest},
		{"unknown task", `{"task":"reticulate"}`, http.StatusBadRequest},
		{"missing week", `{"task":"update-games","year":2024}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if resp := post(t, srv.URL+"/api/v1/runs", tt.body); resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
		})
	}

	fr.err = runs.ErrQueueFull
	if resp := post(t, srv.URL+"/api/v1/runs", `{"task":"sync-teams"}`); resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("queue full status = %d", resp.StatusCode)
	}
}

func TestGetRun(t *testing.T) {
	deps := testDeps()
	deps.Runs.(*fakeRuns).runs["abc"] = &runs.Run{ID: "abc", Status: runs.StatusCompleted}
	srv := newTestServer(deps)
	defer srv.Close()

	body := getJSON(t, srv.URL+"/api/v1/runs/abc", http.StatusOK)
	var r runs.Run
	if err := json.Unmarshal(body["run"], &r); err != nil || r.Status != runs.StatusCompleted {
		t.Errorf("run = %+v, %v", r, err)
	}
	getJSON(t, srv.URL+"/api/v1/runs/nope", http.StatusNotFound)

	body = getJSON(t, srv.URL+"/api/v1/runs", http.StatusOK)
	if string(body["count"]) != "1" {
		t.Errorf("count = %s", body["count"])
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := CORSMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/runs", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("allow origin = %q", got)
	}
}
