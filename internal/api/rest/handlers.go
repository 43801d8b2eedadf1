package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/fortuna/pickem/internal/cache"
	"github.com/fortuna/pickem/internal/config"
	"github.com/fortuna/pickem/internal/odds"
	"github.com/fortuna/pickem/internal/store"
)

// Handler contains dependencies for HTTP handlers
type Handler struct {
	deps Deps
}

// NewHandler creates a new handler
func NewHandler(deps Deps) *Handler {
	if deps.CacheTTL <= 0 {
		deps.CacheTTL = time.Minute
	}
	return &Handler{deps: deps}
}

// HealthCheck reports the service and its backing stores
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := map[string]string{}
	for name, hc := range map[string]HealthChecker{"database": h.deps.DB, "redis": h.deps.Redis} {
		if hc == nil {
			continue
		}
		if err := hc.HealthCheck(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "degraded"
	}
	respondJSON(w, status, map[string]interface{}{
		"status":  state,
		"service": "pickem",
		"checks":  checks,
	})
}

// GetTeams returns all teams
func (h *Handler) GetTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.deps.Teams.GetAll(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch teams", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"teams": teams, "count": len(teams)})
}

// GetTeam returns one team by database id
func (h *Handler) GetTeam(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["teamID"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid team ID", err)
		return
	}

	team, err := h.deps.Teams.GetByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Team not found", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch team", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"team": team})
}

// GameView is a game as the API presents it. An unknown kickoff is null.
type GameView struct {
	*store.Game
	Date *time.Time `json:"date"`
}

func newGameView(g *store.Game) GameView {
	view := GameView{Game: g}
	if g.Date.Valid {
		date := g.Date.Time.UTC()
		view.Date = &date
	}
	return view
}

func newGameViews(games []*store.Game) []GameView {
	views := make([]GameView, 0, len(games))
	for _, g := range games {
		views = append(views, newGameView(g))
	}
	return views
}

// GetGames returns the games of a season, or of one week when week is given
func (h *Handler) GetGames(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err == nil {
		err = config.ValidateYear(year)
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}

	week := 0
	if weekStr := r.URL.Query().Get("week"); weekStr != "" {
		week, err = strconv.Atoi(weekStr)
		if err == nil {
			err = config.ValidateWeek(week)
		}
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid week", err)
			return
		}
	}

	games, err := h.cachedGames(r.Context(), year, week)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch games", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"year":  year,
		"week":  week,
		"games": newGameViews(games),
		"count": len(games),
	})
}

func (h *Handler) cachedGames(ctx context.Context, year, week int) ([]*store.Game, error) {
	key := cache.GamesKey(year, week)

	if h.deps.Cache != nil {
		var games []*store.Game
		ok, err := h.deps.Cache.GetJSON(ctx, key, &games)
		if err != nil {
			slog.Warn("games cache read failed", "key", key, "error", err)
		}
		if ok {
			return games, nil
		}
	}

	games, err := h.deps.Games.GetGames(ctx, year, week)
	if err != nil {
		return nil, err
	}
	if games == nil {
		games = []*store.Game{}
	}

	if h.deps.Cache != nil {
		if err := h.deps.Cache.SetJSON(ctx, key, games, h.deps.CacheTTL); err != nil {
			slog.Warn("games cache write failed", "key", key, "error", err)
		}
	}
	return games, nil
}

// GetGame returns a game by database id or upstream id
func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	game, ok := h.lookupGame(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"game": newGameView(game)})
}

// BetOptionView is a bet option with the probability its price implies.
// Line keeps the recorded terms; DisplayLine is rounded to the half point.
type BetOptionView struct {
	*store.BetOption
	DisplayLine        decimal.Decimal `json:"display_line"`
	ImpliedProbability float64         `json:"implied_probability"`
	NoVigProbability   *float64        `json:"no_vig_probability,omitempty"`
}

// GetBetOptions returns a game's options with implied probabilities
func (h *Handler) GetBetOptions(w http.ResponseWriter, r *http.Request) {
	game, ok := h.lookupGame(w, r)
	if !ok {
		return
	}

	opts, err := h.deps.BetOptions.GetByGame(r.Context(), game.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch bet options", err)
		return
	}

	views := make([]BetOptionView, 0, len(opts))
	byKey := make(map[store.BetTarget]*store.BetOption, len(opts))
	for _, opt := range opts {
		byKey[opt.Target] = opt
	}
	for _, opt := range opts {
		view := BetOptionView{BetOption: opt, DisplayLine: odds.RoundToNearestHalf(opt.Line)}
		if p, err := odds.AmericanToProbability(opt.Odds); err == nil {
			view.ImpliedProbability = p
		}
		if other, ok := byKey[opposite(opt.Target)]; ok {
			if p, _, err := odds.NoVig(opt.Odds, other.Odds); err == nil {
				view.NoVigProbability = &p
			}
		}
		views = append(views, view)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"game_id":     game.ID,
		"bet_options": views,
	})
}

func opposite(t store.BetTarget) store.BetTarget {
	switch t {
	case store.BetTargetHome:
		return store.BetTargetAway
	case store.BetTargetAway:
		return store.BetTargetHome
	case store.BetTargetOver:
		return store.BetTargetUnder
	case store.BetTargetUnder:
		return store.BetTargetOver
	}
	return ""
}

func (h *Handler) lookupGame(w http.ResponseWriter, r *http.Request) (*store.Game, bool) {
	gameID := mux.Vars(r)["gameID"]

	var (
		game *store.Game
		err  error
	)
	if id, convErr := strconv.Atoi(gameID); convErr == nil {
		game, err = h.deps.Games.GetByID(r.Context(), id)
	} else {
		game, err = h.deps.Games.GetByExternalID(r.Context(), gameID)
	}

	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Game not found", err)
		return nil, false
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch game", err)
		return nil, false
	}
	return game, true
}

// RespondJSON writes a JSON response
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	respondJSON(w, status, data)
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	respondJSON(w, status, response)
}
