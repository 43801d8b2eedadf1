package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/fortuna/pickem/internal/runs"
	"github.com/fortuna/pickem/internal/store"
	"github.com/fortuna/pickem/internal/task"
)

// TeamReader reads teams
type TeamReader interface {
	GetAll(ctx context.Context) ([]*store.Team, error)
	GetByID(ctx context.Context, id int) (*store.Team, error)
}

// GameReader reads games
type GameReader interface {
	GetGames(ctx context.Context, year, week int) ([]*store.Game, error)
	GetByID(ctx context.Context, id int) (*store.Game, error)
	GetByExternalID(ctx context.Context, externalID string) (*store.Game, error)
}

// BetOptionReader reads the options of a game
type BetOptionReader interface {
	GetByGame(ctx context.Context, gameID int) ([]*store.BetOption, error)
}

// RunService queues and tracks task runs
type RunService interface {
	Submit(req task.Request) (*runs.Run, error)
	Get(id string) (*runs.Run, bool)
	List() []*runs.Run
}

// GamesCache caches weekly game listings
type GamesCache interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
}

// HealthChecker reports whether a backing service is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps are the collaborators the API serves from. Cache and Redis are optional.
type Deps struct {
	Teams      TeamReader
	Games      GameReader
	BetOptions BetOptionReader
	Runs       RunService
	Cache      GamesCache
	CacheTTL   time.Duration
	DB         HealthChecker
	Redis      HealthChecker
}

// Server represents the REST API server
type Server struct {
	port   string
	router *mux.Router
	server *http.Server
}

// NewServer creates a new REST API server
func NewServer(port string, deps Deps) *Server {
	handler := NewHandler(deps)
	runsHandler := NewRunsHandler(deps.Runs)

	router := mux.NewRouter()

	// Apply middleware
	router.Use(RecoveryMiddleware)
	router.Use(LoggingMiddleware)
	router.Use(CORSMiddleware)

	// Health check
	router.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()

	// Teams
	api.HandleFunc("/teams", handler.GetTeams).Methods("GET")
	api.HandleFunc("/teams/{teamID:[0-9]+}", handler.GetTeam).Methods("GET")

	// Games
	api.HandleFunc("/games", handler.GetGames).Methods("GET")
	api.HandleFunc("/games/{gameID}", handler.GetGame).Methods("GET")
	api.HandleFunc("/games/{gameID}/bet-options", handler.GetBetOptions).Methods("GET")

	// Task runs
	api.HandleFunc("/runs", runsHandler.HandleSubmit).Methods("POST", "OPTIONS")
	api.HandleFunc("/runs", runsHandler.HandleList).Methods("GET")
	api.HandleFunc("/runs/{runID}", runsHandler.HandleGet).Methods("GET")

	return &Server{
		port:   port,
		router: router,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%s", port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Router exposes the router so other feeds can mount on the same port
func (s *Server) Router() *mux.Router {
	return s.router
}

// Start starts the REST API server
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
