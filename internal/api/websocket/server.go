// Package websocket streams run progress events to connected clients.
package websocket

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/fortuna/pickem/internal/api/rest"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server serves the run event feed
type Server struct {
	hub *Hub
	ctx context.Context
}

// NewServer creates a feed over hub. Connections close when ctx ends.
func NewServer(ctx context.Context, hub *Hub) *Server {
	return &Server{hub: hub, ctx: ctx}
}

// RegisterRoutes mounts the feed on an existing router
func (s *Server) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ws/runs", s.handleRuns).Methods("GET")
	router.HandleFunc("/ws/health", s.handleHealth).Methods("GET")
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(uuid.NewString(), conn, s.hub)
	if runID := r.URL.Query().Get("run_id"); runID != "" {
		client.setRun(runID)
	}
	s.hub.Register(client)

	go client.WritePump(s.ctx)
	go client.ReadPump(s.ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	rest.RespondJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"clients": s.hub.ClientCount(),
	})
}
