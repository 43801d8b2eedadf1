package websocket

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fortuna/pickem/internal/report"
)

// Message types exchanged with clients
const (
	MessageTypeRunEvent    = "run_event"
	MessageTypeSubscribe   = "subscribe"
	MessageTypeUnsubscribe = "unsubscribe"
	MessageTypeHeartbeat   = "heartbeat"
	MessageTypeError       = "error"
)

// ClientMessage is sent by a client. Subscribe takes an optional run_id;
// without one the client receives every run's events.
type ClientMessage struct {
	Type  string `json:"type"`
	RunID string `json:"run_id,omitempty"`
}

// ServerMessage is sent to clients
type ServerMessage struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorMessage is the payload of an error message
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Hub maintains the set of active clients and broadcasts run events to them
type Hub struct {
	clients   map[*Client]bool
	clientsMu sync.RWMutex

	broadcast  chan report.Event
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan report.Event, 1000),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run(ctx context.Context) {
	slog.Info("websocket hub started")

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case c := <-h.register:
			h.registerClient(c)

		case c := <-h.unregister:
			h.unregisterClient(c)

		case e := <-h.broadcast:
			h.broadcastEvent(e)
		}
	}
}

// Register adds a client to the hub
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.close()
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast queues an event for every subscribed client
func (h *Hub) Broadcast(e report.Event) {
	select {
	case h.broadcast <- e:
	default:
		slog.Warn("broadcast buffer full, dropping event", "run_id", e.RunID, "op", e.Op)
	}
}

// Reporter returns an observer that broadcasts the run's events
func (h *Hub) Reporter(runID string) report.Reporter {
	return report.NewSink(runID, h.Broadcast)
}

// ClientCount returns the number of active clients
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

func (h *Hub) registerClient(c *Client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	h.clients[c] = true
	slog.Debug("websocket client connected", "client_id", c.ID, "clients", len(h.clients))
}

func (h *Hub) unregisterClient(c *Client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
		slog.Debug("websocket client disconnected", "client_id", c.ID, "clients", len(h.clients))
	}
}

func (h *Hub) broadcastEvent(e report.Event) {
	h.clientsMu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsMu.RUnlock()

	msg := ServerMessage{Type: MessageTypeRunEvent, Payload: e, Timestamp: e.Timestamp}

	for _, c := range clients {
		if !c.Wants(e.RunID) {
			continue
		}
		if !c.TrySend(msg) {
			// too slow to keep up
			slog.Warn("websocket client buffer full, disconnecting", "client_id", c.ID)
			go h.Unregister(c)
		}
	}
}

func (h *Hub) shutdown() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	close(h.done)
	for c := range h.clients {
		c.close()
		delete(h.clients, c)
	}
}
