package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/fortuna/pickem/internal/report"
)

func startFeed(t *testing.T) (*Hub, string) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	go hub.Run(ctx)

	router := mux.NewRouter()
	NewServer(ctx, hub).RegisterRoutes(router)
	srv := httptest.NewServer(router)

	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", hub.ClientCount(), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) report.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var msg struct {
		Type    string       `json:"type"`
		Payload report.Event `json:"payload"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != MessageTypeRunEvent {
		t.Fatalf("message type = %s", msg.Type)
	}
	return msg.Payload
}

func TestFeedBroadcastsRunEvents(t *testing.T) {
	hub, base := startFeed(t)
	conn := dial(t, base+"/ws/runs")
	waitForClients(t, hub, 1)

	r := hub.Reporter("run-1")
	r.OnProgress("sync_game_data", "game 3 of 16", 3, 16)

	e := readEvent(t, conn)
	if e.RunID != "run-1" || e.Kind != report.KindProgress || e.Current != 3 || e.Total != 16 {
		t.Errorf("event = %+v", e)
	}
}

func TestFeedFiltersByRun(t *testing.T) {
	hub, base := startFeed(t)
	conn := dial(t, base+"/ws/runs?run_id=run-2")
	waitForClients(t, hub, 1)

	hub.Reporter("run-1").OnStart("import_teams", nil)
	hub.Reporter("run-2").OnStart("grade_week_picks", nil)

	e := readEvent(t, conn)
	if e.RunID != "run-2" {
		t.Errorf("got event for %s, want only run-2", e.RunID)
	}
}

func TestFeedSubscribeMessage(t *testing.T) {
	hub, base := startFeed(t)
	conn := dial(t, base+"/ws/runs")
	waitForClients(t, hub, 1)

	if err := conn.WriteJSON(ClientMessage{Type: MessageTypeHeartbeat}); err != nil {
		t.Fatal(err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg ServerMessage
	if err := conn.ReadJSON(&msg); err != nil || msg.Type != MessageTypeHeartbeat {
		t.Fatalf("heartbeat reply = %+v, %v", msg, err)
	}

	if err := conn.WriteJSON(ClientMessage{Type: "shout"}); err != nil {
		t.Fatal(err)
	}
	var raw map[string]json.RawMessage
	if err := conn.ReadJSON(&raw); err != nil {
		t.Fatal(err)
	}
	if string(raw["type"]) != `"error"` {
		t.Errorf("unknown message reply = %s", raw["type"])
	}
}

func TestClientDisconnectUnregisters(t *testing.T) {
	hub, base := startFeed(t)
	conn := dial(t, base+"/ws/runs")
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}

func TestHandleAfterUnregister(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub()
	go hub.Run(ctx)

	c := NewClient("c1", nil, hub)
	hub.Register(c)
	waitForClients(t, hub, 1)

	hub.Unregister(c)
	waitForClients(t, hub, 0)

	// a message already read off the socket still reaches handle
	c.handle(ClientMessage{Type: MessageTypeHeartbeat})
	c.handle(ClientMessage{Type: "shout"})

	if c.TrySend(ServerMessage{Type: MessageTypeHeartbeat}) {
		t.Error("TrySend succeeded on a closed client")
	}
}

func TestHubShutdownClosesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	c := NewClient("c1", nil, hub)
	hub.Register(c)
	waitForClients(t, hub, 1)

	cancel()
	<-stopped

	c.handle(ClientMessage{Type: MessageTypeHeartbeat})
	if _, ok := <-c.Send; ok {
		t.Error("send channel still open after shutdown")
	}

	late := NewClient("c2", nil, hub)
	hub.Register(late)
	if late.TrySend(ServerMessage{Type: MessageTypeHeartbeat}) {
		t.Error("client registered after shutdown accepted a message")
	}
}
