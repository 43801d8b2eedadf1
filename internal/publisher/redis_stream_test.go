package publisher

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/fortuna/pickem/internal/report"
)

func TestReporterPublishesEvents(t *testing.T) {
	url := os.Getenv("PICKEM_TEST_REDIS_URL")
	if url == "" {
		t.Skip("PICKEM_TEST_REDIS_URL not set")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		t.Fatal(err)
	}
	client := redis.NewClient(opt)
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	pub := NewRedisStreamPublisher(client)
	pub.stream = "pickem.events.test"
	client.Del(ctx, pub.stream)
	t.Cleanup(func() { client.Del(ctx, pub.stream) })

	r := pub.Reporter("run-42")
	r.OnStart("sync_game_data", map[string]any{"week": 3})
	r.OnComplete("sync_game_data", nil)

	msgs, err := client.XRange(ctx, pub.stream, "-", "+").Result()
	if err != nil {
		t.Fatalf("XRange: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}

	var e report.Event
	if err := json.Unmarshal([]byte(msgs[0].Values["data"].(string)), &e); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e.RunID != "run-42" || e.Kind != report.KindStart || e.Op != "sync_game_data" {
		t.Errorf("event = %+v", e)
	}
}
