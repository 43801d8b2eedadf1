package publisher

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fortuna/pickem/internal/report"
)

// EventsStream carries every run event
const EventsStream = "pickem.events"

const publishTimeout = 2 * time.Second

// RedisStreamPublisher publishes events to Redis streams
type RedisStreamPublisher struct {
	client *redis.Client
	stream string
}

// NewRedisStreamPublisher creates a new Redis stream publisher from existing client
func NewRedisStreamPublisher(client *redis.Client) *RedisStreamPublisher {
	return &RedisStreamPublisher{
		client: client,
		stream: EventsStream,
	}
}

// Publish appends v as JSON to the stream
func (rsp *RedisStreamPublisher) Publish(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	return rsp.client.XAdd(ctx, &redis.XAddArgs{
		Stream: rsp.stream,
		Values: map[string]interface{}{
			"data":      string(data),
			"timestamp": time.Now().Unix(),
		},
	}).Err()
}

// Reporter returns an observer that publishes the run's events.
// Publish failures are logged and never fail the run.
func (rsp *RedisStreamPublisher) Reporter(runID string) report.Reporter {
	return report.NewSink(runID, func(e report.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		if err := rsp.Publish(ctx, e); err != nil {
			slog.Warn("publish event failed", "stream", rsp.stream, "op", e.Op, "kind", e.Kind, "error", err)
		}
	})
}
