package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/extralife/marketd/internal/domain"
)

const (
	// poolEventsChannel carries ephemeral fan-out to live subscribers
	// (websocket hub, notifier).
	poolEventsChannel = "events:pools"

	// poolEventsStream keeps a durable, trimmed replay log of the same
	// events.
	poolEventsStream = "stream:pool_events"

	// streamMaxLen is the approximate maximum stream length, enforced via
	// XADD MAXLEN ~.
	streamMaxLen int64 = 10000
)

// SignalBus implements domain.SignalBus using Redis Pub/Sub for ephemeral
// fan-out and a Redis Stream for durable, ordered delivery of the same pool
// lifecycle events.
type SignalBus struct {
	rdb *redis.Client
}

// NewSignalBus creates a SignalBus backed by the given Client.
func NewSignalBus(c *Client) *SignalBus {
	return &SignalBus{rdb: c.Underlying()}
}

// Publish broadcasts a pool event to live subscribers and appends it to the
// durable stream. Stream append failures are returned; a pub/sub channel
// with no subscribers is not an error.
func (sb *SignalBus) Publish(ctx context.Context, ev domain.PoolEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("redis: marshal pool event: %w", err)
	}

	if err := sb.rdb.Publish(ctx, poolEventsChannel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", poolEventsChannel, err)
	}

	args := &redis.XAddArgs{
		Stream: poolEventsStream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"payload": payload,
		},
	}
	if err := sb.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis: stream append %s: %w", poolEventsStream, err)
	}
	return nil
}

// Subscribe creates a Pub/Sub subscription and returns a read-only channel
// of decoded pool events. The subscription closes when the context is
// cancelled; the returned channel is closed at that point as well. Payloads
// that fail to decode are dropped.
func (sb *SignalBus) Subscribe(ctx context.Context) (<-chan domain.PoolEvent, error) {
	pubsub := sb.rdb.Subscribe(ctx, poolEventsChannel)

	// Verify the subscription is established by receiving the confirmation.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", poolEventsChannel, err)
	}

	out := make(chan domain.PoolEvent, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev domain.PoolEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// StreamRead reads up to count events from the durable stream starting after
// lastID. Use "0" or "0-0" to read from the beginning, or "$" to read only
// new events. It returns an empty slice (not an error) when no events are
// available.
func (sb *SignalBus) StreamRead(ctx context.Context, lastID string, count int) ([]domain.StreamMessage, error) {
	args := &redis.XReadArgs{
		Streams: []string{poolEventsStream, lastID},
		Count:   int64(count),
	}

	results, err := sb.rdb.XRead(ctx, args).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: stream read %s: %w", poolEventsStream, err)
	}

	var messages []domain.StreamMessage
	for _, s := range results {
		for _, msg := range s.Messages {
			payload, ok := msg.Values["payload"]
			if !ok {
				continue
			}

			var data []byte
			switch v := payload.(type) {
			case string:
				data = []byte(v)
			case []byte:
				data = v
			default:
				continue
			}

			var ev domain.PoolEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				continue
			}
			messages = append(messages, domain.StreamMessage{
				ID:    msg.ID,
				Event: ev,
			})
		}
	}

	return messages, nil
}

// Compile-time interface check.
var _ domain.SignalBus = (*SignalBus)(nil)
