package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisHub implements Hub over Redis pub/sub so that every instance serving
// a session's connections sees the same room traffic
type RedisHub struct {
	client *redis.Client
}

// NewRedisHub connects to Redis and verifies the connection
func NewRedisHub(ctx context.Context, address, password string, db int) (*RedisHub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("connected to redis hub", "address", address, "db", db)
	return &RedisHub{client: client}, nil
}

// Publish broadcasts the event on the session channel
func (h *RedisHub) Publish(ctx context.Context, sessionID string, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	if err := h.client.Publish(ctx, channelName(sessionID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Subscribe joins the session channel. The subscription is confirmed before
// returning so that events published afterwards are not missed.
func (h *RedisHub) Subscribe(ctx context.Context, sessionID string) (<-chan Event, func(), error) {
	channel := channelName(sessionID)
	pubsub := h.client.Subscribe(ctx, channel)

	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	out := make(chan Event, subscriberBuffer)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			pubsub.Close()
		})
	}

	go func() {
		defer close(out)
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					slog.Warn("dropping malformed hub event", "channel", channel, "error", err)
					continue
				}
				select {
				case out <- ev:
				case <-done:
					return
				case <-ctx.Done():
					cancel()
					return
				}
			}
		}
	}()

	return out, cancel, nil
}

// Ping verifies Redis connectivity
func (h *RedisHub) Ping(ctx context.Context) error {
	return h.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (h *RedisHub) Close() error {
	return h.client.Close()
}

var (
	_ Hub = (*RedisHub)(nil)
	_ Hub = (*LocalHub)(nil)
)
