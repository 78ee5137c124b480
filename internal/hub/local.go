package hub

import (
	"context"
	"log/slog"
	"sync"
)

// LocalHub is an in-process hub used when no Redis address is configured.
// It only reaches connections served by this instance.
type LocalHub struct {
	mu     sync.Mutex
	rooms  map[string]map[int]chan Event
	nextID int
}

// NewLocalHub creates an empty in-process hub
func NewLocalHub() *LocalHub {
	return &LocalHub{rooms: make(map[string]map[int]chan Event)}
}

// Publish delivers the event to every current subscriber. Slow subscribers
// whose buffer is full miss the event.
func (h *LocalHub) Publish(ctx context.Context, sessionID string, ev Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.rooms[channelName(sessionID)] {
		select {
		case ch <- ev:
		default:
			slog.Warn("hub subscriber buffer full, dropping event",
				"session_id", sessionID,
				"subscriber", id,
			)
		}
	}
	return nil
}

// Subscribe joins the session room
func (h *LocalHub) Subscribe(ctx context.Context, sessionID string) (<-chan Event, func(), error) {
	room := channelName(sessionID)
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[int]chan Event)
	}
	h.rooms[room][id] = ch
	h.mu.Unlock()

	var once sync.Once
	done := make(chan struct{})
	cancel := func() {
		once.Do(func() {
			close(done)
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.rooms[room], id)
			if len(h.rooms[room]) == 0 {
				delete(h.rooms, room)
			}
			close(ch)
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()

	return ch, cancel, nil
}

// Subscribers returns the number of subscribers in a session room
func (h *LocalHub) Subscribers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[channelName(sessionID)])
}

// Ping always succeeds
func (h *LocalHub) Ping(ctx context.Context) error { return nil }

// Close is a no-op
func (h *LocalHub) Close() error { return nil }
