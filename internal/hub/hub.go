// Package hub fans interview traffic out to every connection watching a session.
package hub

import (
	"context"
)

// Event is one frame broadcast to a session's room
type Event struct {
	Message   string `json:"message"`
	Role      string `json:"role"`
	Phase     string `json:"phase,omitempty"`
	Completed bool   `json:"completed,omitempty"`
	Resumed   bool   `json:"resumed,omitempty"`
}

// Hub delivers events to all subscribers of a session
type Hub interface {
	// Publish broadcasts an event to the session room
	Publish(ctx context.Context, sessionID string, ev Event) error

	// Subscribe joins the session room. The returned channel is closed after
	// cancel is called or ctx is done.
	Subscribe(ctx context.Context, sessionID string) (<-chan Event, func(), error)

	// Ping checks the backend is reachable
	Ping(ctx context.Context) error

	// Close releases backend connections
	Close() error
}

// subscriberBuffer is the per-subscriber channel capacity
const subscriberBuffer = 32

func channelName(sessionID string) string {
	return "interview:" + sessionID
}
