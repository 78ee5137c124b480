// Package events carries domain events between the interview driver and
// background workers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// TopicInterviewCompleted is published once when a session reaches the completed phase
const TopicInterviewCompleted = "interview.completed"

// InterviewCompleted is the payload of TopicInterviewCompleted
type InterviewCompleted struct {
	SessionID   string    `json:"session_id"`
	CaseID      string    `json:"case_id"`
	Mode        string    `json:"mode"`
	Turns       int       `json:"turns"`
	CompletedAt time.Time `json:"completed_at"`
}

// Bus is an in-process publish/subscribe bus
type Bus struct {
	pubSub *gochannel.GoChannel
}

// NewBus creates a bus backed by a watermill Go channel pub/sub
func NewBus() *Bus {
	return &Bus{
		pubSub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 64},
			watermill.NewStdLogger(false, false),
		),
	}
}

// PublishCompleted publishes an InterviewCompleted event
func (b *Bus) PublishCompleted(ev InterviewCompleted) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.pubSub.Publish(TopicInterviewCompleted, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", TopicInterviewCompleted, err)
	}
	return nil
}

// SubscribeCompleted returns the stream of InterviewCompleted messages.
// Events published before the first subscription are dropped.
func (b *Bus) SubscribeCompleted(ctx context.Context) (<-chan *message.Message, error) {
	return b.pubSub.Subscribe(ctx, TopicInterviewCompleted)
}

// DecodeCompleted parses an InterviewCompleted message payload
func DecodeCompleted(msg *message.Message) (InterviewCompleted, error) {
	var ev InterviewCompleted
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return ev, fmt.Errorf("failed to decode %s: %w", TopicInterviewCompleted, err)
	}
	return ev, nil
}

// Close stops all subscriptions
func (b *Bus) Close() error {
	return b.pubSub.Close()
}
