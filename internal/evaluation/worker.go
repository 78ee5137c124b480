package evaluation

import (
	"context"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/terra-clan/caseprep/internal/events"
)

// Worker evaluates sessions as interview.completed events arrive
type Worker struct {
	bus      *events.Bus
	pipeline *Pipeline
	timeout  time.Duration
}

// NewWorker creates an evaluation worker. timeout bounds each evaluation run.
func NewWorker(bus *events.Bus, pipeline *Pipeline, timeout time.Duration) *Worker {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Worker{bus: bus, pipeline: pipeline, timeout: timeout}
}

// Start subscribes to completion events and processes them until ctx is done
func (w *Worker) Start(ctx context.Context) error {
	messages, err := w.bus.SubscribeCompleted(ctx)
	if err != nil {
		return err
	}

	slog.Info("evaluation worker started")

	go func() {
		for msg := range messages {
			w.processMessage(ctx, msg)
		}
		slog.Info("evaluation worker stopped")
	}()

	return nil
}

// processMessage always acks: LLM failures are not retried automatically,
// the session can be evaluated again through the API
func (w *Worker) processMessage(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	ev, err := events.DecodeCompleted(msg)
	if err != nil {
		slog.Error("invalid completion event", "message_id", msg.UUID, "error", err)
		return
	}

	existing, err := w.pipeline.Result(ctx, ev.SessionID)
	if err != nil {
		slog.Error("failed to check evaluation", "session_id", ev.SessionID, "error", err)
		return
	}
	if existing != nil {
		slog.Debug("session already evaluated", "session_id", ev.SessionID)
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	if _, err := w.pipeline.Run(runCtx, ev.SessionID); err != nil {
		slog.Error("background evaluation failed", "session_id", ev.SessionID, "error", err)
	}
}
