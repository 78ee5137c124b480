package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/terra-clan/caseprep/internal/events"
	"github.com/terra-clan/caseprep/internal/hub"
	"github.com/terra-clan/caseprep/internal/interview"
	"github.com/terra-clan/caseprep/internal/metrics"
	"github.com/terra-clan/caseprep/internal/models"
)

// Roles as they appear in outbound frames
const (
	eventRoleCandidate   = "user"
	eventRoleInterviewer = "interviewer"
	eventRoleSystem      = "system"
)

// Result is the outcome of one submitted message
type Result struct {
	Reply interview.Reply

	// Broadcast is false when nothing was recorded and the reply is meant
	// for the sender only (the session had already concluded)
	Broadcast bool
}

// Conversation is a live interview shared by every connection to a session
// on this process. Turns are processed one at a time.
type Conversation struct {
	manager *Manager
	refs    int

	mu      sync.Mutex
	session *models.InterviewSession
	iv      *interview.Interviewer
}

// SessionID returns the session this conversation belongs to
func (c *Conversation) SessionID() string {
	return c.session.ID
}

// Phase returns the current interview phase
func (c *Conversation) Phase() interview.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.iv.Phase()
}

// Submit validates a raw candidate message and runs it through the interview.
// Rejected input returns a *interview.ValidationError and changes nothing.
// The turn is stored atomically; if storing fails, or ctx ends while the reply
// is being generated, the interview is rolled back and nothing is recorded.
func (c *Conversation) Submit(ctx context.Context, raw string) (Result, error) {
	text, err := interview.ValidateMessage(raw)
	if err != nil {
		return Result{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.iv.IsCompleted() {
		return Result{Reply: c.iv.Submit(ctx, text)}, nil
	}

	cp := c.iv.Checkpoint()
	reply := c.iv.Submit(ctx, text)

	if err := ctx.Err(); err != nil {
		c.iv.Rollback(cp)
		return Result{}, fmt.Errorf("turn abandoned: %w", err)
	}

	now := time.Now().UTC()
	updated := *c.session
	updated.CurrentPhase = reply.Phase.String()
	updated.ExhibitsReleased = c.iv.ReleasedExhibits()
	updated.UpdatedAt = now
	if reply.Completed {
		updated.Status = models.SessionCompleted
		updated.CompletedAt = &now
	}

	err = c.manager.repo.RecordTurn(ctx, &updated,
		&models.Message{SessionID: updated.ID, Role: models.RoleUser, Content: text},
		&models.Message{SessionID: updated.ID, Role: models.RoleAssistant, Content: reply.Message},
	)
	if err != nil {
		c.iv.Rollback(cp)
		return Result{}, fmt.Errorf("failed to record turn: %w", err)
	}
	*c.session = updated

	c.observe(reply)

	// the turn is stored; other connections get it even if this one is gone
	pubCtx := context.WithoutCancel(ctx)
	c.publish(pubCtx, hub.Event{Message: text, Role: eventRoleCandidate})
	c.publish(pubCtx, hub.Event{
		Message:   reply.Message,
		Role:      eventRoleInterviewer,
		Phase:     reply.Phase.String(),
		Completed: reply.Completed,
	})

	if reply.Completed {
		c.complete(now)
	}

	return Result{Reply: reply, Broadcast: true}, nil
}

// Release detaches one connection from the conversation
func (c *Conversation) Release() {
	c.manager.release(c)
}

func (c *Conversation) resumedEvent() hub.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return hub.Event{
		Role:      eventRoleSystem,
		Phase:     c.iv.Phase().String(),
		Completed: c.iv.IsCompleted(),
		Resumed:   true,
	}
}

// publish failures only affect live delivery; the log is already persisted
func (c *Conversation) publish(ctx context.Context, ev hub.Event) {
	if err := c.manager.hub.Publish(ctx, c.session.ID, ev); err != nil {
		slog.Warn("failed to publish interview event",
			"session_id", c.session.ID,
			"role", ev.Role,
			"error", err,
		)
	}
}

func (c *Conversation) observe(reply interview.Reply) {
	kind := "reply"
	switch {
	case reply.ExhibitReleased:
		kind = "exhibit"
		metrics.IncExhibitsReleased()
	case reply.Fallback:
		kind = "fallback"
	}
	metrics.ObserveTurn(string(c.session.Mode), reply.From.String(), kind)

	if reply.Transitioned {
		metrics.ObserveTransition(reply.From.String(), reply.Phase.String(), string(reply.Reason))
		slog.Info("interview phase changed",
			"session_id", c.session.ID,
			"from", reply.From.String(),
			"to", reply.Phase.String(),
			"reason", reply.Reason,
		)
	}
}

func (c *Conversation) complete(at time.Time) {
	metrics.ObserveSessionStatus(string(models.SessionCompleted))
	slog.Info("interview completed",
		"session_id", c.session.ID,
		"turns", c.iv.TurnCount(),
	)

	if c.manager.bus == nil {
		return
	}
	err := c.manager.bus.PublishCompleted(events.InterviewCompleted{
		SessionID:   c.session.ID,
		CaseID:      c.session.CaseID,
		Mode:        string(c.session.Mode),
		Turns:       c.iv.TurnCount(),
		CompletedAt: at,
	})
	if err != nil {
		slog.Error("failed to publish completion event", "session_id", c.session.ID, "error", err)
	}
}

// IsValidationError reports whether err is a rejected candidate message
func IsValidationError(err error) bool {
	var ve *interview.ValidationError
	return errors.As(err, &ve)
}
