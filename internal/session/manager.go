// Package session drives interviews: it owns session lifecycle, persists the
// chat log turn by turn and fans replies out to connected clients.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/terra-clan/caseprep/internal/events"
	"github.com/terra-clan/caseprep/internal/hub"
	"github.com/terra-clan/caseprep/internal/interview"
	"github.com/terra-clan/caseprep/internal/metrics"
	"github.com/terra-clan/caseprep/internal/models"
	"github.com/terra-clan/caseprep/internal/storage"
)

// Common errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrCaseNotFound    = errors.New("case not found")
	ErrInvalidMode     = errors.New("invalid interview mode")
)

// Config holds the interview settings the manager passes to each interviewer
type Config struct {
	HistoryWindow   int
	ReplyTimeout    time.Duration
	PersistExhibits bool
	PublicURL       string
	CaseCacheTTL    time.Duration
}

// Manager creates sessions and hands out conversations for connected clients
type Manager struct {
	repo      storage.Repository
	hub       hub.Hub
	bus       *events.Bus
	generator interview.Generator
	cfg       Config

	cases *cache.Cache

	mu   sync.Mutex
	live map[string]*Conversation
}

// NewManager creates a session manager. bus may be nil, in which case no
// completion events are published.
func NewManager(repo storage.Repository, h hub.Hub, bus *events.Bus, gen interview.Generator, cfg Config) *Manager {
	ttl := cfg.CaseCacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Manager{
		repo:      repo,
		hub:       h,
		bus:       bus,
		generator: gen,
		cfg:       cfg,
		cases:     cache.New(ttl, 2*ttl),
		live:      make(map[string]*Conversation),
	}
}

// Ping checks that storage and the hub are reachable
func (m *Manager) Ping(ctx context.Context) error {
	if err := m.repo.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := m.hub.Ping(ctx); err != nil {
		return fmt.Errorf("hub ping failed: %w", err)
	}
	return nil
}

// CreateSession creates a not-yet-started session for an existing case
func (m *Manager) CreateSession(ctx context.Context, req models.CreateSessionRequest, createdBy string) (*models.CreateSessionResponse, error) {
	mode, err := models.ParseInterviewMode(req.Mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMode, req.Mode)
	}

	kase, err := m.getCase(ctx, req.CaseID)
	if err != nil {
		return nil, err
	}
	if kase == nil {
		return nil, ErrCaseNotFound
	}

	token, err := models.GenerateSessionToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate join token: %w", err)
	}

	now := time.Now().UTC()
	s := &models.InterviewSession{
		ID:               uuid.New().String(),
		Token:            token,
		CaseID:           kase.ID,
		Mode:             mode,
		Status:           models.SessionNotStarted,
		CurrentPhase:     interview.PhaseFramework.String(),
		ExhibitsReleased: []int{},
		CreatedBy:        createdBy,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := m.repo.CreateSession(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	metrics.ObserveSessionStatus(string(s.Status))
	slog.Info("session created",
		"id", s.ID,
		"case_id", s.CaseID,
		"mode", s.Mode,
		"created_by", createdBy,
	)

	return &models.CreateSessionResponse{
		ID:        s.ID,
		Token:     s.Token,
		CaseID:    s.CaseID,
		Mode:      s.Mode,
		Status:    s.Status,
		JoinURL:   m.joinURL(s.Token),
		CreatedAt: s.CreatedAt,
	}, nil
}

// Get returns a session by ID
func (m *Manager) Get(ctx context.Context, id string) (*models.InterviewSession, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrSessionNotFound
	}

	s, err := m.repo.GetSessionByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if s == nil {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// GetByToken returns a session by its join token
func (m *Manager) GetByToken(ctx context.Context, token string) (*models.InterviewSession, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}

	s, err := m.repo.GetSessionByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if s == nil {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Join returns what a candidate sees before connecting
func (m *Manager) Join(ctx context.Context, token string) (*models.JoinSessionResponse, error) {
	s, err := m.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	resp := &models.JoinSessionResponse{
		Status:       s.Status,
		Mode:         s.Mode,
		CurrentPhase: s.CurrentPhase,
	}

	kase, err := m.getCase(ctx, s.CaseID)
	if err != nil {
		return nil, err
	}
	if kase != nil {
		resp.Case = &models.CaseInfo{Title: kase.Title, CaseType: kase.CaseType}
	}
	return resp, nil
}

// List returns sessions matching filters
func (m *Manager) List(ctx context.Context, filters models.SessionFilters) ([]*models.InterviewSession, error) {
	sessions, err := m.repo.ListSessions(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// Messages returns the chat log of a session
func (m *Manager) Messages(ctx context.Context, id string) ([]models.Message, error) {
	if _, err := m.Get(ctx, id); err != nil {
		return nil, err
	}
	return m.repo.ListMessages(ctx, id)
}

// Delete removes a session and its chat log
func (m *Manager) Delete(ctx context.Context, id string) error {
	if _, err := m.Get(ctx, id); err != nil {
		return err
	}

	if err := m.repo.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	m.mu.Lock()
	delete(m.live, id)
	m.mu.Unlock()

	slog.Info("session deleted", "id", id)
	return nil
}

// Connect attaches a client to the session behind token. A fresh session is
// opened and its opening message persisted; a session with history is
// rehydrated from the log. Connections served by this process share one
// conversation per session. Callers must Release the conversation.
func (m *Manager) Connect(ctx context.Context, token string) (*Conversation, hub.Event, error) {
	s, err := m.GetByToken(ctx, token)
	if err != nil {
		return nil, hub.Event{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if conv, ok := m.live[s.ID]; ok {
		conv.refs++
		return conv, conv.resumedEvent(), nil
	}

	kase, err := m.getCase(ctx, s.CaseID)
	if err != nil {
		return nil, hub.Event{}, err
	}
	if kase == nil {
		return nil, hub.Event{}, fmt.Errorf("session %s: %w", s.ID, interview.ErrMissingCase)
	}

	log, err := m.repo.ListMessages(ctx, s.ID)
	if err != nil {
		return nil, hub.Event{}, fmt.Errorf("failed to load messages: %w", err)
	}

	opts := []interview.Option{
		interview.WithHistoryWindow(m.cfg.HistoryWindow),
		interview.WithReplyTimeout(m.cfg.ReplyTimeout),
		interview.WithLogger(slog.With("session_id", s.ID)),
	}
	if m.cfg.PersistExhibits {
		opts = append(opts, interview.WithReleasedExhibits(s.ExhibitsReleased))
	}

	conv := &Conversation{manager: m, session: s, refs: 1}
	var greeting hub.Event

	if len(log) == 0 {
		iv, err := interview.New(kase, s.Mode, m.generator, opts...)
		if err != nil {
			return nil, hub.Event{}, err
		}
		conv.iv = iv

		opening := iv.Open()
		if err := m.repo.AppendMessage(ctx, &models.Message{SessionID: s.ID, Role: models.RoleAssistant, Content: opening}); err != nil {
			return nil, hub.Event{}, fmt.Errorf("failed to save opening message: %w", err)
		}
		greeting = hub.Event{Message: opening, Role: eventRoleInterviewer, Phase: iv.Phase().String()}
	} else {
		iv, err := interview.Rehydrate(kase, s.Mode, m.generator, log, s.CurrentPhase, opts...)
		if err != nil {
			return nil, hub.Event{}, err
		}
		conv.iv = iv
		greeting = conv.resumedEvent()
	}

	if s.Status != models.SessionCompleted {
		now := time.Now().UTC()
		s.Status = models.SessionInProgress
		if s.StartedAt == nil {
			s.StartedAt = &now
		}
		s.UpdatedAt = now
		if err := m.repo.UpdateSession(ctx, s); err != nil {
			return nil, hub.Event{}, fmt.Errorf("failed to update session: %w", err)
		}
		metrics.ObserveSessionStatus(string(s.Status))
	}

	m.live[s.ID] = conv

	slog.Info("interview connected",
		"session_id", s.ID,
		"phase", conv.iv.Phase().String(),
		"resumed", len(log) > 0,
		"messages", len(log),
	)

	return conv, greeting, nil
}

// release drops one reference to a live conversation
func (m *Manager) release(conv *Conversation) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv.refs--
	if conv.refs <= 0 && m.live[conv.session.ID] == conv {
		delete(m.live, conv.session.ID)
	}
}

// getCase returns a case through the in-process cache. Cases are immutable
// once stored, so entries never need invalidation.
func (m *Manager) getCase(ctx context.Context, id string) (*models.Case, error) {
	if id == "" {
		return nil, nil
	}
	if c, ok := m.cases.Get(id); ok {
		return c.(*models.Case), nil
	}

	c, err := m.repo.GetCase(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get case: %w", err)
	}
	if c != nil {
		m.cases.SetDefault(id, c)
	}
	return c, nil
}

func (m *Manager) joinURL(token string) string {
	return strings.TrimRight(m.cfg.PublicURL, "/") + "/interview/" + token
}

// AbandonStale marks in-progress sessions with no activity for idleFor as
// abandoned. Sessions with a live connection on this process are skipped.
func (m *Manager) AbandonStale(ctx context.Context, idleFor time.Duration) (int, error) {
	stale, err := m.repo.GetStaleSessions(ctx, time.Now().UTC().Add(-idleFor))
	if err != nil {
		return 0, fmt.Errorf("failed to get stale sessions: %w", err)
	}

	abandoned := 0
	for _, s := range stale {
		m.mu.Lock()
		_, live := m.live[s.ID]
		m.mu.Unlock()
		if live {
			continue
		}

		idleSince := s.UpdatedAt
		s.Status = models.SessionAbandoned
		s.UpdatedAt = time.Now().UTC()
		if err := m.repo.UpdateSession(ctx, s); err != nil {
			slog.Error("failed to abandon session", "id", s.ID, "error", err)
			continue
		}

		metrics.ObserveSessionStatus(string(s.Status))
		slog.Info("session abandoned",
			"id", s.ID,
			"phase", s.CurrentPhase,
			"idle_since", idleSince,
		)
		abandoned++
	}
	return abandoned, nil
}
