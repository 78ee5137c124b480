package storage

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/terra-clan/caseprep/internal/models"
)

// MemoryRepository implements Repository in process memory. Used for local
// development (STORAGE_DRIVER=memory) and tests; nothing survives a restart.
type MemoryRepository struct {
	mu          sync.RWMutex
	cases       map[string]*models.Case
	sessions    map[string]*models.InterviewSession
	messages    map[string][]models.Message
	evaluations map[string]*models.Evaluation
	feedback    map[string]*models.Feedback
	clients     map[string]*models.ApiClient

	nextMessageID int64
	nextClientID  int
	nextEvalID    int64
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		cases:       make(map[string]*models.Case),
		sessions:    make(map[string]*models.InterviewSession),
		messages:    make(map[string][]models.Message),
		evaluations: make(map[string]*models.Evaluation),
		feedback:    make(map[string]*models.Feedback),
		clients:     make(map[string]*models.ApiClient),
	}
}

// Ping always succeeds
func (r *MemoryRepository) Ping(ctx context.Context) error { return nil }

// Close is a no-op
func (r *MemoryRepository) Close() error { return nil }

// --- Cases ---

func (r *MemoryRepository) CreateCase(ctx context.Context, c *models.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.cases[c.ID]; exists {
		return fmt.Errorf("failed to write case: duplicate id %s", c.ID)
	}
	r.cases[c.ID] = copyCase(c)
	return nil
}

func (r *MemoryRepository) UpsertCase(ctx context.Context, c *models.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := copyCase(c)
	if prev, exists := r.cases[c.ID]; exists {
		stored.CreatedAt = prev.CreatedAt
		stored.CreatedBy = prev.CreatedBy
	}
	r.cases[c.ID] = stored
	return nil
}

func (r *MemoryRepository) GetCase(ctx context.Context, id string) (*models.Case, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.cases[id]
	if !ok {
		return nil, nil
	}
	return copyCase(c), nil
}

func (r *MemoryRepository) ListCases(ctx context.Context, filters models.CaseFilters) ([]*models.Case, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cases := lo.Filter(lo.Values(r.cases), func(c *models.Case, _ int) bool {
		return filters.CaseType == "" || c.CaseType == filters.CaseType
	})
	sort.Slice(cases, func(i, j int) bool {
		if cases[i].CreatedAt.Equal(cases[j].CreatedAt) {
			return cases[i].ID < cases[j].ID
		}
		return cases[i].CreatedAt.After(cases[j].CreatedAt)
	})

	return lo.Map(page(cases, filters.Limit, filters.Offset), func(c *models.Case, _ int) *models.Case {
		return copyCase(c)
	}), nil
}

// --- Sessions ---

func (r *MemoryRepository) CreateSession(ctx context.Context, s *models.InterviewSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.ID]; exists {
		return fmt.Errorf("failed to create session: duplicate id %s", s.ID)
	}
	r.sessions[s.ID] = copySession(s)
	return nil
}

func (r *MemoryRepository) GetSessionByID(ctx context.Context, id string) (*models.InterviewSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	return copySession(s), nil
}

func (r *MemoryRepository) GetSessionByToken(ctx context.Context, token string) (*models.InterviewSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := lo.Find(lo.Values(r.sessions), func(s *models.InterviewSession) bool {
		return s.Token == token
	})
	if !ok {
		return nil, nil
	}
	return copySession(s), nil
}

func (r *MemoryRepository) UpdateSession(ctx context.Context, s *models.InterviewSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.sessions[s.ID]
	if !ok {
		return fmt.Errorf("session not found: %s", s.ID)
	}

	r.sessions[s.ID] = applySessionUpdate(prev, s)
	return nil
}

// applySessionUpdate copies the mutable session fields of s onto prev
func applySessionUpdate(prev, s *models.InterviewSession) *models.InterviewSession {
	updated := copySession(prev)
	updated.Status = s.Status
	updated.CurrentPhase = s.CurrentPhase
	updated.ExhibitsReleased = slices.Clone(s.ExhibitsReleased)
	updated.UpdatedAt = s.UpdatedAt
	updated.StartedAt = s.StartedAt
	updated.CompletedAt = s.CompletedAt
	return updated
}

func (r *MemoryRepository) DeleteSession(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return fmt.Errorf("session not found: %s", id)
	}
	delete(r.sessions, id)
	delete(r.messages, id)
	delete(r.evaluations, id)
	delete(r.feedback, id)
	return nil
}

func (r *MemoryRepository) ListSessions(ctx context.Context, filters models.SessionFilters) ([]*models.InterviewSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := lo.Filter(lo.Values(r.sessions), func(s *models.InterviewSession, _ int) bool {
		return (filters.Status == "" || s.Status == filters.Status) &&
			(filters.CaseID == "" || s.CaseID == filters.CaseID)
	})
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})

	return lo.Map(page(sessions, filters.Limit, filters.Offset), func(s *models.InterviewSession, _ int) *models.InterviewSession {
		return copySession(s)
	}), nil
}

func (r *MemoryRepository) GetStaleSessions(ctx context.Context, idleSince time.Time) ([]*models.InterviewSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stale := lo.Filter(lo.Values(r.sessions), func(s *models.InterviewSession, _ int) bool {
		return s.Status == models.SessionInProgress && s.UpdatedAt.Before(idleSince)
	})
	sort.Slice(stale, func(i, j int) bool { return stale[i].UpdatedAt.Before(stale[j].UpdatedAt) })

	return lo.Map(stale, func(s *models.InterviewSession, _ int) *models.InterviewSession {
		return copySession(s)
	}), nil
}

// --- Messages ---

func (r *MemoryRepository) AppendMessage(ctx context.Context, m *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[m.SessionID]; !ok {
		return fmt.Errorf("failed to append message: session not found: %s", m.SessionID)
	}

	r.nextMessageID++
	m.ID = r.nextMessageID
	m.CreatedAt = time.Now().UTC()
	r.messages[m.SessionID] = append(r.messages[m.SessionID], *m)
	return nil
}

// RecordTurn appends the messages and saves the session under one lock
func (r *MemoryRepository) RecordTurn(ctx context.Context, s *models.InterviewSession, msgs ...*models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.sessions[s.ID]
	if !ok {
		return fmt.Errorf("session not found: %s", s.ID)
	}
	for _, m := range msgs {
		if m.SessionID != s.ID {
			return fmt.Errorf("failed to append message: session mismatch: %s", m.SessionID)
		}
	}

	for _, m := range msgs {
		r.nextMessageID++
		m.ID = r.nextMessageID
		m.CreatedAt = time.Now().UTC()
		r.messages[s.ID] = append(r.messages[s.ID], *m)
	}
	r.sessions[s.ID] = applySessionUpdate(prev, s)
	return nil
}

func (r *MemoryRepository) ListMessages(ctx context.Context, sessionID string) ([]models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := slices.Clone(r.messages[sessionID])
	if out == nil {
		out = []models.Message{}
	}
	return out, nil
}

// --- Evaluations ---

func (r *MemoryRepository) SaveEvaluation(ctx context.Context, e *models.Evaluation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextEvalID++
	e.ID = r.nextEvalID
	e.CreatedAt = time.Now().UTC()
	stored := *e
	stored.Strengths = slices.Clone(e.Strengths)
	stored.AreasForImprovement = slices.Clone(e.AreasForImprovement)
	r.evaluations[e.SessionID] = &stored
	return nil
}

func (r *MemoryRepository) GetEvaluation(ctx context.Context, sessionID string) (*models.Evaluation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.evaluations[sessionID]
	if !ok {
		return nil, nil
	}
	out := *e
	return &out, nil
}

func (r *MemoryRepository) SaveFeedback(ctx context.Context, f *models.Feedback) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextEvalID++
	f.ID = r.nextEvalID
	f.CreatedAt = time.Now().UTC()
	stored := *f
	r.feedback[f.SessionID] = &stored
	return nil
}

func (r *MemoryRepository) GetFeedback(ctx context.Context, sessionID string) (*models.Feedback, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.feedback[sessionID]
	if !ok {
		return nil, nil
	}
	out := *f
	return &out, nil
}

// --- API Clients ---

func (r *MemoryRepository) CreateClient(ctx context.Context, c *models.ApiClient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.clients[c.ApiKey]; exists {
		return nil
	}
	r.nextClientID++
	stored := *c
	stored.ID = r.nextClientID
	stored.CreatedAt = time.Now().UTC()
	stored.Permissions = slices.Clone(c.Permissions)
	r.clients[c.ApiKey] = &stored
	return nil
}

func (r *MemoryRepository) GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[apiKey]
	if !ok {
		return nil, nil
	}
	out := *c
	return &out, nil
}

func (r *MemoryRepository) UpdateClientLastUsed(ctx context.Context, apiKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[apiKey]; ok {
		now := time.Now().UTC()
		c.LastUsedAt = &now
	}
	return nil
}

// Helper functions

func page[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return []T{}
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func copyCase(c *models.Case) *models.Case {
	out := *c
	out.Exhibits = slices.Clone(c.Exhibits)
	if c.Context != nil {
		out.Context = make(map[string]string, len(c.Context))
		for k, v := range c.Context {
			out.Context[k] = v
		}
	}
	return &out
}

func copySession(s *models.InterviewSession) *models.InterviewSession {
	out := *s
	out.ExhibitsReleased = slices.Clone(s.ExhibitsReleased)
	return &out
}

var _ Repository = (*MemoryRepository)(nil)
var _ Repository = (*PostgresRepository)(nil)
