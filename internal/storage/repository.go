package storage

import (
	"context"
	"time"

	"github.com/terra-clan/caseprep/internal/models"
)

// Repository defines the interface for interview persistence.
// Getters return (nil, nil) when the record does not exist.
type Repository interface {
	// Cases
	CreateCase(ctx context.Context, c *models.Case) error
	UpsertCase(ctx context.Context, c *models.Case) error
	GetCase(ctx context.Context, id string) (*models.Case, error)
	ListCases(ctx context.Context, filters models.CaseFilters) ([]*models.Case, error)

	// Sessions
	CreateSession(ctx context.Context, s *models.InterviewSession) error
	GetSessionByID(ctx context.Context, id string) (*models.InterviewSession, error)
	GetSessionByToken(ctx context.Context, token string) (*models.InterviewSession, error)
	UpdateSession(ctx context.Context, s *models.InterviewSession) error
	DeleteSession(ctx context.Context, id string) error
	ListSessions(ctx context.Context, filters models.SessionFilters) ([]*models.InterviewSession, error)
	GetStaleSessions(ctx context.Context, idleSince time.Time) ([]*models.InterviewSession, error)

	// Messages
	AppendMessage(ctx context.Context, m *models.Message) error
	ListMessages(ctx context.Context, sessionID string) ([]models.Message, error)

	// RecordTurn appends msgs and saves s atomically: either all of it is
	// stored or none of it
	RecordTurn(ctx context.Context, s *models.InterviewSession, msgs ...*models.Message) error

	// Evaluations
	SaveEvaluation(ctx context.Context, e *models.Evaluation) error
	GetEvaluation(ctx context.Context, sessionID string) (*models.Evaluation, error)
	SaveFeedback(ctx context.Context, f *models.Feedback) error
	GetFeedback(ctx context.Context, sessionID string) (*models.Feedback, error)

	// API Clients
	CreateClient(ctx context.Context, c *models.ApiClient) error
	GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error)
	UpdateClientLastUsed(ctx context.Context, apiKey string) error

	// Health
	Ping(ctx context.Context) error
	Close() error
}
