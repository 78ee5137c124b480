// Package evaluation scores finished interviews and attaches coaching feedback.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/terra-clan/caseprep/internal/models"
	"github.com/terra-clan/caseprep/internal/storage"
)

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionNotCompleted = errors.New("session is not completed")
	ErrCaseNotFound        = errors.New("case not found")
)

// Scorer scores a transcript
type Scorer interface {
	Evaluate(ctx context.Context, kase *models.Case, log []models.Message) (*models.Evaluation, error)
}

// Advisor turns an evaluation into coaching feedback
type Advisor interface {
	Coach(ctx context.Context, kase *models.Case, eval *models.Evaluation) (*models.Feedback, error)
}

// Pipeline runs scoring then coaching for a session and stores both
type Pipeline struct {
	repo    storage.Repository
	scorer  Scorer
	advisor Advisor
}

// NewPipeline creates an evaluation pipeline
func NewPipeline(repo storage.Repository, scorer Scorer, advisor Advisor) *Pipeline {
	return &Pipeline{repo: repo, scorer: scorer, advisor: advisor}
}

// Run evaluates a completed session. A coaching failure is logged and the
// evaluation is still stored and returned without feedback.
func (p *Pipeline) Run(ctx context.Context, sessionID string) (*models.EvaluationResponse, error) {
	session, err := p.repo.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.Status != models.SessionCompleted {
		return nil, ErrSessionNotCompleted
	}

	kase, err := p.repo.GetCase(ctx, session.CaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get case: %w", err)
	}
	if kase == nil {
		return nil, ErrCaseNotFound
	}

	log, err := p.repo.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	eval, err := p.scorer.Evaluate(ctx, kase, log)
	if err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}
	eval.SessionID = sessionID
	if err := p.repo.SaveEvaluation(ctx, eval); err != nil {
		return nil, fmt.Errorf("failed to save evaluation: %w", err)
	}

	slog.Info("session evaluated",
		"session_id", sessionID,
		"overall_score", eval.OverallScore,
	)

	resp := &models.EvaluationResponse{Evaluation: eval}

	feedback, err := p.advisor.Coach(ctx, kase, eval)
	if err != nil {
		slog.Warn("coaching failed", "session_id", sessionID, "error", err)
		return resp, nil
	}
	feedback.SessionID = sessionID
	if err := p.repo.SaveFeedback(ctx, feedback); err != nil {
		return nil, fmt.Errorf("failed to save feedback: %w", err)
	}
	resp.Feedback = feedback

	return resp, nil
}

// Result returns the stored evaluation and feedback, or nil when the
// session has not been evaluated yet
func (p *Pipeline) Result(ctx context.Context, sessionID string) (*models.EvaluationResponse, error) {
	eval, err := p.repo.GetEvaluation(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluation: %w", err)
	}
	if eval == nil {
		return nil, nil
	}

	feedback, err := p.repo.GetFeedback(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get feedback: %w", err)
	}

	return &models.EvaluationResponse{Evaluation: eval, Feedback: feedback}, nil
}
