package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// InterviewMode is fixed when a session is created
type InterviewMode string

const (
	ModeInterviewerLed    InterviewMode = "interviewer_led"
	ModeCandidateLed      InterviewMode = "candidate_led"
	ModeProductManagement InterviewMode = "product_management"

	// legacy value written by older deployments
	modePMProductCase InterviewMode = "pm_product_case"
)

// ParseInterviewMode converts a raw string to a mode
func ParseInterviewMode(s string) (InterviewMode, error) {
	switch m := InterviewMode(s); m {
	case ModeInterviewerLed, ModeCandidateLed, ModeProductManagement:
		return m, nil
	case modePMProductCase:
		return ModeProductManagement, nil
	}
	return "", fmt.Errorf("unknown interview mode %q", s)
}

// SessionStatus represents the lifecycle state of an interview session
type SessionStatus string

const (
	SessionNotStarted SessionStatus = "not_started" // Created, candidate has not connected
	SessionInProgress SessionStatus = "in_progress" // Candidate connected at least once
	SessionCompleted  SessionStatus = "completed"   // Interview reached the completed phase
	SessionAbandoned  SessionStatus = "abandoned"   // No activity for too long
)

// InterviewSession is the persisted side of an interview. The message log and
// CurrentPhase are authoritative; the in-memory state machine is rebuilt from them.
type InterviewSession struct {
	ID               string        `json:"id"`
	Token            string        `json:"token"`
	CaseID           string        `json:"case_id"`
	Mode             InterviewMode `json:"mode"`
	Status           SessionStatus `json:"status"`
	CurrentPhase     string        `json:"current_phase"`
	ExhibitsReleased []int         `json:"exhibits_released"`
	CreatedBy        string        `json:"created_by,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
	StartedAt        *time.Time    `json:"started_at,omitempty"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"`
}

// IsTerminal returns true if the session is in a final state
func (s *InterviewSession) IsTerminal() bool {
	return s.Status == SessionCompleted || s.Status == SessionAbandoned
}

// GenerateSessionToken creates a cryptographically random 48-char hex join token
func GenerateSessionToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// SessionFilters narrows ListSessions
type SessionFilters struct {
	Status SessionStatus
	CaseID string
	Limit  int
	Offset int
}

// CreateSessionRequest represents a request to create an interview session
type CreateSessionRequest struct {
	CaseID string `json:"case_id" validate:"required"`
	Mode   string `json:"mode" validate:"required,oneof=interviewer_led candidate_led product_management pm_product_case"`
}

// CreateSessionResponse is returned after creating a session
type CreateSessionResponse struct {
	ID        string        `json:"id"`
	Token     string        `json:"token"`
	CaseID    string        `json:"case_id"`
	Mode      InterviewMode `json:"mode"`
	Status    SessionStatus `json:"status"`
	JoinURL   string        `json:"join_url"`
	CreatedAt time.Time     `json:"created_at"`
}

// JoinSessionResponse is returned by the public join endpoint
type JoinSessionResponse struct {
	Status       SessionStatus `json:"status"`
	Mode         InterviewMode `json:"mode"`
	CurrentPhase string        `json:"current_phase"`
	Case         *CaseInfo     `json:"case,omitempty"`
}

// CaseInfo is the subset of case data shown to the candidate before joining
type CaseInfo struct {
	Title    string   `json:"title"`
	CaseType CaseType `json:"case_type"`
}
