package interview

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/terra-clan/caseprep/internal/models"
)

// Rehydrate rebuilds an interviewer for a session that already has a chat log,
// e.g. after a reconnect or a process restart.
//
// The persisted phase is trusted as is. Per-phase turn counts are not stored,
// so the current phase gets an estimate of max(1, candidateTurns/5); earlier
// phases are never revisited and need no count. Released exhibits start empty
// unless WithReleasedExhibits is given.
func Rehydrate(kase *models.Case, mode models.InterviewMode, gen Generator, log []models.Message, persistedPhase string, opts ...Option) (*Interviewer, error) {
	iv, err := New(kase, mode, gen, opts...)
	if err != nil {
		return nil, err
	}

	phase, err := ParsePhase(persistedPhase)
	if err != nil {
		return nil, fmt.Errorf("rehydrate: %w", err)
	}

	iv.history = lo.FilterMap(log, func(m models.Message, _ int) (Turn, bool) {
		role, ok := turnRole(m.Role)
		return Turn{Role: role, Content: m.Content}, ok
	})
	iv.turnCount = lo.CountBy(iv.history, func(t Turn) bool { return t.Role == RoleCandidate })
	iv.phase = phase
	iv.phaseTurns = map[Phase]int{phase: max(1, iv.turnCount/5)}

	return iv, nil
}

// turnRole maps the persisted role vocabulary onto conversation roles.
// System notices are not part of the conversation.
func turnRole(r models.MessageRole) (Role, bool) {
	switch r {
	case models.RoleUser, models.MessageRole(RoleCandidate):
		return RoleCandidate, true
	case models.RoleAssistant, models.MessageRole(RoleInterviewer):
		return RoleInterviewer, true
	}
	return "", false
}
