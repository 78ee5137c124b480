// Package interview implements the conversational state machine that drives a
// case interview: the phase sequence, the transition policy, the exhibit pool
// and the reconstruction of all of it from a persisted chat log.
//
// Phase graph (no back-edges):
//
//	FRAMEWORK ──► DATA_ANALYSIS ──► RECOMMENDATION ──► PUSHBACK ──► CONCLUSION ──► COMPLETED
//
// COMPLETED is terminal.
package interview

import (
	"errors"
	"fmt"
)

// Phase is a stage of the interview protocol. Phases are ordered; the zero
// value is not a valid phase.
type Phase int

const (
	PhaseFramework Phase = iota + 1
	PhaseDataAnalysis
	PhaseRecommendation
	PhasePushback
	PhaseConclusion
	PhaseCompleted
)

// ErrInvalidPhase is returned when a persisted phase marker cannot be parsed
var ErrInvalidPhase = errors.New("invalid interview phase")

var phaseNames = map[Phase]string{
	PhaseFramework:      "framework",
	PhaseDataAnalysis:   "data_analysis",
	PhaseRecommendation: "recommendation",
	PhasePushback:       "pushback",
	PhaseConclusion:     "conclusion",
	PhaseCompleted:      "completed",
}

// Phases returns the full sequence in protocol order
func Phases() []Phase {
	return []Phase{
		PhaseFramework,
		PhaseDataAnalysis,
		PhaseRecommendation,
		PhasePushback,
		PhaseConclusion,
		PhaseCompleted,
	}
}

// String returns the persisted marker for the phase
func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Valid reports whether p is one of the defined phases
func (p Phase) Valid() bool {
	return p >= PhaseFramework && p <= PhaseCompleted
}

// Next returns the successor of p. COMPLETED is its own successor.
func (p Phase) Next() Phase {
	if p >= PhaseCompleted {
		return PhaseCompleted
	}
	if p < PhaseFramework {
		return PhaseFramework
	}
	return p + 1
}

// ParsePhase converts a persisted marker into a Phase. An empty marker means
// the session never left the first phase.
func ParsePhase(s string) (Phase, error) {
	if s == "" {
		return PhaseFramework, nil
	}
	for p, name := range phaseNames {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidPhase, s)
}

// MarshalText implements encoding.TextMarshaler so phases serialize by name
func (p Phase) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPhase, int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (p *Phase) UnmarshalText(text []byte) error {
	parsed, err := ParsePhase(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// describe is the prompt wording for what the candidate is doing in a phase
func (p Phase) describe() string {
	switch p {
	case PhaseFramework:
		return "developing and presenting their framework/approach"
	case PhaseDataAnalysis:
		return "analyzing data and deriving insights"
	case PhaseRecommendation:
		return "formulating their final recommendation"
	case PhasePushback:
		return "defending their recommendation against challenges"
	case PhaseConclusion:
		return "providing final thoughts and summary"
	}
	return p.String()
}
