package interview

import "strings"

// MinPhaseTurns is the number of candidate turns a phase must see before any
// transition is considered. The conclusion rule is exempt and uses its own threshold.
const MinPhaseTurns = 2

// TransitionReason records why the policy moved the interview forward
type TransitionReason string

const (
	ReasonNone    TransitionReason = ""
	ReasonKeyword TransitionReason = "keyword"
	ReasonTurns   TransitionReason = "turns"
	ReasonExhibit TransitionReason = "exhibits_exhausted"
)

// Decision is the outcome of a policy evaluation
type Decision struct {
	Transition bool
	Next       Phase
	Reason     TransitionReason
}

// PhaseRule describes when a phase hands over to its successor. A rule with no
// keywords advances on turn count alone.
type PhaseRule struct {
	Next          Phase
	Keywords      []string
	FallbackTurns int
	// ignore MinPhaseTurns
	SkipFloor bool
}

// DefaultRules is the transition table used by interviews
var DefaultRules = map[Phase]PhaseRule{
	PhaseFramework: {
		Next: PhaseDataAnalysis,
		Keywords: []string{
			"those are my", "that covers", "framework complete", "those are the",
			"now let's", "shall we", "can we look at", "what data",
		},
		FallbackTurns: 3,
	},
	PhaseDataAnalysis: {
		Next: PhaseRecommendation,
		Keywords: []string{
			"recommend", "my recommendation", "i think we should", "i would suggest",
			"based on this", "in conclusion", "therefore",
		},
		FallbackTurns: 4,
	},
	PhaseRecommendation: {Next: PhasePushback, FallbackTurns: 2},
	PhasePushback:       {Next: PhaseConclusion, FallbackTurns: 2},
	PhaseConclusion:     {Next: PhaseCompleted, FallbackTurns: 1, SkipFloor: true},
}

// Policy maps (phase, turns in phase, latest candidate message) to a
// transition decision. It holds no state; the zero value is not usable, use
// NewPolicy or PolicyFor.
type Policy struct {
	rules           map[Phase]PhaseRule
	contentTriggers bool
}

// NewPolicy builds a policy over the given rule table. When contentTriggers is
// false keywords are ignored and only turn counts advance the interview.
func NewPolicy(rules map[Phase]PhaseRule, contentTriggers bool) Policy {
	return Policy{rules: rules, contentTriggers: contentTriggers}
}

// PolicyFor returns the default policy for an interview mode. Candidate-led
// interviews are paced by turn count only.
func PolicyFor(candidateLed bool) Policy {
	return NewPolicy(DefaultRules, !candidateLed)
}

// Decide evaluates the transition table
func (p Policy) Decide(current Phase, phaseTurns int, message string) Decision {
	stay := Decision{Next: current}

	rule, ok := p.rules[current]
	if !ok || current == PhaseCompleted {
		return stay
	}
	if !rule.SkipFloor && phaseTurns < MinPhaseTurns {
		return stay
	}

	if p.contentTriggers && containsAny(message, rule.Keywords) {
		return Decision{Transition: true, Next: rule.Next, Reason: ReasonKeyword}
	}
	if phaseTurns >= rule.FallbackTurns {
		return Decision{Transition: true, Next: rule.Next, Reason: ReasonTurns}
	}
	return stay
}

// containsAny is a case-insensitive substring match against any keyword
func containsAny(message string, keywords []string) bool {
	if len(keywords) == 0 {
		return false
	}
	lower := strings.ToLower(message)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
