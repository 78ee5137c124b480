package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/terra-clan/caseprep/internal/models"
)

// Common errors
var (
	ErrMissingCase = errors.New("interview has no case")
)

const (
	// FallbackReply is sent when the text-generation service fails or times out
	FallbackReply = "That's an interesting point. Can you elaborate on your reasoning? " +
		"What factors are you considering in your analysis?"

	msgConcluded = "The interview has concluded. Please proceed to evaluation."

	defaultHistoryWindow = 10
	defaultReplyTimeout  = 30 * time.Second
)

// Role is the speaker of a turn
type Role string

const (
	RoleCandidate   Role = "candidate"
	RoleInterviewer Role = "interviewer"
)

// Turn is one message of the conversation
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Generator phrases interviewer replies. Implementations may fail; the
// interviewer falls back to a generic probing question.
type Generator interface {
	Generate(ctx context.Context, systemPrompt string, history []Turn) (string, error)
}

// Reply is the result of processing one candidate turn
type Reply struct {
	Message   string `json:"message"`
	Phase     Phase  `json:"phase"`
	Completed bool   `json:"completed"`

	From            Phase            `json:"-"`
	Transitioned    bool             `json:"-"`
	Reason          TransitionReason `json:"-"`
	ExhibitReleased bool             `json:"-"`
	Fallback        bool             `json:"-"`
}

// Option configures an Interviewer
type Option func(*Interviewer)

// WithHistoryWindow sets how many recent turns are sent to the generator
func WithHistoryWindow(n int) Option {
	return func(iv *Interviewer) {
		if n > 0 {
			iv.window = n
		}
	}
}

// WithReplyTimeout bounds each generator call. A timeout takes the fallback path.
func WithReplyTimeout(d time.Duration) Option {
	return func(iv *Interviewer) {
		if d > 0 {
			iv.timeout = d
		}
	}
}

// WithPolicy overrides the mode's default transition policy
func WithPolicy(p Policy) Option {
	return func(iv *Interviewer) {
		iv.policy = p
	}
}

// WithLogger sets the logger used for generator failures
func WithLogger(l *slog.Logger) Option {
	return func(iv *Interviewer) {
		if l != nil {
			iv.logger = l
		}
	}
}

// WithReleasedExhibits restores a persisted exhibit release set. Only applied
// when the session keeps exhibit state across reconnects.
func WithReleasedExhibits(indices []int) Option {
	return func(iv *Interviewer) {
		iv.restoreExhibits = slices.Clone(indices)
	}
}

// Interviewer is the per-session state machine. It is not safe for concurrent
// use: one connection owns it and feeds it one candidate turn at a time.
type Interviewer struct {
	kase      *models.Case
	mode      models.InterviewMode
	generator Generator
	policy    Policy
	exhibits  *ExhibitTracker

	history    []Turn
	phase      Phase
	turnCount  int
	phaseTurns map[Phase]int

	window          int
	timeout         time.Duration
	logger          *slog.Logger
	restoreExhibits []int
}

// New creates an interviewer at the start of the framework phase
func New(kase *models.Case, mode models.InterviewMode, gen Generator, opts ...Option) (*Interviewer, error) {
	if kase == nil {
		return nil, ErrMissingCase
	}
	mode, err := models.ParseInterviewMode(string(mode))
	if err != nil {
		return nil, err
	}

	iv := &Interviewer{
		kase:       kase,
		mode:       mode,
		generator:  gen,
		policy:     PolicyFor(mode == models.ModeCandidateLed),
		exhibits:   NewExhibitTracker(kase.Exhibits),
		phase:      PhaseFramework,
		phaseTurns: make(map[Phase]int, len(DefaultRules)),
		window:     defaultHistoryWindow,
		timeout:    defaultReplyTimeout,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(iv)
	}
	if iv.restoreExhibits != nil {
		iv.exhibits.Restore(iv.restoreExhibits)
		iv.restoreExhibits = nil
	}
	return iv, nil
}

// Open returns the opening message for the interview mode and records it as
// the first interviewer turn. Call once per fresh session.
func (iv *Interviewer) Open() string {
	var msg string
	switch iv.mode {
	case models.ModeCandidateLed:
		msg = fmt.Sprintf("Welcome to your case interview. In this candidate-led format, "+
			"you'll drive the structure and analysis.\n\n%s\n\n"+
			"Please take a moment to think about your approach, then walk me through your framework.",
			iv.kase.Prompt)
	case models.ModeProductManagement:
		msg = fmt.Sprintf("Welcome to your product management case interview.\n\n%s\n\n"+
			"Please share your initial thoughts and approach to this product challenge.",
			iv.kase.Prompt)
	default:
		msg = fmt.Sprintf("Welcome to your case interview. I'll be guiding you through this case.\n\n%s\n\n"+
			"Let me know when you're ready to begin, and feel free to ask clarifying questions.",
			iv.kase.Prompt)
	}
	iv.history = append(iv.history, Turn{Role: RoleInterviewer, Content: msg})
	return msg
}

// Submit processes one candidate turn and produces one interviewer turn.
// It never fails: completed sessions, exhibit exhaustion and generator
// outages all resolve to a normal Reply.
func (iv *Interviewer) Submit(ctx context.Context, message string) Reply {
	if iv.phase == PhaseCompleted {
		return Reply{Message: msgConcluded, Phase: PhaseCompleted, From: PhaseCompleted, Completed: true}
	}

	from := iv.phase
	iv.history = append(iv.history, Turn{Role: RoleCandidate, Content: message})
	iv.turnCount++
	iv.phaseTurns[iv.phase]++

	if IsExhibitRequest(message) {
		return iv.releaseExhibit(message, from)
	}

	decision := iv.policy.Decide(iv.phase, iv.phaseTurns[iv.phase], message)
	text, fallback := iv.generate(ctx, decision)
	iv.history = append(iv.history, Turn{Role: RoleInterviewer, Content: text})

	if decision.Transition {
		iv.enter(decision.Next)
	}

	return Reply{
		Message:      text,
		Phase:        iv.phase,
		Completed:    iv.phase == PhaseCompleted,
		From:         from,
		Transitioned: iv.phase != from,
		Reason:       decision.Reason,
		Fallback:     fallback,
	}
}

// releaseExhibit answers a data request without calling the generator. Once
// the exhibit pool is exhausted the interview is pushed into the next phase
// unless the policy is already due to move it.
func (iv *Interviewer) releaseExhibit(message string, from Phase) Reply {
	before := len(iv.exhibits.released)
	text, exhausted := iv.exhibits.Request()
	iv.history = append(iv.history, Turn{Role: RoleInterviewer, Content: text})

	reply := Reply{
		Message:         text,
		From:            from,
		ExhibitReleased: len(iv.exhibits.released) > before,
	}

	// Exhaustion only forces an advance the policy would not make on its own.
	// When the policy would fire, the phase is left for the next regular turn.
	if exhausted && iv.phase < PhaseConclusion {
		if d := iv.policy.Decide(iv.phase, iv.phaseTurns[iv.phase], message); !d.Transition {
			iv.enter(iv.phase.Next())
			reply.Transitioned = true
			reply.Reason = ReasonExhibit
		}
	}

	reply.Phase = iv.phase
	return reply
}

// enter moves to p and resets its turn counter. Phases never regress.
func (iv *Interviewer) enter(p Phase) {
	if p <= iv.phase {
		return
	}
	iv.phase = p
	iv.phaseTurns[p] = 0
}

func (iv *Interviewer) generate(ctx context.Context, decision Decision) (string, bool) {
	if iv.generator == nil {
		return FallbackReply, true
	}

	ctx, cancel := context.WithTimeout(ctx, iv.timeout)
	defer cancel()

	start := time.Now()
	text, err := iv.generator.Generate(ctx, iv.systemPrompt(decision), iv.recentHistory())
	if err != nil {
		iv.logger.Warn("reply generation failed, using fallback",
			"error", err,
			"phase", iv.phase.String(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return FallbackReply, true
	}

	text = strings.TrimSpace(text)
	if text == "" {
		iv.logger.Warn("reply generation returned empty text, using fallback", "phase", iv.phase.String())
		return FallbackReply, true
	}
	return text, false
}

func (iv *Interviewer) recentHistory() []Turn {
	start := max(0, len(iv.history)-iv.window)
	return slices.Clone(iv.history[start:])
}

// Checkpoint is a copy of the mutable interview state
type Checkpoint struct {
	history    []Turn
	phase      Phase
	turnCount  int
	phaseTurns map[Phase]int
	released   []int
}

// Checkpoint captures the current state so a turn can be undone
func (iv *Interviewer) Checkpoint() Checkpoint {
	return Checkpoint{
		history:    slices.Clone(iv.history),
		phase:      iv.phase,
		turnCount:  iv.turnCount,
		phaseTurns: maps.Clone(iv.phaseTurns),
		released:   iv.exhibits.Released(),
	}
}

// Rollback restores a checkpoint taken on this interviewer. It is the one
// place the phase may move backwards: the undone turn never happened.
func (iv *Interviewer) Rollback(cp Checkpoint) {
	iv.history = slices.Clone(cp.history)
	iv.phase = cp.phase
	iv.turnCount = cp.turnCount
	iv.phaseTurns = maps.Clone(cp.phaseTurns)
	iv.exhibits.released = slices.Clone(cp.released)
}

// IsCompleted reports whether the interview reached its terminal phase
func (iv *Interviewer) IsCompleted() bool {
	return iv.phase == PhaseCompleted
}

// Phase returns the current phase
func (iv *Interviewer) Phase() Phase { return iv.phase }

// Mode returns the interview mode
func (iv *Interviewer) Mode() models.InterviewMode { return iv.mode }

// TurnCount returns the number of candidate turns processed
func (iv *Interviewer) TurnCount() int { return iv.turnCount }

// PhaseTurns returns the candidate turns processed since p was entered
func (iv *Interviewer) PhaseTurns(p Phase) int { return iv.phaseTurns[p] }

// History returns a copy of the conversation
func (iv *Interviewer) History() []Turn { return slices.Clone(iv.history) }

// ReleasedExhibits returns the exhibit indices shown so far
func (iv *Interviewer) ReleasedExhibits() []int { return iv.exhibits.Released() }
