package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/caseprep/internal/models"
)

const genericAnswer = "I would segment the market by region."

type generateCall struct {
	prompt  string
	history []Turn
}

type fakeGenerator struct {
	calls []generateCall
	err   error
	block bool
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string, history []Turn) (string, error) {
	g.calls = append(g.calls, generateCall{prompt: prompt, history: history})
	if g.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if g.err != nil {
		return "", g.err
	}
	return fmt.Sprintf("reply %d", len(g.calls)), nil
}

func (g *fakeGenerator) lastPrompt() string {
	if len(g.calls) == 0 {
		return ""
	}
	return g.calls[len(g.calls)-1].prompt
}

func testCase(exhibits int) *models.Case {
	return &models.Case{
		ID:       "coffee-chain",
		Title:    "Coffee chain profitability",
		Prompt:   "Our client is a coffee chain whose profits fell 20% last year.",
		Context:  map[string]string{"industry": "retail", "region": "EU"},
		Exhibits: testExhibits(exhibits),
		CaseType: models.CaseConsulting,
	}
}

func newInterviewer(t *testing.T, mode models.InterviewMode, exhibits int, opts ...Option) (*Interviewer, *fakeGenerator) {
	t.Helper()
	gen := &fakeGenerator{}
	iv, err := New(testCase(exhibits), mode, gen, opts...)
	require.NoError(t, err)
	return iv, gen
}

func TestNewRequiresCase(t *testing.T) {
	_, err := New(nil, models.ModeInterviewerLed, &fakeGenerator{})
	assert.ErrorIs(t, err, ErrMissingCase)

	_, err = New(testCase(0), models.InterviewMode("panel"), &fakeGenerator{})
	assert.Error(t, err)
}

func TestNewAcceptsLegacyMode(t *testing.T) {
	iv, err := New(testCase(0), models.InterviewMode("pm_product_case"), nil)
	require.NoError(t, err)
	assert.Equal(t, models.ModeProductManagement, iv.Mode())
}

func TestOpen(t *testing.T) {
	tests := []struct {
		mode   models.InterviewMode
		prefix string
		suffix string
	}{
		{models.ModeInterviewerLed, "Welcome to your case interview. I'll be guiding you", "feel free to ask clarifying questions."},
		{models.ModeCandidateLed, "Welcome to your case interview. In this candidate-led format", "walk me through your framework."},
		{models.ModeProductManagement, "Welcome to your product management case interview.", "approach to this product challenge."},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			iv, _ := newInterviewer(t, tt.mode, 0)
			msg := iv.Open()

			assert.Contains(t, msg, "coffee chain whose profits fell")
			assert.True(t, strings.HasPrefix(msg, tt.prefix))
			assert.True(t, strings.HasSuffix(msg, tt.suffix))
			require.Len(t, iv.History(), 1)
			assert.Equal(t, RoleInterviewer, iv.History()[0].Role)
			assert.Equal(t, 0, iv.TurnCount())
		})
	}
}

func TestFrameworkAdvancesOnThirdTurn(t *testing.T) {
	iv, gen := newInterviewer(t, models.ModeInterviewerLed, 2)
	iv.Open()

	r := iv.Submit(context.Background(), genericAnswer)
	assert.Equal(t, PhaseFramework, r.Phase)
	assert.Equal(t, "reply 1", r.Message)

	r = iv.Submit(context.Background(), genericAnswer)
	assert.Equal(t, PhaseFramework, r.Phase)
	assert.False(t, r.Transitioned)

	r = iv.Submit(context.Background(), genericAnswer)
	assert.True(t, r.Transitioned)
	assert.Equal(t, PhaseFramework, r.From)
	assert.Equal(t, PhaseDataAnalysis, r.Phase)
	assert.Equal(t, ReasonTurns, r.Reason)
	assert.False(t, r.Completed)

	assert.Equal(t, 3, iv.TurnCount())
	assert.Equal(t, 0, iv.PhaseTurns(PhaseDataAnalysis))
	assert.Len(t, gen.calls, 3)
	assert.Contains(t, gen.lastPrompt(), "TRANSITION: Guide the candidate to the next phase: analyzing data")
	// opening + three exchanges
	assert.Len(t, iv.History(), 7)
}

func TestKeywordTransition(t *testing.T) {
	iv, _ := newInterviewer(t, models.ModeInterviewerLed, 0)

	iv.Submit(context.Background(), genericAnswer)
	r := iv.Submit(context.Background(), "That covers my framework, shall we move on?")
	assert.Equal(t, PhaseDataAnalysis, r.Phase)
	assert.Equal(t, ReasonKeyword, r.Reason)
}

func TestCandidateLedIgnoresKeywords(t *testing.T) {
	iv, gen := newInterviewer(t, models.ModeCandidateLed, 0)

	iv.Submit(context.Background(), genericAnswer)
	r := iv.Submit(context.Background(), "That covers my framework, shall we move on?")
	assert.Equal(t, PhaseFramework, r.Phase)
	assert.NotContains(t, gen.lastPrompt(), "Focus on:")

	r = iv.Submit(context.Background(), genericAnswer)
	assert.Equal(t, PhaseDataAnalysis, r.Phase)
	assert.NotContains(t, gen.lastPrompt(), "TRANSITION")
	assert.Contains(t, gen.lastPrompt(), "candidate-led interview")
}

func TestExhibitRequestsBypassGenerator(t *testing.T) {
	iv, gen := newInterviewer(t, models.ModeInterviewerLed, 3)

	r := iv.Submit(context.Background(), "Can I see the revenue numbers?")
	assert.True(t, r.ExhibitReleased)
	assert.Contains(t, r.Message, "**Exhibit 1**")
	assert.Equal(t, PhaseFramework, r.Phase)
	assert.Empty(t, gen.calls)
	assert.Equal(t, 1, iv.TurnCount())
	assert.Equal(t, 1, iv.PhaseTurns(PhaseFramework))
}

func TestExhibitCapLeavesTransitionToPolicy(t *testing.T) {
	iv, gen := newInterviewer(t, models.ModeInterviewerLed, 3)
	ctx := context.Background()

	var replies []Reply
	for i := 0; i < 4; i++ {
		replies = append(replies, iv.Submit(ctx, "Do you have more data?"))
	}

	assert.Equal(t, []int{0, 1, 2}, iv.ReleasedExhibits())
	assert.Empty(t, gen.calls)

	// the third request drains the pool, but the framework turn count is
	// already reached, so exhaustion does not force anything
	assert.Contains(t, replies[2].Message, msgFinalExhibit)
	assert.False(t, replies[2].Transitioned)
	assert.Equal(t, PhaseFramework, replies[2].Phase)

	assert.Equal(t, msgExhibitsCapped, replies[3].Message)
	assert.False(t, replies[3].ExhibitReleased)
	assert.False(t, replies[3].Transitioned)
	assert.Equal(t, PhaseFramework, replies[3].Phase)
	for _, r := range replies {
		assert.False(t, r.Completed)
	}
	assert.Equal(t, 4, iv.PhaseTurns(PhaseFramework))

	// the next regular turn applies the policy transition
	r := iv.Submit(ctx, genericAnswer)
	assert.True(t, r.Transitioned)
	assert.Equal(t, ReasonTurns, r.Reason)
	assert.Equal(t, PhaseDataAnalysis, r.Phase)
	assert.Len(t, gen.calls, 1)
}

func TestExhibitExhaustionForcesAdvance(t *testing.T) {
	iv, gen := newInterviewer(t, models.ModeInterviewerLed, 1)
	ctx := context.Background()

	// first framework turn: below the policy floor, so exhaustion advances
	r := iv.Submit(ctx, "Can I see the data?")
	assert.True(t, r.ExhibitReleased)
	assert.True(t, r.Transitioned)
	assert.Equal(t, ReasonExhibit, r.Reason)
	assert.Equal(t, PhaseDataAnalysis, r.Phase)
	assert.Equal(t, 0, iv.PhaseTurns(PhaseDataAnalysis))

	r = iv.Submit(ctx, "Any more data?")
	assert.Equal(t, msgExhibitsProvided, r.Message)
	assert.True(t, r.Transitioned)
	assert.Equal(t, ReasonExhibit, r.Reason)
	assert.Equal(t, PhaseRecommendation, r.Phase)
	assert.Empty(t, gen.calls)
}

func TestExhibitRequestTakesPrecedenceOverKeywords(t *testing.T) {
	iv, gen := newInterviewer(t, models.ModeInterviewerLed, 3)
	ctx := context.Background()

	iv.Submit(ctx, genericAnswer)
	require.Equal(t, 1, iv.PhaseTurns(PhaseFramework))

	// a framework keyword that also mentions data is handled as an exhibit request
	r := iv.Submit(ctx, "Those are my main buckets, now let's look at the data")
	assert.True(t, r.ExhibitReleased)
	assert.Contains(t, r.Message, "**Exhibit 1**")
	assert.False(t, r.Transitioned)
	assert.Equal(t, PhaseFramework, r.Phase)
	assert.Len(t, gen.calls, 1)

	// the same keyword without a data request goes through the policy
	r = iv.Submit(ctx, "Those are my main buckets, shall we move on?")
	assert.True(t, r.Transitioned)
	assert.Equal(t, ReasonKeyword, r.Reason)
	assert.Equal(t, PhaseDataAnalysis, r.Phase)
	assert.Len(t, gen.calls, 2)
}

func TestExhibitExhaustionDoesNotLeaveConclusion(t *testing.T) {
	iv, _ := newInterviewer(t, models.ModeInterviewerLed, 1)
	iv.phase = PhaseConclusion

	r := iv.Submit(context.Background(), "any more data?")
	assert.True(t, r.ExhibitReleased)
	assert.Equal(t, PhaseConclusion, r.Phase)
	assert.False(t, r.Transitioned)
	assert.False(t, r.Completed)
}

func TestNoExhibitsDoesNotAdvance(t *testing.T) {
	iv, _ := newInterviewer(t, models.ModeInterviewerLed, 0)

	for i := 0; i < 5; i++ {
		r := iv.Submit(context.Background(), "show me the data")
		assert.Equal(t, msgNoExhibits, r.Message)
		assert.Equal(t, PhaseFramework, r.Phase)
	}
}

func TestRunToCompletion(t *testing.T) {
	iv, _ := newInterviewer(t, models.ModeInterviewerLed, 0)
	ctx := context.Background()

	var last Phase = PhaseFramework
	turns := 0
	for !iv.IsCompleted() {
		r := iv.Submit(ctx, genericAnswer)
		require.GreaterOrEqual(t, r.Phase, last)
		last = r.Phase
		turns++
		require.Less(t, turns, 50)
	}
	// 3 + 4 + 2 + 2 + 1
	assert.Equal(t, 12, turns)

	history := iv.History()
	count := iv.TurnCount()

	r := iv.Submit(ctx, "One more thing about the data")
	assert.Equal(t, msgConcluded, r.Message)
	assert.True(t, r.Completed)
	assert.Equal(t, PhaseCompleted, r.Phase)
	assert.Equal(t, history, iv.History())
	assert.Equal(t, count, iv.TurnCount())
	assert.Empty(t, iv.ReleasedExhibits())
}

func TestGeneratorFailureFallsBack(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("upstream 503")}
	iv, err := New(testCase(0), models.ModeInterviewerLed, gen)
	require.NoError(t, err)

	iv.Submit(context.Background(), genericAnswer)
	iv.Submit(context.Background(), genericAnswer)
	r := iv.Submit(context.Background(), genericAnswer)

	assert.Equal(t, FallbackReply, r.Message)
	assert.True(t, r.Fallback)
	assert.Equal(t, PhaseDataAnalysis, r.Phase)
}

func TestGeneratorTimeoutFallsBack(t *testing.T) {
	gen := &fakeGenerator{block: true}
	iv, err := New(testCase(0), models.ModeInterviewerLed, gen, WithReplyTimeout(10*time.Millisecond))
	require.NoError(t, err)

	r := iv.Submit(context.Background(), genericAnswer)
	assert.Equal(t, FallbackReply, r.Message)
	assert.True(t, r.Fallback)
}

func TestNilGeneratorFallsBack(t *testing.T) {
	iv, err := New(testCase(0), models.ModeInterviewerLed, nil)
	require.NoError(t, err)

	r := iv.Submit(context.Background(), genericAnswer)
	assert.Equal(t, FallbackReply, r.Message)
}

func TestHistoryWindow(t *testing.T) {
	iv, gen := newInterviewer(t, models.ModeCandidateLed, 0, WithHistoryWindow(4))
	iv.Open()

	for i := 0; i < 6; i++ {
		iv.Submit(context.Background(), genericAnswer)
	}

	require.Len(t, gen.calls, 6)
	assert.Len(t, gen.calls[0].history, 2)
	last := gen.calls[5].history
	require.Len(t, last, 4)
	assert.Equal(t, RoleCandidate, last[3].Role)
	assert.Equal(t, genericAnswer, last[3].Content)
}

func TestSystemPrompt(t *testing.T) {
	iv, gen := newInterviewer(t, models.ModeProductManagement, 5)

	iv.Submit(context.Background(), "Can I see the first exhibit?")
	iv.Submit(context.Background(), genericAnswer)

	prompt := gen.lastPrompt()
	assert.Contains(t, prompt, "conducting a product management interview")
	assert.Contains(t, prompt, "The case is about: Coffee chain profitability.")
	assert.Contains(t, prompt, `"industry": "retail"`)
	assert.Contains(t, prompt, "  - Exhibit 3: table")
	assert.NotContains(t, prompt, "Exhibit 4")
	assert.Contains(t, prompt, "Exhibits Released So Far: 1/3")
	assert.Contains(t, prompt, "Focus on: Structure, framework completeness")
	assert.Contains(t, prompt, "PM case interview")
}

func TestRollbackUndoesTurn(t *testing.T) {
	iv, _ := newInterviewer(t, models.ModeInterviewerLed, 1)
	ctx := context.Background()
	iv.Open()
	iv.Submit(ctx, genericAnswer)

	cp := iv.Checkpoint()
	r := iv.Submit(ctx, "Can I see the data?")
	require.True(t, r.ExhibitReleased)
	require.Equal(t, PhaseDataAnalysis, iv.Phase())

	iv.Rollback(cp)
	assert.Equal(t, PhaseFramework, iv.Phase())
	assert.Equal(t, 1, iv.TurnCount())
	assert.Equal(t, 1, iv.PhaseTurns(PhaseFramework))
	assert.Empty(t, iv.ReleasedExhibits())
	assert.Len(t, iv.History(), 3)

	// the same request releases the same exhibit again
	r = iv.Submit(ctx, "Can I see the data?")
	assert.Contains(t, r.Message, "**Exhibit 1**")
}
