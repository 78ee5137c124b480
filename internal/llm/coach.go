package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/terra-clan/caseprep/internal/metrics"
	"github.com/terra-clan/caseprep/internal/models"
)

const coachSystemPrompt = `You are an experienced case interview coach who has helped hundreds of candidates succeed at top consulting firms.

Your role is to:
1. Provide encouraging, actionable feedback
2. Recommend specific drills and practice exercises
3. Suggest concrete next steps for improvement
4. Be supportive while being honest about areas needing work

Keep your tone encouraging and specific. Call submit_feedback with a short summary, three recommended drills and
three next steps.`

// Coach turns an evaluation into personalized practice advice
type Coach struct {
	model llms.Model
}

// NewCoach creates a coach backed by model
func NewCoach(model llms.Model) *Coach {
	return &Coach{model: model}
}

// Coach generates feedback for an evaluation. Strengths and areas for
// improvement are carried over from the evaluation unchanged.
func (c *Coach) Coach(ctx context.Context, kase *models.Case, eval *models.Evaluation) (*models.Feedback, error) {
	if eval == nil {
		return nil, fmt.Errorf("coach: evaluation is required")
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, coachSystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, buildCoachingPrompt(kase, eval)),
	}

	start := time.Now()
	resp, err := c.model.GenerateContent(ctx, messages,
		llms.WithTools([]llms.Tool{feedbackTool}),
		llms.WithToolChoice("required"),
		llms.WithTemperature(0.7),
		llms.WithMaxTokens(1000),
	)
	metrics.ObserveLLMCall("coach", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to generate feedback: %w", err)
	}

	choice, err := firstChoice(resp)
	if err != nil {
		return nil, err
	}

	fb := &models.Feedback{
		SessionID:           eval.SessionID,
		Strengths:           eval.Strengths,
		AreasForImprovement: eval.AreasForImprovement,
	}

	var params feedbackParams
	err = toolArguments(choice, toolSubmitFeedback, &params)
	switch {
	case errors.Is(err, ErrNoToolCall) && strings.TrimSpace(choice.Content) != "":
		slog.Warn("coaching returned free text, using legacy parser")
		parsed := ParseCoachingText(choice.Content)
		fb.Summary = parsed.Summary
		fb.Recommendations = parsed.Recommendations
		fb.NextSteps = parsed.NextSteps
		return fb, nil
	case err != nil:
		return nil, err
	}

	fb.Summary = strings.TrimSpace(params.Summary)
	fb.Recommendations = compact(params.Recommendations)
	fb.NextSteps = compact(params.NextSteps)
	return fb, nil
}

func buildCoachingPrompt(kase *models.Case, eval *models.Evaluation) string {
	var b strings.Builder
	b.WriteString("Performance Scores:\n")
	fmt.Fprintf(&b, "- Structure: %d/100\n", eval.StructureScore)
	fmt.Fprintf(&b, "- Hypothesis: %d/100\n", eval.HypothesisScore)
	fmt.Fprintf(&b, "- Math: %d/100\n", eval.MathScore)
	fmt.Fprintf(&b, "- Insights: %d/100\n", eval.InsightScore)
	fmt.Fprintf(&b, "- Overall: %d/100\n\n", eval.OverallScore)

	b.WriteString("Strengths:\n")
	for _, s := range eval.Strengths {
		b.WriteString("- " + s + "\n")
	}
	b.WriteString("\nAreas for Improvement:\n")
	for _, a := range eval.AreasForImprovement {
		b.WriteString("- " + a + "\n")
	}

	caseType := models.CaseConsulting
	if kase != nil && kase.CaseType != "" {
		caseType = kase.CaseType
	}
	fmt.Fprintf(&b, "\nCase Type: %s\n\n", caseType)
	b.WriteString("Based on this performance, please provide personalized coaching feedback with specific drill recommendations.")
	return b.String()
}
