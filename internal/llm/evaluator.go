package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/tmc/langchaingo/llms"

	"github.com/terra-clan/caseprep/internal/metrics"
	"github.com/terra-clan/caseprep/internal/models"
)

const evaluatorSystemPrompt = `You are a senior case interview evaluator at a top consulting firm.

Evaluate the candidate's performance across four dimensions, each scored 0-100:

1. Structure: Did they use a clear framework? Was their approach organized?
2. Hypothesis: Did they form and test hypotheses? Were they data-driven?
3. Math: Were calculations accurate? Did they handle quantitative analysis well?
4. Insights: Did they provide actionable insights? Were recommendations clear?

Also give an overall score, two or three strengths, two or three areas for improvement and two or three
paragraphs of detailed analysis.

Call submit_evaluation with your assessment.`

// Evaluator scores a finished interview transcript
type Evaluator struct {
	model llms.Model
}

// NewEvaluator creates an evaluator backed by model
func NewEvaluator(model llms.Model) *Evaluator {
	return &Evaluator{model: model}
}

// Evaluate scores the candidate's side of the chat log
func (e *Evaluator) Evaluate(ctx context.Context, kase *models.Case, log []models.Message) (*models.Evaluation, error) {
	if kase == nil {
		return nil, fmt.Errorf("evaluate: case is required")
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, evaluatorSystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, buildEvaluationPrompt(kase, log)),
	}

	start := time.Now()
	resp, err := e.model.GenerateContent(ctx, messages,
		llms.WithTools([]llms.Tool{evaluationTool}),
		llms.WithToolChoice("required"),
		llms.WithTemperature(0.3),
		llms.WithMaxTokens(1500),
	)
	metrics.ObserveLLMCall("evaluate", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to generate evaluation: %w", err)
	}

	choice, err := firstChoice(resp)
	if err != nil {
		return nil, err
	}

	var params evaluationParams
	err = toolArguments(choice, toolSubmitEvaluation, &params)
	switch {
	case errors.Is(err, ErrNoToolCall) && strings.TrimSpace(choice.Content) != "":
		slog.Warn("evaluation returned free text, using legacy parser")
		return ParseEvaluationText(choice.Content), nil
	case err != nil:
		return nil, err
	}

	return &models.Evaluation{
		StructureScore:      clampScore(params.Structure),
		HypothesisScore:     clampScore(params.Hypothesis),
		MathScore:           clampScore(params.Math),
		InsightScore:        clampScore(params.Insights),
		OverallScore:        clampScore(params.Overall),
		Strengths:           compact(params.Strengths),
		AreasForImprovement: compact(params.AreasForImprovement),
		DetailedAnalysis:    strings.TrimSpace(params.DetailedAnalysis),
	}, nil
}

func buildEvaluationPrompt(kase *models.Case, log []models.Message) string {
	answers := lo.FilterMap(log, func(m models.Message, _ int) (string, bool) {
		return "Candidate: " + m.Content, m.Role == models.RoleUser
	})

	caseType := lo.Ternary(kase.CaseType != "", string(kase.CaseType), string(models.CaseConsulting))

	var b strings.Builder
	fmt.Fprintf(&b, "Case Title: %s\n", lo.Ternary(kase.Title != "", kase.Title, "Unknown"))
	fmt.Fprintf(&b, "Case Type: %s\n\n", caseType)
	fmt.Fprintf(&b, "Case Prompt:\n%s\n\n", kase.Prompt)
	fmt.Fprintf(&b, "Candidate's Responses:\n%s\n\n", strings.Join(answers, "\n\n"))
	b.WriteString("Please evaluate this candidate's performance.")
	return b.String()
}

func clampScore(v int) int {
	return lo.Clamp(v, 0, 100)
}

func compact(items []string) []string {
	out := lo.FilterMap(items, func(s string, _ int) (string, bool) {
		s = strings.TrimSpace(s)
		return s, s != ""
	})
	if out == nil {
		return []string{}
	}
	return out
}
