package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"
	"github.com/tmc/langchaingo/llms"

	"github.com/terra-clan/caseprep/internal/config"
	"github.com/terra-clan/caseprep/internal/interview"
	"github.com/terra-clan/caseprep/internal/metrics"
)

// Generator phrases interviewer replies with a chat model
type Generator struct {
	model       llms.Model
	temperature float64
	maxTokens   int
}

// NewGenerator creates a reply generator
func NewGenerator(model llms.Model, cfg config.LLMConfig) *Generator {
	return &Generator{
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

// Generate implements interview.Generator
func (g *Generator) Generate(ctx context.Context, systemPrompt string, history []interview.Turn) (string, error) {
	messages := make([]llms.MessageContent, 0, len(history)+1)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
	messages = append(messages, lo.Map(history, func(t interview.Turn, _ int) llms.MessageContent {
		if t.Role == interview.RoleCandidate {
			return llms.TextParts(llms.ChatMessageTypeHuman, t.Content)
		}
		return llms.TextParts(llms.ChatMessageTypeAI, t.Content)
	})...)

	start := time.Now()
	resp, err := g.model.GenerateContent(ctx, messages,
		llms.WithTemperature(g.temperature),
		llms.WithMaxTokens(g.maxTokens),
	)
	metrics.ObserveLLMCall("reply", start, err)
	if err != nil {
		return "", fmt.Errorf("failed to generate reply: %w", err)
	}

	choice, err := firstChoice(resp)
	if err != nil {
		return "", err
	}

	slog.Debug("reply generated",
		"turns", len(history),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return choice.Content, nil
}
