package interview

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/terra-clan/caseprep/internal/models"
)

var phaseFocus = map[Phase]string{
	PhaseFramework:      "Focus on: Structure, framework completeness, MECE principles.",
	PhaseDataAnalysis:   "Focus on: Data interpretation, quantitative skills, insight generation.",
	PhaseRecommendation: "Focus on: Clear recommendation, supporting evidence, actionable steps.",
	PhasePushback:       "Challenge their recommendation with 1-2 tough questions about assumptions or risks.",
	PhaseConclusion: "Ask them to summarize key takeaways. After they respond, thank them professionally and conclude: " +
		"'Thank you for your thoughtful analysis today. That concludes our interview. " +
		"You'll receive feedback on your performance shortly.'",
}

var modeRole = map[models.InterviewMode][]string{
	models.ModeInterviewerLed: {
		"You are the INTERVIEWER conducting this case interview",
		"Guide the candidate through the case with structured questions",
		"Ask probing questions to test their thinking",
		"**ONLY reference facts, numbers, and context from the case data provided above**",
		"If the candidate asks about data not in exhibits, redirect them: 'That information isn't available. Work with what you have.'",
		"Maintain a professional, neutral tone",
		"Keep responses concise (2-3 sentences)",
	},
	models.ModeCandidateLed: {
		"You are the INTERVIEWER in this candidate-led interview",
		"The candidate drives this interview; answer ONLY when asked",
		"**CRITICAL: Provide ONLY information from the case data above. Do NOT invent any numbers, facts, or context.**",
		"If asked about data not in the case or exhibits, respond: 'I don't have that information available.'",
		"Respond with factual information only, no guidance, hints, or suggestions",
		"If asked about data or exhibits, provide them directly and accurately from the case data",
		"Do NOT ask questions, guide the candidate, or offer recommendations",
		"Only provide minimal clarification if the candidate explicitly asks 'can you clarify?' or similar",
		"Maintain a professional, neutral tone",
		"Keep responses concise (1-2 sentences)",
	},
	models.ModeProductManagement: {
		"You are the INTERVIEWER conducting this PM case interview",
		"Evaluate product thinking and user empathy",
		"Ask about trade-offs and prioritization",
		"Challenge assumptions",
		"**ONLY use information from the case data above. Do NOT introduce new facts or market data.**",
		"Keep all discussions grounded in the provided case context",
		"Maintain a professional, neutral tone",
		"Keep responses concise (2-3 sentences)",
	},
}

// systemPrompt builds the generator instructions for the current turn
func (iv *Interviewer) systemPrompt(d Decision) string {
	title := iv.kase.Title
	if title == "" {
		title = "a business problem"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a case interviewer conducting a %s interview. ", strings.ReplaceAll(string(iv.mode), "_", " "))
	fmt.Fprintf(&b, "The case is about: %s.\n\n", title)
	b.WriteString("**CRITICAL: You must ONLY use information from the case data below. " +
		"Do NOT invent, assume, or add any new data, numbers, or facts.**\n\n")
	fmt.Fprintf(&b, "Case Context:\n%s\n\n", contextJSON(iv.kase.Context))
	fmt.Fprintf(&b, "Available Exhibits (already generated):\n%s\n\n", exhibitSummary(iv.kase.Exhibits))
	fmt.Fprintf(&b, "Current Phase: %s\n\n", iv.phase.describe())
	fmt.Fprintf(&b, "Exhibits Released So Far: %d/%d\n\n", len(iv.exhibits.released), iv.exhibits.Limit())

	if iv.mode != models.ModeCandidateLed {
		if d.Transition && d.Next != iv.phase {
			fmt.Fprintf(&b, "TRANSITION: Guide the candidate to the next phase: %s.\n\n", d.Next.describe())
		}
		if focus, ok := phaseFocus[iv.phase]; ok {
			b.WriteString(focus + "\n")
		}
	}

	b.WriteString("Your role:\n")
	for _, line := range modeRole[iv.mode] {
		b.WriteString("- " + line + "\n")
	}
	return b.String()
}

func contextJSON(ctx map[string]string) string {
	if len(ctx) == 0 {
		return "{}"
	}
	out, err := json.MarshalIndent(ctx, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(out)
}

func exhibitSummary(exhibits []models.Exhibit) string {
	if len(exhibits) == 0 {
		return "  - No exhibits available"
	}
	shown := exhibits[:min(len(exhibits), MaxExhibits)]
	lines := lo.Map(shown, func(ex models.Exhibit, _ int) string {
		title := lo.Ternary(ex.Title != "", ex.Title, "Exhibit")
		kind := lo.Ternary(ex.Type != "", string(ex.Type), "data")
		return fmt.Sprintf("  - %s: %s", title, kind)
	})
	return strings.Join(lines, "\n")
}
