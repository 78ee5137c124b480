package llm

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/terra-clan/caseprep/internal/models"
)

// Parsers for the older free-text answer format, used only when a model
// answers without calling the tool. Best effort: unknown lines are ignored.

var firstNumber = regexp.MustCompile(`\d+`)

var scoreLabels = []string{"Structure:", "Hypothesis:", "Math:", "Insights:", "Overall:"}

// ParseEvaluationText extracts scores and bullet lists from a free-text evaluation
func ParseEvaluationText(text string) *models.Evaluation {
	eval := &models.Evaluation{
		Strengths:           []string{},
		AreasForImprovement: []string{},
		DetailedAnalysis:    strings.TrimSpace(text),
	}
	scores := map[string]*int{
		"Structure:":  &eval.StructureScore,
		"Hypothesis:": &eval.HypothesisScore,
		"Math:":       &eval.MathScore,
		"Insights:":   &eval.InsightScore,
		"Overall:":    &eval.OverallScore,
	}

	var section *[]string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)

		if label, ok := scoreLabel(line); ok {
			if n, err := strconv.Atoi(firstNumber.FindString(line[strings.Index(line, label):])); err == nil {
				*scores[label] = clampScore(n)
			}
			continue
		}

		switch {
		case strings.Contains(line, "STRENGTHS:"):
			section = &eval.Strengths
		case strings.Contains(line, "AREAS FOR IMPROVEMENT:"), strings.Contains(line, "IMPROVEMENTS:"):
			section = &eval.AreasForImprovement
		case strings.Contains(line, "DETAILED ANALYSIS:"):
			section = nil
		case section != nil && strings.HasPrefix(line, "-"):
			if item := strings.TrimSpace(line[1:]); item != "" {
				*section = append(*section, item)
			}
		}
	}
	return eval
}

func scoreLabel(line string) (string, bool) {
	for _, label := range scoreLabels {
		if strings.Contains(line, label) {
			return label, true
		}
	}
	return "", false
}

// CoachingText is the result of ParseCoachingText
type CoachingText struct {
	Summary         string
	Recommendations []string
	NextSteps       []string
}

// ParseCoachingText extracts the summary, drills and next steps from free-text coaching
func ParseCoachingText(text string) CoachingText {
	out := CoachingText{Recommendations: []string{}, NextSteps: []string{}}

	var (
		section string
		summary []string
	)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)

		switch {
		case strings.Contains(line, "SUMMARY:"):
			section = "summary"
		case strings.Contains(line, "DRILLS:"):
			section = "drills"
		case strings.Contains(line, "NEXT STEPS:"):
			section = "next_steps"
		case strings.HasPrefix(line, "-") && section == "drills":
			if item := strings.TrimSpace(line[1:]); item != "" {
				out.Recommendations = append(out.Recommendations, item)
			}
		case strings.HasPrefix(line, "-") && section == "next_steps":
			if item := strings.TrimSpace(line[1:]); item != "" {
				out.NextSteps = append(out.NextSteps, item)
			}
		case section == "summary" && line != "" && !strings.HasSuffix(line, ":"):
			summary = append(summary, line)
		}
	}

	out.Summary = strings.Join(summary, " ")
	return out
}
