package llm

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/tmc/langchaingo/llms"
)

// evaluationParams are the arguments of the submit_evaluation tool
type evaluationParams struct {
	Structure           int      `json:"structure" jsonschema:"required,minimum=0,maximum=100,description=Clarity and completeness of the framework"`
	Hypothesis          int      `json:"hypothesis" jsonschema:"required,minimum=0,maximum=100,description=Forming and testing hypotheses with the data"`
	Math                int      `json:"math" jsonschema:"required,minimum=0,maximum=100,description=Accuracy of calculations and quantitative reasoning"`
	Insights            int      `json:"insights" jsonschema:"required,minimum=0,maximum=100,description=Actionable insights and clarity of the recommendation"`
	Overall             int      `json:"overall" jsonschema:"required,minimum=0,maximum=100,description=Overall performance"`
	Strengths           []string `json:"strengths" jsonschema:"required,description=Two or three specific strengths"`
	AreasForImprovement []string `json:"areas_for_improvement" jsonschema:"required,description=Two or three specific areas to improve"`
	DetailedAnalysis    string   `json:"detailed_analysis" jsonschema:"required,description=Two or three paragraphs of detailed feedback"`
}

// feedbackParams are the arguments of the submit_feedback tool
type feedbackParams struct {
	Summary         string   `json:"summary" jsonschema:"required,description=Two or three sentence overview of the performance"`
	Recommendations []string `json:"recommendations" jsonschema:"required,description=Specific practice drills with a short description each"`
	NextSteps       []string `json:"next_steps" jsonschema:"required,description=Concrete action items"`
}

const (
	toolSubmitEvaluation = "submit_evaluation"
	toolSubmitFeedback   = "submit_feedback"
)

var (
	evaluationTool = toolFor[evaluationParams](toolSubmitEvaluation, "Submit the scored evaluation of the candidate's interview")
	feedbackTool   = toolFor[feedbackParams](toolSubmitFeedback, "Submit personalized coaching feedback for the candidate")
)

// toolFor builds a function tool whose parameter schema is reflected from T
func toolFor[T any](name, description string) llms.Tool {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(&v)

	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters:  schemaParameters(schema),
		},
	}
}

// schemaParameters converts a reflected schema into the plain map tool
// definitions expect, without the draft and id keywords.
func schemaParameters(schema *jsonschema.Schema) map[string]any {
	raw, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("failed to marshal tool schema: %v", err))
	}
	var params map[string]any
	if err := json.Unmarshal(raw, &params); err != nil {
		panic(fmt.Sprintf("failed to decode tool schema: %v", err))
	}
	delete(params, "$schema")
	delete(params, "$id")
	return params
}

// toolArguments finds the named tool call in a choice and decodes its arguments
func toolArguments(choice *llms.ContentChoice, name string, dst any) error {
	for _, call := range choice.ToolCalls {
		if call.FunctionCall == nil || call.FunctionCall.Name != name {
			continue
		}
		if err := json.Unmarshal([]byte(call.FunctionCall.Arguments), dst); err != nil {
			return fmt.Errorf("failed to parse %s arguments: %w", name, err)
		}
		return nil
	}
	return ErrNoToolCall
}
