package models

import "time"

// Evaluation holds the scores returned by the scoring service (0-100 each)
type Evaluation struct {
	ID                  int64     `json:"id"`
	SessionID           string    `json:"session_id"`
	StructureScore      int       `json:"structure_score"`
	HypothesisScore     int       `json:"hypothesis_score"`
	MathScore           int       `json:"math_score"`
	InsightScore        int       `json:"insight_score"`
	OverallScore        int       `json:"overall_score"`
	Strengths           []string  `json:"strengths"`
	AreasForImprovement []string  `json:"areas_for_improvement"`
	DetailedAnalysis    string    `json:"detailed_analysis"`
	CreatedAt           time.Time `json:"created_at"`
}

// Feedback is the coaching output attached to an evaluation
type Feedback struct {
	ID                  int64     `json:"id"`
	SessionID           string    `json:"session_id"`
	Summary             string    `json:"summary"`
	Strengths           []string  `json:"strengths"`
	AreasForImprovement []string  `json:"areas_for_improvement"`
	Recommendations     []string  `json:"recommendations"`
	NextSteps           []string  `json:"next_steps"`
	CreatedAt           time.Time `json:"created_at"`
}

// EvaluationResponse is returned by the evaluation endpoints
type EvaluationResponse struct {
	Evaluation *Evaluation `json:"evaluation"`
	Feedback   *Feedback   `json:"feedback,omitempty"`
}
