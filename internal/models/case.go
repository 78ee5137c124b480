package models

import (
	"encoding/json"
	"time"
)

// CaseType distinguishes consulting cases from product management cases
type CaseType string

const (
	CaseConsulting        CaseType = "consulting"
	CaseProductManagement CaseType = "product_management"
)

// ExhibitType is the presentation hint for an exhibit
type ExhibitType string

const (
	ExhibitTable ExhibitType = "table"
	ExhibitBar   ExhibitType = "bar"
	ExhibitPie   ExhibitType = "pie"
)

// Exhibit is a discrete unit of case data released to the candidate on request.
// Within a case an exhibit is identified only by its index.
type Exhibit struct {
	Title string          `json:"title" validate:"required"`
	Type  ExhibitType     `json:"type" validate:"required,oneof=table bar pie"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Case is a generated case interview scenario. It is immutable once stored.
type Case struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Prompt    string            `json:"prompt"`
	Context   map[string]string `json:"context,omitempty"`
	Exhibits  []Exhibit         `json:"exhibits"`
	CaseType  CaseType          `json:"case_type"`
	Source    string            `json:"source,omitempty"` // "library", "api"
	CreatedBy string            `json:"created_by,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// CaseSummary is the list representation of a case (no exhibit payloads)
type CaseSummary struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	CaseType      CaseType  `json:"case_type"`
	ExhibitsCount int       `json:"exhibits_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// Summary returns the list representation of the case
func (c *Case) Summary() CaseSummary {
	return CaseSummary{
		ID:            c.ID,
		Title:         c.Title,
		CaseType:      c.CaseType,
		ExhibitsCount: len(c.Exhibits),
		CreatedAt:     c.CreatedAt,
	}
}

// CreateCaseRequest imports a case produced by the content-generation service
type CreateCaseRequest struct {
	ID       string            `json:"id,omitempty" validate:"omitempty,max=120"`
	Title    string            `json:"title" validate:"required,max=200"`
	Prompt   string            `json:"prompt" validate:"required"`
	Context  map[string]string `json:"context,omitempty"`
	Exhibits []Exhibit         `json:"exhibits" validate:"dive"`
	CaseType CaseType          `json:"case_type" validate:"required,oneof=consulting product_management"`
}

// CaseFilters narrows ListCases
type CaseFilters struct {
	CaseType CaseType
	Limit    int
	Offset   int
}
