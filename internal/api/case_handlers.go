package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/terra-clan/caseprep/internal/models"
)

func (s *Server) handleListCases(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	filters := models.CaseFilters{
		CaseType: models.CaseType(r.URL.Query().Get("case_type")),
		Limit:    limit,
		Offset:   offset,
	}

	cases, err := s.repo.ListCases(r.Context(), filters)
	if err != nil {
		slog.Error("failed to list cases", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list cases")
		return
	}

	summaries := lo.Map(cases, func(c *models.Case, _ int) models.CaseSummary { return c.Summary() })
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"cases": summaries,
		"total": len(summaries),
	})
}

func (s *Server) handleGetCase(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	c, err := s.repo.GetCase(r.Context(), id)
	if err != nil {
		slog.Error("failed to get case", "error", err, "id", id)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to get case")
		return
	}
	if c == nil {
		respondError(w, http.StatusNotFound, "not_found", "case not found")
		return
	}

	respondJSON(w, http.StatusOK, c)
}

// handleCreateCase imports a generated case. Stored cases are never modified,
// so an existing ID is a conflict.
func (s *Server) handleCreateCase(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCaseRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.New().String()
	}

	existing, err := s.repo.GetCase(r.Context(), id)
	if err != nil {
		slog.Error("failed to check case", "error", err, "id", id)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to create case")
		return
	}
	if existing != nil {
		respondError(w, http.StatusConflict, "case_exists", "a case with this id already exists")
		return
	}

	c := &models.Case{
		ID:        id,
		Title:     req.Title,
		Prompt:    req.Prompt,
		Context:   req.Context,
		Exhibits:  req.Exhibits,
		CaseType:  req.CaseType,
		Source:    "api",
		CreatedBy: ClientName(r.Context()),
		CreatedAt: time.Now().UTC(),
	}
	if c.Exhibits == nil {
		c.Exhibits = []models.Exhibit{}
	}

	if err := s.repo.CreateCase(r.Context(), c); err != nil {
		slog.Error("failed to create case", "error", err, "id", id)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to create case")
		return
	}

	slog.Info("case created", "id", c.ID, "case_type", c.CaseType, "exhibits", len(c.Exhibits), "created_by", c.CreatedBy)
	respondJSON(w, http.StatusCreated, c)
}
