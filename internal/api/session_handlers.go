package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/caseprep/internal/evaluation"
	"github.com/terra-clan/caseprep/internal/models"
	"github.com/terra-clan/caseprep/internal/session"
)

// --- Admin handlers (API key auth) ---

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSessionRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	resp, err := s.sessions.CreateSession(r.Context(), req, ClientName(r.Context()))
	if err != nil {
		switch {
		case errors.Is(err, session.ErrCaseNotFound):
			respondError(w, http.StatusNotFound, "case_not_found", "case not found")
		case errors.Is(err, session.ErrInvalidMode):
			respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		default:
			slog.Error("failed to create session", "error", err)
			respondError(w, http.StatusInternalServerError, "internal_error", "failed to create session")
		}
		return
	}

	respondJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	filters := models.SessionFilters{
		Status: models.SessionStatus(r.URL.Query().Get("status")),
		CaseID: r.URL.Query().Get("case_id"),
		Limit:  limit,
		Offset: offset,
	}

	sessions, err := s.sessions.List(r.Context(), filters)
	if err != nil {
		slog.Error("failed to list sessions", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list sessions")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"total":    len(sessions),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sess, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		s.sessionError(w, err, "failed to get session", id)
		return
	}

	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.sessions.Delete(r.Context(), id); err != nil {
		s.sessionError(w, err, "failed to delete session", id)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "session deleted",
	})
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	messages, err := s.sessions.Messages(r.Context(), id)
	if err != nil {
		s.sessionError(w, err, "failed to get messages", id)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"messages": messages,
		"total":    len(messages),
	})
}

// handleEvaluate runs scoring and coaching synchronously
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.sessions.Get(r.Context(), id); err != nil {
		s.sessionError(w, err, "failed to get session", id)
		return
	}

	resp, err := s.pipeline.Run(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, evaluation.ErrSessionNotCompleted):
			respondError(w, http.StatusConflict, "not_completed", "interview has not been completed")
		case errors.Is(err, evaluation.ErrCaseNotFound):
			respondError(w, http.StatusConflict, "case_missing", "session has no case")
		case errors.Is(err, evaluation.ErrSessionNotFound):
			respondError(w, http.StatusNotFound, "not_found", "session not found")
		default:
			slog.Error("evaluation failed", "error", err, "id", id)
			respondError(w, http.StatusBadGateway, "evaluation_failed", "evaluation service failed")
		}
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetEvaluation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.sessions.Get(r.Context(), id); err != nil {
		s.sessionError(w, err, "failed to get session", id)
		return
	}

	resp, err := s.pipeline.Result(r.Context(), id)
	if err != nil {
		slog.Error("failed to get evaluation", "error", err, "id", id)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to get evaluation")
		return
	}
	if resp == nil {
		respondError(w, http.StatusNotFound, "not_evaluated", "session has not been evaluated yet")
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// --- Public handlers (session token = auth) ---

func (s *Server) handleJoinSession(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	resp, err := s.sessions.Join(r.Context(), token)
	if err != nil {
		s.sessionError(w, err, "failed to get session by token", "")
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// sessionError maps session manager errors onto responses
func (s *Server) sessionError(w http.ResponseWriter, err error, msg, id string) {
	if errors.Is(err, session.ErrSessionNotFound) {
		respondError(w, http.StatusNotFound, "not_found", "session not found")
		return
	}
	slog.Error(msg, "error", err, "id", id)
	respondError(w, http.StatusInternalServerError, "internal_error", msg)
}
