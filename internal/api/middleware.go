package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/terra-clan/caseprep/internal/models"
	"github.com/terra-clan/caseprep/internal/storage"
)

// lastUsedInterval throttles last_used_at writes per client key
const lastUsedInterval = time.Minute

// AuthMiddleware authenticates the admin and LMS clients that manage cases,
// sessions and evaluations. Candidates never hold API keys: the interview
// socket and the join endpoint are authorized by the session token instead.
type AuthMiddleware struct {
	repo storage.Repository

	touched map[string]time.Time
	now     func() time.Time
	mu      chan struct{}
}

// NewAuthMiddleware creates new auth middleware
func NewAuthMiddleware(repo storage.Repository) *AuthMiddleware {
	return &AuthMiddleware{
		repo:    repo,
		touched: make(map[string]time.Time),
		now:     time.Now,
		mu:      make(chan struct{}, 1),
	}
}

// authFailure is a rejected request
type authFailure struct {
	status  int
	code    string
	message string
}

// Authenticate resolves the API client from "Authorization: Bearer <key>",
// a bare Authorization value or X-API-Key, and stores it in the request context
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client, fail := m.resolve(r)
		if fail != nil {
			respondError(w, fail.status, fail.code, fail.message)
			return
		}

		m.touch(client)
		slog.Debug("authenticated request", "client", client.Name, "key_prefix", client.MaskedApiKey(), "path", r.URL.Path)
		next.ServeHTTP(w, r.WithContext(ContextWithClient(r.Context(), client)))
	})
}

func (m *AuthMiddleware) resolve(r *http.Request) (*models.ApiClient, *authFailure) {
	apiKey := extractAPIKey(r)
	if apiKey == "" {
		return nil, &authFailure{http.StatusUnauthorized, "missing_api_key",
			"provide Authorization header with Bearer token or X-API-Key header"}
	}

	client, err := m.repo.GetClientByApiKey(r.Context(), apiKey)
	if err != nil {
		slog.Error("failed to lookup api client", "error", err, "key_prefix", models.MaskKey(apiKey))
		return nil, &authFailure{http.StatusInternalServerError, "authentication_error", "internal server error"}
	}

	switch {
	case client == nil:
		slog.Warn("invalid api key attempt", "key_prefix", models.MaskKey(apiKey), "remote_addr", r.RemoteAddr)
		return nil, &authFailure{http.StatusUnauthorized, "invalid_api_key", "the provided api key is not valid"}
	case !client.IsActive:
		slog.Warn("inactive client attempt", "client", client.Name, "key_prefix", models.MaskKey(apiKey))
		return nil, &authFailure{http.StatusUnauthorized, "client_inactive", "this api key has been deactivated"}
	}
	return client, nil
}

// touch records last use in the background, at most once per lastUsedInterval
// for each key. Session polling by an LMS would otherwise write on every request.
func (m *AuthMiddleware) touch(client *models.ApiClient) {
	m.mu <- struct{}{}
	now := m.now()
	last, seen := m.touched[client.ApiKey]
	if seen && now.Sub(last) < lastUsedInterval {
		<-m.mu
		return
	}
	m.touched[client.ApiKey] = now
	<-m.mu

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.repo.UpdateClientLastUsed(ctx, client.ApiKey); err != nil {
			slog.Error("failed to update client last_used_at", "error", err, "client", client.Name)
		}
	}()
}

// RequirePermission rejects clients that lack perm
func (m *AuthMiddleware) RequirePermission(perm models.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := ClientFromContext(r.Context())
			if client == nil {
				respondError(w, http.StatusUnauthorized, "not_authenticated", "authentication required")
				return
			}

			if !client.HasPermission(perm) {
				slog.Warn("permission denied",
					"client", client.Name,
					"required", perm,
					"has", client.Permissions,
				)
				respondError(w, http.StatusForbidden, "permission_denied",
					"client does not have required permission: "+string(perm))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func extractAPIKey(r *http.Request) string {
	if authHeader := strings.TrimSpace(r.Header.Get("Authorization")); authHeader != "" {
		if key, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
			return strings.TrimSpace(key)
		}
		return authHeader
	}

	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}
