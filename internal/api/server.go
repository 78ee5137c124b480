package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/terra-clan/caseprep/internal/config"
	"github.com/terra-clan/caseprep/internal/evaluation"
	"github.com/terra-clan/caseprep/internal/hub"
	"github.com/terra-clan/caseprep/internal/models"
	"github.com/terra-clan/caseprep/internal/session"
	"github.com/terra-clan/caseprep/internal/storage"
)

// Server represents the HTTP API server
type Server struct {
	config         config.ServerConfig
	interview      config.InterviewConfig
	router         *chi.Mux
	sessions       *session.Manager
	pipeline       *evaluation.Pipeline
	repo           storage.Repository
	hub            hub.Hub
	authMiddleware *AuthMiddleware
	validate       *validator.Validate
}

// NewServer creates a new API server
func NewServer(
	cfg config.ServerConfig,
	interviewCfg config.InterviewConfig,
	sessions *session.Manager,
	pipeline *evaluation.Pipeline,
	repo storage.Repository,
	h hub.Hub,
) *Server {
	s := &Server{
		config:         cfg,
		interview:      interviewCfg,
		sessions:       sessions,
		pipeline:       pipeline,
		repo:           repo,
		hub:            h,
		authMiddleware: NewAuthMiddleware(repo),
		validate:       validator.New(),
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public endpoints
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	// Interview socket (join token = auth); no request timeout on long-lived connections
	r.Get("/ws/interview/{token}", s.handleInterviewWS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		// Candidate join page data (join token = auth)
		r.Get("/join/{token}", s.handleJoinSession)

		// Everything else requires an API key
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware.Authenticate)

			r.Route("/cases", func(r chi.Router) {
				r.With(s.authMiddleware.RequirePermission(models.PermCasesRead)).Get("/", s.handleListCases)
				r.With(s.authMiddleware.RequirePermission(models.PermCasesWrite)).Post("/", s.handleCreateCase)
				r.With(s.authMiddleware.RequirePermission(models.PermCasesRead)).Get("/{id}", s.handleGetCase)
			})

			r.Route("/sessions", func(r chi.Router) {
				r.With(s.authMiddleware.RequirePermission(models.PermSessionsRead)).Get("/", s.handleListSessions)
				r.With(s.authMiddleware.RequirePermission(models.PermSessionsWrite)).Post("/", s.handleCreateSession)

				r.Route("/{id}", func(r chi.Router) {
					r.With(s.authMiddleware.RequirePermission(models.PermSessionsRead)).Get("/", s.handleGetSession)
					r.With(s.authMiddleware.RequirePermission(models.PermSessionsWrite)).Delete("/", s.handleDeleteSession)
					r.With(s.authMiddleware.RequirePermission(models.PermSessionsRead)).Get("/messages", s.handleGetMessages)
					r.With(s.authMiddleware.RequirePermission(models.PermEvaluationsWrite)).Post("/evaluate", s.handleEvaluate)
					r.With(s.authMiddleware.RequirePermission(models.PermEvaluationsRead)).Get("/evaluation", s.handleGetEvaluation)
				})
			})
		})
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
