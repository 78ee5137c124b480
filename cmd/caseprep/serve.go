package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/terra-clan/caseprep/internal/api"
	"github.com/terra-clan/caseprep/internal/cases"
	"github.com/terra-clan/caseprep/internal/cleanup"
	"github.com/terra-clan/caseprep/internal/config"
	"github.com/terra-clan/caseprep/internal/evaluation"
	"github.com/terra-clan/caseprep/internal/events"
	"github.com/terra-clan/caseprep/internal/hub"
	"github.com/terra-clan/caseprep/internal/llm"
	"github.com/terra-clan/caseprep/internal/models"
	"github.com/terra-clan/caseprep/internal/session"
	"github.com/terra-clan/caseprep/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

func serve(parent context.Context, cfg *config.Config) error {
	slog.Info("starting caseprep",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"storage", cfg.Storage.Driver,
		"llm_provider", cfg.LLM.Provider,
	)

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(parent, 30*time.Second)
	defer initCancel()

	repo, err := openRepository(initCtx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := ensureAdminClient(initCtx, repo, cfg.Auth.AdminAPIKey); err != nil {
		return err
	}

	// Load and seed the case library
	library := cases.NewLibrary()
	if err := library.LoadFromDir(cfg.Cases.Dir); err != nil {
		slog.Warn("failed to load cases from dir", "dir", cfg.Cases.Dir, "error", err)
	} else if cfg.Cases.Seed {
		n, err := library.Seed(initCtx, repo)
		if err != nil {
			return fmt.Errorf("failed to seed cases: %w", err)
		}
		slog.Info("case library seeded", "count", n)
	}

	var h hub.Hub
	if cfg.Redis.Address != "" {
		h, err = hub.NewRedisHub(initCtx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
	} else {
		h = hub.NewLocalHub()
	}
	defer h.Close()

	model, err := llm.NewModel(cfg.LLM)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipeline := evaluation.NewPipeline(repo, llm.NewEvaluator(model), llm.NewCoach(model))

	var bus *events.Bus
	if cfg.Evaluation.Auto {
		bus = events.NewBus()
		defer bus.Close()

		worker := evaluation.NewWorker(bus, pipeline, cfg.Evaluation.Timeout)
		if err := worker.Start(ctx); err != nil {
			return fmt.Errorf("failed to start evaluation worker: %w", err)
		}
	}

	manager := session.NewManager(repo, h, bus, llm.NewGenerator(model, cfg.LLM), session.Config{
		HistoryWindow:   cfg.Interview.HistoryWindow,
		ReplyTimeout:    cfg.LLM.Timeout,
		PersistExhibits: cfg.Interview.PersistExhibits,
		PublicURL:       cfg.Server.PublicURL,
		CaseCacheTTL:    cfg.Cases.CacheTTL,
	})

	cleaner := cleanup.NewCleaner(manager, cfg.Cleanup.Interval, cfg.Cleanup.AbandonAfter)
	cleaner.Start(ctx)

	server := api.NewServer(cfg.Server, cfg.Interview, manager, pipeline, repo, h)
	httpServer := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     server.Router(),
		ReadTimeout: 15 * time.Second,
		// WebSocket connections outlive any write deadline set here
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("HTTP server error: %w", err)
	}

	slog.Info("shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("caseprep stopped")
	return nil
}

// ensureAdminClient creates a full-permission API client for key unless one
// already exists
func ensureAdminClient(ctx context.Context, repo storage.Repository, key string) error {
	if key == "" {
		return nil
	}

	existing, err := repo.GetClientByApiKey(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to look up admin client: %w", err)
	}
	if existing != nil {
		return nil
	}

	admin := &models.ApiClient{
		Name:        "admin",
		ApiKey:      key,
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
		Permissions: []string{string(models.PermAll)},
	}
	if err := repo.CreateClient(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}

	slog.Info("admin api client created", "key", admin.MaskedApiKey())
	return nil
}
