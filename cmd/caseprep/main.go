package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/terra-clan/caseprep/internal/config"
	"github.com/terra-clan/caseprep/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:           "caseprep",
	Short:         "Case interview simulator",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCasesCmd)

	seedCasesCmd.Flags().StringVar(&seedDir, "dir", "", "Case library directory (defaults to CASES_DIR)")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration and installs the JSON logger at the
// configured level
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	return cfg, nil
}

// openRepository connects the configured storage driver. Postgres schemas are
// migrated before the repository is returned.
func openRepository(ctx context.Context, cfg *config.Config) (storage.Repository, error) {
	if cfg.Storage.Driver == "memory" {
		slog.Warn("using in-memory storage, sessions will not survive a restart")
		return storage.NewMemoryRepository(), nil
	}

	slog.Info("running database migrations", "dir", cfg.Database.MigrationsDir)
	if err := storage.MigrateFromDSN(ctx, cfg.Database.DSN, cfg.Database.MigrationsDir); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	repo, err := storage.NewPostgresRepository(ctx, storage.PostgresConfig{
		DSN:          cfg.Database.DSN,
		MaxOpenConns: int32(cfg.Database.MaxOpenConns),
		MaxIdleConns: int32(cfg.Database.MaxIdleConns),
		MaxLifetime:  time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create database repository: %w", err)
	}
	slog.Info("database connected successfully")

	return repo, nil
}
