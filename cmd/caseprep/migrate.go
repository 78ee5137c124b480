package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/terra-clan/caseprep/internal/cases"
	"github.com/terra-clan/caseprep/internal/storage"
)

var seedDir string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		if err := storage.MigrateFromDSN(ctx, cfg.Database.DSN, cfg.Database.MigrationsDir); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		slog.Info("migrations complete")
		return nil
	},
}

var seedCasesCmd = &cobra.Command{
	Use:   "seed-cases",
	Short: "Load the case library and upsert it into storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if seedDir != "" {
			cfg.Cases.Dir = seedDir
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		library := cases.NewLibrary()
		if err := library.LoadFromDir(cfg.Cases.Dir); err != nil {
			return fmt.Errorf("failed to load cases from %s: %w", cfg.Cases.Dir, err)
		}

		repo, err := openRepository(ctx, cfg)
		if err != nil {
			return err
		}
		defer repo.Close()

		n, err := library.Seed(ctx, repo)
		if err != nil {
			return err
		}
		slog.Info("cases seeded", "count", n, "dir", cfg.Cases.Dir)
		return nil
	},
}
