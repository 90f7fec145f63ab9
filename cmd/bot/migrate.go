package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/config"
	"github.com/spec-kit/support-bot/internal/observability"
	"github.com/spec-kit/support-bot/internal/persistence"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tools",
		Long:  `Apply, inspect or roll back the embedded Postgres migrations.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Run all pending migrations",
			RunE: func(_ *cobra.Command, _ []string) error {
				return withDatabase(func(ctx context.Context, pg *persistence.Postgres, logger *zap.Logger) error {
					return persistence.RunMigrations(ctx, pg.PoolHandle(), logger)
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show migration status",
			RunE: func(_ *cobra.Command, _ []string) error {
				return withDatabase(func(ctx context.Context, pg *persistence.Postgres, _ *zap.Logger) error {
					return persistence.MigrationStatus(ctx, pg.PoolHandle())
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the latest migration",
			RunE: func(_ *cobra.Command, _ []string) error {
				return withDatabase(func(ctx context.Context, pg *persistence.Postgres, logger *zap.Logger) error {
					return persistence.RollbackMigration(ctx, pg.PoolHandle(), logger)
				})
			},
		},
	)
	return cmd
}

func withDatabase(fn func(ctx context.Context, pg *persistence.Postgres, logger *zap.Logger) error) error {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()
	if !pg.Enabled() {
		return fmt.Errorf("POSTGRES_DSN is required for migrations")
	}
	return fn(ctx, pg, logger)
}
