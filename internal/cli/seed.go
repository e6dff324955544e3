package cli

import (
	"fmt"

	"battle-arena/internal/config"
	"battle-arena/internal/infra/postgres"
	"github.com/spf13/cobra"
)

// NewSeedCmd loads the configured fixtures into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load subjects, accounts and questions into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Log.Level)
			if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
				return err
			}
			fx, err := loadFixtures(cfg)
			if err != nil {
				return err
			}

			db := openBun(cfg.Postgres.URL)
			defer db.Close()
			if err := postgres.Seed(ctx, db, fx.Subjects, fx.Accounts, fx.Questions); err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			logger.Info("fixtures seeded", "subjects", len(fx.Subjects), "accounts", len(fx.Accounts), "questions", len(fx.Questions))
			return nil
		},
	}
}
