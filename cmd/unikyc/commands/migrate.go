package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"unikyc/internal/platform/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		pool, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		if pool == nil {
			return errors.New("postgres.url is not configured")
		}
		defer pool.Close()

		if err := postgres.Migrate(ctx, pool, log); err != nil {
			return err
		}
		log.InfoContext(ctx, "migrations complete")
		return nil
	},
}
