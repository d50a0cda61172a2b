package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"payment-service/internal/infrastructure/database"
)

func newMigrateCommand() *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:       "migrate [up|down|version]",
		Short:     "Apply or roll back database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()

			return database.RunMigrations(
				cfg.MigrationsPath,
				cfg.GetDBMigrationConnectionString(),
				database.MigrationAction(args[0]),
				steps,
				logger.With(zap.String("component", "Migrations")),
			)
		},
	}

	cmd.Flags().IntVar(&steps, "steps", 0, "number of versions to roll back (down only, 0 = all)")
	return cmd
}
