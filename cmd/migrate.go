package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"example.com/backstage/services/identifier/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Creates or updates the sequence counter, batch and serial mapping
tables. Useful for CI/CD pipelines or initial setup.`,
	RunE: runMigration,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigration(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log.Info().Str("driver", cfg.DB.Driver).Msg("Connecting to database...")
	db, err := database.Connect(cfg.DB, nil)
	if err != nil {
		return err
	}
	defer database.Close(db)

	log.Info().Msg("Running database migrations...")
	if err := database.Migrate(db); err != nil {
		return err
	}

	log.Info().Msg("Database migrations completed successfully")
	return nil
}
