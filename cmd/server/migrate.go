package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sakif/listings-portal/internal/repository/sqlite"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, _ []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}

		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return fmt.Errorf("creating database directory: %w", err)
		}

		// Opening the database runs pending migrations.
		db, err := sqlite.New(c.Context(), cfg.DBPath, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		version, err := db.Migrate(c.Context())
		if err != nil {
			return err
		}
		logger.Info("database is up to date",
			slog.String("database", cfg.DBPath),
			slog.Int64("version", version),
		)
		return nil
	},
}
