// Package main is the entry point for the listings portal backend.
//
// MAIN PACKAGE IN GO:
// The main package should be kept minimal. Its job is to:
// 1. Read configuration (.env file, environment)
// 2. Create shared dependencies (logger)
// 3. Hand off to the right command
//
// All actual logic lives in internal/ packages.
//
// COMMANDS (spf13/cobra):
//
//	server [serve]                 start the HTTP API (default)
//	server migrate                 apply database migrations and exit
//	server report generate --type  write an open/closed CSV report and exit
//
// Every command accepts --env-file (default ".env"). Variables already in
// the environment win over the file.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sakif/listings-portal/internal/config"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:          "server",
	Short:        "Real-estate listings portal backend",
	SilenceUsage: true,
	// With no subcommand, behave like `serve`.
	RunE: func(c *cobra.Command, args []string) error {
		return serveCmd.RunE(c, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "path to a .env file (ignored if missing)")
	rootCmd.AddCommand(serveCmd, migrateCmd, reportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads and validates config and builds the logger every command uses.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}

	// Log levels (least to most severe): Debug → Info → Warn → Error.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}
