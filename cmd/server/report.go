package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sakif/listings-portal/internal/repository/sqlite"
	"github.com/sakif/listings-portal/internal/service"
)

var reportType string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Work with CSV listing reports",
}

var reportGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write an open or closed listings report",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, _ []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}

		db, err := sqlite.New(c.Context(), cfg.DBPath, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		// No metrics registry outside the server process.
		reports := service.NewReportService(db.Listings(), cfg.ReportsDir, nil, logger)
		rep, err := reports.Generate(c.Context(), reportType)
		if err != nil {
			return err
		}

		fmt.Fprintf(c.OutOrStdout(), "%s (%d listings)\n", rep.Path, rep.Count)
		return nil
	},
}

func init() {
	reportGenerateCmd.Flags().StringVar(&reportType, "type", "open", "report type: open or closed")
	reportCmd.AddCommand(reportGenerateCmd)
}
