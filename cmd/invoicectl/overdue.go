package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var sweepOverdueCmd = &cobra.Command{
	Use:   "sweep-overdue",
	Short: "Mark sent invoices past their due date as overdue",
	Long: `Run the overdue sweep once, outside the server's daily schedule.

Every sent invoice whose due date is before the given day becomes overdue.`,
	Example: `  # Sweep as of today
  invoicectl sweep-overdue

  # Sweep as of a past day
  invoicectl sweep-overdue --as-of 2025-06-30`,
	RunE: runSweepOverdue,
}

func init() {
	rootCmd.AddCommand(sweepOverdueCmd)

	sweepOverdueCmd.Flags().String("as-of", "", "Day to sweep as of (format: YYYY-MM-DD, default: today UTC)")
}

func runSweepOverdue(cmd *cobra.Command, _ []string) error {
	asOf, _ := cmd.Flags().GetString("as-of")

	now := time.Now().UTC()
	if asOf != "" {
		parsed, err := time.Parse(time.DateOnly, asOf)
		if err != nil {
			return fmt.Errorf("invalid as-of date. Use YYYY-MM-DD: %w", err)
		}
		now = parsed
	}

	app, err := newOperatorApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	marked, err := app.overdue.SweepOverdue(cmd.Context(), now)
	app.log.Info("Overdue sweep finished",
		zap.String("as_of", now.Format(time.DateOnly)),
		zap.Int("marked", marked),
		zap.Error(err),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "marked=%d\n", marked)
	if err != nil {
		return fmt.Errorf("sweep overdue: %w", err)
	}
	return nil
}
