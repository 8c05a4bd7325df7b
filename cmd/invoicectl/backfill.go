package main

import (
	"fmt"

	"github.com/google/uuid"
	invoicingapp "github.com/invoicing/backend/internal/application/invoicing"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill-snapshots",
	Short: "Create legacy snapshots for finalized invoices that have none",
	Long: `Snapshot invoices that were finalized before snapshots existed.

Stored totals are copied as they are and the snapshot is marked legacy.
Invoices missing compliance fields are reported and left without a snapshot.`,
	Example: `  # One batch across every tenant
  invoicectl backfill-snapshots

  # Keep going until nothing is left for one tenant
  invoicectl backfill-snapshots --tenant-id 6f1c... --all`,
	RunE: runBackfill,
}

func init() {
	rootCmd.AddCommand(backfillCmd)

	backfillCmd.Flags().String("tenant-id", "", "Only backfill this tenant (default: all tenants)")
	backfillCmd.Flags().String("actor-id", "", "Recorded as taken_by on created snapshots (default: system)")
	backfillCmd.Flags().Int("batch-size", invoicingapp.DefaultBackfillBatchSize, "Invoices examined per batch")
	backfillCmd.Flags().Bool("all", false, "Repeat batches until no snapshot is created")
}

func runBackfill(cmd *cobra.Command, _ []string) error {
	tenantFlag, _ := cmd.Flags().GetString("tenant-id")
	actorFlag, _ := cmd.Flags().GetString("actor-id")
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	all, _ := cmd.Flags().GetBool("all")

	if batchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}

	var tenantID *uuid.UUID
	if tenantFlag != "" {
		id, err := uuid.Parse(tenantFlag)
		if err != nil {
			return fmt.Errorf("invalid tenant id: %w", err)
		}
		tenantID = &id
	}
	actorID := uuid.Nil
	if actorFlag != "" {
		id, err := uuid.Parse(actorFlag)
		if err != nil {
			return fmt.Errorf("invalid actor id: %w", err)
		}
		actorID = id
	}

	app, err := newOperatorApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	total := invoicingapp.BackfillResult{}
	for {
		result, err := app.backfill.BackfillLegacySnapshots(cmd.Context(), tenantID, actorID, batchSize)
		if err != nil {
			return fmt.Errorf("backfill snapshots: %w", err)
		}
		total.Scanned += result.Scanned
		total.Created += result.Created
		total.Skipped += result.Skipped
		total.Failed += result.Failed

		// invoices that failed stay candidates, so stop once a batch makes no progress
		if !all || result.Created == 0 {
			break
		}
	}

	app.log.Info("Backfill finished",
		zap.Int("scanned", total.Scanned),
		zap.Int("created", total.Created),
		zap.Int("skipped", total.Skipped),
		zap.Int("failed", total.Failed),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d created=%d skipped=%d failed=%d\n",
		total.Scanned, total.Created, total.Skipped, total.Failed)

	if total.Failed > 0 {
		return fmt.Errorf("%d invoices could not be snapshotted", total.Failed)
	}
	return nil
}
