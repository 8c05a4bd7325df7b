package main

import (
	"fmt"

	"github.com/google/uuid"
	invoicingapp "github.com/invoicing/backend/internal/application/invoicing"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var changePrefixCmd = &cobra.Command{
	Use:   "change-prefix <prefix>",
	Short: "Start a new invoice number prefix for a company",
	Long: `Close the company's active prefix and open a new one.

Serials keep counting from where they were; only numbers allocated after
the change carry the new prefix.`,
	Example: `  invoicectl change-prefix BILL --tenant-id 6f1c... --company-id 0b9e...`,
	Args:    cobra.ExactArgs(1),
	RunE:    runChangePrefix,
}

func init() {
	rootCmd.AddCommand(changePrefixCmd)

	changePrefixCmd.Flags().String("tenant-id", "", "Tenant that owns the company")
	changePrefixCmd.Flags().String("company-id", "", "Company whose prefix changes")
	_ = changePrefixCmd.MarkFlagRequired("tenant-id")
	_ = changePrefixCmd.MarkFlagRequired("company-id")
}

func runChangePrefix(cmd *cobra.Command, args []string) error {
	tenantFlag, _ := cmd.Flags().GetString("tenant-id")
	companyFlag, _ := cmd.Flags().GetString("company-id")

	tenantID, err := uuid.Parse(tenantFlag)
	if err != nil {
		return fmt.Errorf("invalid tenant id: %w", err)
	}
	companyID, err := uuid.Parse(companyFlag)
	if err != nil {
		return fmt.Errorf("invalid company id: %w", err)
	}

	app, err := newOperatorApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	prefix, err := app.invoices.ChangePrefix(cmd.Context(), tenantID, companyID, invoicingapp.ChangePrefixRequest{Prefix: args[0]})
	if err != nil {
		return fmt.Errorf("change prefix: %w", err)
	}

	app.log.Info("Prefix changed",
		zap.String("company_id", companyID.String()),
		zap.String("prefix", prefix.Prefix),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "company=%s prefix=%s started_at=%s\n",
		companyID, prefix.Prefix, prefix.StartedAt.Format("2006-01-02T15:04:05Z07:00"))
	return nil
}
