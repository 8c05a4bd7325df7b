package main

import (
	"fmt"

	"github.com/invoicing/backend/internal/infrastructure/migration"
	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:     "create <name> [description]",
	Short:   "Write a new up/down migration pair",
	Example: `  migrate --path ./migrations create add_credit_notes "Credit notes against finalized invoices"`,
	Args:    cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("path")
		if dir == "" {
			dir = defaultMigrationsDir
		}
		description := ""
		if len(args) == 2 {
			description = args[1]
		}
		mf, err := migration.CreateMigration(dir, args[0], description)
		if err != nil {
			return fmt.Errorf("create migration: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", mf.UpPath, mf.DownPath)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the available migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		source, err := migrationSource(cmd)
		if err != nil {
			return err
		}
		names, err := migration.ListMigrationsFS(source)
		if err != nil {
			return fmt.Errorf("list migrations: %w", err)
		}
		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify every migration has an up and a down file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		source, err := migrationSource(cmd)
		if err != nil {
			return err
		}
		if err := migration.CheckPairs(source); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "ok")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createCmd, listCmd, checkCmd)
}
