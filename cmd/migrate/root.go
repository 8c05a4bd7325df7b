package main

import (
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/invoicing/backend/internal/infrastructure/config"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/invoicing/backend/internal/infrastructure/migration"
	"github.com/invoicing/backend/migrations"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultMigrationsDir = "migrations"

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the invoicing database schema",
	Long: `migrate applies the schema migrations compiled into the binary.

Database settings come from config.toml and the INV_DATABASE_* variables.
Pass --path to work on a migrations directory instead of the embedded set.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("path", "", "Migrations directory (default: embedded set)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
}

func newLogger(cmd *cobra.Command) (*zap.Logger, error) {
	level, _ := cmd.Flags().GetString("log-level")
	return logger.New(&logger.Config{Level: level, Format: "console", Output: "stdout"})
}

// migrationSource returns the embedded migrations unless --path names a directory
func migrationSource(cmd *cobra.Command) (fs.FS, error) {
	dir, _ := cmd.Flags().GetString("path")
	if dir == "" {
		return migrations.FS, nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve migrations path: %w", err)
	}
	return os.DirFS(abs), nil
}

// withMigrator connects to the configured database and hands fn a migrator
// over the selected source.
func withMigrator(cmd *cobra.Command, fn func(*migration.Migrator, *zap.Logger) error) error {
	log, err := newLogger(cmd)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer logger.Sync(log)

	source, err := migrationSource(cmd)
	if err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.PingContext(cmd.Context()); err != nil {
		return fmt.Errorf("ping database %s: %w", cfg.Database.DBName, err)
	}

	m, err := migration.NewFromFS(db, source, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warn("Error closing migrator", zap.Error(err))
		}
	}()
	return fn(m, log)
}
