package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	invoicingapp "github.com/invoicing/backend/internal/application/invoicing"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/cache"
	"github.com/invoicing/backend/internal/infrastructure/config"
	"github.com/invoicing/backend/internal/infrastructure/event"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/invoicing/backend/internal/infrastructure/persistence"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "invoicectl",
	Short: "Operator commands for the invoicing backend",
	Long: `invoicectl runs maintenance jobs against the invoicing database.

It reads the same config.toml and INV_* environment variables as the server.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "Override the configured log level")
}

// operatorApp holds the services a command needs and the resources to release
type operatorApp struct {
	cfg      *config.Config
	log      *zap.Logger
	db       *persistence.Database
	redis    *redis.Client
	store    *persistence.GormUnitOfWork
	invoices *invoicingapp.InvoiceService
	backfill *invoicingapp.BackfillService
	overdue  *invoicingapp.OverdueSweepService
}

func newOperatorApp(cmd *cobra.Command) (*operatorApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	log = log.With(zap.String("command", cmd.Name()))

	db, err := persistence.Open(&cfg.Database,
		logger.NewSQLLogger(log, logger.SQLLogConfig{Level: cfg.Log.Level}))
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	a := &operatorApp{cfg: cfg, log: log, db: db}

	// Prefix changes must reach the cache the servers read
	if cfg.Redis.Enabled {
		a.redis, err = cache.NewRedisClient(cfg.Redis)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
	}

	publisher := event.NewOutboxPublisher(event.NewInvoicingSerializer())
	a.store = persistence.NewGormUnitOfWork(db.DB, publisher.RecorderFor)

	clock := shared.SystemClock{}
	formatter := invoicing.NewFormatter(invoicing.FormatterConfig{
		SerialWidth: cfg.Invoicing.SerialWidth,
		Separator:   cfg.Invoicing.Separator,
		Locale:      cfg.Invoicing.Locale,
	})
	builder := invoicing.NewSnapshotBuilder(formatter)

	finalizer := invoicingapp.NewFinalizationService(a.store, builder, clock, log)
	a.invoices = invoicingapp.NewInvoiceService(a.store, finalizer, invoicingapp.Options{
		DefaultPrefix:     cfg.Invoicing.DefaultPrefix,
		AllocationRetries: cfg.Invoicing.AllocationRetries,
		Formatter:         &formatter,
		Clock:             clock,
	}, log)
	a.invoices.SetPrefixCache(cache.NewPrefixCache(a.redis, cfg.Invoicing, log))
	a.backfill = invoicingapp.NewBackfillService(a.store, builder, clock, log)
	a.overdue = invoicingapp.NewOverdueSweepService(a.store, cfg.Scheduler.BatchSize, log)

	return a, nil
}

// Close releases the database and redis connections
func (a *operatorApp) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("Error closing Redis client", zap.Error(err))
		}
	}
	if err := a.db.Close(); err != nil {
		a.log.Warn("Error closing database", zap.Error(err))
	}
	logger.Sync(a.log)
}
