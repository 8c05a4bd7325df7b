package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultSlowQuery    = 200 * time.Millisecond
	defaultPoolInterval = 15 * time.Second
)

// DBTracingConfig controls statement spans
type DBTracingConfig struct {
	Enabled bool
	// LogFullSQL keeps bound values in db.statement. Never set in production.
	LogFullSQL      bool
	SlowQueryThresh time.Duration
	DBName          string
	TracerProvider  trace.TracerProvider
}

// TraceDB installs otelgorm on db and flags statements slower than the
// threshold on their spans.
func TraceDB(db *gorm.DB, cfg DBTracingConfig, log *zap.Logger) error {
	if !cfg.Enabled {
		log.Debug("Database tracing disabled")
		return nil
	}
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = defaultSlowQuery
	}

	opts := []otelgorm.Option{otelgorm.WithoutMetrics()}
	if cfg.DBName != "" {
		opts = append(opts, otelgorm.WithDBName(cfg.DBName))
	}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if cfg.TracerProvider != nil {
		opts = append(opts, otelgorm.WithTracerProvider(cfg.TracerProvider))
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	threshold := cfg.SlowQueryThresh
	flagSlow := func(tx *gorm.DB) {
		span := trace.SpanFromContext(tx.Statement.Context)
		elapsed, ok := statementElapsed(tx)
		if !ok || !span.IsRecording() || elapsed <= threshold {
			return
		}
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
	}
	if err := registerAroundOperations(db, "invoicing_slow_query", markStatementStart,
		func(string) func(*gorm.DB) { return flagSlow }, true); err != nil {
		return err
	}

	log.Info("Database tracing enabled",
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", threshold),
	)
	return nil
}

type statementStartKey struct{}

func markStatementStart(tx *gorm.DB) {
	ctx := tx.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	tx.Statement.Context = context.WithValue(ctx, statementStartKey{}, time.Now())
}

func statementElapsed(tx *gorm.DB) (time.Duration, bool) {
	if tx.Statement.Context == nil {
		return 0, false
	}
	start, ok := tx.Statement.Context.Value(statementStartKey{}).(time.Time)
	if !ok {
		return 0, false
	}
	return time.Since(start), true
}

// DBMetricsConfig controls statement and pool metrics
type DBMetricsConfig struct {
	Enabled            bool
	SlowQueryThreshold time.Duration
	PoolStatsInterval  time.Duration
}

func DefaultDBMetricsConfig() DBMetricsConfig {
	return DBMetricsConfig{
		Enabled:            true,
		SlowQueryThreshold: defaultSlowQuery,
		PoolStatsInterval:  defaultPoolInterval,
	}
}

// DBMetrics counts statements and samples the connection pool. It is also
// the gorm plugin that feeds the statement instruments.
type DBMetrics struct {
	cfg DBMetricsConfig
	log *zap.Logger

	statements *Counter
	failures   *Counter
	slow       *Counter
	latency    *Histogram

	poolConns *Gauge
	poolMax   *Gauge
	poolWaits *Gauge

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewDBMetrics registers the database instruments on meter
func NewDBMetrics(meter metric.Meter, cfg DBMetricsConfig, log *zap.Logger) (*DBMetrics, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.SlowQueryThreshold <= 0 {
		cfg.SlowQueryThreshold = defaultSlowQuery
	}
	if cfg.PoolStatsInterval <= 0 {
		cfg.PoolStatsInterval = defaultPoolInterval
	}

	m := &DBMetrics{cfg: cfg, log: log}
	var err error
	if m.statements, err = NewCounter(meter, "db_query_total", "Database statements by operation", "{query}"); err != nil {
		return nil, err
	}
	if m.failures, err = NewCounter(meter, "db_query_errors_total", "Database statements that failed", "{query}"); err != nil {
		return nil, err
	}
	if m.slow, err = NewCounter(meter, "db_slow_query_total", "Database statements over the slow threshold", "{query}"); err != nil {
		return nil, err
	}
	if m.latency, err = NewSecondsHistogram(meter, "db_query_duration_seconds",
		"Database statement latency", DBDurationBuckets); err != nil {
		return nil, err
	}
	if m.poolConns, err = NewGauge(meter, "db_pool_connections", "Pool connections by state", "{connection}"); err != nil {
		return nil, err
	}
	if m.poolMax, err = NewGauge(meter, "db_pool_connections_max", "Pool connection limit", "{connection}"); err != nil {
		return nil, err
	}
	if m.poolWaits, err = NewGauge(meter, "db_pool_wait_count", "Connections waited for since start", "{connection}"); err != nil {
		return nil, err
	}
	return m, nil
}

// Name implements gorm.Plugin
func (m *DBMetrics) Name() string { return "invoicing_db_metrics" }

// Initialize implements gorm.Plugin
func (m *DBMetrics) Initialize(db *gorm.DB) error {
	return registerAroundOperations(db, "invoicing_db_metrics", markStatementStart, func(operation string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			op := operation
			if op == "" {
				op = statementOperation(tx.Statement.SQL.String())
			}
			ctx := tx.Statement.Context
			if ctx == nil {
				ctx = context.Background()
			}
			elapsed, _ := statementElapsed(tx)
			m.RecordQuery(ctx, op, tx.Statement.Table, elapsed, tx.Error)
		}
	}, false)
}

// RecordQuery records one statement. Record-not-found is not a failure.
func (m *DBMetrics) RecordQuery(ctx context.Context, operation, table string, elapsed time.Duration, err error) {
	if operation == "" {
		operation = "OTHER"
	}
	if table == "" {
		table = "unknown"
	}
	op := AttrDBOperation.String(strings.ToUpper(operation))
	m.statements.Inc(ctx, op)
	m.latency.RecordDuration(ctx, elapsed, op)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		m.failures.Inc(ctx, op, AttrDBTable.String(table))
	}
	if elapsed > m.cfg.SlowQueryThreshold {
		m.slow.Inc(ctx, AttrDBTable.String(table))
	}
}

// SamplePool records the current statistics of pool
func (m *DBMetrics) SamplePool(ctx context.Context, pool *sql.DB) {
	stats := pool.Stats()
	m.poolMax.Record(ctx, int64(stats.MaxOpenConnections))
	m.poolConns.Record(ctx, int64(stats.Idle), AttrDBState.String("idle"))
	m.poolConns.Record(ctx, int64(stats.InUse), AttrDBState.String("in_use"))
	m.poolConns.Record(ctx, int64(stats.OpenConnections), AttrDBState.String("open"))
	m.poolWaits.Record(ctx, stats.WaitCount)
}

// WatchPool samples pool on the configured interval until Stop or ctx ends.
// Only the first call starts a sampler.
func (m *DBMetrics) WatchPool(ctx context.Context, pool *sql.DB) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done != nil {
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.cfg.PoolStatsInterval)
		defer ticker.Stop()
		for {
			m.SamplePool(ctx, pool)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	m.log.Info("Watching database pool", zap.Duration("interval", m.cfg.PoolStatsInterval))
}

// Stop ends the pool sampler and waits for it. Safe to call more than once.
func (m *DBMetrics) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func statementOperation(sql string) string {
	sql = strings.ToUpper(strings.TrimSpace(sql))
	for _, op := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if strings.HasPrefix(sql, op) {
			return op
		}
	}
	return "OTHER"
}

// RegisterDBMetrics installs DBMetrics on db and starts watching its pool.
// It returns nil when metric export is off. Call Stop on shutdown.
func RegisterDBMetrics(ctx context.Context, db *gorm.DB, pipelines *Pipelines, cfg DBMetricsConfig, log *zap.Logger) (*DBMetrics, error) {
	if !cfg.Enabled || !pipelines.MetricsEnabled() {
		log.Debug("Database metrics off")
		return nil, nil
	}

	m, err := NewDBMetrics(pipelines.Meter("db.client"), cfg, log)
	if err != nil {
		return nil, err
	}
	pool, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := db.Use(m); err != nil {
		return nil, err
	}
	m.WatchPool(ctx, pool)
	return m, nil
}
