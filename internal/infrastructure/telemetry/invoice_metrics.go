package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// InvoiceMetrics records invoicing activity: finalizations, number allocation,
// status transitions and the health of the event outbox.
// A nil *InvoiceMetrics is valid and records nothing.
type InvoiceMetrics struct {
	logger *zap.Logger

	finalizedTotal      *Counter
	finalizedAmount     *Counter
	numbersAllocated    *Counter
	allocationConflicts *Counter
	transitionsTotal    *Counter
	snapshotsArchived   *Counter
	finalizeDuration    *Histogram

	outboxEntries *Gauge

	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	outboxProvider OutboxStatsProvider
}

// OutboxStatsProvider reports outbox entries per status
type OutboxStatsProvider interface {
	CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error)
}

// InvoiceMetricsConfig holds configuration for invoice metrics.
type InvoiceMetricsConfig struct {
	Meter          metric.Meter
	Logger         *zap.Logger
	OutboxProvider OutboxStatsProvider
}

// NewInvoiceMetrics creates the invoicing instruments on the given meter.
func NewInvoiceMetrics(cfg InvoiceMetricsConfig) (*InvoiceMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &InvoiceMetrics{
		logger:         logger,
		stopChan:       make(chan struct{}),
		outboxProvider: cfg.OutboxProvider,
	}

	counters := []struct {
		target     **Counter
		name, desc string
		unit       string
	}{
		{&m.finalizedTotal, "invoice_finalized_total", "Total number of invoices finalized", "{invoices}"},
		{&m.finalizedAmount, "invoice_finalized_amount_total", "Grand total of finalized invoices in minor currency units", "{minor_units}"},
		{&m.numbersAllocated, "invoice_number_allocated_total", "Total number of invoice numbers allocated", "{numbers}"},
		{&m.allocationConflicts, "invoice_number_conflict_total", "Number allocations that lost a race and were retried", "{conflicts}"},
		{&m.transitionsTotal, "invoice_status_transition_total", "Invoice status transitions", "{transitions}"},
		{&m.snapshotsArchived, "invoice_snapshot_archived_total", "Snapshot archive uploads by outcome", "{snapshots}"},
	}
	for _, c := range counters {
		counter, err := NewCounter(cfg.Meter, c.name, c.desc, c.unit)
		if err != nil {
			return nil, err
		}
		*c.target = counter
	}

	var err error
	m.finalizeDuration, err = NewSecondsHistogram(cfg.Meter, "invoice_finalize_duration_seconds",
		"Latency of the finalization transaction", FinalizeDurationBuckets)
	if err != nil {
		return nil, err
	}

	m.outboxEntries, err = NewGauge(cfg.Meter, "invoice_outbox_entries", "Outbox entries by status", "{entries}")
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordFinalized counts a finalized invoice and adds its grand total.
func (m *InvoiceMetrics) RecordFinalized(ctx context.Context, tenantID uuid.UUID, currency string, grandTotal decimal.Decimal) {
	if m == nil {
		return
	}
	m.finalizedTotal.Inc(ctx, AttrTenantID.String(tenantID.String()))
	m.finalizedAmount.Add(ctx, grandTotal.Shift(2).Round(0).IntPart(),
		AttrTenantID.String(tenantID.String()),
		AttrCurrency.String(currency),
	)
}

// RecordNumberAllocated counts an allocated invoice number.
func (m *InvoiceMetrics) RecordNumberAllocated(ctx context.Context, tenantID uuid.UUID, mode string) {
	if m == nil {
		return
	}
	m.numbersAllocated.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrNumberingMode.String(mode),
	)
}

// RecordAllocationConflict counts a lost numbering race.
func (m *InvoiceMetrics) RecordAllocationConflict(ctx context.Context, tenantID uuid.UUID) {
	if m == nil {
		return
	}
	m.allocationConflicts.Inc(ctx, AttrTenantID.String(tenantID.String()))
}

// RecordTransition counts a status change.
func (m *InvoiceMetrics) RecordTransition(ctx context.Context, tenantID uuid.UUID, from, to string) {
	if m == nil {
		return
	}
	m.transitionsTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrFromStatus.String(from),
		AttrToStatus.String(to),
	)
}

// RecordFinalizeDuration records how long a finalization took. outcome is "ok" or an error code.
func (m *InvoiceMetrics) RecordFinalizeDuration(ctx context.Context, d time.Duration, outcome string) {
	if m == nil {
		return
	}
	m.finalizeDuration.RecordDuration(ctx, d, AttrOutcome.String(outcome))
}

// RecordSnapshotArchived counts an archive upload attempt.
func (m *InvoiceMetrics) RecordSnapshotArchived(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.snapshotsArchived.Inc(ctx, AttrOutcome.String(outcome))
}

// StartPeriodicCollection samples outbox gauges every interval (default 1 minute)
// until Stop is called or ctx ends. It does not block.
func (m *InvoiceMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	if m == nil {
		return
	}
	m.collectOnce.Do(func() {
		if interval <= 0 {
			interval = time.Minute
		}
		go m.runPeriodicCollection(ctx, interval)
	})
}

func (m *InvoiceMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.CollectOutboxMetrics(ctx)

	for {
		select {
		case <-m.stopChan:
			m.logger.Info("Stopping periodic invoice metrics collection")
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CollectOutboxMetrics(ctx)
		}
	}
}

// CollectOutboxMetrics records the current outbox entry count per status.
func (m *InvoiceMetrics) CollectOutboxMetrics(ctx context.Context) {
	if m == nil || m.outboxProvider == nil {
		return
	}
	counts, err := m.outboxProvider.CountByStatus(ctx)
	if err != nil {
		m.logger.Warn("Failed to count outbox entries", zap.Error(err))
		return
	}
	for _, status := range shared.OutboxStatuses {
		m.outboxEntries.Record(ctx, counts[status], AttrStatus.String(string(status)))
	}
}

// Stop stops the periodic collection.
func (m *InvoiceMetrics) Stop() {
	if m == nil {
		return
	}
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewInvoiceMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
