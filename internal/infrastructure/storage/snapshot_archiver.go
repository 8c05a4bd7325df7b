package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// DefaultSnapshotKeyPrefix is used when no key prefix is configured
const DefaultSnapshotKeyPrefix = "snapshots"

const snapshotContentType = "application/json"

// Archive outcomes reported to metrics
const (
	ArchiveOutcomeStored  = "stored"
	ArchiveOutcomeSkipped = "skipped"
	ArchiveOutcomeFailed  = "failed"
)

var _ shared.EventHandler = (*SnapshotArchiver)(nil)

// SnapshotArchiver copies the snapshot of every finalized invoice to object
// storage. Objects are written once; redelivered events leave them untouched.
type SnapshotArchiver struct {
	snapshots invoicing.SnapshotRepository
	storage   ObjectStorage
	keyPrefix string
	metrics   *telemetry.InvoiceMetrics
	logger    *zap.Logger
}

// NewSnapshotArchiver creates a SnapshotArchiver. metrics may be nil.
func NewSnapshotArchiver(
	snapshots invoicing.SnapshotRepository,
	storage ObjectStorage,
	keyPrefix string,
	metrics *telemetry.InvoiceMetrics,
	logger *zap.Logger,
) *SnapshotArchiver {
	if keyPrefix == "" {
		keyPrefix = DefaultSnapshotKeyPrefix
	}
	return &SnapshotArchiver{
		snapshots: snapshots,
		storage:   storage,
		keyPrefix: keyPrefix,
		metrics:   metrics,
		logger:    logger.Named("snapshot_archiver"),
	}
}

// EventTypes implements shared.EventHandler
func (a *SnapshotArchiver) EventTypes() []string {
	return []string{invoicing.EventTypeInvoiceFinalized}
}

// Handle implements shared.EventHandler
func (a *SnapshotArchiver) Handle(ctx context.Context, event shared.DomainEvent) error {
	finalized, ok := event.(*invoicing.InvoiceFinalizedEvent)
	if !ok {
		return fmt.Errorf("snapshot archiver: unexpected event %T", event)
	}

	key := a.Key(finalized.TenantID(), finalized.AggregateID())
	stored, err := a.archive(ctx, finalized, key)
	if err != nil {
		a.metrics.RecordSnapshotArchived(ctx, ArchiveOutcomeFailed)
		a.logger.Error("Failed to archive invoice snapshot",
			zap.String("invoice_id", finalized.AggregateID().String()),
			zap.String("key", key),
			zap.Error(err),
		)
		return err
	}

	outcome := ArchiveOutcomeSkipped
	if stored {
		outcome = ArchiveOutcomeStored
	}
	a.metrics.RecordSnapshotArchived(ctx, outcome)
	a.logger.Debug("Invoice snapshot archived",
		zap.String("invoice_id", finalized.AggregateID().String()),
		zap.String("invoice_number", finalized.InvoiceNumber),
		zap.String("key", key),
		zap.String("outcome", outcome),
	)
	return nil
}

func (a *SnapshotArchiver) archive(ctx context.Context, event *invoicing.InvoiceFinalizedEvent, key string) (bool, error) {
	exists, err := a.storage.ObjectExists(ctx, key)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	snapshot, err := a.snapshots.FindByInvoiceID(ctx, event.TenantID(), event.AggregateID())
	if err != nil {
		return false, fmt.Errorf("failed to load snapshot: %w", err)
	}
	data, err := json.Marshal(snapshot.Payload)
	if err != nil {
		return false, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return a.storage.PutIfAbsent(ctx, key, data, snapshotContentType)
}

// Key returns the object key of an invoice's archived snapshot
func (a *SnapshotArchiver) Key(tenantID, invoiceID uuid.UUID) string {
	return path.Join(a.keyPrefix, tenantID.String(), invoiceID.String()+".json")
}
