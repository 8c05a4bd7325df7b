package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// ErrSnapshotNotFound is returned when an invoice has no snapshot
var ErrSnapshotNotFound = shared.NewDomainError(shared.CodeNotFound, "Invoice snapshot not found")

// GormSnapshotRepository is the append-only snapshot store. It only inserts and reads.
type GormSnapshotRepository struct {
	db *gorm.DB
}

// NewGormSnapshotRepository creates a new GormSnapshotRepository
func NewGormSnapshotRepository(db *gorm.DB) *GormSnapshotRepository {
	return &GormSnapshotRepository{db: db}
}

// WithTx returns a new repository instance bound to the given transaction
func (r *GormSnapshotRepository) WithTx(tx *gorm.DB) *GormSnapshotRepository {
	return &GormSnapshotRepository{db: tx}
}

// Create inserts a snapshot. The unique index on invoice_id turns a second
// snapshot for the same invoice into AlreadyFinalized.
func (r *GormSnapshotRepository) Create(ctx context.Context, snapshot *invoicing.Snapshot) error {
	model, err := models.InvoiceSnapshotModelFromDomain(snapshot)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isDuplicateKey(err) {
			return shared.NewDomainError(shared.CodeAlreadyFinalized,
				fmt.Sprintf("Invoice %s already has a snapshot", snapshot.InvoiceID))
		}
		return fmt.Errorf("failed to create invoice snapshot: %w", err)
	}
	return nil
}

// FindByInvoiceID returns the snapshot of an invoice
func (r *GormSnapshotRepository) FindByInvoiceID(ctx context.Context, tenantID, invoiceID uuid.UUID) (*invoicing.Snapshot, error) {
	var model models.InvoiceSnapshotModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_id = ?", tenantID, invoiceID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to load invoice snapshot: %w", err)
	}
	return model.ToDomain()
}

// ExistsForInvoice reports whether the invoice already has a snapshot
func (r *GormSnapshotRepository) ExistsForInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.InvoiceSnapshotModel{}).
		Where("tenant_id = ? AND invoice_id = ?", tenantID, invoiceID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check invoice snapshot: %w", err)
	}
	return count > 0, nil
}

var _ invoicing.SnapshotRepository = (*GormSnapshotRepository)(nil)
