package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormPlatformFeeRepository implements invoicing.PlatformFeeRepository using GORM
type GormPlatformFeeRepository struct {
	db *gorm.DB
}

// NewGormPlatformFeeRepository creates a new GormPlatformFeeRepository
func NewGormPlatformFeeRepository(db *gorm.DB) *GormPlatformFeeRepository {
	return &GormPlatformFeeRepository{db: db}
}

// WithTx returns a new repository instance bound to the given transaction
func (r *GormPlatformFeeRepository) WithTx(tx *gorm.DB) *GormPlatformFeeRepository {
	return &GormPlatformFeeRepository{db: tx}
}

// FindByInvoice returns the fee rows of an invoice. The result is never nil.
func (r *GormPlatformFeeRepository) FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]invoicing.PlatformFee, error) {
	var rows []models.PlatformFeeModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_id = ?", tenantID, invoiceID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load platform fees: %w", err)
	}
	fees := make([]invoicing.PlatformFee, len(rows))
	for i := range rows {
		fees[i] = rows[i].ToDomain()
	}
	return fees, nil
}

// ReplaceForInvoice rewrites the fee rows of an invoice from its totals.
// No row is written when the invoice carries no platform fee.
func (r *GormPlatformFeeRepository) ReplaceForInvoice(ctx context.Context, invoice *invoicing.Invoice, at time.Time) error {
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_id = ?", invoice.TenantID, invoice.ID).
		Delete(&models.PlatformFeeModel{}).Error; err != nil {
		return fmt.Errorf("failed to delete platform fees: %w", err)
	}
	if !invoice.Config.PlatformFeeEnabled || !invoice.Summary.PlatformFee.IsPositive() {
		return nil
	}

	fee := invoicing.PlatformFee{
		ID:        uuid.New(),
		TenantID:  invoice.TenantID,
		InvoiceID: invoice.ID,
		Rate:      invoice.Config.PlatformFeeRate,
		Amount:    invoice.Summary.PlatformFee,
		Status:    invoicing.PlatformFeeStatusPending,
		CreatedAt: at,
	}
	if err := r.db.WithContext(ctx).Create(models.PlatformFeeModelFromDomain(&fee)).Error; err != nil {
		return fmt.Errorf("failed to create platform fee: %w", err)
	}
	return nil
}

var _ invoicing.PlatformFeeRepository = (*GormPlatformFeeRepository)(nil)
