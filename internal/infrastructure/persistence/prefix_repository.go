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

// GormPrefixRepository persists the prefix history of each company
type GormPrefixRepository struct {
	db *gorm.DB
}

// NewGormPrefixRepository creates a new GormPrefixRepository
func NewGormPrefixRepository(db *gorm.DB) *GormPrefixRepository {
	return &GormPrefixRepository{db: db}
}

// WithTx returns a new repository instance bound to the given transaction
func (r *GormPrefixRepository) WithTx(tx *gorm.DB) *GormPrefixRepository {
	return &GormPrefixRepository{db: tx}
}

// FindActive returns the most recent prefix without an end date
func (r *GormPrefixRepository) FindActive(ctx context.Context, tenantID, companyID uuid.UUID) (*invoicing.InvoicePrefix, error) {
	var model models.InvoicePrefixModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND company_id = ? AND ended_at IS NULL", tenantID, companyID).
		Order("started_at DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load active prefix: %w", err)
	}
	return model.ToDomain(), nil
}

// ListByCompany returns the full history, newest first
func (r *GormPrefixRepository) ListByCompany(ctx context.Context, tenantID, companyID uuid.UUID) ([]invoicing.InvoicePrefix, error) {
	var rows []models.InvoicePrefixModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND company_id = ?", tenantID, companyID).
		Order("started_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list prefixes: %w", err)
	}
	prefixes := make([]invoicing.InvoicePrefix, len(rows))
	for i := range rows {
		prefixes[i] = *rows[i].ToDomain()
	}
	return prefixes, nil
}

// Create appends a prefix row
func (r *GormPrefixRepository) Create(ctx context.Context, prefix *invoicing.InvoicePrefix) error {
	if err := r.db.WithContext(ctx).Create(models.InvoicePrefixModelFromDomain(prefix)).Error; err != nil {
		return fmt.Errorf("failed to create prefix: %w", err)
	}
	return nil
}

// End stores the end date of a still-active prefix. A prefix that was ended
// in the meantime fails with ConcurrencyConflict.
func (r *GormPrefixRepository) End(ctx context.Context, prefix *invoicing.InvoicePrefix) error {
	if prefix.EndedAt == nil {
		return shared.NewDomainError(shared.CodeInvalidInput, "Prefix has no end date")
	}
	result := r.db.WithContext(ctx).
		Model(&models.InvoicePrefixModel{}).
		Where("tenant_id = ? AND id = ? AND ended_at IS NULL", prefix.TenantID, prefix.ID).
		Update("ended_at", *prefix.EndedAt)
	if result.Error != nil {
		return fmt.Errorf("failed to end prefix: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError(shared.CodeConcurrencyConflict, "Prefix was changed concurrently")
	}
	return nil
}

var _ invoicing.PrefixRepository = (*GormPrefixRepository)(nil)
