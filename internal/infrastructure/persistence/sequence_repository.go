package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSequenceRepository advances the invoice counters stored on companies and clients.
// Each call increments in place and reads back inside one transaction, so two
// callers can never observe the same value.
type GormSequenceRepository struct {
	db *gorm.DB
}

// NewGormSequenceRepository creates a new GormSequenceRepository
func NewGormSequenceRepository(db *gorm.DB) *GormSequenceRepository {
	return &GormSequenceRepository{db: db}
}

// WithTx returns a new repository instance bound to the given transaction
func (r *GormSequenceRepository) WithTx(tx *gorm.DB) *GormSequenceRepository {
	return &GormSequenceRepository{db: tx}
}

// NextCompanySerial increments the company counter and returns the serial it stood at
func (r *GormSequenceRepository) NextCompanySerial(ctx context.Context, tenantID, companyID uuid.UUID) (int64, error) {
	return r.next(ctx, &models.CompanyModel{}, tenantID, companyID)
}

// NextClientSerial increments the client counter and returns the serial it stood at
func (r *GormSequenceRepository) NextClientSerial(ctx context.Context, tenantID, clientID uuid.UUID) (int64, error) {
	return r.next(ctx, &models.ClientModel{}, tenantID, clientID)
}

func (r *GormSequenceRepository) next(ctx context.Context, model any, tenantID, id uuid.UUID) (int64, error) {
	var next int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(model).
			Where("tenant_id = ? AND id = ?", tenantID, id).
			UpdateColumn("next_invoice_sequence", gorm.Expr("next_invoice_sequence + 1"))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return tx.Model(model).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("tenant_id = ? AND id = ?", tenantID, id).
			Select("next_invoice_sequence").
			Scan(&next).Error
	})
	if err != nil {
		if shared.IsCode(err, shared.CodeNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to advance invoice sequence: %w", err)
	}
	return next - 1, nil
}

var _ invoicing.SequenceRepository = (*GormSequenceRepository)(nil)
