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

// Columns that Save never overwrites on an existing row. The counters belong to the sequence repository.
var (
	companyImmutableColumns  = []string{"id", "tenant_id", "created_at", "next_invoice_sequence"}
	clientImmutableColumns   = []string{"id", "tenant_id", "company_id", "created_at", "next_invoice_sequence"}
	templateImmutableColumns = []string{"id", "tenant_id", "created_at"}
)

// GormCompanyRepository implements invoicing.CompanyRepository using GORM
type GormCompanyRepository struct {
	db *gorm.DB
}

// NewGormCompanyRepository creates a new GormCompanyRepository
func NewGormCompanyRepository(db *gorm.DB) *GormCompanyRepository {
	return &GormCompanyRepository{db: db}
}

// WithTx returns a new repository instance bound to the given transaction
func (r *GormCompanyRepository) WithTx(tx *gorm.DB) *GormCompanyRepository {
	return &GormCompanyRepository{db: tx}
}

// FindByIDForTenant finds a company by ID within a tenant
func (r *GormCompanyRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.Company, error) {
	var model models.CompanyModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewDomainError(shared.CodeNotFound, "Company not found")
		}
		return nil, fmt.Errorf("failed to load company: %w", err)
	}
	return model.ToDomain(), nil
}

// Save inserts or updates a company. The invoice counter of an existing row is left alone.
func (r *GormCompanyRepository) Save(ctx context.Context, company *invoicing.Company) error {
	return upsert(ctx, r.db, models.CompanyModelFromDomain(company), company.TenantID, company.ID, companyImmutableColumns)
}

// GormClientRepository implements invoicing.ClientRepository using GORM
type GormClientRepository struct {
	db *gorm.DB
}

// NewGormClientRepository creates a new GormClientRepository
func NewGormClientRepository(db *gorm.DB) *GormClientRepository {
	return &GormClientRepository{db: db}
}

// WithTx returns a new repository instance bound to the given transaction
func (r *GormClientRepository) WithTx(tx *gorm.DB) *GormClientRepository {
	return &GormClientRepository{db: tx}
}

// FindByIDForTenant finds a client by ID within a tenant
func (r *GormClientRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.Client, error) {
	var model models.ClientModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewDomainError(shared.CodeNotFound, "Client not found")
		}
		return nil, fmt.Errorf("failed to load client: %w", err)
	}
	return model.ToDomain(), nil
}

// Save inserts or updates a client. The invoice counter of an existing row is left alone.
func (r *GormClientRepository) Save(ctx context.Context, client *invoicing.Client) error {
	return upsert(ctx, r.db, models.ClientModelFromDomain(client), client.TenantID, client.ID, clientImmutableColumns)
}

// GormTemplateRepository implements invoicing.TemplateRepository using GORM
type GormTemplateRepository struct {
	db *gorm.DB
}

// NewGormTemplateRepository creates a new GormTemplateRepository
func NewGormTemplateRepository(db *gorm.DB) *GormTemplateRepository {
	return &GormTemplateRepository{db: db}
}

// WithTx returns a new repository instance bound to the given transaction
func (r *GormTemplateRepository) WithTx(tx *gorm.DB) *GormTemplateRepository {
	return &GormTemplateRepository{db: tx}
}

// FindByIDForTenant finds a template by ID within a tenant
func (r *GormTemplateRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.Template, error) {
	var model models.TemplateModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewDomainError(shared.CodeNotFound, "Template not found")
		}
		return nil, fmt.Errorf("failed to load template: %w", err)
	}
	return model.ToDomain(), nil
}

// Save inserts or updates a template
func (r *GormTemplateRepository) Save(ctx context.Context, template *invoicing.Template) error {
	return upsert(ctx, r.db, models.TemplateModelFromDomain(template), template.TenantID, template.ID, templateImmutableColumns)
}

// upsert updates the row identified by tenant and id, or inserts model when no row matched
func upsert(ctx context.Context, db *gorm.DB, model any, tenantID, id uuid.UUID, omit []string) error {
	result := db.WithContext(ctx).
		Model(model).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Select("*").
		Omit(omit...).
		Updates(model)
	if result.Error != nil {
		return fmt.Errorf("failed to update record: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}
	if err := db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create record: %w", err)
	}
	return nil
}

var (
	_ invoicing.CompanyRepository  = (*GormCompanyRepository)(nil)
	_ invoicing.ClientRepository   = (*GormClientRepository)(nil)
	_ invoicing.TemplateRepository = (*GormTemplateRepository)(nil)
)
