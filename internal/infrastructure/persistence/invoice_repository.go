package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormInvoiceRepository implements invoicing.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// WithTx returns a new repository instance bound to the given transaction
func (r *GormInvoiceRepository) WithTx(tx *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: tx}
}

// FindByIDForTenant loads an invoice with its items
func (r *GormInvoiceRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.Invoice, error) {
	return r.find(ctx, r.db.WithContext(ctx), tenantID, id)
}

// FindByIDForUpdate loads an invoice with its items and locks the invoice row
func (r *GormInvoiceRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.Invoice, error) {
	return r.find(ctx, r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), tenantID, id)
}

func (r *GormInvoiceRepository) find(ctx context.Context, query *gorm.DB, tenantID, id uuid.UUID) (*invoicing.Invoice, error) {
	var model models.InvoiceModel
	if err := query.
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invoicing.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to load invoice: %w", err)
	}

	items, err := r.loadItems(ctx, id)
	if err != nil {
		return nil, err
	}
	model.Items = items
	return model.ToDomain()
}

func (r *GormInvoiceRepository) loadItems(ctx context.Context, invoiceID uuid.UUID) ([]models.InvoiceItemModel, error) {
	items := make([]models.InvoiceItemModel, 0)
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("position ASC").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to load invoice items: %w", err)
	}
	return items, nil
}

// FindByNumber finds an invoice by its full number within a company
func (r *GormInvoiceRepository) FindByNumber(ctx context.Context, tenantID, companyID uuid.UUID, fullNumber string) (*invoicing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND company_id = ? AND full_number = ?", tenantID, companyID, strings.TrimSpace(fullNumber)).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invoicing.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to load invoice: %w", err)
	}

	items, err := r.loadItems(ctx, model.ID)
	if err != nil {
		return nil, err
	}
	model.Items = items
	return model.ToDomain()
}

// FindAllForTenant lists invoices without items
func (r *GormInvoiceRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter invoicing.InvoiceFilter) ([]invoicing.Invoice, int64, error) {
	filter.Filter = filter.Normalize()

	query := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).Where("tenant_id = ?", tenantID)
	if filter.CompanyID != nil {
		query = query.Where("company_id = ?", *filter.CompanyID)
	}
	if filter.ClientID != nil {
		query = query.Where("client_id = ?", *filter.ClientID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(full_number) LIKE ? OR LOWER(notes) LIKE ?", like, like)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count invoices: %w", err)
	}

	var rows []models.InvoiceModel
	if err := query.
		Order(invoiceOrder(filter.OrderBy, filter.OrderDir)).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list invoices: %w", err)
	}

	invoices, err := toInvoices(rows)
	if err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

// FindSentDueBefore returns sent invoices across tenants whose due date is
// before the given day. Rows come in (due_date, id) order so a caller can
// page past rows it could not update.
func (r *GormInvoiceRepository) FindSentDueBefore(ctx context.Context, before time.Time, after *invoicing.SweepCursor, limit int) ([]invoicing.Invoice, error) {
	query := r.db.WithContext(ctx).
		Where("status = ? AND due_date < ?", invoicing.InvoiceStatusSent, before)
	if after != nil {
		query = query.Where("(due_date > ? OR (due_date = ? AND id > ?))", after.DueDate, after.DueDate, after.ID)
	}

	var rows []models.InvoiceModel
	if err := query.
		Order("due_date ASC, id ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find overdue candidates: %w", err)
	}
	return toInvoices(rows)
}

// FindFinalizedWithoutSnapshot returns invoices that went through finalization,
// cancelled ones included, and have no snapshot row. Drafts cancelled before
// finalization never match.
func (r *GormInvoiceRepository) FindFinalizedWithoutSnapshot(ctx context.Context, tenantID *uuid.UUID, limit int) ([]invoicing.Invoice, error) {
	query := r.db.WithContext(ctx).
		Where("(status IN ? OR (status = ? AND finalized_at IS NOT NULL))", []invoicing.InvoiceStatus{
			invoicing.InvoiceStatusFinalized,
			invoicing.InvoiceStatusSent,
			invoicing.InvoiceStatusPaid,
			invoicing.InvoiceStatusOverdue,
		}, invoicing.InvoiceStatusCancelled).
		Where("NOT EXISTS (SELECT 1 FROM invoice_snapshots s WHERE s.invoice_id = invoices.id)")
	if tenantID != nil {
		query = query.Where("tenant_id = ?", *tenantID)
	}

	var rows []models.InvoiceModel
	if err := query.Order("created_at ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find invoices without snapshot: %w", err)
	}
	return toInvoices(rows)
}

// Create inserts a numbered invoice and its items. A taken number fails with
// ConcurrencyConflict and leaves the transaction open.
func (r *GormInvoiceRepository) Create(ctx context.Context, invoice *invoicing.Invoice) error {
	if invoice.Number().IsZero() {
		return shared.NewDomainError(shared.CodeInvalidInput, "Invoice must be numbered before it is stored")
	}

	conflict := shared.NewDomainError(shared.CodeConcurrencyConflict,
		fmt.Sprintf("Invoice number %s is already taken", invoice.FullNumber()))

	// DO NOTHING keeps the transaction usable after a collision, so the caller
	// can draw another serial without starting over
	model := models.InvoiceModelFromDomain(invoice)
	result := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(model)
	if result.Error != nil {
		if isDuplicateKey(result.Error) {
			return conflict
		}
		return fmt.Errorf("failed to create invoice: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return conflict
	}
	return r.insertItems(ctx, invoice.Items)
}

// Save updates the mutable columns of an invoice. The stored version must be
// one behind the in-memory version; anything else is a concurrent write.
func (r *GormInvoiceRepository) Save(ctx context.Context, invoice *invoicing.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	omit := append([]string{"id", clause.Associations}, models.NumberingColumns...)

	result := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("tenant_id = ? AND id = ? AND version = ?", invoice.TenantID, invoice.ID, invoice.Version-1).
		Select("*").
		Omit(omit...).
		Updates(model)
	if result.Error != nil {
		if err := immutableWrite(result.Error); err != result.Error {
			return err
		}
		return fmt.Errorf("failed to save invoice: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError(shared.CodeConcurrencyConflict,
			fmt.Sprintf("Invoice %s was modified concurrently", invoice.FullNumber()))
	}
	return nil
}

// ReplaceItems swaps the stored items of a draft invoice. The parent row is
// locked and checked first so items of a non-draft invoice are never written.
func (r *GormInvoiceRepository) ReplaceItems(ctx context.Context, invoice *invoicing.Invoice) error {
	if err := r.requireDraft(ctx, invoice.TenantID, invoice.ID); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoice.ID).
		Delete(&models.InvoiceItemModel{}).Error; err != nil {
		return fmt.Errorf("failed to delete invoice items: %w", err)
	}
	return r.insertItems(ctx, invoice.Items)
}

func (r *GormInvoiceRepository) requireDraft(ctx context.Context, tenantID, invoiceID uuid.UUID) error {
	var parent models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "status").
		Where("tenant_id = ? AND id = ?", tenantID, invoiceID).
		Take(&parent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return invoicing.ErrInvoiceNotFound
		}
		return fmt.Errorf("failed to check invoice status: %w", err)
	}
	if parent.Status != invoicing.InvoiceStatusDraft {
		return shared.NewDomainError(shared.CodeImmutableRecordViolation,
			fmt.Sprintf("Items of a %s invoice cannot be changed", parent.Status))
	}
	return nil
}

func (r *GormInvoiceRepository) insertItems(ctx context.Context, items []invoicing.InvoiceItem) error {
	if len(items) == 0 {
		return nil
	}
	rows := make([]*models.InvoiceItemModel, len(items))
	for i := range items {
		rows[i] = models.InvoiceItemModelFromDomain(&items[i])
	}
	if err := r.db.WithContext(ctx).Create(rows).Error; err != nil {
		if mapped := immutableWrite(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to create invoice items: %w", err)
	}
	return nil
}

func toInvoices(rows []models.InvoiceModel) ([]invoicing.Invoice, error) {
	invoices := make([]invoicing.Invoice, 0, len(rows))
	for i := range rows {
		inv, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *inv)
	}
	return invoices, nil
}

// Ensure GormInvoiceRepository implements the interface
var _ invoicing.InvoiceRepository = (*GormInvoiceRepository)(nil)
