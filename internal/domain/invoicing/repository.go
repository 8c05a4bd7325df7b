package invoicing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/shared"
)

// InvoiceFilter defines filtering options for invoice queries
type InvoiceFilter struct {
	shared.Filter
	CompanyID *uuid.UUID
	ClientID  *uuid.UUID
	Status    *InvoiceStatus
	Search    string
}

// SweepCursor marks the last invoice a sweep page returned. Pages are ordered
// by due date then id.
type SweepCursor struct {
	DueDate time.Time
	ID      uuid.UUID
}

// CursorAfter returns the cursor positioned at inv
func CursorAfter(inv *Invoice) *SweepCursor {
	return &SweepCursor{DueDate: inv.DueDate, ID: inv.ID}
}

// InvoiceRepository defines the interface for invoice persistence
type InvoiceRepository interface {
	// FindByIDForTenant loads an invoice with its items
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)

	// FindByIDForUpdate loads an invoice with its items and holds a row lock until the transaction ends
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)

	// FindByNumber finds an invoice by its full number within a company
	FindByNumber(ctx context.Context, tenantID, companyID uuid.UUID, fullNumber string) (*Invoice, error)

	// FindAllForTenant lists invoices (without items) with filtering and paging
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter InvoiceFilter) ([]Invoice, int64, error)

	// FindSentDueBefore returns sent invoices across tenants whose due date is
	// before the given day, starting past after when it is set
	FindSentDueBefore(ctx context.Context, before time.Time, after *SweepCursor, limit int) ([]Invoice, error)

	// FindFinalizedWithoutSnapshot returns invoices that went through finalization
	// (cancelled after finalization included) and have no snapshot row
	FindFinalizedWithoutSnapshot(ctx context.Context, tenantID *uuid.UUID, limit int) ([]Invoice, error)

	// Create inserts a numbered invoice and its items.
	// A duplicate number fails with ConcurrencyConflict.
	Create(ctx context.Context, invoice *Invoice) error

	// Save updates status, dates, totals and version with an optimistic version check.
	// Numbering columns are never written.
	Save(ctx context.Context, invoice *Invoice) error

	// ReplaceItems swaps the stored items of a draft invoice for invoice.Items
	ReplaceItems(ctx context.Context, invoice *Invoice) error
}

// SnapshotRepository is the append-only snapshot store
type SnapshotRepository interface {
	// Create inserts a snapshot. A second snapshot for the same invoice fails with AlreadyFinalized.
	Create(ctx context.Context, snapshot *Snapshot) error

	// FindByInvoiceID returns the snapshot of an invoice
	FindByInvoiceID(ctx context.Context, tenantID, invoiceID uuid.UUID) (*Snapshot, error)

	// ExistsForInvoice reports whether the invoice already has a snapshot
	ExistsForInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (bool, error)
}

// PrefixRepository persists the append-only prefix history
type PrefixRepository interface {
	// FindActive returns the most recent prefix without an end date, or shared.ErrNotFound
	FindActive(ctx context.Context, tenantID, companyID uuid.UUID) (*InvoicePrefix, error)

	// ListByCompany returns the full history, newest first
	ListByCompany(ctx context.Context, tenantID, companyID uuid.UUID) ([]InvoicePrefix, error)

	// Create appends a prefix row
	Create(ctx context.Context, prefix *InvoicePrefix) error

	// End stores the end date of a prefix. Nothing else about a prefix row is ever updated.
	End(ctx context.Context, prefix *InvoicePrefix) error
}

// SequenceRepository advances the numbering counters atomically
type SequenceRepository interface {
	// NextCompanySerial increments the company counter and returns the serial it stood at
	NextCompanySerial(ctx context.Context, tenantID, companyID uuid.UUID) (int64, error)

	// NextClientSerial increments the client counter and returns the serial it stood at
	NextClientSerial(ctx context.Context, tenantID, clientID uuid.UUID) (int64, error)
}

// CompanyRepository reads and stores companies
type CompanyRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Company, error)
	Save(ctx context.Context, company *Company) error
}

// ClientRepository reads and stores clients
type ClientRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Client, error)
	Save(ctx context.Context, client *Client) error
}

// TemplateRepository reads and stores templates
type TemplateRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Template, error)
	Save(ctx context.Context, template *Template) error
}

// PlatformFeeRepository stores the platform fee rows of an invoice
type PlatformFeeRepository interface {
	FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]PlatformFee, error)

	// ReplaceForInvoice rewrites the fee rows of a draft invoice from its totals
	ReplaceForInvoice(ctx context.Context, invoice *Invoice, at time.Time) error
}

// EventRecorder writes domain events into the outbox of the current transaction
type EventRecorder interface {
	Record(ctx context.Context, events ...shared.DomainEvent) error
}

// Repositories bundles repositories bound to one transaction
type Repositories struct {
	Invoices  InvoiceRepository
	Snapshots SnapshotRepository
	Prefixes  PrefixRepository
	Sequences SequenceRepository
	Companies CompanyRepository
	Clients   ClientRepository
	Templates TemplateRepository
	Fees      PlatformFeeRepository
	Events    EventRecorder
}

// UnitOfWork runs fn inside one database transaction. If fn returns an error
// every write made through repos is rolled back.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
