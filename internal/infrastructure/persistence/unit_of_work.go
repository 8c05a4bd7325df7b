package persistence

import (
	"context"

	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// EventRecorderFactory returns an EventRecorder that writes into the given transaction
type EventRecorderFactory func(tx *gorm.DB) invoicing.EventRecorder

// GormUnitOfWork runs invoicing operations inside a single database transaction
type GormUnitOfWork struct {
	db     *gorm.DB
	events EventRecorderFactory
}

// NewGormUnitOfWork creates a new GormUnitOfWork. A nil events factory discards events.
func NewGormUnitOfWork(db *gorm.DB, events EventRecorderFactory) *GormUnitOfWork {
	if events == nil {
		events = func(*gorm.DB) invoicing.EventRecorder { return discardRecorder{} }
	}
	return &GormUnitOfWork{db: db, events: events}
}

// Do runs fn in a transaction. The transaction commits when fn returns nil
// and rolls back otherwise.
func (u *GormUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, repos invoicing.Repositories) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, u.bind(tx))
	})
}

// Repositories returns repositories bound to the plain connection, for reads
// that do not need a transaction
func (u *GormUnitOfWork) Repositories() invoicing.Repositories {
	return u.bind(u.db)
}

func (u *GormUnitOfWork) bind(db *gorm.DB) invoicing.Repositories {
	return invoicing.Repositories{
		Invoices:  NewGormInvoiceRepository(db),
		Snapshots: NewGormSnapshotRepository(db),
		Prefixes:  NewGormPrefixRepository(db),
		Sequences: NewGormSequenceRepository(db),
		Companies: NewGormCompanyRepository(db),
		Clients:   NewGormClientRepository(db),
		Templates: NewGormTemplateRepository(db),
		Fees:      NewGormPlatformFeeRepository(db),
		Events:    u.events(db),
	}
}

type discardRecorder struct{}

func (discardRecorder) Record(context.Context, ...shared.DomainEvent) error { return nil }

var _ invoicing.UnitOfWork = (*GormUnitOfWork)(nil)
