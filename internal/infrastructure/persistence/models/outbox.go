package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/shared"
)

// OutboxRow is an outbox_events row, inserted in the transaction that raised
// the event. Its fields mirror shared.OutboxEntry one for one so the two
// convert directly.
type OutboxRow struct {
	ID            uuid.UUID           `gorm:"type:uuid;primaryKey"`
	TenantID      uuid.UUID           `gorm:"type:uuid;not null;index"`
	EventID       uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex"`
	EventType     string              `gorm:"type:varchar(100);not null;index"`
	AggregateID   uuid.UUID           `gorm:"type:uuid;not null;index"`
	AggregateType string              `gorm:"type:varchar(100);not null"`
	Payload       []byte              `gorm:"type:jsonb;not null"`
	Status        shared.OutboxStatus `gorm:"type:varchar(20);not null;index:idx_outbox_status_created,priority:1"`
	Attempts      int                 `gorm:"not null"`
	MaxAttempts   int                 `gorm:"not null"`
	LastError     string              `gorm:"type:text"`
	NextRetryAt   *time.Time          `gorm:"index"`
	DeliveredAt   *time.Time
	CreatedAt     time.Time `gorm:"not null;index:idx_outbox_status_created,priority:2"`
	UpdatedAt     time.Time `gorm:"not null"`
}

func (OutboxRow) TableName() string { return "outbox_events" }

// NewOutboxRow maps a domain entry onto its row
func NewOutboxRow(e *shared.OutboxEntry) *OutboxRow {
	r := OutboxRow(*e)
	return &r
}

// Entry maps the row back, filling in the attempt limit of rows written
// before it was stored
func (r *OutboxRow) Entry() *shared.OutboxEntry {
	e := shared.OutboxEntry(*r)
	if e.MaxAttempts == 0 {
		e.MaxAttempts = shared.DefaultOutboxAttempts
	}
	return &e
}

// All returns every model managed by the invoicing schema, in dependency order.
// Used by AutoMigrate in tests and by the development bootstrap.
func All() []any {
	return []any{
		&CompanyModel{},
		&ClientModel{},
		&TemplateModel{},
		&InvoicePrefixModel{},
		&InvoiceModel{},
		&InvoiceItemModel{},
		&InvoiceSnapshotModel{},
		&PlatformFeeModel{},
		&OutboxRow{},
	}
}
