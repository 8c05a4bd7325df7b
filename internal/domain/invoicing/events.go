package invoicing

import (
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Aggregate types
const (
	AggregateTypeInvoice       = "Invoice"
	AggregateTypeInvoicePrefix = "InvoicePrefix"
)

// Event types
const (
	EventTypeInvoiceCreated       = "InvoiceCreated"
	EventTypeInvoiceFinalized     = "InvoiceFinalized"
	EventTypeInvoiceStatusChanged = "InvoiceStatusChanged"
	EventTypeInvoicePrefixChanged = "InvoicePrefixChanged"
)

// InvoiceCreatedEvent is raised when a numbered draft is created
type InvoiceCreatedEvent struct {
	shared.BaseDomainEvent
	CompanyID     uuid.UUID       `json:"company_id"`
	ClientID      *uuid.UUID      `json:"client_id,omitempty"`
	InvoiceNumber string          `json:"invoice_number"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
}

// NewInvoiceCreatedEvent creates a new InvoiceCreatedEvent
func NewInvoiceCreatedEvent(inv *Invoice, at time.Time) *InvoiceCreatedEvent {
	return &InvoiceCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceCreated, AggregateTypeInvoice, inv.ID, inv.TenantID, at),
		CompanyID:       inv.CompanyID,
		ClientID:        inv.ClientID,
		InvoiceNumber:   inv.FullNumber(),
		GrandTotal:      inv.Summary.GrandTotal,
	}
}

// InvoiceFinalizedEvent is raised in the same transaction that stores the snapshot
type InvoiceFinalizedEvent struct {
	shared.BaseDomainEvent
	CompanyID     uuid.UUID       `json:"company_id"`
	InvoiceNumber string          `json:"invoice_number"`
	SnapshotID    uuid.UUID       `json:"snapshot_id"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	Currency      string          `json:"currency"`
	FinalizedBy   uuid.UUID       `json:"finalized_by"`
}

// NewInvoiceFinalizedEvent creates a new InvoiceFinalizedEvent
func NewInvoiceFinalizedEvent(inv *Invoice, snapshotID, actorID uuid.UUID, at time.Time) *InvoiceFinalizedEvent {
	return &InvoiceFinalizedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceFinalized, AggregateTypeInvoice, inv.ID, inv.TenantID, at),
		CompanyID:       inv.CompanyID,
		InvoiceNumber:   inv.FullNumber(),
		SnapshotID:      snapshotID,
		GrandTotal:      inv.Summary.GrandTotal,
		Currency:        inv.Currency,
		FinalizedBy:     actorID,
	}
}

// InvoiceStatusChangedEvent is raised on every status transition
type InvoiceStatusChangedEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string        `json:"invoice_number"`
	From          InvoiceStatus `json:"from"`
	To            InvoiceStatus `json:"to"`
}

// NewInvoiceStatusChangedEvent creates a new InvoiceStatusChangedEvent
func NewInvoiceStatusChangedEvent(inv *Invoice, from, to InvoiceStatus, at time.Time) *InvoiceStatusChangedEvent {
	return &InvoiceStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceStatusChanged, AggregateTypeInvoice, inv.ID, inv.TenantID, at),
		InvoiceNumber:   inv.FullNumber(),
		From:            from,
		To:              to,
	}
}

// InvoicePrefixChangedEvent is raised when a company switches prefix
type InvoicePrefixChangedEvent struct {
	shared.BaseDomainEvent
	CompanyID      uuid.UUID `json:"company_id"`
	PreviousPrefix string    `json:"previous_prefix,omitempty"`
	Prefix         string    `json:"prefix"`
}

// NewInvoicePrefixChangedEvent creates a new InvoicePrefixChangedEvent
func NewInvoicePrefixChangedEvent(previous, current *InvoicePrefix, at time.Time) *InvoicePrefixChangedEvent {
	ev := &InvoicePrefixChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoicePrefixChanged, AggregateTypeInvoicePrefix, current.ID, current.TenantID, at),
		CompanyID:       current.CompanyID,
		Prefix:          current.Prefix,
	}
	if previous != nil {
		ev.PreviousPrefix = previous.Prefix
	}
	return ev
}
