package invoicing

import (
	"fmt"

	"github.com/invoicing/backend/internal/domain/shared"
)

// InvoiceStatus represents the lifecycle status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusFinalized InvoiceStatus = "finalized"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// transitions lists every legal edge of the invoice state machine
var transitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusDraft:     {InvoiceStatusFinalized, InvoiceStatusCancelled},
	InvoiceStatusFinalized: {InvoiceStatusSent},
	InvoiceStatusSent:      {InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled},
	InvoiceStatusOverdue:   {InvoiceStatusPaid, InvoiceStatusCancelled},
	InvoiceStatusPaid:      {},
	InvoiceStatusCancelled: {},
}

// AllStatuses returns every status in lifecycle order
func AllStatuses() []InvoiceStatus {
	return []InvoiceStatus{
		InvoiceStatusDraft,
		InvoiceStatusFinalized,
		InvoiceStatusSent,
		InvoiceStatusPaid,
		InvoiceStatusOverdue,
		InvoiceStatusCancelled,
	}
}

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsTerminal returns true if no transition leaves this status
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusPaid || s == InvoiceStatusCancelled
}

// HasBeenFinalized returns true for statuses that can only be reached through finalization
func (s InvoiceStatus) HasBeenFinalized() bool {
	switch s {
	case InvoiceStatusFinalized, InvoiceStatusSent, InvoiceStatusPaid, InvoiceStatusOverdue:
		return true
	}
	return false
}

// CanTransitionTo reports whether from -> to is a legal edge
func (s InvoiceStatus) CanTransitionTo(to InvoiceStatus) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns an IllegalTransition error unless from -> to is legal
func ValidateTransition(from, to InvoiceStatus) error {
	if !to.IsValid() {
		return shared.NewDomainError(shared.CodeIllegalTransition, fmt.Sprintf("Unknown invoice status %q", to))
	}
	if !from.CanTransitionTo(to) {
		return shared.NewDomainError(shared.CodeIllegalTransition,
			fmt.Sprintf("Cannot change invoice status from %s to %s", from, to))
	}
	return nil
}
