package invoicing

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// DefaultPaymentTermDays is used when a draft has no due date
const DefaultPaymentTermDays = 30

// DraftInput carries everything needed to open a new invoice
type DraftInput struct {
	ClientID     *uuid.UUID
	TemplateID   *uuid.UUID
	Currency     string
	IssueDate    time.Time
	DueDate      time.Time
	Notes        string
	Discount     decimal.Decimal
	DiscountType DiscountType
	Items        []ItemInput
}

// Draft is an invoice that has been calculated but not yet numbered.
// Number turns it into an Invoice; a Draft cannot be numbered twice.
type Draft struct {
	shared.TenantAggregateRoot
	CompanyID  uuid.UUID
	ClientID   *uuid.UUID
	TemplateID *uuid.UUID
	Currency   string
	IssueDate  time.Time
	DueDate    time.Time
	Notes      string
	Config     CalculationConfig
	Items      []InvoiceItem
	Summary    Summary
	numbered   bool
}

// NewDraft calculates a new unnumbered invoice for the company using its current settings
func NewDraft(company *Company, in DraftInput, at time.Time) (*Draft, error) {
	if company == nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Company is required")
	}

	issueDate := in.IssueDate
	if issueDate.IsZero() {
		issueDate = at
	}
	issueDate = dateOnly(issueDate)

	dueDate := in.DueDate
	if dueDate.IsZero() {
		dueDate = issueDate.AddDate(0, 0, DefaultPaymentTermDays)
	}
	dueDate = dateOnly(dueDate)
	if dueDate.Before(issueDate) {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Due date cannot be before issue date")
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = company.Currency
	}
	if currency == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Currency is required")
	}

	d := &Draft{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(company.TenantID, at),
		CompanyID:           company.ID,
		ClientID:            in.ClientID,
		TemplateID:          in.TemplateID,
		Currency:            currency,
		IssueDate:           issueDate,
		DueDate:             dueDate,
		Notes:               strings.TrimSpace(in.Notes),
		Config:              company.CalculationConfig(in.Discount, in.DiscountType),
	}
	if d.TemplateID == nil {
		d.TemplateID = company.DefaultTemplateID
	}

	items, totals, err := buildItems(d.TenantID, d.ID, in.Items, d.Config, at)
	if err != nil {
		return nil, err
	}
	d.Items = items
	d.Summary = totals.Summary
	return d, nil
}

// Number assigns the invoice number and returns the numbered Invoice in draft status
func (d *Draft) Number(number InvoiceNumber, at time.Time) (*Invoice, error) {
	if d.numbered {
		return nil, shared.NewDomainError(shared.CodeImmutableRecordViolation, "Draft has already been numbered")
	}
	if number.IsZero() || number.Serial < 1 || number.FullNumber == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Invoice number is incomplete")
	}
	d.numbered = true

	inv := &Invoice{
		TenantAggregateRoot: d.TenantAggregateRoot,
		number:              number,
		status:              InvoiceStatusDraft,
		CompanyID:           d.CompanyID,
		ClientID:            d.ClientID,
		TemplateID:          d.TemplateID,
		Currency:            d.Currency,
		IssueDate:           d.IssueDate,
		DueDate:             d.DueDate,
		Notes:               d.Notes,
		Config:              d.Config,
		Items:               d.Items,
		Summary:             d.Summary,
	}
	inv.UpdatedAt = at
	inv.AddDomainEvent(NewInvoiceCreatedEvent(inv, at))
	return inv, nil
}

// Invoice is a numbered invoice. Its number is fixed at construction and only exposed through getters.
type Invoice struct {
	shared.TenantAggregateRoot
	number      InvoiceNumber
	status      InvoiceStatus
	CompanyID   uuid.UUID
	ClientID    *uuid.UUID
	TemplateID  *uuid.UUID
	Currency    string
	IssueDate   time.Time
	DueDate     time.Time
	Notes       string
	Config      CalculationConfig
	Items       []InvoiceItem
	Summary     Summary
	FinalizedAt *time.Time
	SentAt      *time.Time
	PaidAt      *time.Time
	OverdueAt   *time.Time
	CancelledAt *time.Time
}

// RestoreInvoice attaches the stored number and status to an invoice loaded from persistence.
// It refuses to overwrite a number that is already set.
func RestoreInvoice(inv *Invoice, number InvoiceNumber, status InvoiceStatus) (*Invoice, error) {
	if !inv.number.IsZero() {
		return nil, shared.NewDomainError(shared.CodeImmutableRecordViolation, "Invoice number cannot be reassigned")
	}
	if !status.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("Unknown invoice status %q", status))
	}
	inv.number = number
	inv.status = status
	return inv, nil
}

// Number returns the assigned invoice number
func (inv *Invoice) Number() InvoiceNumber { return inv.number }

// PrefixUsed returns the rendered prefix the invoice was numbered with
func (inv *Invoice) PrefixUsed() string { return inv.number.Prefix }

// SerialNumber returns the allocated serial
func (inv *Invoice) SerialNumber() int64 { return inv.number.Serial }

// FullNumber returns the human-readable identifier
func (inv *Invoice) FullNumber() string { return inv.number.FullNumber }

// NumberingMode returns the mode the number was allocated under
func (inv *Invoice) NumberingMode() NumberingMode { return inv.number.Mode }

// Status returns the current status
func (inv *Invoice) Status() InvoiceStatus { return inv.status }

// IsDraft returns true while the invoice can be edited
func (inv *Invoice) IsDraft() bool { return inv.status == InvoiceStatusDraft }

// ReplaceItems recalculates a draft with new items and discount.
// Rates are kept as captured when the draft was created.
func (inv *Invoice) ReplaceItems(inputs []ItemInput, discount decimal.Decimal, discountType DiscountType, at time.Time) error {
	if !inv.IsDraft() {
		return shared.NewDomainError(shared.CodeNotEditable,
			fmt.Sprintf("Invoice %s is %s and can no longer be edited", inv.FullNumber(), inv.status))
	}

	cfg := inv.Config
	cfg.Discount = discount
	cfg.DiscountType = discountType

	items, totals, err := buildItems(inv.TenantID, inv.ID, inputs, cfg, at)
	if err != nil {
		return err
	}
	inv.Config = cfg
	inv.Items = items
	inv.Summary = totals.Summary
	inv.UpdatedAt = at
	inv.IncrementVersion()
	return nil
}

// Recalculate runs the calculation engine over the stored items and configuration
func (inv *Invoice) Recalculate() (Totals, error) {
	lines := make([]LineInput, len(inv.Items))
	for i := range inv.Items {
		lines[i] = inv.Items[i].LineInput()
	}
	return Calculate(lines, inv.Config)
}

// WasFinalized reports whether the invoice went through finalization, including
// finalized invoices that were later cancelled
func (inv *Invoice) WasFinalized() bool {
	if inv.status.HasBeenFinalized() {
		return true
	}
	return inv.status == InvoiceStatusCancelled && inv.FinalizedAt != nil
}

// Finalize moves a draft to finalized. Invoices that already went through
// finalization fail with AlreadyFinalized.
func (inv *Invoice) Finalize(at time.Time) error {
	if inv.status.HasBeenFinalized() {
		return shared.NewDomainError(shared.CodeAlreadyFinalized,
			fmt.Sprintf("Invoice %s is already finalized", inv.FullNumber()))
	}
	return inv.Transition(InvoiceStatusFinalized, at)
}

// Transition moves the invoice along a legal edge of the state machine.
// An illegal edge fails with IllegalTransition and leaves the invoice untouched.
func (inv *Invoice) Transition(to InvoiceStatus, at time.Time) error {
	from := inv.status
	if err := ValidateTransition(from, to); err != nil {
		return err
	}

	switch to {
	case InvoiceStatusFinalized:
		inv.FinalizedAt = &at
	case InvoiceStatusSent:
		inv.SentAt = &at
	case InvoiceStatusPaid:
		inv.PaidAt = &at
	case InvoiceStatusOverdue:
		inv.OverdueAt = &at
	case InvoiceStatusCancelled:
		inv.CancelledAt = &at
	}

	inv.status = to
	inv.UpdatedAt = at
	inv.IncrementVersion()
	inv.AddDomainEvent(NewInvoiceStatusChangedEvent(inv, from, to, at))
	return nil
}

// IsPastDue reports whether a sent invoice's due date is before the day of now
func (inv *Invoice) IsPastDue(now time.Time) bool {
	return inv.status == InvoiceStatusSent && dateOnly(inv.DueDate).Before(dateOnly(now))
}

// MarkOverdue moves a past-due sent invoice to overdue
func (inv *Invoice) MarkOverdue(now time.Time) error {
	if !inv.IsPastDue(now) {
		if inv.status != InvoiceStatusSent {
			return ValidateTransition(inv.status, InvoiceStatusOverdue)
		}
		return shared.NewDomainError(shared.CodeInvalidInput,
			fmt.Sprintf("Invoice %s is not past its due date", inv.FullNumber()))
	}
	return inv.Transition(InvoiceStatusOverdue, now)
}

// ErrInvoiceNotFound is returned when an invoice does not exist for the tenant
var ErrInvoiceNotFound = shared.NewDomainError(shared.CodeNotFound, "Invoice not found")

// IsNotFound reports whether err is a not-found domain error
func IsNotFound(err error) bool {
	return errors.Is(err, shared.ErrNotFound)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
