package invoicing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/shared"
)

// InvoiceNumber is the identifier assigned to an invoice exactly once
type InvoiceNumber struct {
	Prefix     string
	Serial     int64
	FullNumber string
	Mode       NumberingMode
}

// IsZero reports whether no number has been assigned
func (n InvoiceNumber) IsZero() bool {
	return n.Serial == 0 && n.FullNumber == ""
}

// NumberAllocator assigns serial numbers and renders invoice identifiers.
// It must be used with repositories bound to the transaction that persists the invoice,
// so that the counter increment and the invoice insert commit or roll back together.
type NumberAllocator struct {
	prefixes      PrefixRepository
	sequences     SequenceRepository
	formatter     Formatter
	defaultPrefix string
}

// NewNumberAllocator creates a new NumberAllocator
func NewNumberAllocator(prefixes PrefixRepository, sequences SequenceRepository, formatter Formatter, defaultPrefix string) *NumberAllocator {
	if defaultPrefix == "" {
		defaultPrefix = DefaultPrefix
	}
	return &NumberAllocator{
		prefixes:      prefixes,
		sequences:     sequences,
		formatter:     formatter,
		defaultPrefix: defaultPrefix,
	}
}

// Allocate draws the next serial for the company (global mode) or for the client
// (client-scoped mode) and renders the full number against the active prefix.
func (a *NumberAllocator) Allocate(ctx context.Context, company *Company, client *Client, at time.Time) (InvoiceNumber, error) {
	if company == nil {
		return InvoiceNumber{}, shared.NewDomainError(shared.CodeInvalidInput, "Company is required for numbering")
	}

	prefix, err := a.ActivePrefix(ctx, company.TenantID, company.ID, at)
	if err != nil {
		return InvoiceNumber{}, err
	}

	mode := company.EffectiveNumberingMode()
	var serial int64
	switch mode {
	case NumberingModeClient:
		if client == nil {
			return InvoiceNumber{}, shared.NewDomainError(shared.CodeInvalidInput,
				"Client-scoped numbering requires a client")
		}
		if client.CompanyID != company.ID {
			return InvoiceNumber{}, shared.NewDomainError(shared.CodeInvalidInput,
				"Client does not belong to the company")
		}
		serial, err = a.sequences.NextClientSerial(ctx, company.TenantID, client.ID)
	default:
		serial, err = a.sequences.NextCompanySerial(ctx, company.TenantID, company.ID)
	}
	if err != nil {
		return InvoiceNumber{}, fmt.Errorf("failed to allocate serial: %w", err)
	}
	if serial < 1 {
		return InvoiceNumber{}, fmt.Errorf("allocated serial %d is not positive", serial)
	}

	rendered := a.formatter.Prefix(prefix.Prefix, at)
	if mode == NumberingModeClient {
		rendered += a.formatter.ClientScope(client.NumberingCode())
	}

	return InvoiceNumber{
		Prefix:     rendered,
		Serial:     serial,
		FullNumber: rendered + a.formatter.Serial(serial),
		Mode:       mode,
	}, nil
}

// ActivePrefix returns the company's active prefix, creating the default one if none exists
func (a *NumberAllocator) ActivePrefix(ctx context.Context, tenantID, companyID uuid.UUID, at time.Time) (*InvoicePrefix, error) {
	prefix, err := a.prefixes.FindActive(ctx, tenantID, companyID)
	if err == nil {
		return prefix, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("failed to load active prefix: %w", err)
	}

	prefix, err = NewInvoicePrefix(tenantID, companyID, a.defaultPrefix, at)
	if err != nil {
		return nil, err
	}
	if err := a.prefixes.Create(ctx, prefix); err != nil {
		return nil, fmt.Errorf("failed to create default prefix: %w", err)
	}
	return prefix, nil
}

// ChangePrefix ends the active prefix and appends a new one. Invoices numbered
// earlier keep the prefix they were issued with.
func (a *NumberAllocator) ChangePrefix(ctx context.Context, tenantID, companyID uuid.UUID, value string, at time.Time) (previous, current *InvoicePrefix, err error) {
	current, err = NewInvoicePrefix(tenantID, companyID, value, at)
	if err != nil {
		return nil, nil, err
	}

	previous, err = a.prefixes.FindActive(ctx, tenantID, companyID)
	switch {
	case err == nil:
		if previous.Prefix == current.Prefix {
			return nil, nil, shared.NewDomainError(shared.CodeInvalidInput, "Prefix is unchanged")
		}
		if err := previous.End(at); err != nil {
			return nil, nil, err
		}
		if err := a.prefixes.End(ctx, previous); err != nil {
			return nil, nil, fmt.Errorf("failed to end prefix: %w", err)
		}
	case errors.Is(err, shared.ErrNotFound):
		previous = nil
	default:
		return nil, nil, fmt.Errorf("failed to load active prefix: %w", err)
	}

	if err := a.prefixes.Create(ctx, current); err != nil {
		return nil, nil, fmt.Errorf("failed to create prefix: %w", err)
	}
	return previous, current, nil
}
