package invoicing

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/shared"
)

// DefaultPrefix is used when a company has never configured one
const DefaultPrefix = "INV"

const maxPrefixLength = 32

var prefixPattern = regexp.MustCompile(`^[A-Za-z0-9\-_/.{}]+$`)

// InvoicePrefix is one row of a company's append-only prefix history.
// The active prefix is the most recent row without an end date.
type InvoicePrefix struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	CompanyID uuid.UUID
	Prefix    string
	StartedAt time.Time
	EndedAt   *time.Time
}

// NewInvoicePrefix creates a new active prefix starting at the given time
func NewInvoicePrefix(tenantID, companyID uuid.UUID, prefix string, startedAt time.Time) (*InvoicePrefix, error) {
	prefix = strings.TrimSpace(prefix)
	if err := ValidatePrefix(prefix); err != nil {
		return nil, err
	}
	return &InvoicePrefix{
		ID:        uuid.New(),
		TenantID:  tenantID,
		CompanyID: companyID,
		Prefix:    prefix,
		StartedAt: startedAt,
	}, nil
}

// ValidatePrefix checks length, characters and token syntax
func ValidatePrefix(prefix string) error {
	if prefix == "" {
		return shared.NewDomainError(shared.CodeInvalidInput, "Prefix cannot be empty")
	}
	if len(prefix) > maxPrefixLength {
		return shared.NewDomainError(shared.CodeInvalidInput,
			fmt.Sprintf("Prefix cannot exceed %d characters", maxPrefixLength))
	}
	if !prefixPattern.MatchString(prefix) {
		return shared.NewDomainError(shared.CodeInvalidInput, "Prefix contains invalid characters")
	}
	if strings.Count(prefix, "{") != strings.Count(prefix, "}") {
		return shared.NewDomainError(shared.CodeInvalidInput, "Prefix has unbalanced braces")
	}
	return nil
}

// IsActive returns true while the prefix has no end date
func (p *InvoicePrefix) IsActive() bool {
	return p.EndedAt == nil
}

// End closes the prefix at the given time
func (p *InvoicePrefix) End(at time.Time) error {
	if !p.IsActive() {
		return shared.NewDomainError(shared.CodeInvalidInput, "Prefix has already ended")
	}
	if at.Before(p.StartedAt) {
		return shared.NewDomainError(shared.CodeInvalidInput, "Prefix cannot end before it started")
	}
	p.EndedAt = &at
	return nil
}
