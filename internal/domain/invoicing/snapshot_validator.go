package invoicing

import (
	"fmt"
	"strings"

	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// identityTolerance is the rounding slack allowed when checking totals read back from a payload
var identityTolerance = decimal.New(1, -2)

// MissingRequiredFields lists the compliance-required fields absent from the payload.
// Everything else in a payload is optional and consumers must tolerate its absence.
func MissingRequiredFields(p Payload) []string {
	var missing []string
	if strings.TrimSpace(p.Invoice.Number) == "" {
		missing = append(missing, "invoice.number")
	}
	if strings.TrimSpace(p.Invoice.IssueDate) == "" {
		missing = append(missing, "invoice.issue_date")
	}
	if strings.TrimSpace(p.Company.KRAPIN) == "" {
		missing = append(missing, "company.kra_pin")
	}
	if len(p.Items) == 0 {
		missing = append(missing, "items")
	}
	if p.Totals.Subtotal == nil {
		missing = append(missing, "totals.subtotal")
	}
	if p.Totals.GrandTotal == nil {
		missing = append(missing, "totals.grand_total")
	}
	return missing
}

// ValidatePayload checks a payload is fit for compliance export: required fields are
// present and the accounting identities hold wherever the totals involved are present.
func ValidatePayload(p Payload) error {
	if missing := MissingRequiredFields(p); len(missing) > 0 {
		return shared.NewDomainError(shared.CodeInvalidInput,
			fmt.Sprintf("Snapshot is missing required fields: %s", strings.Join(missing, ", ")))
	}

	t := p.Totals
	if t.SubtotalAfterDiscount != nil && t.VATAmount != nil && t.Total != nil {
		if !withinTolerance(t.SubtotalAfterDiscount.Add(*t.VATAmount), *t.Total) {
			return shared.NewDomainError(shared.CodeInvalidInput,
				fmt.Sprintf("Snapshot total %s does not equal subtotal after discount plus VAT", t.Total))
		}
	}
	if t.Total != nil && t.PlatformFee != nil {
		if !withinTolerance(t.Total.Add(*t.PlatformFee), *t.GrandTotal) {
			return shared.NewDomainError(shared.CodeInvalidInput,
				fmt.Sprintf("Snapshot grand total %s does not equal total plus platform fee", t.GrandTotal))
		}
	}
	return nil
}

func withinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(identityTolerance)
}
