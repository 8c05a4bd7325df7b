package invoicing

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ItemInput is a line item as entered by the user
type ItemInput struct {
	Description string
	LineInput
}

// InvoiceItem is a priced line on an invoice. Items can only change while the
// invoice is a draft; afterwards the persistence layer rejects writes.
type InvoiceItem struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	InvoiceID    uuid.UUID
	Position     int
	Description  string
	Quantity     decimal.Decimal
	UnitPrice    decimal.Decimal
	VATIncluded  bool
	VATRate      decimal.Decimal
	LineSubtotal decimal.Decimal
	VATAmount    decimal.Decimal
	NetAmount    decimal.Decimal
	LineTotal    decimal.Decimal
	CreatedAt    time.Time
}

// LineInput returns the calculation input for this item
func (i *InvoiceItem) LineInput() LineInput {
	qty := i.Quantity
	price := i.UnitPrice
	rate := i.VATRate
	return LineInput{
		Quantity:    &qty,
		UnitPrice:   &price,
		VATIncluded: i.VATIncluded,
		VATRate:     &rate,
	}
}

// buildItems validates inputs, runs the calculation and returns items carrying their computed line values
func buildItems(tenantID, invoiceID uuid.UUID, inputs []ItemInput, cfg CalculationConfig, at time.Time) ([]InvoiceItem, Totals, error) {
	lines := make([]LineInput, len(inputs))
	for i, in := range inputs {
		if strings.TrimSpace(in.Description) == "" {
			return nil, Totals{}, shared.NewDomainError(shared.CodeInvalidInput,
				fmt.Sprintf("Item %d is missing a description", i+1))
		}
		if field := overScale(in.LineInput); field != "" {
			return nil, Totals{}, shared.NewDomainError(shared.CodeInvalidInput,
				fmt.Sprintf("Item %d %s has more than %d decimal places", i+1, field, StoredScale))
		}
		lines[i] = in.LineInput
	}
	if exceedsScale(cfg.Discount) {
		return nil, Totals{}, shared.NewDomainError(shared.CodeInvalidInput,
			fmt.Sprintf("Discount has more than %d decimal places", StoredScale))
	}

	totals, err := Calculate(lines, cfg)
	if err != nil {
		return nil, Totals{}, err
	}

	items := make([]InvoiceItem, len(inputs))
	for i, in := range inputs {
		line := totals.Lines[i]
		items[i] = InvoiceItem{
			ID:           uuid.New(),
			TenantID:     tenantID,
			InvoiceID:    invoiceID,
			Position:     i + 1,
			Description:  strings.TrimSpace(in.Description),
			Quantity:     *in.Quantity,
			UnitPrice:    *in.UnitPrice,
			VATIncluded:  in.VATIncluded,
			VATRate:      line.VATRate,
			LineSubtotal: line.Subtotal,
			VATAmount:    line.VAT,
			NetAmount:    line.Net,
			LineTotal:    line.Total,
			CreatedAt:    at,
		}
	}
	return items, totals, nil
}

// StoredScale is the number of decimal places the item and discount columns
// hold. Stored items must recalculate to the totals computed here.
const StoredScale = 4

func exceedsScale(d decimal.Decimal) bool {
	return !d.Equal(d.Truncate(StoredScale))
}

func overScale(l LineInput) string {
	switch {
	case l.Quantity != nil && exceedsScale(*l.Quantity):
		return "quantity"
	case l.UnitPrice != nil && exceedsScale(*l.UnitPrice):
		return "unit price"
	case l.VATRate != nil && exceedsScale(*l.VATRate):
		return "VAT rate"
	}
	return ""
}
