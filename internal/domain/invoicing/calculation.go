package invoicing

import (
	"fmt"

	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of decimal places every returned monetary value carries
const MoneyPlaces int32 = 2

var hundred = decimal.NewFromInt(100)

// DiscountType selects how CalculationConfig.Discount is applied
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
)

// IsValid reports whether the discount type is known. Empty means fixed.
func (t DiscountType) IsValid() bool {
	switch t {
	case "", DiscountTypePercentage, DiscountTypeFixed:
		return true
	}
	return false
}

// LineInput is one priced line fed to the calculation engine.
// Quantity and UnitPrice are pointers so that a missing value can be told apart from zero.
type LineInput struct {
	Quantity    *decimal.Decimal
	UnitPrice   *decimal.Decimal
	VATIncluded bool
	// VATRate overrides CalculationConfig.VATRate for this line when set
	VATRate *decimal.Decimal
}

// CalculationConfig holds the company-level tax, fee and discount settings used for a calculation
type CalculationConfig struct {
	VATEnabled         bool            `json:"vat_enabled"`
	VATRegistered      bool            `json:"vat_registered"`
	VATRate            decimal.Decimal `json:"vat_rate"`
	PlatformFeeEnabled bool            `json:"platform_fee_enabled"`
	PlatformFeeRate    decimal.Decimal `json:"platform_fee_rate"`
	Discount           decimal.Decimal `json:"discount"`
	DiscountType       DiscountType    `json:"discount_type"`
}

// LineTotals is the computed result for a single line.
// Subtotal is quantity * unit price as entered; Net is the VAT-exclusive amount;
// Total is the VAT-inclusive amount.
type LineTotals struct {
	Subtotal    decimal.Decimal
	VATRate     decimal.Decimal
	VATIncluded bool
	VAT         decimal.Decimal
	Net         decimal.Decimal
	Total       decimal.Decimal
}

// Summary carries the invoice-level totals.
// Total == SubtotalAfterDiscount + VATAmount and GrandTotal == Total + PlatformFee always hold exactly.
type Summary struct {
	Subtotal              decimal.Decimal
	DiscountAmount        decimal.Decimal
	SubtotalAfterDiscount decimal.Decimal
	VATAmount             decimal.Decimal
	Total                 decimal.Decimal
	PlatformFee           decimal.Decimal
	GrandTotal            decimal.Decimal
}

// Totals is the output of Calculate
type Totals struct {
	Summary
	Lines []LineTotals
}

// Calculate turns line items and configuration into totals.
// It performs no I/O and returns only InvalidInput errors.
//
// The invoice subtotal is the sum of VAT-exclusive line amounts, so a VAT-inclusive
// line contributes its price minus the extracted VAT. The discount applies to that
// subtotal; VAT is summed per line and is not reduced by the discount.
func Calculate(items []LineInput, cfg CalculationConfig) (Totals, error) {
	if err := validateCalculationInput(items, cfg); err != nil {
		return Totals{}, err
	}

	lines := make([]LineTotals, 0, len(items))
	subtotal := decimal.Zero
	vatSum := decimal.Zero

	for _, item := range items {
		rate := cfg.VATRate
		if item.VATRate != nil {
			rate = *item.VATRate
		}

		lineSubtotal := item.Quantity.Mul(*item.UnitPrice)
		lineVAT := decimal.Zero
		if cfg.VATEnabled && cfg.VATRegistered && rate.IsPositive() {
			if item.VATIncluded {
				lineVAT = lineSubtotal.Mul(rate).Div(hundred.Add(rate))
			} else {
				lineVAT = lineSubtotal.Mul(rate).Div(hundred)
			}
		}

		lineNet := lineSubtotal
		lineTotal := lineSubtotal
		if item.VATIncluded {
			lineNet = lineSubtotal.Sub(lineVAT)
		} else {
			lineTotal = lineSubtotal.Add(lineVAT)
		}

		subtotal = subtotal.Add(lineNet)
		vatSum = vatSum.Add(lineVAT)

		lines = append(lines, LineTotals{
			Subtotal:    round(lineSubtotal),
			VATRate:     rate,
			VATIncluded: item.VATIncluded,
			VAT:         round(lineVAT),
			Net:         round(lineNet),
			Total:       round(lineTotal),
		})
	}

	var discountAmount decimal.Decimal
	if cfg.DiscountType == DiscountTypePercentage {
		discountAmount = subtotal.Mul(cfg.Discount).Div(hundred)
	} else {
		discountAmount = cfg.Discount
	}

	afterDiscount := subtotal.Sub(discountAmount)
	if afterDiscount.IsNegative() {
		afterDiscount = decimal.Zero
	}

	// Totals are composed from already rounded parts so the accounting identities hold to the cent.
	summary := Summary{
		Subtotal:              round(subtotal),
		DiscountAmount:        round(discountAmount),
		SubtotalAfterDiscount: round(afterDiscount),
		VATAmount:             round(vatSum),
	}
	summary.Total = summary.SubtotalAfterDiscount.Add(summary.VATAmount)
	summary.PlatformFee = decimal.Zero
	if cfg.PlatformFeeEnabled {
		summary.PlatformFee = round(summary.Total.Mul(cfg.PlatformFeeRate))
	}
	summary.GrandTotal = summary.Total.Add(summary.PlatformFee)

	return Totals{Summary: summary, Lines: lines}, nil
}

func validateCalculationInput(items []LineInput, cfg CalculationConfig) error {
	if len(items) == 0 {
		return shared.NewDomainError(shared.CodeInvalidInput, "Invoice must have at least one item")
	}
	for i, item := range items {
		if item.Quantity == nil {
			return shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("Item %d is missing quantity", i+1))
		}
		if item.UnitPrice == nil {
			return shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("Item %d is missing unit price", i+1))
		}
		if item.Quantity.IsNegative() {
			return shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("Item %d has a negative quantity", i+1))
		}
		if item.UnitPrice.IsNegative() {
			return shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("Item %d has a negative unit price", i+1))
		}
		if item.VATRate != nil && item.VATRate.IsNegative() {
			return shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("Item %d has a negative VAT rate", i+1))
		}
	}
	if cfg.VATRate.IsNegative() {
		return shared.NewDomainError(shared.CodeInvalidInput, "VAT rate cannot be negative")
	}
	if cfg.PlatformFeeRate.IsNegative() {
		return shared.NewDomainError(shared.CodeInvalidInput, "Platform fee rate cannot be negative")
	}
	if cfg.Discount.IsNegative() {
		return shared.NewDomainError(shared.CodeInvalidInput, "Discount cannot be negative")
	}
	if !cfg.DiscountType.IsValid() {
		return shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("Unknown discount type %q", cfg.DiscountType))
	}
	return nil
}

func round(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}
