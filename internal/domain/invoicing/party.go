package invoicing

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NumberingMode selects which counter feeds invoice serial numbers
type NumberingMode string

const (
	// NumberingModeGlobal draws serials from the company-wide counter
	NumberingModeGlobal NumberingMode = "global"
	// NumberingModeClient draws serials from each client's own counter
	NumberingModeClient NumberingMode = "client"
)

// IsValid checks if the mode is known
func (m NumberingMode) IsValid() bool {
	return m == NumberingModeGlobal || m == NumberingModeClient
}

// Branding holds the visual identity printed on invoices
type Branding struct {
	LogoURL        string `json:"logo_url,omitempty"`
	PrimaryColor   string `json:"primary_color,omitempty"`
	SecondaryColor string `json:"secondary_color,omitempty"`
	FooterText     string `json:"footer_text,omitempty"`
}

// Company is the seller issuing invoices. It is maintained outside this core;
// invoicing reads it and advances its invoice counter.
type Company struct {
	ID                  uuid.UUID
	TenantID            uuid.UUID
	Name                string
	KRAPIN              string
	Address             string
	Email               string
	Phone               string
	Currency            string
	NumberingMode       NumberingMode
	VATEnabled          bool
	VATRegistered       bool
	VATRate             decimal.Decimal
	PlatformFeeEnabled  bool
	PlatformFeeRate     decimal.Decimal
	Branding            Branding
	DefaultTemplateID   *uuid.UUID
	NextInvoiceSequence int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// CalculationConfig returns the configuration the company's current settings imply
// for an invoice carrying the given discount
func (c *Company) CalculationConfig(discount decimal.Decimal, discountType DiscountType) CalculationConfig {
	return CalculationConfig{
		VATEnabled:         c.VATEnabled,
		VATRegistered:      c.VATRegistered,
		VATRate:            c.VATRate,
		PlatformFeeEnabled: c.PlatformFeeEnabled,
		PlatformFeeRate:    c.PlatformFeeRate,
		Discount:           discount,
		DiscountType:       discountType,
	}
}

// EffectiveNumberingMode returns the configured mode, falling back to global
func (c *Company) EffectiveNumberingMode() NumberingMode {
	if c.NumberingMode.IsValid() {
		return c.NumberingMode
	}
	return NumberingModeGlobal
}

// Client is the buyer on an invoice
type Client struct {
	ID                  uuid.UUID
	TenantID            uuid.UUID
	CompanyID           uuid.UUID
	Code                string
	Name                string
	Email               string
	Phone               string
	Address             string
	KRAPIN              string
	NextInvoiceSequence int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// NumberingCode returns the short code that keeps client-scoped invoice numbers
// distinct within a company
func (c *Client) NumberingCode() string {
	if code := strings.TrimSpace(c.Code); code != "" {
		return strings.ToUpper(code)
	}
	return strings.ToUpper(c.ID.String()[:8])
}

// Template describes the layout an invoice is rendered with
type Template struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Name      string
	Slug      string
	Layout    string
	ShowVAT   bool
	ShowNotes bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PlatformFeeStatus tracks whether the platform fee has been collected
type PlatformFeeStatus string

const (
	PlatformFeeStatusPending   PlatformFeeStatus = "pending"
	PlatformFeeStatusCollected PlatformFeeStatus = "collected"
	PlatformFeeStatusWaived    PlatformFeeStatus = "waived"
)

// PlatformFee is the fee the platform charges on an invoice
type PlatformFee struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	InvoiceID uuid.UUID
	Rate      decimal.Decimal
	Amount    decimal.Decimal
	Status    PlatformFeeStatus
	CreatedAt time.Time
}
