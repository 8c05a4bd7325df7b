package invoicing

import (
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/shopspring/decimal"
)

// ==================== Request DTOs ====================

// LineItemInput represents a line item in a calculate, create or update request
type LineItemInput struct {
	Description string           `json:"description" binding:"max=500"`
	Quantity    *decimal.Decimal `json:"quantity" binding:"required"`
	UnitPrice   *decimal.Decimal `json:"unit_price" binding:"required"`
	VATIncluded bool             `json:"vat_included"`
	VATRate     *decimal.Decimal `json:"vat_rate"`
}

// CalculationConfigInput carries explicit calculation settings
type CalculationConfigInput struct {
	VATEnabled         bool            `json:"vat_enabled"`
	VATRegistered      bool            `json:"vat_registered"`
	VATRate            decimal.Decimal `json:"vat_rate"`
	PlatformFeeEnabled bool            `json:"platform_fee_enabled"`
	PlatformFeeRate    decimal.Decimal `json:"platform_fee_rate"`
}

// CalculateRequest represents a dry-run calculation. Either CompanyID or Config
// must be set; with CompanyID the company's current settings are used.
type CalculateRequest struct {
	CompanyID    *uuid.UUID              `json:"company_id"`
	Config       *CalculationConfigInput `json:"config"`
	Discount     decimal.Decimal         `json:"discount"`
	DiscountType string                  `json:"discount_type" binding:"omitempty,oneof=percentage fixed"`
	Items        []LineItemInput         `json:"items" binding:"required,min=1,dive"`
}

// CreateInvoiceRequest represents a request to create a numbered draft invoice
type CreateInvoiceRequest struct {
	CompanyID    uuid.UUID       `json:"company_id" binding:"required"`
	ClientID     *uuid.UUID      `json:"client_id"`
	TemplateID   *uuid.UUID      `json:"template_id"`
	Currency     string          `json:"currency" binding:"omitempty,len=3"`
	IssueDate    *time.Time      `json:"issue_date"`
	DueDate      *time.Time      `json:"due_date"`
	Notes        string          `json:"notes" binding:"max=2000"`
	Discount     decimal.Decimal `json:"discount"`
	DiscountType string          `json:"discount_type" binding:"omitempty,oneof=percentage fixed"`
	Items        []LineItemInput `json:"items" binding:"required,min=1,dive"`
}

// UpdateInvoiceItemsRequest replaces the items and discount of a draft
type UpdateInvoiceItemsRequest struct {
	Discount     decimal.Decimal `json:"discount"`
	DiscountType string          `json:"discount_type" binding:"omitempty,oneof=percentage fixed"`
	Items        []LineItemInput `json:"items" binding:"required,min=1,dive"`
}

// TransitionRequest moves an invoice to a new status
type TransitionRequest struct {
	Status string `json:"status" binding:"required"`
}

// AllocateNumberRequest draws the next invoice number for a company, or for a
// client under client-scoped numbering
type AllocateNumberRequest struct {
	CompanyID uuid.UUID  `json:"company_id" binding:"required"`
	ClientID  *uuid.UUID `json:"client_id"`
}

// ChangePrefixRequest switches the active invoice prefix of a company
type ChangePrefixRequest struct {
	Prefix string `json:"prefix" binding:"required,min=1,max=32"`
}

// InvoiceListFilter represents query options for listing invoices
type InvoiceListFilter struct {
	Page      int        `form:"page" binding:"omitempty,min=1"`
	PageSize  int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy   string     `form:"order_by"`
	OrderDir  string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
	Search    string     `form:"search"`
	CompanyID *uuid.UUID `form:"company_id"`
	ClientID  *uuid.UUID `form:"client_id"`
	Status    string     `form:"status"`
}

// ==================== Response DTOs ====================

// LineTotalsResponse is the computed result of one line
type LineTotalsResponse struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	VATRate     decimal.Decimal `json:"vat_rate"`
	VATIncluded bool            `json:"vat_included"`
	VAT         decimal.Decimal `json:"vat"`
	Net         decimal.Decimal `json:"net"`
	Total       decimal.Decimal `json:"total"`
}

// SummaryResponse carries invoice-level totals
type SummaryResponse struct {
	Subtotal              decimal.Decimal `json:"subtotal"`
	DiscountAmount        decimal.Decimal `json:"discount_amount"`
	SubtotalAfterDiscount decimal.Decimal `json:"subtotal_after_discount"`
	VATAmount             decimal.Decimal `json:"vat_amount"`
	Total                 decimal.Decimal `json:"total"`
	PlatformFee           decimal.Decimal `json:"platform_fee"`
	GrandTotal            decimal.Decimal `json:"grand_total"`
}

// CalculationResponse is the result of a dry-run calculation
type CalculationResponse struct {
	Lines   []LineTotalsResponse `json:"lines"`
	Summary SummaryResponse      `json:"summary"`
}

// InvoiceItemResponse represents an invoice line
type InvoiceItemResponse struct {
	ID           uuid.UUID       `json:"id"`
	Position     int             `json:"position"`
	Description  string          `json:"description"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	VATIncluded  bool            `json:"vat_included"`
	VATRate      decimal.Decimal `json:"vat_rate"`
	LineSubtotal decimal.Decimal `json:"line_subtotal"`
	VATAmount    decimal.Decimal `json:"vat_amount"`
	NetAmount    decimal.Decimal `json:"net_amount"`
	LineTotal    decimal.Decimal `json:"line_total"`
}

// InvoiceResponse represents an invoice with its items
type InvoiceResponse struct {
	ID                 uuid.UUID             `json:"id"`
	TenantID           uuid.UUID             `json:"tenant_id"`
	CompanyID          uuid.UUID             `json:"company_id"`
	ClientID           *uuid.UUID            `json:"client_id,omitempty"`
	TemplateID         *uuid.UUID            `json:"template_id,omitempty"`
	PrefixUsed         string                `json:"prefix_used"`
	SerialNumber       int64                 `json:"serial_number"`
	InvoiceNumber      string                `json:"invoice_number"`
	NumberingMode      string                `json:"numbering_mode"`
	Status             string                `json:"status"`
	StatusLabel        string                `json:"status_label"`
	Currency           string                `json:"currency"`
	IssueDate          time.Time             `json:"issue_date"`
	DueDate            time.Time             `json:"due_date"`
	Notes              string                `json:"notes,omitempty"`
	Discount           decimal.Decimal       `json:"discount"`
	DiscountType       string                `json:"discount_type"`
	VATEnabled         bool                  `json:"vat_enabled"`
	VATRegistered      bool                  `json:"vat_registered"`
	VATRate            decimal.Decimal       `json:"vat_rate"`
	PlatformFeeEnabled bool                  `json:"platform_fee_enabled"`
	PlatformFeeRate    decimal.Decimal       `json:"platform_fee_rate"`
	Summary            SummaryResponse       `json:"summary"`
	DisplayGrandTotal  string                `json:"display_grand_total"`
	Items              []InvoiceItemResponse `json:"items,omitempty"`
	FinalizedAt        *time.Time            `json:"finalized_at,omitempty"`
	SentAt             *time.Time            `json:"sent_at,omitempty"`
	PaidAt             *time.Time            `json:"paid_at,omitempty"`
	OverdueAt          *time.Time            `json:"overdue_at,omitempty"`
	CancelledAt        *time.Time            `json:"cancelled_at,omitempty"`
	Version            int                   `json:"version"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

// InvoiceListItemResponse represents an invoice in a list
type InvoiceListItemResponse struct {
	ID                uuid.UUID       `json:"id"`
	CompanyID         uuid.UUID       `json:"company_id"`
	ClientID          *uuid.UUID      `json:"client_id,omitempty"`
	InvoiceNumber     string          `json:"invoice_number"`
	Status            string          `json:"status"`
	StatusLabel       string          `json:"status_label"`
	Currency          string          `json:"currency"`
	IssueDate         time.Time       `json:"issue_date"`
	DueDate           time.Time       `json:"due_date"`
	GrandTotal        decimal.Decimal `json:"grand_total"`
	DisplayGrandTotal string          `json:"display_grand_total"`
	CreatedAt         time.Time       `json:"created_at"`
}

// InvoiceNumberResponse represents an allocated number
type InvoiceNumberResponse struct {
	Prefix        string `json:"prefix"`
	Serial        int64  `json:"serial"`
	InvoiceNumber string `json:"invoice_number"`
	NumberingMode string `json:"numbering_mode"`
}

// PrefixResponse represents one row of a company's prefix history
type PrefixResponse struct {
	ID        uuid.UUID  `json:"id"`
	CompanyID uuid.UUID  `json:"company_id"`
	Prefix    string     `json:"prefix"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Active    bool       `json:"active"`
}

// SnapshotResponse represents the frozen record of a finalized invoice
type SnapshotResponse struct {
	ID        uuid.UUID         `json:"id"`
	InvoiceID uuid.UUID         `json:"invoice_id"`
	Legacy    bool              `json:"legacy"`
	TakenAt   time.Time         `json:"taken_at"`
	TakenBy   uuid.UUID         `json:"taken_by"`
	Payload   invoicing.Payload `json:"payload"`
}

// BackfillResult reports a legacy snapshot backfill run
type BackfillResult struct {
	Scanned int `json:"scanned"`
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// ==================== Converters ====================

// ToItemInputs converts request items into domain item inputs
func ToItemInputs(items []LineItemInput) []invoicing.ItemInput {
	inputs := make([]invoicing.ItemInput, len(items))
	for i, item := range items {
		inputs[i] = invoicing.ItemInput{
			Description: item.Description,
			LineInput: invoicing.LineInput{
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
				VATIncluded: item.VATIncluded,
				VATRate:     item.VATRate,
			},
		}
	}
	return inputs
}

// ToLineInputs converts request items into calculation inputs
func ToLineInputs(items []LineItemInput) []invoicing.LineInput {
	lines := make([]invoicing.LineInput, len(items))
	for i, in := range ToItemInputs(items) {
		lines[i] = in.LineInput
	}
	return lines
}

// ToSummaryResponse converts domain totals to a response
func ToSummaryResponse(s invoicing.Summary) SummaryResponse {
	return SummaryResponse{
		Subtotal:              s.Subtotal,
		DiscountAmount:        s.DiscountAmount,
		SubtotalAfterDiscount: s.SubtotalAfterDiscount,
		VATAmount:             s.VATAmount,
		Total:                 s.Total,
		PlatformFee:           s.PlatformFee,
		GrandTotal:            s.GrandTotal,
	}
}

// ToCalculationResponse converts a calculation result to a response
func ToCalculationResponse(t invoicing.Totals) CalculationResponse {
	lines := make([]LineTotalsResponse, len(t.Lines))
	for i, l := range t.Lines {
		lines[i] = LineTotalsResponse{
			Subtotal:    l.Subtotal,
			VATRate:     l.VATRate,
			VATIncluded: l.VATIncluded,
			VAT:         l.VAT,
			Net:         l.Net,
			Total:       l.Total,
		}
	}
	return CalculationResponse{Lines: lines, Summary: ToSummaryResponse(t.Summary)}
}

// ToInvoiceResponse converts an invoice to a response DTO
func ToInvoiceResponse(inv *invoicing.Invoice, f invoicing.Formatter) InvoiceResponse {
	discountType := inv.Config.DiscountType
	if discountType == "" {
		discountType = invoicing.DiscountTypeFixed
	}
	items := make([]InvoiceItemResponse, len(inv.Items))
	for i, item := range inv.Items {
		items[i] = InvoiceItemResponse{
			ID:           item.ID,
			Position:     item.Position,
			Description:  item.Description,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			VATIncluded:  item.VATIncluded,
			VATRate:      item.VATRate,
			LineSubtotal: item.LineSubtotal,
			VATAmount:    item.VATAmount,
			NetAmount:    item.NetAmount,
			LineTotal:    item.LineTotal,
		}
	}
	return InvoiceResponse{
		ID:                 inv.ID,
		TenantID:           inv.TenantID,
		CompanyID:          inv.CompanyID,
		ClientID:           inv.ClientID,
		TemplateID:         inv.TemplateID,
		PrefixUsed:         inv.PrefixUsed(),
		SerialNumber:       inv.SerialNumber(),
		InvoiceNumber:      inv.FullNumber(),
		NumberingMode:      string(inv.NumberingMode()),
		Status:             string(inv.Status()),
		StatusLabel:        f.StatusLabel(inv.Status()),
		Currency:           inv.Currency,
		IssueDate:          inv.IssueDate,
		DueDate:            inv.DueDate,
		Notes:              inv.Notes,
		Discount:           inv.Config.Discount,
		DiscountType:       string(discountType),
		VATEnabled:         inv.Config.VATEnabled,
		VATRegistered:      inv.Config.VATRegistered,
		VATRate:            inv.Config.VATRate,
		PlatformFeeEnabled: inv.Config.PlatformFeeEnabled,
		PlatformFeeRate:    inv.Config.PlatformFeeRate,
		Summary:            ToSummaryResponse(inv.Summary),
		DisplayGrandTotal:  f.Amount(inv.Summary.GrandTotal, inv.Currency),
		Items:              items,
		FinalizedAt:        inv.FinalizedAt,
		SentAt:             inv.SentAt,
		PaidAt:             inv.PaidAt,
		OverdueAt:          inv.OverdueAt,
		CancelledAt:        inv.CancelledAt,
		Version:            inv.Version,
		CreatedAt:          inv.CreatedAt,
		UpdatedAt:          inv.UpdatedAt,
	}
}

// ToInvoiceListItemResponse converts an invoice to a list item
func ToInvoiceListItemResponse(inv *invoicing.Invoice, f invoicing.Formatter) InvoiceListItemResponse {
	return InvoiceListItemResponse{
		ID:                inv.ID,
		CompanyID:         inv.CompanyID,
		ClientID:          inv.ClientID,
		InvoiceNumber:     inv.FullNumber(),
		Status:            string(inv.Status()),
		StatusLabel:       f.StatusLabel(inv.Status()),
		Currency:          inv.Currency,
		IssueDate:         inv.IssueDate,
		DueDate:           inv.DueDate,
		GrandTotal:        inv.Summary.GrandTotal,
		DisplayGrandTotal: f.Amount(inv.Summary.GrandTotal, inv.Currency),
		CreatedAt:         inv.CreatedAt,
	}
}

// ToInvoiceNumberResponse converts an allocated number to a response
func ToInvoiceNumberResponse(n invoicing.InvoiceNumber) InvoiceNumberResponse {
	return InvoiceNumberResponse{
		Prefix:        n.Prefix,
		Serial:        n.Serial,
		InvoiceNumber: n.FullNumber,
		NumberingMode: string(n.Mode),
	}
}

// ToPrefixResponse converts a prefix row to a response
func ToPrefixResponse(p *invoicing.InvoicePrefix) PrefixResponse {
	return PrefixResponse{
		ID:        p.ID,
		CompanyID: p.CompanyID,
		Prefix:    p.Prefix,
		StartedAt: p.StartedAt,
		EndedAt:   p.EndedAt,
		Active:    p.IsActive(),
	}
}

// ToSnapshotResponse converts a snapshot to a response
func ToSnapshotResponse(s *invoicing.Snapshot) SnapshotResponse {
	return SnapshotResponse{
		ID:        s.ID,
		InvoiceID: s.InvoiceID,
		Legacy:    s.Legacy,
		TakenAt:   s.TakenAt,
		TakenBy:   s.TakenBy,
		Payload:   s.Payload,
	}
}
