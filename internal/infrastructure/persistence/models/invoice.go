package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for the Invoice aggregate root.
// The numbering columns are written once on insert and omitted from every update.
type InvoiceModel struct {
	TenantAggregateModel
	CompanyID             uuid.UUID               `gorm:"type:uuid;not null;uniqueIndex:idx_invoices_company_number,priority:1;index"`
	ClientID              *uuid.UUID              `gorm:"type:uuid;index"`
	TemplateID            *uuid.UUID              `gorm:"type:uuid"`
	PrefixUsed            string                  `gorm:"type:varchar(64);not null"`
	SerialNumber          int64                   `gorm:"not null"`
	FullNumber            string                  `gorm:"type:varchar(100);not null;uniqueIndex:idx_invoices_company_number,priority:2"`
	NumberingMode         invoicing.NumberingMode `gorm:"type:varchar(10);not null"`
	Status                invoicing.InvoiceStatus `gorm:"type:varchar(20);not null;index"`
	Currency              string                  `gorm:"type:varchar(3);not null"`
	IssueDate             time.Time               `gorm:"type:date;not null"`
	DueDate               time.Time               `gorm:"type:date;not null;index"`
	Notes                 string                  `gorm:"type:text"`
	VATEnabled            bool                    `gorm:"column:vat_enabled;not null"`
	VATRegistered         bool                    `gorm:"column:vat_registered;not null"`
	VATRate               decimal.Decimal         `gorm:"column:vat_rate;type:decimal(9,4);not null"`
	PlatformFeeEnabled    bool                    `gorm:"not null"`
	PlatformFeeRate       decimal.Decimal         `gorm:"type:decimal(9,6);not null"`
	Discount              decimal.Decimal         `gorm:"type:decimal(18,4);not null"`
	DiscountType          invoicing.DiscountType  `gorm:"type:varchar(20)"`
	Subtotal              decimal.Decimal         `gorm:"type:decimal(18,2);not null"`
	DiscountAmount        decimal.Decimal         `gorm:"type:decimal(18,2);not null"`
	SubtotalAfterDiscount decimal.Decimal         `gorm:"type:decimal(18,2);not null"`
	VATAmount             decimal.Decimal         `gorm:"column:vat_amount;type:decimal(18,2);not null"`
	Total                 decimal.Decimal         `gorm:"type:decimal(18,2);not null"`
	PlatformFee           decimal.Decimal         `gorm:"type:decimal(18,2);not null"`
	GrandTotal            decimal.Decimal         `gorm:"type:decimal(18,2);not null"`
	FinalizedAt           *time.Time
	SentAt                *time.Time
	PaidAt                *time.Time
	OverdueAt             *time.Time
	CancelledAt           *time.Time
	Items                 []InvoiceItemModel `gorm:"foreignKey:InvoiceID"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// NumberingColumns are never part of an UPDATE statement
var NumberingColumns = []string{"prefix_used", "serial_number", "full_number", "numbering_mode", "company_id", "tenant_id", "created_at", "created_by"}

// ToDomain converts the persistence model to a domain Invoice.
// Items are included when they were preloaded.
func (m *InvoiceModel) ToDomain() (*invoicing.Invoice, error) {
	inv := &invoicing.Invoice{
		CompanyID:  m.CompanyID,
		ClientID:   m.ClientID,
		TemplateID: m.TemplateID,
		Currency:   m.Currency,
		IssueDate:  m.IssueDate,
		DueDate:    m.DueDate,
		Notes:      m.Notes,
		Config: invoicing.CalculationConfig{
			VATEnabled:         m.VATEnabled,
			VATRegistered:      m.VATRegistered,
			VATRate:            m.VATRate,
			PlatformFeeEnabled: m.PlatformFeeEnabled,
			PlatformFeeRate:    m.PlatformFeeRate,
			Discount:           m.Discount,
			DiscountType:       m.DiscountType,
		},
		Summary: invoicing.Summary{
			Subtotal:              m.Subtotal,
			DiscountAmount:        m.DiscountAmount,
			SubtotalAfterDiscount: m.SubtotalAfterDiscount,
			VATAmount:             m.VATAmount,
			Total:                 m.Total,
			PlatformFee:           m.PlatformFee,
			GrandTotal:            m.GrandTotal,
		},
		FinalizedAt: m.FinalizedAt,
		SentAt:      m.SentAt,
		PaidAt:      m.PaidAt,
		OverdueAt:   m.OverdueAt,
		CancelledAt: m.CancelledAt,
	}
	m.CopyRootTo(&inv.TenantAggregateRoot)

	if m.Items != nil {
		inv.Items = make([]invoicing.InvoiceItem, len(m.Items))
		for i := range m.Items {
			inv.Items[i] = m.Items[i].ToDomain()
		}
	}

	number := invoicing.InvoiceNumber{
		Prefix:     m.PrefixUsed,
		Serial:     m.SerialNumber,
		FullNumber: m.FullNumber,
		Mode:       m.NumberingMode,
	}
	return invoicing.RestoreInvoice(inv, number, m.Status)
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice.
// Items are not copied; they are written by the item statements of the repository.
func InvoiceModelFromDomain(inv *invoicing.Invoice) *InvoiceModel {
	m := &InvoiceModel{
		CompanyID:             inv.CompanyID,
		ClientID:              inv.ClientID,
		TemplateID:            inv.TemplateID,
		PrefixUsed:            inv.PrefixUsed(),
		SerialNumber:          inv.SerialNumber(),
		FullNumber:            inv.FullNumber(),
		NumberingMode:         inv.NumberingMode(),
		Status:                inv.Status(),
		Currency:              inv.Currency,
		IssueDate:             inv.IssueDate,
		DueDate:               inv.DueDate,
		Notes:                 inv.Notes,
		VATEnabled:            inv.Config.VATEnabled,
		VATRegistered:         inv.Config.VATRegistered,
		VATRate:               inv.Config.VATRate,
		PlatformFeeEnabled:    inv.Config.PlatformFeeEnabled,
		PlatformFeeRate:       inv.Config.PlatformFeeRate,
		Discount:              inv.Config.Discount,
		DiscountType:          inv.Config.DiscountType,
		Subtotal:              inv.Summary.Subtotal,
		DiscountAmount:        inv.Summary.DiscountAmount,
		SubtotalAfterDiscount: inv.Summary.SubtotalAfterDiscount,
		VATAmount:             inv.Summary.VATAmount,
		Total:                 inv.Summary.Total,
		PlatformFee:           inv.Summary.PlatformFee,
		GrandTotal:            inv.Summary.GrandTotal,
		FinalizedAt:           inv.FinalizedAt,
		SentAt:                inv.SentAt,
		PaidAt:                inv.PaidAt,
		OverdueAt:             inv.OverdueAt,
		CancelledAt:           inv.CancelledAt,
	}
	m.SetRoot(inv.TenantAggregateRoot)
	return m
}

// InvoiceItemModel is the persistence model for an invoice line
type InvoiceItemModel struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"`
	TenantID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	InvoiceID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position     int             `gorm:"not null"`
	Description  string          `gorm:"type:varchar(500);not null"`
	Quantity     decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	VATIncluded  bool            `gorm:"column:vat_included;not null"`
	VATRate      decimal.Decimal `gorm:"column:vat_rate;type:decimal(9,4);not null"`
	LineSubtotal decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	VATAmount    decimal.Decimal `gorm:"column:vat_amount;type:decimal(18,2);not null"`
	NetAmount    decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	LineTotal    decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	CreatedAt    time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InvoiceItemModel) TableName() string {
	return "invoice_items"
}

// ToDomain converts the persistence model to a domain InvoiceItem
func (m *InvoiceItemModel) ToDomain() invoicing.InvoiceItem {
	return invoicing.InvoiceItem{
		ID:           m.ID,
		TenantID:     m.TenantID,
		InvoiceID:    m.InvoiceID,
		Position:     m.Position,
		Description:  m.Description,
		Quantity:     m.Quantity,
		UnitPrice:    m.UnitPrice,
		VATIncluded:  m.VATIncluded,
		VATRate:      m.VATRate,
		LineSubtotal: m.LineSubtotal,
		VATAmount:    m.VATAmount,
		NetAmount:    m.NetAmount,
		LineTotal:    m.LineTotal,
		CreatedAt:    m.CreatedAt,
	}
}

// InvoiceItemModelFromDomain creates a new persistence model from a domain InvoiceItem
func InvoiceItemModelFromDomain(i *invoicing.InvoiceItem) *InvoiceItemModel {
	return &InvoiceItemModel{
		ID:           i.ID,
		TenantID:     i.TenantID,
		InvoiceID:    i.InvoiceID,
		Position:     i.Position,
		Description:  i.Description,
		Quantity:     i.Quantity,
		UnitPrice:    i.UnitPrice,
		VATIncluded:  i.VATIncluded,
		VATRate:      i.VATRate,
		LineSubtotal: i.LineSubtotal,
		VATAmount:    i.VATAmount,
		NetAmount:    i.NetAmount,
		LineTotal:    i.LineTotal,
		CreatedAt:    i.CreatedAt,
	}
}
