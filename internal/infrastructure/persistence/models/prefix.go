package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
)

// InvoicePrefixModel is the persistence model for one row of a company's prefix history.
// Only ended_at is ever updated.
type InvoicePrefixModel struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TenantID  uuid.UUID  `gorm:"type:uuid;not null;index"`
	CompanyID uuid.UUID  `gorm:"type:uuid;not null;index:idx_invoice_prefixes_company_active,priority:1"`
	Prefix    string     `gorm:"type:varchar(32);not null"`
	StartedAt time.Time  `gorm:"not null;index:idx_invoice_prefixes_company_active,priority:3"`
	EndedAt   *time.Time `gorm:"index:idx_invoice_prefixes_company_active,priority:2"`
}

// TableName returns the table name for GORM
func (InvoicePrefixModel) TableName() string {
	return "invoice_prefixes"
}

// ToDomain converts the persistence model to a domain InvoicePrefix
func (m *InvoicePrefixModel) ToDomain() *invoicing.InvoicePrefix {
	return &invoicing.InvoicePrefix{
		ID:        m.ID,
		TenantID:  m.TenantID,
		CompanyID: m.CompanyID,
		Prefix:    m.Prefix,
		StartedAt: m.StartedAt,
		EndedAt:   m.EndedAt,
	}
}

// InvoicePrefixModelFromDomain creates a new persistence model from a domain InvoicePrefix
func InvoicePrefixModelFromDomain(p *invoicing.InvoicePrefix) *InvoicePrefixModel {
	return &InvoicePrefixModel{
		ID:        p.ID,
		TenantID:  p.TenantID,
		CompanyID: p.CompanyID,
		Prefix:    p.Prefix,
		StartedAt: p.StartedAt,
		EndedAt:   p.EndedAt,
	}
}
