package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/shopspring/decimal"
)

// CompanyModel is the persistence model for the issuing company.
// NextInvoiceSequence is the global-mode counter and is only advanced by the sequence repository.
type CompanyModel struct {
	TenantModel
	Name                string                  `gorm:"type:varchar(200);not null"`
	KRAPIN              string                  `gorm:"column:kra_pin;type:varchar(20)"`
	Address             string                  `gorm:"type:text"`
	Email               string                  `gorm:"type:varchar(200)"`
	Phone               string                  `gorm:"type:varchar(50)"`
	Currency            string                  `gorm:"type:varchar(3);not null;default:'KES'"`
	NumberingMode       invoicing.NumberingMode `gorm:"type:varchar(10);not null;default:'global'"`
	VATEnabled          bool                    `gorm:"not null;default:false"`
	VATRegistered       bool                    `gorm:"not null;default:false"`
	VATRate             decimal.Decimal         `gorm:"type:decimal(9,4);not null;default:0"`
	PlatformFeeEnabled  bool                    `gorm:"not null;default:false"`
	PlatformFeeRate     decimal.Decimal         `gorm:"type:decimal(9,6);not null;default:0"`
	LogoURL             string                  `gorm:"type:varchar(500)"`
	PrimaryColor        string                  `gorm:"type:varchar(20)"`
	SecondaryColor      string                  `gorm:"type:varchar(20)"`
	FooterText          string                  `gorm:"type:text"`
	DefaultTemplateID   *uuid.UUID              `gorm:"type:uuid"`
	NextInvoiceSequence int64                   `gorm:"not null;default:1"`
}

// TableName returns the table name for GORM
func (CompanyModel) TableName() string {
	return "companies"
}

// ToDomain converts the persistence model to a domain Company
func (m *CompanyModel) ToDomain() *invoicing.Company {
	return &invoicing.Company{
		ID:                 m.ID,
		TenantID:           m.TenantID,
		Name:               m.Name,
		KRAPIN:             m.KRAPIN,
		Address:            m.Address,
		Email:              m.Email,
		Phone:              m.Phone,
		Currency:           m.Currency,
		NumberingMode:      m.NumberingMode,
		VATEnabled:         m.VATEnabled,
		VATRegistered:      m.VATRegistered,
		VATRate:            m.VATRate,
		PlatformFeeEnabled: m.PlatformFeeEnabled,
		PlatformFeeRate:    m.PlatformFeeRate,
		Branding: invoicing.Branding{
			LogoURL:        m.LogoURL,
			PrimaryColor:   m.PrimaryColor,
			SecondaryColor: m.SecondaryColor,
			FooterText:     m.FooterText,
		},
		DefaultTemplateID:   m.DefaultTemplateID,
		NextInvoiceSequence: m.NextInvoiceSequence,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

// CompanyModelFromDomain creates a new persistence model from a domain Company
func CompanyModelFromDomain(c *invoicing.Company) *CompanyModel {
	seq := c.NextInvoiceSequence
	if seq < 1 {
		seq = 1
	}
	return &CompanyModel{
		TenantModel: TenantModel{
			ID:        c.ID,
			TenantID:  c.TenantID,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		},
		Name:                c.Name,
		KRAPIN:              c.KRAPIN,
		Address:             c.Address,
		Email:               c.Email,
		Phone:               c.Phone,
		Currency:            c.Currency,
		NumberingMode:       c.EffectiveNumberingMode(),
		VATEnabled:          c.VATEnabled,
		VATRegistered:       c.VATRegistered,
		VATRate:             c.VATRate,
		PlatformFeeEnabled:  c.PlatformFeeEnabled,
		PlatformFeeRate:     c.PlatformFeeRate,
		LogoURL:             c.Branding.LogoURL,
		PrimaryColor:        c.Branding.PrimaryColor,
		SecondaryColor:      c.Branding.SecondaryColor,
		FooterText:          c.Branding.FooterText,
		DefaultTemplateID:   c.DefaultTemplateID,
		NextInvoiceSequence: seq,
	}
}

// ClientModel is the persistence model for an invoice recipient.
// NextInvoiceSequence is the client-mode counter.
type ClientModel struct {
	TenantModel
	CompanyID           uuid.UUID `gorm:"type:uuid;not null;index"`
	Code                string    `gorm:"type:varchar(20)"`
	Name                string    `gorm:"type:varchar(200);not null"`
	Email               string    `gorm:"type:varchar(200)"`
	Phone               string    `gorm:"type:varchar(50)"`
	Address             string    `gorm:"type:text"`
	KRAPIN              string    `gorm:"column:kra_pin;type:varchar(20)"`
	NextInvoiceSequence int64     `gorm:"not null;default:1"`
}

// TableName returns the table name for GORM
func (ClientModel) TableName() string {
	return "clients"
}

// ToDomain converts the persistence model to a domain Client
func (m *ClientModel) ToDomain() *invoicing.Client {
	return &invoicing.Client{
		ID:                  m.ID,
		TenantID:            m.TenantID,
		CompanyID:           m.CompanyID,
		Code:                m.Code,
		Name:                m.Name,
		Email:               m.Email,
		Phone:               m.Phone,
		Address:             m.Address,
		KRAPIN:              m.KRAPIN,
		NextInvoiceSequence: m.NextInvoiceSequence,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

// ClientModelFromDomain creates a new persistence model from a domain Client
func ClientModelFromDomain(c *invoicing.Client) *ClientModel {
	seq := c.NextInvoiceSequence
	if seq < 1 {
		seq = 1
	}
	return &ClientModel{
		TenantModel: TenantModel{
			ID:        c.ID,
			TenantID:  c.TenantID,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		},
		CompanyID:           c.CompanyID,
		Code:                c.Code,
		Name:                c.Name,
		Email:               c.Email,
		Phone:               c.Phone,
		Address:             c.Address,
		KRAPIN:              c.KRAPIN,
		NextInvoiceSequence: seq,
	}
}

// TemplateModel is the persistence model for invoice layouts
type TemplateModel struct {
	TenantModel
	Name      string `gorm:"type:varchar(100);not null"`
	Slug      string `gorm:"type:varchar(100);not null"`
	Layout    string `gorm:"type:varchar(50)"`
	ShowVAT   bool   `gorm:"column:show_vat;not null"`
	ShowNotes bool   `gorm:"not null"`
}

// TableName returns the table name for GORM
func (TemplateModel) TableName() string {
	return "invoice_templates"
}

// ToDomain converts the persistence model to a domain Template
func (m *TemplateModel) ToDomain() *invoicing.Template {
	return &invoicing.Template{
		ID:        m.ID,
		TenantID:  m.TenantID,
		Name:      m.Name,
		Slug:      m.Slug,
		Layout:    m.Layout,
		ShowVAT:   m.ShowVAT,
		ShowNotes: m.ShowNotes,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// TemplateModelFromDomain creates a new persistence model from a domain Template
func TemplateModelFromDomain(t *invoicing.Template) *TemplateModel {
	return &TemplateModel{
		TenantModel: TenantModel{
			ID:        t.ID,
			TenantID:  t.TenantID,
			CreatedAt: t.CreatedAt,
			UpdatedAt: t.UpdatedAt,
		},
		Name:      t.Name,
		Slug:      t.Slug,
		Layout:    t.Layout,
		ShowVAT:   t.ShowVAT,
		ShowNotes: t.ShowNotes,
	}
}

// PlatformFeeModel is the persistence model for the fee charged on an invoice
type PlatformFeeModel struct {
	ID        uuid.UUID                   `gorm:"type:uuid;primaryKey"`
	TenantID  uuid.UUID                   `gorm:"type:uuid;not null;index"`
	InvoiceID uuid.UUID                   `gorm:"type:uuid;not null;index"`
	Rate      decimal.Decimal             `gorm:"type:decimal(9,6);not null"`
	Amount    decimal.Decimal             `gorm:"type:decimal(18,2);not null"`
	Status    invoicing.PlatformFeeStatus `gorm:"type:varchar(20);not null;default:'pending'"`
	CreatedAt time.Time                   `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PlatformFeeModel) TableName() string {
	return "platform_fees"
}

// ToDomain converts the persistence model to a domain PlatformFee
func (m *PlatformFeeModel) ToDomain() invoicing.PlatformFee {
	return invoicing.PlatformFee{
		ID:        m.ID,
		TenantID:  m.TenantID,
		InvoiceID: m.InvoiceID,
		Rate:      m.Rate,
		Amount:    m.Amount,
		Status:    m.Status,
		CreatedAt: m.CreatedAt,
	}
}

// PlatformFeeModelFromDomain creates a new persistence model from a domain PlatformFee
func PlatformFeeModelFromDomain(f *invoicing.PlatformFee) *PlatformFeeModel {
	return &PlatformFeeModel{
		ID:        f.ID,
		TenantID:  f.TenantID,
		InvoiceID: f.InvoiceID,
		Rate:      f.Rate,
		Amount:    f.Amount,
		Status:    f.Status,
		CreatedAt: f.CreatedAt,
	}
}
