package logger

import (
	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"go.uber.org/zap"
)

// Invoice returns the fields that identify an invoice in every log line about it
func Invoice(inv *invoicing.Invoice) []zap.Field {
	if inv == nil {
		return nil
	}
	fields := []zap.Field{
		zap.String("invoice_id", inv.ID.String()),
		zap.String("company_id", inv.CompanyID.String()),
		zap.String("status", string(inv.Status())),
	}
	if n := inv.FullNumber(); n != "" {
		fields = append(fields, zap.String("invoice_number", n))
	}
	return fields
}

// InvoiceID returns the invoice_id field
func InvoiceID(id uuid.UUID) zap.Field {
	return zap.String("invoice_id", id.String())
}

// TenantID returns the tenant_id field
func TenantID(id uuid.UUID) zap.Field {
	return zap.String("tenant_id", id.String())
}
