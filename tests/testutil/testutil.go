// Package testutil provides fixtures and helpers shared by the invoicing test suites.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	invoicingapp "github.com/invoicing/backend/internal/application/invoicing"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// FixedNow is the instant fixtures are stamped with
var FixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

// NewTestUUID generates a deterministic UUID for testing.
// Uses the provided seed string to create a reproducible UUID.
func NewTestUUID(seed string) uuid.UUID {
	namespace := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	return uuid.NewSHA1(namespace, []byte(seed))
}

// TestTenantID returns a standard tenant ID for tests.
func TestTenantID() uuid.UUID {
	return NewTestUUID("test-tenant")
}

// TestActorID returns a standard actor ID for tests.
func TestActorID() uuid.UUID {
	return NewTestUUID("test-actor")
}

// Dec parses s and panics on malformed input
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// DecPtr is Dec returning a pointer, as request DTOs expect
func DecPtr(s string) *decimal.Decimal {
	d := Dec(s)
	return &d
}

// NewTestCompany returns a VAT-registered company charging a 3% platform fee
func NewTestCompany(tenantID uuid.UUID, mode invoicing.NumberingMode) *invoicing.Company {
	return &invoicing.Company{
		ID:                 uuid.New(),
		TenantID:           tenantID,
		Name:               "Acme Traders Ltd",
		KRAPIN:             "P051234567X",
		Address:            "Moi Avenue, Nairobi",
		Email:              "billing@acme.co.ke",
		Phone:              "+254700000001",
		Currency:           "KES",
		NumberingMode:      mode,
		VATEnabled:         true,
		VATRegistered:      true,
		VATRate:            Dec("16"),
		PlatformFeeEnabled: true,
		PlatformFeeRate:    Dec("0.03"),
		CreatedAt:          FixedNow,
		UpdatedAt:          FixedNow,
	}
}

// NewTestClient returns a client of company with the given numbering code
func NewTestClient(company *invoicing.Company, code string) *invoicing.Client {
	return &invoicing.Client{
		ID:        uuid.New(),
		TenantID:  company.TenantID,
		CompanyID: company.ID,
		Code:      code,
		Name:      "Client " + code,
		Email:     "accounts@" + code + ".example",
		Address:   "Kimathi Street, Nairobi",
		KRAPIN:    "A001234567B",
		CreatedAt: FixedNow,
		UpdatedAt: FixedNow,
	}
}

// LineItem builds a request line item
func LineItem(description, quantity, unitPrice string) invoicingapp.LineItemInput {
	return invoicingapp.LineItemInput{
		Description: description,
		Quantity:    DecPtr(quantity),
		UnitPrice:   DecPtr(unitPrice),
	}
}

// DraftRequest is a one-line draft (2 x 100) due thirty days after FixedNow
func DraftRequest(companyID uuid.UUID, clientID *uuid.UUID) invoicingapp.CreateInvoiceRequest {
	due := FixedNow.AddDate(0, 0, 30)
	return invoicingapp.CreateInvoiceRequest{
		CompanyID: companyID,
		ClientID:  clientID,
		DueDate:   &due,
		Items:     []invoicingapp.LineItemInput{LineItem("Consulting", "2", "100")},
	}
}

// ContextWithTimeout creates a context with a timeout for tests.
func ContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// RequireEventually retries condition until it passes or fails the test at timeout.
func RequireEventually(t *testing.T, condition func() bool, timeout, interval time.Duration, msgAndArgs ...any) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(interval)
	}

	require.Fail(t, "Condition not met within timeout", msgAndArgs...)
}
