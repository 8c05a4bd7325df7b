package invoicing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/event"
	"github.com/invoicing/backend/internal/infrastructure/persistence"
	"github.com/invoicing/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

type fixture struct {
	db        *gorm.DB
	store     *persistence.GormUnitOfWork
	service   *InvoiceService
	finalizer *FinalizationService
	tenantID  uuid.UUID
	actorID   uuid.UUID
}

// newFixture wires the services against an in-memory SQLite database.
// Events go to the outbox table so tests can assert on them.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))

	publisher := event.NewOutboxPublisher(event.NewInvoicingSerializer())
	store := persistence.NewGormUnitOfWork(db, publisher.RecorderFor)
	clock := shared.FixedClock{At: testNow}

	finalizer := NewFinalizationService(store, invoicing.NewSnapshotBuilder(invoicing.DefaultFormatter()), clock, nil)
	service := NewInvoiceService(store, finalizer, Options{Clock: clock}, nil)

	return &fixture{
		db:        db,
		store:     store,
		service:   service,
		finalizer: finalizer,
		tenantID:  uuid.New(),
		actorID:   uuid.New(),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func (f *fixture) seedCompany(t *testing.T, mode invoicing.NumberingMode) *invoicing.Company {
	t.Helper()
	company := &invoicing.Company{
		ID:                 uuid.New(),
		TenantID:           f.tenantID,
		Name:               "Acme Traders Ltd",
		KRAPIN:             "P051234567X",
		Address:            "Moi Avenue, Nairobi",
		Email:              "billing@acme.co.ke",
		Phone:              "+254700000001",
		Currency:           "KES",
		NumberingMode:      mode,
		VATEnabled:         true,
		VATRegistered:      true,
		VATRate:            dec("16"),
		PlatformFeeEnabled: true,
		PlatformFeeRate:    dec("0.03"),
		CreatedAt:          testNow,
		UpdatedAt:          testNow,
	}
	require.NoError(t, persistence.NewGormCompanyRepository(f.db).Save(context.Background(), company))
	return company
}

func (f *fixture) seedClient(t *testing.T, company *invoicing.Company, code string) *invoicing.Client {
	t.Helper()
	client := &invoicing.Client{
		ID:        uuid.New(),
		TenantID:  company.TenantID,
		CompanyID: company.ID,
		Code:      code,
		Name:      "Client " + code,
		Email:     "accounts@" + code + ".example",
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
	require.NoError(t, persistence.NewGormClientRepository(f.db).Save(context.Background(), client))
	return client
}

// consultingRequest is two units at 100, VAT exclusive
func consultingRequest(companyID uuid.UUID, clientID *uuid.UUID) CreateInvoiceRequest {
	return CreateInvoiceRequest{
		CompanyID: companyID,
		ClientID:  clientID,
		Items: []LineItemInput{
			{Description: "Consulting", Quantity: decPtr("2"), UnitPrice: decPtr("100")},
		},
	}
}

func (f *fixture) createDraft(t *testing.T, req CreateInvoiceRequest) *InvoiceResponse {
	t.Helper()
	resp, err := f.service.CreateDraft(context.Background(), f.tenantID, f.actorID, req)
	require.NoError(t, err)
	return resp
}

func (f *fixture) outboxTypes(t *testing.T) []string {
	t.Helper()
	var types []string
	require.NoError(t, f.db.Model(&models.OutboxRow{}).
		Order("created_at ASC").
		Pluck("event_type", &types).Error)
	return types
}

func (f *fixture) countSnapshots(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.InvoiceSnapshotModel{}).Count(&n).Error)
	return n
}

// markLegacy moves an invoice past draft without a snapshot, the way invoices
// finalized before snapshots existed are stored
func (f *fixture) markLegacy(t *testing.T, invoiceID uuid.UUID, status invoicing.InvoiceStatus) {
	t.Helper()
	finalizedAt := testNow.Add(-48 * time.Hour)
	require.NoError(t, f.db.Exec(
		"UPDATE invoices SET status = ?, finalized_at = ? WHERE id = ?",
		string(status), finalizedAt, invoiceID,
	).Error)
}
