package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
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

	require.NoError(t, db.AutoMigrate(&models.OutboxRow{}))
	return db
}

func newFinalizedEvent(tenantID uuid.UUID) *invoicing.InvoiceFinalizedEvent {
	return &invoicing.InvoiceFinalizedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(invoicing.EventTypeInvoiceFinalized,
			invoicing.AggregateTypeInvoice, uuid.New(), tenantID, testNow),
		CompanyID:     uuid.New(),
		InvoiceNumber: "INV-0001",
		SnapshotID:    uuid.New(),
		GrandTotal:    decimal.RequireFromString("238.96"),
		Currency:      "KES",
		FinalizedBy:   uuid.New(),
	}
}

// recordingHandler collects the events it receives and fails while err is set
type recordingHandler struct {
	mu      sync.Mutex
	types   []string
	handled []shared.DomainEvent
	err     error
}

func (h *recordingHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	return h.err
}

func (h *recordingHandler) EventTypes() []string {
	return h.types
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}
