package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	invoicingapp "github.com/invoicing/backend/internal/application/invoicing"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/auth"
	"github.com/invoicing/backend/internal/infrastructure/config"
	"github.com/invoicing/backend/internal/infrastructure/event"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/invoicing/backend/internal/infrastructure/persistence"
	"github.com/invoicing/backend/internal/infrastructure/persistence/models"
	"github.com/invoicing/backend/internal/interfaces/http/dto"
	"github.com/invoicing/backend/internal/interfaces/http/middleware"
	"github.com/invoicing/backend/internal/interfaces/http/router"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// apiFixture serves the real handlers over an in-memory SQLite database
type apiFixture struct {
	db       *gorm.DB
	engine   *gin.Engine
	verifier *auth.ActorVerifier
	tenantID uuid.UUID
	token    string
}

// envelope mirrors dto.Response with the data left raw
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
	Meta    *dto.PageMeta   `json:"meta"`
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
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
	finalizer := invoicingapp.NewFinalizationService(store, invoicing.NewSnapshotBuilder(invoicing.DefaultFormatter()), clock, nil)
	service := invoicingapp.NewInvoiceService(store, finalizer, invoicingapp.Options{Clock: clock}, nil)

	verifier, err := auth.NewActorVerifier(config.AuthConfig{Secret: "handler-test-secret-of-32-characters"})
	require.NoError(t, err)

	engine := gin.New()
	engine.Use(logger.RequestID())
	actor := middleware.Actor(verifier)
	router.Mount(engine, "v1", InvoiceResources(NewInvoiceHandler(service), NewNumberingHandler(service), actor)...)

	f := &apiFixture{db: db, engine: engine, verifier: verifier, tenantID: uuid.New()}
	f.token = f.tokenFor(t, f.tenantID)
	return f
}

func (f *apiFixture) tokenFor(t *testing.T, tenantID uuid.UUID) string {
	t.Helper()
	token, err := f.verifier.Sign(auth.Actor{TenantID: tenantID, UserID: uuid.New(), Username: "clerk"}, time.Hour)
	require.NoError(t, err)
	return token
}

func (f *apiFixture) seedCompany(t *testing.T, mode invoicing.NumberingMode) *invoicing.Company {
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
		VATRate:            decimal.RequireFromString("16"),
		PlatformFeeEnabled: true,
		PlatformFeeRate:    decimal.RequireFromString("0.03"),
		CreatedAt:          testNow,
		UpdatedAt:          testNow,
	}
	require.NoError(t, persistence.NewGormCompanyRepository(f.db).Save(context.Background(), company))
	return company
}

// do sends body as JSON with the fixture's token and decodes the envelope
func (f *apiFixture) do(t *testing.T, method, path string, body any) (int, envelope) {
	t.Helper()
	return f.doAs(t, f.token, method, path, body)
}

func (f *apiFixture) doAs(t *testing.T, token, method, path string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func consultingBody(companyID uuid.UUID) map[string]any {
	return map[string]any{
		"company_id": companyID,
		"items": []map[string]any{
			{"description": "Consulting", "quantity": "2", "unit_price": "100"},
		},
	}
}
