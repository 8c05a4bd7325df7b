package invoicing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackfill(f *fixture) *BackfillService {
	return NewBackfillService(f.store, invoicing.NewSnapshotBuilder(invoicing.DefaultFormatter()),
		shared.FixedClock{At: testNow}, nil)
}

func TestBackfillService_BackfillLegacySnapshots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	company := f.seedCompany(t, invoicing.NumberingModeGlobal)

	legacyFinalized := f.createDraft(t, consultingRequest(company.ID, nil))
	legacySent := f.createDraft(t, consultingRequest(company.ID, nil))
	current := f.createDraft(t, consultingRequest(company.ID, nil))
	draft := f.createDraft(t, consultingRequest(company.ID, nil))

	f.markLegacy(t, legacyFinalized.ID, invoicing.InvoiceStatusFinalized)
	f.markLegacy(t, legacySent.ID, invoicing.InvoiceStatusSent)
	_, err := f.service.Finalize(ctx, f.tenantID, current.ID, f.actorID)
	require.NoError(t, err)

	result, err := newBackfill(f).BackfillLegacySnapshots(ctx, nil, uuid.Nil, 0)
	require.NoError(t, err)
	assert.Equal(t, &BackfillResult{Scanned: 2, Created: 2}, result)
	assert.Equal(t, int64(3), f.countSnapshots(t))

	snapshot, err := f.service.GetSnapshot(ctx, f.tenantID, legacySent.ID)
	require.NoError(t, err)
	assert.True(t, snapshot.Legacy)
	assert.True(t, snapshot.Payload.Meta.Legacy)
	assert.Equal(t, uuid.Nil, snapshot.TakenBy)
	assert.True(t, snapshot.TakenAt.Equal(testNow.Add(-48*time.Hour)))
	assert.Equal(t, legacySent.InvoiceNumber, snapshot.Payload.Invoice.Number)
	assert.Equal(t, "238.96", snapshot.Payload.Totals.GrandTotal.String())

	_, err = f.service.GetSnapshot(ctx, f.tenantID, draft.ID)
	assert.True(t, shared.IsCode(err, shared.CodeNotFound))

	t.Run("second run is a no-op", func(t *testing.T) {
		result, err := newBackfill(f).BackfillLegacySnapshots(ctx, nil, uuid.Nil, 0)
		require.NoError(t, err)
		assert.Equal(t, &BackfillResult{}, result)
	})

	t.Run("backfilled invoices cannot be finalized again", func(t *testing.T) {
		_, err := f.service.Finalize(ctx, f.tenantID, legacyFinalized.ID, f.actorID)
		assert.True(t, shared.IsCode(err, shared.CodeAlreadyFinalized))
	})
}

func TestBackfillService_CancelledInvoices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	company := f.seedCompany(t, invoicing.NumberingModeGlobal)

	abandoned := f.createDraft(t, consultingRequest(company.ID, nil))
	voided := f.createDraft(t, consultingRequest(company.ID, nil))
	legacy := f.createDraft(t, consultingRequest(company.ID, nil))

	_, err := f.service.Transition(ctx, f.tenantID, abandoned.ID, f.actorID, TransitionRequest{Status: "cancelled"})
	require.NoError(t, err)
	f.markLegacy(t, voided.ID, invoicing.InvoiceStatusCancelled)
	f.markLegacy(t, legacy.ID, invoicing.InvoiceStatusFinalized)

	backfill := newBackfill(f)
	for run := 0; run < 2; run++ {
		result, err := backfill.BackfillLegacySnapshots(ctx, &f.tenantID, uuid.Nil, 1)
		require.NoError(t, err)
		assert.Equal(t, &BackfillResult{Scanned: 1, Created: 1}, result, "run %d", run)
	}

	result, err := backfill.BackfillLegacySnapshots(ctx, &f.tenantID, uuid.Nil, 1)
	require.NoError(t, err)
	assert.Zero(t, result.Scanned)
	assert.Equal(t, int64(2), f.countSnapshots(t))

	snapshot, err := f.service.GetSnapshot(ctx, f.tenantID, voided.ID)
	require.NoError(t, err)
	assert.True(t, snapshot.Legacy)

	_, err = f.service.GetSnapshot(ctx, f.tenantID, abandoned.ID)
	assert.True(t, shared.IsCode(err, shared.CodeNotFound))
}

func TestBackfillService_KeepsStoredTotals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	company := f.seedCompany(t, invoicing.NumberingModeGlobal)
	created := f.createDraft(t, consultingRequest(company.ID, nil))
	f.markLegacy(t, created.ID, invoicing.InvoiceStatusPaid)

	// totals computed by an older engine that no longer agree with the items
	require.NoError(t, f.db.Exec("UPDATE invoices SET grand_total = ? WHERE id = ?", "240.00", created.ID).Error)

	result, err := newBackfill(f).BackfillLegacySnapshots(ctx, &f.tenantID, f.actorID, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)

	snapshot, err := f.store.Repositories().Snapshots.FindByInvoiceID(ctx, f.tenantID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "240", snapshot.Payload.Totals.GrandTotal.String())
	assert.Equal(t, f.actorID, snapshot.TakenBy)
}

func TestBackfillService_RequiresComplianceFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	company := f.seedCompany(t, invoicing.NumberingModeGlobal)
	created := f.createDraft(t, consultingRequest(company.ID, nil))
	f.markLegacy(t, created.ID, invoicing.InvoiceStatusFinalized)

	company.KRAPIN = ""
	require.NoError(t, persistence.NewGormCompanyRepository(f.db).Save(ctx, company))

	result, err := newBackfill(f).BackfillLegacySnapshots(ctx, nil, uuid.Nil, 0)
	require.NoError(t, err)
	assert.Equal(t, &BackfillResult{Scanned: 1, Failed: 1}, result)
	assert.Zero(t, f.countSnapshots(t))
}

func TestBackfillService_ScopedToTenant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	company := f.seedCompany(t, invoicing.NumberingModeGlobal)
	created := f.createDraft(t, consultingRequest(company.ID, nil))
	f.markLegacy(t, created.ID, invoicing.InvoiceStatusFinalized)

	other := uuid.New()
	result, err := newBackfill(f).BackfillLegacySnapshots(ctx, &other, uuid.Nil, 0)
	require.NoError(t, err)
	assert.Zero(t, result.Scanned)
	assert.Zero(t, f.countSnapshots(t))
}
