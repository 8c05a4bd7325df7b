package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormInvoiceRepository_CreateAndFind(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()
	company := seedCompany(t, db, invoicing.NumberingModeGlobal)

	inv := newNumberedInvoice(t, company, 1)
	require.NoError(t, repo.Create(ctx, inv))

	found, err := repo.FindByIDForTenant(ctx, company.TenantID, inv.ID)
	require.NoError(t, err)

	assert.Equal(t, "INV-0001", found.FullNumber())
	assert.Equal(t, "INV-", found.PrefixUsed())
	assert.Equal(t, int64(1), found.SerialNumber())
	assert.Equal(t, invoicing.InvoiceStatusDraft, found.Status())
	assert.Equal(t, "KES", found.Currency)
	require.Len(t, found.Items, 2)
	assert.Equal(t, "Consulting", found.Items[0].Description)
	assert.Equal(t, "Hosting", found.Items[1].Description)
	assert.Equal(t, inv.Summary.GrandTotal.StringFixed(2), found.Summary.GrandTotal.StringFixed(2))
	assert.Equal(t, inv.Summary.VATAmount.StringFixed(2), found.Summary.VATAmount.StringFixed(2))
	assert.True(t, found.Config.VATRate.Equal(dec("16")))

	t.Run("other tenant cannot see it", func(t *testing.T) {
		_, err := repo.FindByIDForTenant(ctx, uuid.New(), inv.ID)
		assert.True(t, shared.IsCode(err, shared.CodeNotFound))
	})

	t.Run("find by number", func(t *testing.T) {
		byNumber, err := repo.FindByNumber(ctx, company.TenantID, company.ID, "INV-0001")
		require.NoError(t, err)
		assert.Equal(t, inv.ID, byNumber.ID)
	})

	t.Run("stored totals keep the accounting identities", func(t *testing.T) {
		s := found.Summary
		assert.True(t, s.Total.Equal(s.SubtotalAfterDiscount.Add(s.VATAmount)))
		assert.True(t, s.GrandTotal.Equal(s.Total.Add(s.PlatformFee)))
	})
}

func TestGormInvoiceRepository_DuplicateNumber(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()
	company := seedCompany(t, db, invoicing.NumberingModeGlobal)

	require.NoError(t, repo.Create(ctx, newNumberedInvoice(t, company, 7)))

	err := repo.Create(ctx, newNumberedInvoice(t, company, 7))
	require.Error(t, err)
	assert.True(t, shared.IsCode(err, shared.CodeConcurrencyConflict))

	var count int64
	require.NoError(t, db.Model(&models.InvoiceModel{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGormInvoiceRepository_Save(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()
	company := seedCompany(t, db, invoicing.NumberingModeGlobal)

	inv := newNumberedInvoice(t, company, 1)
	require.NoError(t, repo.Create(ctx, inv))

	t.Run("persists a transition", func(t *testing.T) {
		require.NoError(t, inv.Finalize(testNow))
		require.NoError(t, repo.Save(ctx, inv))

		found, err := repo.FindByIDForTenant(ctx, company.TenantID, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, invoicing.InvoiceStatusFinalized, found.Status())
		assert.NotNil(t, found.FinalizedAt)
		assert.Equal(t, 2, found.Version)
		assert.Equal(t, "INV-0001", found.FullNumber())
	})

	t.Run("stale version is a conflict", func(t *testing.T) {
		stale, err := repo.FindByIDForTenant(ctx, company.TenantID, inv.ID)
		require.NoError(t, err)

		require.NoError(t, inv.Transition(invoicing.InvoiceStatusSent, testNow))
		require.NoError(t, repo.Save(ctx, inv))

		require.NoError(t, stale.Transition(invoicing.InvoiceStatusSent, testNow))
		err = repo.Save(ctx, stale)
		assert.True(t, shared.IsCode(err, shared.CodeConcurrencyConflict))
	})

	t.Run("numbering columns are never rewritten", func(t *testing.T) {
		require.NoError(t, db.Exec("UPDATE invoices SET full_number = ? WHERE id = ?", "TAMPERED", inv.ID).Error)

		require.NoError(t, inv.Transition(invoicing.InvoiceStatusPaid, testNow))
		require.NoError(t, repo.Save(ctx, inv))

		var row models.InvoiceModel
		require.NoError(t, db.First(&row, "id = ?", inv.ID).Error)
		assert.Equal(t, "TAMPERED", row.FullNumber)
		assert.Equal(t, invoicing.InvoiceStatusPaid, row.Status)
	})
}

func TestGormInvoiceRepository_ReplaceItems(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()
	company := seedCompany(t, db, invoicing.NumberingModeGlobal)

	inv := newNumberedInvoice(t, company, 1)
	require.NoError(t, repo.Create(ctx, inv))

	t.Run("draft items are replaced", func(t *testing.T) {
		require.NoError(t, inv.ReplaceItems([]invoicing.ItemInput{
			{Description: "Audit", LineInput: invoicing.LineInput{Quantity: decPtr("1"), UnitPrice: decPtr("500")}},
		}, dec("0"), invoicing.DiscountTypeFixed, testNow))
		require.NoError(t, repo.ReplaceItems(ctx, inv))
		require.NoError(t, repo.Save(ctx, inv))

		found, err := repo.FindByIDForTenant(ctx, company.TenantID, inv.ID)
		require.NoError(t, err)
		require.Len(t, found.Items, 1)
		assert.Equal(t, "Audit", found.Items[0].Description)
		assert.Equal(t, "580.00", found.Summary.Total.StringFixed(2))
	})

	t.Run("items of a finalized invoice are rejected", func(t *testing.T) {
		require.NoError(t, inv.Finalize(testNow))
		require.NoError(t, repo.Save(ctx, inv))

		err := repo.ReplaceItems(ctx, inv)
		require.Error(t, err)
		assert.True(t, shared.IsCode(err, shared.CodeImmutableRecordViolation))

		var count int64
		require.NoError(t, db.Model(&models.InvoiceItemModel{}).Where("invoice_id = ?", inv.ID).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})
}

func TestGormInvoiceRepository_FindFinalizedWithoutSnapshot_Cancelled(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()
	company := seedCompany(t, db, invoicing.NumberingModeGlobal)

	cancelledDraft := newNumberedInvoice(t, company, 1)
	voided := newNumberedInvoice(t, company, 2)
	for _, inv := range []*invoicing.Invoice{cancelledDraft, voided} {
		require.NoError(t, repo.Create(ctx, inv))
	}

	require.NoError(t, cancelledDraft.Transition(invoicing.InvoiceStatusCancelled, testNow))
	require.NoError(t, repo.Save(ctx, cancelledDraft))

	require.NoError(t, voided.Finalize(testNow))
	require.NoError(t, repo.Save(ctx, voided))
	require.NoError(t, voided.Transition(invoicing.InvoiceStatusSent, testNow))
	require.NoError(t, repo.Save(ctx, voided))
	require.NoError(t, voided.Transition(invoicing.InvoiceStatusCancelled, testNow))
	require.NoError(t, repo.Save(ctx, voided))

	missing, err := repo.FindFinalizedWithoutSnapshot(ctx, &company.TenantID, 10)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, voided.ID, missing[0].ID)
}

func TestGormInvoiceRepository_Queries(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormInvoiceRepository(db)
	snapshots := NewGormSnapshotRepository(db)
	ctx := context.Background()
	company := seedCompany(t, db, invoicing.NumberingModeGlobal)

	draft := newNumberedInvoice(t, company, 1)
	sent := newNumberedInvoice(t, company, 2)
	sent.DueDate = testNow.AddDate(0, 0, -3)
	withSnapshot := newNumberedInvoice(t, company, 3)
	for _, inv := range []*invoicing.Invoice{draft, sent, withSnapshot} {
		require.NoError(t, repo.Create(ctx, inv))
	}

	require.NoError(t, sent.Finalize(testNow.AddDate(0, 0, -10)))
	require.NoError(t, repo.Save(ctx, sent))
	require.NoError(t, sent.Transition(invoicing.InvoiceStatusSent, testNow.AddDate(0, 0, -10)))
	require.NoError(t, repo.Save(ctx, sent))

	require.NoError(t, withSnapshot.Finalize(testNow))
	require.NoError(t, repo.Save(ctx, withSnapshot))
	require.NoError(t, snapshots.Create(ctx, newTestSnapshot(withSnapshot)))

	t.Run("sent invoices past due", func(t *testing.T) {
		due, err := repo.FindSentDueBefore(ctx, testNow.Truncate(24*time.Hour), nil, 10)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, sent.ID, due[0].ID)
	})

	t.Run("cursor pages past listed rows", func(t *testing.T) {
		due, err := repo.FindSentDueBefore(ctx, testNow.Truncate(24*time.Hour), invoicing.CursorAfter(sent), 10)
		require.NoError(t, err)
		assert.Empty(t, due)
	})

	t.Run("finalized without snapshot", func(t *testing.T) {
		missing, err := repo.FindFinalizedWithoutSnapshot(ctx, &company.TenantID, 10)
		require.NoError(t, err)
		require.Len(t, missing, 1)
		assert.Equal(t, sent.ID, missing[0].ID)
	})

	t.Run("list with filters", func(t *testing.T) {
		status := invoicing.InvoiceStatusDraft
		list, total, err := repo.FindAllForTenant(ctx, company.TenantID, invoicing.InvoiceFilter{
			Filter: shared.Filter{Page: 1, PageSize: 10, OrderBy: "full_number", OrderDir: "asc"},
			Status: &status,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, list, 1)
		assert.Equal(t, "INV-0001", list[0].FullNumber())

		list, total, err = repo.FindAllForTenant(ctx, company.TenantID, invoicing.InvoiceFilter{
			Filter: shared.Filter{Page: 1, PageSize: 2, OrderBy: "full_number", OrderDir: "desc"},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, list, 2)
		assert.Equal(t, "INV-0003", list[0].FullNumber())

		list, _, err = repo.FindAllForTenant(ctx, company.TenantID, invoicing.InvoiceFilter{Search: "0002"})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, sent.ID, list[0].ID)
	})
}
