package invoicing

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/cache"
	"github.com/invoicing/backend/internal/infrastructure/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvoiceService_Calculate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	company := f.seedCompany(t, invoicing.NumberingModeGlobal)

	items := []LineItemInput{{Description: "Consulting", Quantity: decPtr("2"), UnitPrice: decPtr("100")}}

	t.Run("explicit config", func(t *testing.T) {
		resp, err := f.service.Calculate(ctx, f.tenantID, CalculateRequest{
			Config: &CalculationConfigInput{
				VATEnabled:         true,
				VATRegistered:      true,
				VATRate:            dec("16"),
				PlatformFeeEnabled: true,
				PlatformFeeRate:    dec("0.03"),
			},
			Items: items,
		})
		require.NoError(t, err)
		assert.Equal(t, "200", resp.Summary.Subtotal.String())
		assert.Equal(t, "32", resp.Summary.VATAmount.String())
		assert.Equal(t, "232", resp.Summary.Total.String())
		assert.Equal(t, "6.96", resp.Summary.PlatformFee.String())
		assert.Equal(t, "238.96", resp.Summary.GrandTotal.String())
		require.Len(t, resp.Lines, 1)
	})

	t.Run("company settings", func(t *testing.T) {
		resp, err := f.service.Calculate(ctx, f.tenantID, CalculateRequest{CompanyID: &company.ID, Items: items})
		require.NoError(t, err)
		assert.Equal(t, "238.96", resp.Summary.GrandTotal.String())
	})

	t.Run("percentage discount", func(t *testing.T) {
		resp, err := f.service.Calculate(ctx, f.tenantID, CalculateRequest{
			Config:       &CalculationConfigInput{},
			Discount:     dec("10"),
			DiscountType: "percentage",
			Items:        items,
		})
		require.NoError(t, err)
		assert.Equal(t, "20", resp.Summary.DiscountAmount.String())
		assert.Equal(t, "180", resp.Summary.SubtotalAfterDiscount.String())
		assert.Equal(t, "180", resp.Summary.GrandTotal.String())
	})

	t.Run("requires company or config", func(t *testing.T) {
		_, err := f.service.Calculate(ctx, f.tenantID, CalculateRequest{Items: items})
		assert.True(t, shared.IsCode(err, shared.CodeInvalidInput))
	})

	t.Run("unknown company", func(t *testing.T) {
		id := uuid.New()
		_, err := f.service.Calculate(ctx, f.tenantID, CalculateRequest{CompanyID: &id, Items: items})
		assert.True(t, shared.IsCode(err, shared.CodeNotFound))
	})
}

func TestInvoiceService_CreateDraft_SequentialSerials(t *testing.T) {
	f := newFixture(t)
	company := f.seedCompany(t, invoicing.NumberingModeGlobal)

	var (
		numbers []string
		firstID uuid.UUID
	)
	for i := 0; i < 3; i++ {
		resp := f.createDraft(t, consultingRequest(company.ID, nil))
		if i == 0 {
			firstID = resp.ID
		}
		numbers = append(numbers, resp.InvoiceNumber)
		assert.Equal(t, "draft", resp.Status)
		assert.Equal(t, "global", resp.NumberingMode)
		assert.Equal(t, "238.96", resp.Summary.GrandTotal.String())
		assert.Equal(t, "KES", resp.Currency)
	}
	assert.Equal(t, []string{"INV-0001", "INV-0002", "INV-0003"}, numbers)

	types := f.outboxTypes(t)
	assert.Len(t, types, 3)
	for _, typ := range types {
		assert.Equal(t, invoicing.EventTypeInvoiceCreated, typ)
	}

	fees, err := f.store.Repositories().Fees.FindByInvoice(context.Background(), f.tenantID, firstID)
	require.NoError(t, err)
	require.Len(t, fees, 1)
	assert.Equal(t, "6.96", fees[0].Amount.String())
}

func TestInvoiceService_CreateDraft_ClientScoped(t *testing.T) {
	f := newFixture(t)
	company := f.seedCompany(t, invoicing.NumberingModeClient)
	acme := f.seedClient(t, company, "ACME")
	beta := f.seedClient(t, company, "BETA")

	first := f.createDraft(t, consultingRequest(company.ID, &acme.ID))
	second := f.createDraft(t, consultingRequest(company.ID, &acme.ID))
	other := f.createDraft(t, consultingRequest(company.ID, &beta.ID))

	assert.Equal(t, "INV-ACME-0001", first.InvoiceNumber)
	assert.Equal(t, "INV-ACME-0002", second.InvoiceNumber)
	assert.Equal(t, "INV-BETA-0001", other.InvoiceNumber)
	assert.Equal(t, int64(1), other.SerialNumber)

	t.Run("requires a client", func(t *testing.T) {
		_, err := f.service.CreateDraft(context.Background(), f.tenantID, f.actorID, consultingRequest(company.ID, nil))
		assert.True(t, shared.IsCode(err, shared.CodeInvalidInput))
	})
}

func TestInvoiceService_CreateDraft_RejectsForeignClient(t *testing.T) {
	f := newFixture(t)
	company := f.seedCompany(t, invoicing.NumberingModeGlobal)
	otherCompany := f.seedCompany(t, invoicing.NumberingModeGlobal)
	stranger := f.seedClient(t, otherCompany, "XYZ")

	_, err := f.service.CreateDraft(context.Background(), f.tenantID, f.actorID, consultingRequest(company.ID, &stranger.ID))
	assert.True(t, shared.IsCode(err, shared.CodeInvalidInput))

	var count int64
	require.NoError(t, f.db.Table("invoices").Count(&count).Error)
	assert.Zero(t, count)
}

func TestInvoiceService_CreateDraft_SkipsTakenNumber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	company := f.seedCompany(t, invoicing.NumberingModeGlobal)

	// a number issued outside the counter, e.g. by an import
	draft, err := invoicing.NewDraft(company, invoicing.DraftInput{
		Items: []invoicing.ItemInput{{Description: "Imported", LineInput: invoicing.LineInput{Quantity: decPtr("1"), UnitPrice: decPtr("10")}}},
	}, testNow)
	require.NoError(t, err)
	imported, err := draft.Number(invoicing.InvoiceNumber{
		Prefix: "INV-", Serial: 1, FullNumber: "INV-0001", Mode: invoicing.NumberingModeGlobal,
	}, testNow)
	require.NoError(t, err)
	require.NoError(t, persistence.NewGormInvoiceRepository(f.db).Create(ctx, imported))

	resp := f.createDraft(t, consultingRequest(company.ID, nil))
	assert.Equal(t, "INV-0002", resp.InvoiceNumber)
	assert.Equal(t, int64(2), resp.SerialNumber)
}

func TestInvoiceService_CreateDraft_InvalidItems(t *testing.T) {
	f := newFixture(t)
	company := f.seedCompany(t, invoicing.NumberingModeGlobal)

	req := consultingRequest(company.ID, nil)
	req.Items[0].Quantity = decPtr("-1")
	_, err := f.service.CreateDraft(context.Background(), f.tenantID, f.actorID, req)
	assert.True(t, shared.IsCode(err, shared.CodeInvalidInput))

	// the rejected draft consumed no serial
	resp := f.createDraft(t, consultingRequest(company.ID, nil))
	assert.Equal(t, "INV-0001", resp.InvoiceNumber)
}

func TestInvoiceService_UpdateDraftItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	company := f.seedCompany(t, invoicing.NumberingModeGlobal)
	created := f.createDraft(t, consultingRequest(company.ID, nil))

	updated, err := f.service.UpdateDraftItems(ctx, f.tenantID, created.ID, UpdateInvoiceItemsRequest{
		Items: []LineItemInput{
			{Description: "Consulting", Quantity: decPtr("1"), UnitPrice: decPtr("100")},
			{Description: "Support", Quantity: decPtr("1"), UnitPrice: decPtr("100")},
		},
		Discount:     dec("10"),
		DiscountType: "percentage",
	})
	require.NoError(t, err)
	require.Len(t, updated.Items, 2)
	assert.Equal(t, created.InvoiceNumber, updated.InvoiceNumber)
	assert.Equal(t, "20", updated.Summary.DiscountAmount.String())
	assert.Equal(t, "180", updated.Summary.SubtotalAfterDiscount.String())
	// VAT is computed per line and not reduced by the discount
	assert.Equal(t, "32", updated.Summary.VATAmount.String())
	assert.Equal(t, created.Version+1, updated.Version)

	stored, err := f.service.GetByID(ctx, f.tenantID, created.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Items, 2)
	assert.True(t, stored.Summary.GrandTotal.Equal(updated.Summary.GrandTotal))

	t.Run("finalized invoices are not editable", func(t *testing.T) {
		_, err := f.service.Finalize(ctx, f.tenantID, created.ID, f.actorID)
		require.NoError(t, err)

		_, err = f.service.UpdateDraftItems(ctx, f.tenantID, created.ID, UpdateInvoiceItemsRequest{
			Items: []LineItemInput{{Description: "Changed", Quantity: decPtr("1"), UnitPrice: decPtr("1")}},
		})
		assert.True(t, shared.IsCode(err, shared.CodeNotEditable))

		stored, err := f.service.GetByID(ctx, f.tenantID, created.ID)
		require.NoError(t, err)
		assert.Len(t, stored.Items, 2)
	})
}

func TestInvoiceService_List(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	company := f.seedCompany(t, invoicing.NumberingModeGlobal)
	first := f.createDraft(t, consultingRequest(company.ID, nil))
	f.createDraft(t, consultingRequest(company.ID, nil))

	_, err := f.service.Finalize(ctx, f.tenantID, first.ID, f.actorID)
	require.NoError(t, err)

	all, total, err := f.service.List(ctx, f.tenantID, InvoiceListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)

	finalized, total, err := f.service.List(ctx, f.tenantID, InvoiceListFilter{Status: "finalized"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, finalized, 1)
	assert.Equal(t, first.InvoiceNumber, finalized[0].InvoiceNumber)
	assert.Equal(t, "Finalized", finalized[0].StatusLabel)

	_, _, err = f.service.List(ctx, f.tenantID, InvoiceListFilter{Status: "archived"})
	assert.True(t, shared.IsCode(err, shared.CodeInvalidInput))

	other, total, err := f.service.List(ctx, uuid.New(), InvoiceListFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, other)
}

func TestInvoiceService_AllocateNumber_Concurrent(t *testing.T) {
	f := newFixture(t)
	company := f.seedCompany(t, invoicing.NumberingModeGlobal)

	const n = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		serials = make(map[int64]string)
		errs    []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := f.service.AllocateNumber(context.Background(), f.tenantID, AllocateNumberRequest{CompanyID: company.ID})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			serials[resp.Serial] = resp.InvoiceNumber
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	require.Len(t, serials, n)
	for i := int64(1); i <= n; i++ {
		assert.Contains(t, serials, i)
	}
}

func TestInvoiceService_ChangePrefix(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	company := f.seedCompany(t, invoicing.NumberingModeGlobal)
	prefixCache := cache.NewInMemoryPrefixCache(cache.DefaultPrefixTTL)
	f.service.SetPrefixCache(prefixCache)

	before := f.createDraft(t, consultingRequest(company.ID, nil))
	assert.Equal(t, "INV-0001", before.InvoiceNumber)

	active, err := f.service.ActivePrefix(ctx, f.tenantID, company.ID)
	require.NoError(t, err)
	assert.Equal(t, "INV", active.Prefix)
	cached, err := prefixCache.Get(ctx, f.tenantID, company.ID)
	require.NoError(t, err)
	require.NotNil(t, cached)

	changed, err := f.service.ChangePrefix(ctx, f.tenantID, company.ID, ChangePrefixRequest{Prefix: "ACME{YY}"})
	require.NoError(t, err)
	assert.Equal(t, "ACME{YY}", changed.Prefix)
	assert.True(t, changed.Active)

	cached, err = prefixCache.Get(ctx, f.tenantID, company.ID)
	require.NoError(t, err)
	assert.Nil(t, cached)

	after := f.createDraft(t, consultingRequest(company.ID, nil))
	assert.Equal(t, "ACME25-0002", after.InvoiceNumber)

	stored, err := f.service.GetByID(ctx, f.tenantID, before.ID)
	require.NoError(t, err)
	assert.Equal(t, "INV-0001", stored.InvoiceNumber)
	assert.Equal(t, "INV-", stored.PrefixUsed)

	history, err := f.store.Repositories().Prefixes.ListByCompany(ctx, f.tenantID, company.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Contains(t, f.outboxTypes(t), invoicing.EventTypeInvoicePrefixChanged)

	t.Run("unchanged prefix is rejected", func(t *testing.T) {
		_, err := f.service.ChangePrefix(ctx, f.tenantID, company.ID, ChangePrefixRequest{Prefix: "ACME{YY}"})
		assert.True(t, shared.IsCode(err, shared.CodeInvalidInput))
	})

	t.Run("invalid characters are rejected", func(t *testing.T) {
		_, err := f.service.ChangePrefix(ctx, f.tenantID, company.ID, ChangePrefixRequest{Prefix: "IN V"})
		assert.True(t, shared.IsCode(err, shared.CodeInvalidInput))
	})
}

func TestInvoiceService_Transition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	company := f.seedCompany(t, invoicing.NumberingModeGlobal)
	created := f.createDraft(t, consultingRequest(company.ID, nil))

	t.Run("draft cannot be sent", func(t *testing.T) {
		_, err := f.service.Transition(ctx, f.tenantID, created.ID, f.actorID, TransitionRequest{Status: "sent"})
		assert.True(t, shared.IsCode(err, shared.CodeIllegalTransition))
	})

	finalized, err := f.service.Transition(ctx, f.tenantID, created.ID, f.actorID, TransitionRequest{Status: "finalized"})
	require.NoError(t, err)
	assert.Equal(t, "finalized", finalized.Status)
	require.NotNil(t, finalized.FinalizedAt)
	assert.Equal(t, int64(1), f.countSnapshots(t))

	sent, err := f.service.Transition(ctx, f.tenantID, created.ID, f.actorID, TransitionRequest{Status: "sent"})
	require.NoError(t, err)
	assert.Equal(t, "sent", sent.Status)
	require.NotNil(t, sent.SentAt)

	paid, err := f.service.Transition(ctx, f.tenantID, created.ID, f.actorID, TransitionRequest{Status: "paid"})
	require.NoError(t, err)
	assert.Equal(t, "paid", paid.Status)

	t.Run("paid is terminal", func(t *testing.T) {
		_, err := f.service.Transition(ctx, f.tenantID, created.ID, f.actorID, TransitionRequest{Status: "cancelled"})
		assert.True(t, shared.IsCode(err, shared.CodeIllegalTransition))

		stored, err := f.service.GetByID(ctx, f.tenantID, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "paid", stored.Status)
	})

	t.Run("unknown status", func(t *testing.T) {
		_, err := f.service.Transition(ctx, f.tenantID, created.ID, f.actorID, TransitionRequest{Status: "archived"})
		assert.True(t, shared.IsCode(err, shared.CodeIllegalTransition))
	})

	t.Run("unknown invoice", func(t *testing.T) {
		_, err := f.service.Transition(ctx, f.tenantID, uuid.New(), f.actorID, TransitionRequest{Status: "sent"})
		assert.True(t, shared.IsCode(err, shared.CodeNotFound))
	})

	changes := 0
	for _, typ := range f.outboxTypes(t) {
		if typ == invoicing.EventTypeInvoiceStatusChanged {
			changes++
		}
	}
	assert.Equal(t, 3, changes)
}

func TestInvoiceService_CancelDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	company := f.seedCompany(t, invoicing.NumberingModeGlobal)
	created := f.createDraft(t, consultingRequest(company.ID, nil))

	cancelled, err := f.service.Transition(ctx, f.tenantID, created.ID, f.actorID, TransitionRequest{Status: "cancelled"})
	require.NoError(t, err)
	assert.Equal(t, "cancelled", cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Zero(t, f.countSnapshots(t))

	_, err = f.service.Finalize(ctx, f.tenantID, created.ID, f.actorID)
	assert.True(t, shared.IsCode(err, shared.CodeIllegalTransition))
}

func TestInvoiceService_GetSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	company := f.seedCompany(t, invoicing.NumberingModeGlobal)
	created := f.createDraft(t, consultingRequest(company.ID, nil))

	_, err := f.service.GetSnapshot(ctx, f.tenantID, created.ID)
	assert.True(t, shared.IsCode(err, shared.CodeNotFound))

	_, err = f.service.Finalize(ctx, f.tenantID, created.ID, f.actorID)
	require.NoError(t, err)

	snapshot, err := f.service.GetSnapshot(ctx, f.tenantID, created.ID)
	require.NoError(t, err)
	assert.False(t, snapshot.Legacy)
	assert.Equal(t, f.actorID, snapshot.TakenBy)
	assert.Equal(t, created.InvoiceNumber, snapshot.Payload.Invoice.Number)

	_, err = f.service.GetSnapshot(ctx, uuid.New(), created.ID)
	assert.True(t, shared.IsCode(err, shared.CodeNotFound))
}
