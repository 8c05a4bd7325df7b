package invoicing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testItems() []ItemInput {
	return []ItemInput{
		{Description: "Consulting hours", LineInput: line("2", "100")},
	}
}

func createTestDraft(t *testing.T, company *Company) *Draft {
	t.Helper()
	d, err := NewDraft(company, DraftInput{Items: testItems()}, testNow)
	require.NoError(t, err)
	return d
}

func createTestInvoice(t *testing.T, company *Company) *Invoice {
	t.Helper()
	inv, err := createTestDraft(t, company).Number(InvoiceNumber{
		Prefix:     "INV-",
		Serial:     1,
		FullNumber: "INV-0001",
		Mode:       NumberingModeGlobal,
	}, testNow)
	require.NoError(t, err)
	return inv
}

func TestNewDraft(t *testing.T) {
	company := createTestCompany(t, NumberingModeGlobal)

	t.Run("calculates items and totals", func(t *testing.T) {
		d := createTestDraft(t, company)

		assert.Equal(t, company.TenantID, d.TenantID)
		assert.Equal(t, "KES", d.Currency)
		assert.Equal(t, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), d.IssueDate)
		assert.Equal(t, d.IssueDate.AddDate(0, 0, DefaultPaymentTermDays), d.DueDate)
		require.Len(t, d.Items, 1)
		assert.Equal(t, d.ID, d.Items[0].InvoiceID)
		assert.Equal(t, 1, d.Items[0].Position)
		assertMoney(t, "32.00", d.Items[0].VATAmount, "item vat")
		assertMoney(t, "238.96", d.Summary.GrandTotal, "grand total")
		assert.True(t, d.Config.VATRate.Equal(dec("16")))
	})

	t.Run("rejects due date before issue date", func(t *testing.T) {
		_, err := NewDraft(company, DraftInput{
			IssueDate: testNow,
			DueDate:   testNow.AddDate(0, 0, -1),
			Items:     testItems(),
		}, testNow)
		assert.True(t, shared.IsCode(err, shared.CodeInvalidInput))
	})

	t.Run("rejects items without description", func(t *testing.T) {
		_, err := NewDraft(company, DraftInput{Items: []ItemInput{{LineInput: line("1", "10")}}}, testNow)
		assert.True(t, shared.IsCode(err, shared.CodeInvalidInput))
	})

	t.Run("propagates calculation errors", func(t *testing.T) {
		_, err := NewDraft(company, DraftInput{}, testNow)
		assert.True(t, shared.IsCode(err, shared.CodeInvalidInput))
	})
}

func TestNewDraft_StoredScale(t *testing.T) {
	company := createTestCompany(t, NumberingModeGlobal)

	tests := []struct {
		name     string
		item     LineInput
		discount string
		want     string
	}{
		{"sub-cent unit price", line("1000", "0.00005"), "0", "unit price"},
		{"fine quantity", line("0.12345", "10"), "0", "quantity"},
		{"fine discount", line("1", "10"), "1.00001", "Discount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDraft(company, DraftInput{
				Items:        []ItemInput{{Description: "Metered usage", LineInput: tt.item}},
				Discount:     dec(tt.discount),
				DiscountType: DiscountTypeFixed,
			}, testNow)
			require.Error(t, err)
			assert.True(t, shared.IsCode(err, shared.CodeInvalidInput))
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	t.Run("trailing zeros are within scale", func(t *testing.T) {
		d, err := NewDraft(company, DraftInput{
			Items: []ItemInput{{Description: "Metered usage", LineInput: line("1.500000", "0.0125")}},
		}, testNow)
		require.NoError(t, err)
		assert.True(t, d.Items[0].Quantity.Equal(dec("1.5")))
	})

	t.Run("item replacement applies the same rule", func(t *testing.T) {
		inv := createTestInvoice(t, company)
		err := inv.ReplaceItems([]ItemInput{{Description: "Metered usage", LineInput: line("1000", "0.00005")}},
			decimal.Zero, DiscountTypeFixed, testNow)
		assert.True(t, shared.IsCode(err, shared.CodeInvalidInput))
		require.Len(t, inv.Items, 1)
		assert.Equal(t, "Consulting hours", inv.Items[0].Description)
	})
}

func TestDraft_Number(t *testing.T) {
	company := createTestCompany(t, NumberingModeGlobal)
	d := createTestDraft(t, company)
	number := InvoiceNumber{Prefix: "INV-", Serial: 7, FullNumber: "INV-0007", Mode: NumberingModeGlobal}

	inv, err := d.Number(number, testNow)
	require.NoError(t, err)
	assert.Equal(t, d.ID, inv.ID)
	assert.Equal(t, "INV-", inv.PrefixUsed())
	assert.Equal(t, int64(7), inv.SerialNumber())
	assert.Equal(t, "INV-0007", inv.FullNumber())
	assert.Equal(t, InvoiceStatusDraft, inv.Status())

	events := inv.GetDomainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventTypeInvoiceCreated, events[0].EventType())

	t.Run("a draft is numbered once", func(t *testing.T) {
		_, err := d.Number(number, testNow)
		assert.True(t, shared.IsCode(err, shared.CodeImmutableRecordViolation))
	})

	t.Run("incomplete numbers are rejected", func(t *testing.T) {
		_, err := createTestDraft(t, company).Number(InvoiceNumber{}, testNow)
		assert.True(t, shared.IsCode(err, shared.CodeInvalidInput))
	})
}

func TestRestoreInvoice(t *testing.T) {
	inv := createTestInvoice(t, createTestCompany(t, NumberingModeGlobal))

	_, err := RestoreInvoice(inv, InvoiceNumber{Serial: 99, FullNumber: "INV-0099"}, InvoiceStatusDraft)
	assert.True(t, shared.IsCode(err, shared.CodeImmutableRecordViolation))
	assert.Equal(t, "INV-0001", inv.FullNumber())

	restored, err := RestoreInvoice(&Invoice{}, InvoiceNumber{Serial: 3, FullNumber: "INV-0003"}, InvoiceStatusSent)
	require.NoError(t, err)
	assert.Equal(t, InvoiceStatusSent, restored.Status())
	assert.Equal(t, int64(3), restored.SerialNumber())

	_, err = RestoreInvoice(&Invoice{}, InvoiceNumber{Serial: 3, FullNumber: "INV-0003"}, InvoiceStatus("void"))
	assert.True(t, shared.IsCode(err, shared.CodeInvalidInput))
}

func TestInvoice_ReplaceItems(t *testing.T) {
	company := createTestCompany(t, NumberingModeGlobal)

	t.Run("recalculates a draft with captured rates", func(t *testing.T) {
		inv := createTestInvoice(t, company)
		company.VATRate = dec("20")

		err := inv.ReplaceItems([]ItemInput{
			{Description: "Design", LineInput: line("1", "500")},
			{Description: "Hosting", LineInput: line("1", "100")},
		}, dec("10"), DiscountTypePercentage, testNow)
		require.NoError(t, err)

		require.Len(t, inv.Items, 2)
		assertMoney(t, "600.00", inv.Summary.Subtotal, "subtotal")
		assertMoney(t, "96.00", inv.Summary.VATAmount, "vat at the captured 16%")
		assertMoney(t, "60.00", inv.Summary.DiscountAmount, "discount")
		assert.Equal(t, 2, inv.Version)
		company.VATRate = dec("16")
	})

	t.Run("finalized invoices are not editable", func(t *testing.T) {
		inv := createTestInvoice(t, company)
		require.NoError(t, inv.Finalize(testNow))

		err := inv.ReplaceItems(testItems(), dec("0"), "", testNow)
		assert.True(t, shared.IsCode(err, shared.CodeNotEditable))
	})
}

func TestInvoice_Finalize(t *testing.T) {
	company := createTestCompany(t, NumberingModeGlobal)

	t.Run("draft becomes finalized", func(t *testing.T) {
		inv := createTestInvoice(t, company)
		inv.ClearDomainEvents()

		require.NoError(t, inv.Finalize(testNow))
		assert.Equal(t, InvoiceStatusFinalized, inv.Status())
		require.NotNil(t, inv.FinalizedAt)
		require.Len(t, inv.GetDomainEvents(), 1)
	})

	t.Run("finalizing twice fails with AlreadyFinalized", func(t *testing.T) {
		inv := createTestInvoice(t, company)
		require.NoError(t, inv.Finalize(testNow))
		version := inv.Version

		err := inv.Finalize(testNow)
		assert.True(t, shared.IsCode(err, shared.CodeAlreadyFinalized))
		assert.Equal(t, version, inv.Version)
	})

	t.Run("cancelled draft cannot be finalized", func(t *testing.T) {
		inv := createTestInvoice(t, company)
		require.NoError(t, inv.Transition(InvoiceStatusCancelled, testNow))

		err := inv.Finalize(testNow)
		assert.True(t, shared.IsCode(err, shared.CodeIllegalTransition))
	})
}

func TestInvoice_WasFinalized(t *testing.T) {
	company := createTestCompany(t, NumberingModeGlobal)

	draft := createTestInvoice(t, company)
	assert.False(t, draft.WasFinalized())

	cancelledDraft := createTestInvoice(t, company)
	require.NoError(t, cancelledDraft.Transition(InvoiceStatusCancelled, testNow))
	assert.False(t, cancelledDraft.WasFinalized())

	voided := createTestInvoice(t, company)
	require.NoError(t, voided.Finalize(testNow))
	assert.True(t, voided.WasFinalized())
	require.NoError(t, voided.Transition(InvoiceStatusSent, testNow))
	require.NoError(t, voided.Transition(InvoiceStatusCancelled, testNow))
	assert.True(t, voided.WasFinalized())
}

func TestInvoice_Transition(t *testing.T) {
	company := createTestCompany(t, NumberingModeGlobal)

	t.Run("full happy path", func(t *testing.T) {
		inv := createTestInvoice(t, company)
		require.NoError(t, inv.Finalize(testNow))
		require.NoError(t, inv.Transition(InvoiceStatusSent, testNow))
		require.NoError(t, inv.Transition(InvoiceStatusPaid, testNow))

		assert.Equal(t, InvoiceStatusPaid, inv.Status())
		assert.NotNil(t, inv.SentAt)
		assert.NotNil(t, inv.PaidAt)
	})

	t.Run("illegal transition leaves invoice untouched", func(t *testing.T) {
		inv := createTestInvoice(t, company)
		inv.ClearDomainEvents()
		version := inv.Version

		err := inv.Transition(InvoiceStatusPaid, testNow)
		assert.True(t, shared.IsCode(err, shared.CodeIllegalTransition))
		assert.Equal(t, InvoiceStatusDraft, inv.Status())
		assert.Equal(t, version, inv.Version)
		assert.Nil(t, inv.PaidAt)
		assert.Empty(t, inv.GetDomainEvents())
	})

	t.Run("status event carries both ends", func(t *testing.T) {
		inv := createTestInvoice(t, company)
		inv.ClearDomainEvents()
		require.NoError(t, inv.Transition(InvoiceStatusCancelled, testNow))

		ev, ok := inv.GetDomainEvents()[0].(*InvoiceStatusChangedEvent)
		require.True(t, ok)
		assert.Equal(t, InvoiceStatusDraft, ev.From)
		assert.Equal(t, InvoiceStatusCancelled, ev.To)
		assert.Equal(t, "INV-0001", ev.InvoiceNumber)
	})
}

func TestInvoice_MarkOverdue(t *testing.T) {
	company := createTestCompany(t, NumberingModeGlobal)
	sent := func() *Invoice {
		inv := createTestInvoice(t, company)
		require.NoError(t, inv.Finalize(testNow))
		require.NoError(t, inv.Transition(InvoiceStatusSent, testNow))
		return inv
	}

	t.Run("past due sent invoice becomes overdue", func(t *testing.T) {
		inv := sent()
		dayAfterDue := inv.DueDate.AddDate(0, 0, 1)
		assert.True(t, inv.IsPastDue(dayAfterDue))
		require.NoError(t, inv.MarkOverdue(dayAfterDue))
		assert.Equal(t, InvoiceStatusOverdue, inv.Status())
	})

	t.Run("due today is not overdue", func(t *testing.T) {
		inv := sent()
		dueDay := inv.DueDate.Add(23 * time.Hour)
		assert.False(t, inv.IsPastDue(dueDay))
		assert.Error(t, inv.MarkOverdue(dueDay))
	})

	t.Run("draft cannot become overdue", func(t *testing.T) {
		inv := createTestInvoice(t, company)
		err := inv.MarkOverdue(inv.DueDate.AddDate(1, 0, 0))
		assert.True(t, shared.IsCode(err, shared.CodeIllegalTransition))
	})
}

func TestInvoice_Recalculate(t *testing.T) {
	inv := createTestInvoice(t, createTestCompany(t, NumberingModeGlobal))
	totals, err := inv.Recalculate()
	require.NoError(t, err)
	assert.True(t, totals.GrandTotal.Equal(inv.Summary.GrandTotal))
	assert.NotEqual(t, uuid.Nil, inv.Items[0].ID)
}
