package memory_test

import (
	"context"
	"errors"
	"testing"

	"go-repair-billing/internal/apperrors"
	"go-repair-billing/internal/model"
	"go-repair-billing/internal/repository"
	"go-repair-billing/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInvoice(customerID uuid.UUID) *model.Invoice {
	return &model.Invoice{
		Kind:       model.InvoiceSale,
		CustomerID: &customerID,
		Currency:   "USD",
		Status:     model.StatusDraft,
		Items: []model.InvoiceItem{
			{Description: "Screen", Quantity: 1, UnitPrice: decimal.NewFromInt(100), Kind: model.ItemPart},
			{Description: "Labour", Quantity: 2, UnitPrice: decimal.NewFromInt(25), Kind: model.ItemService},
		},
	}
}

func TestWithinTx_CommitAndRollback(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	customer := store.SeedCustomer(model.Customer{Name: "Ana"})

	var committed uuid.UUID
	err := store.WithinTx(ctx, func(tx repository.Tx) error {
		invoice := newInvoice(customer.ID)
		require.NoError(t, tx.Invoices().Create(invoice))
		committed = invoice.ID
		return nil
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	var rolledBack uuid.UUID
	err = store.WithinTx(ctx, func(tx repository.Tx) error {
		invoice := newInvoice(customer.ID)
		require.NoError(t, tx.Invoices().Create(invoice))
		rolledBack = invoice.ID
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_ = store.WithinTx(ctx, func(tx repository.Tx) error {
		invoice, err := tx.Invoices().FindByID(committed)
		require.NoError(t, err)
		assert.Len(t, invoice.Items, 2)
		assert.Equal(t, "Screen", invoice.Items[0].Description)

		_, err = tx.Invoices().FindByID(rolledBack)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		return nil
	})
}

func TestSavepoint_UndoesOnlyNestedWork(t *testing.T) {
	store := memory.New()
	item := store.SeedInventoryItem(model.InventoryItem{SKU: "LCD-1", Name: "LCD", Stock: 5})

	err := store.WithinTx(context.Background(), func(tx repository.Tx) error {
		require.NoError(t, tx.Stock().UpdateStock(item.ID, 4, "test"))

		nested := tx.Savepoint(func(sp repository.Tx) error {
			require.NoError(t, sp.Stock().UpdateStock(item.ID, 0, "test"))
			return errors.New("nested failure")
		})
		assert.Error(t, nested)

		current, err := tx.Stock().FindByIDForUpdate(item.ID)
		require.NoError(t, err)
		assert.Equal(t, 4, current.Stock)
		return nil
	})
	require.NoError(t, err)
}

func TestSoftDeletedRowsAreHidden(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	customer := store.SeedCustomer(model.Customer{Name: "Ana"})
	repairID := uuid.New()

	err := store.WithinTx(ctx, func(tx repository.Tx) error {
		invoice := newInvoice(customer.ID)
		invoice.RepairRequestID = &repairID
		require.NoError(t, tx.Invoices().Create(invoice))

		exists, _ := tx.Invoices().ExistsForRepair(repairID)
		assert.True(t, exists)

		require.NoError(t, tx.Items().Delete(&invoice.Items[0], "test"))
		items, _ := tx.Items().ListByInvoice(invoice.ID)
		assert.Len(t, items, 1)

		require.NoError(t, tx.Invoices().SoftDelete(invoice.ID, "test"))
		exists, _ = tx.Invoices().ExistsForRepair(repairID)
		assert.False(t, exists)

		all, _ := tx.Invoices().FindAll()
		assert.Empty(t, all)
		return nil
	})
	require.NoError(t, err)
}

func TestPaymentSum(t *testing.T) {
	store := memory.New()
	invoiceID := uuid.New()

	err := store.WithinTx(context.Background(), func(tx repository.Tx) error {
		for _, amount := range []string{"10.50", "20.25"} {
			p := &model.Payment{InvoiceID: invoiceID, Amount: decimal.RequireFromString(amount), Method: model.PaymentCash}
			require.NoError(t, tx.Payments().Create(p))
		}
		sum, err := tx.Payments().SumByInvoice(invoiceID)
		require.NoError(t, err)
		assert.True(t, sum.Equal(decimal.RequireFromString("30.75")), sum.String())
		return nil
	})
	require.NoError(t, err)
}

func TestWithinTx_CancelledContext(t *testing.T) {
	store := memory.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := store.WithinTx(ctx, func(tx repository.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
