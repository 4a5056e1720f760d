package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go-repair-billing/internal/apperrors"
	"go-repair-billing/internal/model"
	"go-repair-billing/internal/repository"
	"go-repair-billing/internal/service"
	"go-repair-billing/internal/ws"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type discardPublisher struct{}

func (discardPublisher) Publish(context.Context, ws.Event, ...string) {}

func TestGormStore_ConcurrentPaymentsStopAtTotal(t *testing.T) {
	db := openIntegrationDB(t)
	store := repository.NewStore(db)
	customer := seedCustomer(t, db)
	zero := decimal.Zero

	svc := service.NewSettlementService(store, discardPublisher{}, service.Options{DefaultCurrency: "USD"}, zerolog.Nop())
	ctx := context.Background()

	invoice, err := svc.CreateInvoice(ctx, service.CreateInvoiceRequest{
		Kind:       model.InvoiceSale,
		CustomerID: &customer.ID,
		TaxRate:    &zero,
		Items: []service.ItemInput{
			{Description: "Board repair", Quantity: 2, UnitPrice: decimal.NewFromInt(100), Kind: model.ItemService},
		},
	}, "it")
	require.NoError(t, err)
	require.True(t, invoice.TotalAmount.Equal(decimal.NewFromInt(200)))

	const attempts = 12
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecordPayment(ctx, service.PaymentRequest{
				InvoiceID: invoice.ID,
				Amount:    decimal.NewFromInt(50),
				Method:    model.PaymentCash,
			}, "it")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	accepted, rejected := 0, 0
	for err := range results {
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, apperrors.ErrBalanceExceeded):
			rejected++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 4, accepted)
	assert.Equal(t, attempts-4, rejected)

	require.NoError(t, store.WithinTx(ctx, func(tx repository.Tx) error {
		paid, err := tx.Payments().SumByInvoice(invoice.ID)
		require.NoError(t, err)
		assert.True(t, paid.Equal(decimal.NewFromInt(200)), "got %s", paid)
		return nil
	}))

	view, err := svc.GetInvoice(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaid, view.Status)
}

func TestGormStore_UniqueIndexesMapToDomainErrors(t *testing.T) {
	db := openIntegrationDB(t)
	store := repository.NewStore(db)
	ctx := context.Background()
	customer := seedCustomer(t, db)

	serviceID := uuid.New()
	invoice := newInvoice(customer.ID, 100)
	invoice.Items[0].ServiceID = &serviceID

	require.NoError(t, store.WithinTx(ctx, func(tx repository.Tx) error {
		if err := tx.Invoices().Create(invoice); err != nil {
			return err
		}

		dup := model.InvoiceItem{
			InvoiceID: invoice.ID, Description: "Bench work again", Quantity: 1,
			UnitPrice: decimal.NewFromInt(10), Kind: model.ItemService, ServiceID: &serviceID,
		}
		dup.Recalculate()
		err := tx.Savepoint(func(sp repository.Tx) error {
			return sp.Items().Create(&dup)
		})
		assert.ErrorIs(t, err, apperrors.ErrDuplicateItem)

		items, err := tx.Items().ListByInvoice(invoice.ID)
		require.NoError(t, err)
		assert.Len(t, items, 1)
		return nil
	}))

	repair := model.RepairRequest{CustomerID: customer.ID, Device: "Phone", Status: model.RepairCompleted}
	require.NoError(t, db.Create(&repair).Error)

	first := newInvoice(customer.ID, 60)
	first.RepairRequestID = &repair.ID
	second := newInvoice(customer.ID, 60)
	second.RepairRequestID = &repair.ID

	require.NoError(t, store.WithinTx(ctx, func(tx repository.Tx) error {
		return tx.Invoices().Create(first)
	}))
	err := store.WithinTx(ctx, func(tx repository.Tx) error {
		return tx.Invoices().Create(second)
	})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyInvoiced)
}
