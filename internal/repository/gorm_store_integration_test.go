package repository_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"go-repair-billing/internal/model"
	"go-repair-billing/internal/repository"
	"go-repair-billing/pkg/database"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// openIntegrationDB connects to DATABASE_URL and migrates it. Runs only
// with INTEGRATION_TESTS=1.
func openIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()
	if os.Getenv("INTEGRATION_TESTS") != "1" {
		t.Skip("set INTEGRATION_TESTS=1 and DATABASE_URL to run Postgres tests")
	}
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	m, err := database.NewMigrator(dsn, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, m.Up())
	require.NoError(t, m.Close())

	db, err := database.Connect(dsn, zerolog.Nop())
	require.NoError(t, err)
	return db
}

func seedCustomer(t *testing.T, db *gorm.DB) model.Customer {
	t.Helper()
	c := model.Customer{Name: "Integration " + uuid.NewString()[:8]}
	require.NoError(t, db.Create(&c).Error)
	return c
}

func newInvoice(customerID uuid.UUID, total int64) *model.Invoice {
	amount := decimal.NewFromInt(total)
	item := model.InvoiceItem{Description: "Bench work", Quantity: 1, UnitPrice: amount, Kind: model.ItemService}
	item.Recalculate()
	return &model.Invoice{
		InvoiceNumber: "IT-" + uuid.NewString()[:8],
		Kind:          model.InvoiceSale,
		CustomerID:    &customerID,
		Subtotal:      amount,
		TotalAmount:   amount,
		Currency:      "USD",
		Status:        model.StatusDraft,
		IssueDate:     time.Now().UTC().Truncate(24 * time.Hour),
		Items:         []model.InvoiceItem{item},
	}
}

func TestGormStore_CommitAndRollback(t *testing.T) {
	db := openIntegrationDB(t)
	store := repository.NewStore(db)
	ctx := context.Background()
	customer := seedCustomer(t, db)

	committed := newInvoice(customer.ID, 200)
	require.NoError(t, store.WithinTx(ctx, func(tx repository.Tx) error {
		return tx.Invoices().Create(committed)
	}))

	rolledBack := newInvoice(customer.ID, 50)
	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(tx repository.Tx) error {
		if err := tx.Invoices().Create(rolledBack); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, store.WithinTx(ctx, func(tx repository.Tx) error {
		got, err := tx.Invoices().FindByID(committed.ID)
		require.NoError(t, err)
		assert.Len(t, got.Items, 1)

		_, err = tx.Invoices().FindByID(rolledBack.ID)
		assert.Error(t, err)
		return nil
	}))
}

func TestGormStore_SavepointUndoesOnlyNestedWork(t *testing.T) {
	db := openIntegrationDB(t)
	store := repository.NewStore(db)
	ctx := context.Background()
	customer := seedCustomer(t, db)
	invoice := newInvoice(customer.ID, 200)

	require.NoError(t, store.WithinTx(ctx, func(tx repository.Tx) error {
		if err := tx.Invoices().Create(invoice); err != nil {
			return err
		}
		if err := tx.Payments().Create(&model.Payment{
			InvoiceID: invoice.ID, Amount: decimal.NewFromInt(80), Method: model.PaymentCash,
			PaymentDate: invoice.IssueDate, RecordedBy: "it",
		}); err != nil {
			return err
		}

		// A CHECK violation inside the savepoint must not poison the outer transaction.
		spErr := tx.Savepoint(func(sp repository.Tx) error {
			return sp.Payments().Create(&model.Payment{
				InvoiceID: invoice.ID, Amount: decimal.NewFromInt(-1), Method: model.PaymentCash,
				PaymentDate: invoice.IssueDate, RecordedBy: "it",
			})
		})
		assert.Error(t, spErr)

		paid, err := tx.Payments().SumByInvoice(invoice.ID)
		if err != nil {
			return err
		}
		assert.True(t, paid.Equal(decimal.NewFromInt(80)), "got %s", paid)
		return nil
	}))
}

func TestGormStore_SoftDeleteFreesRepair(t *testing.T) {
	db := openIntegrationDB(t)
	store := repository.NewStore(db)
	ctx := context.Background()
	customer := seedCustomer(t, db)

	repair := model.RepairRequest{CustomerID: customer.ID, Device: "Tablet", Status: model.RepairCompleted}
	require.NoError(t, db.Create(&repair).Error)

	invoice := newInvoice(customer.ID, 120)
	invoice.RepairRequestID = &repair.ID

	require.NoError(t, store.WithinTx(ctx, func(tx repository.Tx) error {
		if err := tx.Invoices().Create(invoice); err != nil {
			return err
		}
		exists, err := tx.Invoices().ExistsForRepair(repair.ID)
		require.NoError(t, err)
		assert.True(t, exists)

		if err := tx.Invoices().SoftDelete(invoice.ID, "it"); err != nil {
			return err
		}
		exists, err = tx.Invoices().ExistsForRepair(repair.ID)
		require.NoError(t, err)
		assert.False(t, exists)
		return nil
	}))
}
