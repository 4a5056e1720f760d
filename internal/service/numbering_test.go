package service_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"go-repair-billing/internal/model"
	"go-repair-billing/internal/repository"
	"go-repair-billing/internal/repository/memory"
	"go-repair-billing/internal/service"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedInvoices(t *testing.T, store *memory.Store, n int) {
	t.Helper()
	customer := store.SeedCustomer(model.Customer{Name: "Ana"})
	err := store.WithinTx(context.Background(), func(tx repository.Tx) error {
		for i := 0; i < n; i++ {
			inv := &model.Invoice{Kind: model.InvoiceSale, CustomerID: &customer.ID, Currency: "USD", Status: model.StatusDraft}
			if err := tx.Invoices().Create(inv); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestCountingNumberer(t *testing.T) {
	store := memory.New()
	seedInvoices(t, store, 41)
	now := time.Now()

	var number string
	err := store.WithinTx(context.Background(), func(tx repository.Tx) error {
		var err error
		number, err = service.CountingNumberer{Prefix: "INV"}.Next(tx, now)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("INV-%d-00042", now.Year()), number)

	err = store.WithinTx(context.Background(), func(tx repository.Tx) error {
		var err error
		number, err = service.CountingNumberer{Prefix: "INV"}.Next(tx, now.AddDate(1, 0, 0))
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("INV-%d-00001", now.Year()+1), number, "numbering restarts every year")
}

func TestRedisInvoiceNumberer_FallsBackWhenRedisIsDown(t *testing.T) {
	store := memory.New()
	seedInvoices(t, store, 2)
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()

	numberer := service.NewRedisInvoiceNumberer(rdb, "INV", zerolog.Nop())
	err := store.WithinTx(context.Background(), func(tx repository.Tx) error {
		number, err := numberer.Next(tx, time.Now())
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("INV-%d-00003", time.Now().Year()), number)
		return nil
	})
	require.NoError(t, err)
}

func TestRedisInvoiceNumberer_IsSequential(t *testing.T) {
	addr := os.Getenv("REDIS_ADDRESS")
	if addr == "" {
		t.Skip("REDIS_ADDRESS not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	store := memory.New()
	seedInvoices(t, store, 5)
	prefix := "T" + uuid.NewString()[:6]
	numberer := service.NewRedisInvoiceNumberer(rdb, prefix, zerolog.Nop())
	now := time.Now()
	t.Cleanup(func() {
		rdb.Del(context.Background(), fmt.Sprintf("billing:invoice_seq:%s:%d", prefix, now.Year()))
	})

	seen := make(map[string]bool)
	err := store.WithinTx(context.Background(), func(tx repository.Tx) error {
		for i := 0; i < 3; i++ {
			number, err := numberer.Next(tx, now)
			if err != nil {
				return err
			}
			seen[number] = true
		}
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, seen, 3)
	assert.True(t, seen[fmt.Sprintf("%s-%d-00006", prefix, now.Year())])
	assert.True(t, seen[fmt.Sprintf("%s-%d-00008", prefix, now.Year())])
}
