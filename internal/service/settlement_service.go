package service

import (
	"context"
	"time"

	"go-repair-billing/internal/repository"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// SettlementService runs every invoice and payment operation in one
// transactional scope and publishes the resulting events after commit.
type SettlementService interface {
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest, userID string) (*InvoiceView, error)
	CreateFromRepair(ctx context.Context, repairID uuid.UUID, req FromRepairRequest, userID string) (*InvoiceView, error)
	GetInvoice(ctx context.Context, id uuid.UUID) (*InvoiceView, error)
	UpdateAdjustments(ctx context.Context, id uuid.UUID, req AdjustmentRequest, userID string) (*InvoiceView, error)
	SendInvoice(ctx context.Context, id uuid.UUID, userID string) (*InvoiceView, error)
	CancelInvoice(ctx context.Context, id uuid.UUID, userID string) (*InvoiceView, error)
	DeleteInvoice(ctx context.Context, id uuid.UUID, userID string) error

	AddItem(ctx context.Context, invoiceID uuid.UUID, req ItemInput, userID string) (*ItemResult, error)
	UpdateItem(ctx context.Context, invoiceID, itemID uuid.UUID, req ItemInput, userID string) (*ItemResult, error)
	RemoveItem(ctx context.Context, invoiceID, itemID uuid.UUID, userID string) (decimal.Decimal, error)

	RecordPayment(ctx context.Context, req PaymentRequest, userID string) (*PaymentResult, error)
	ListPayments(ctx context.Context, invoiceID uuid.UUID) (*PaymentList, error)

	Reconcile(ctx context.Context) (*ReconcileReport, error)
}

type Options struct {
	DefaultTaxRate  decimal.Decimal // percent
	DefaultCurrency string
	Numberer        InvoiceNumberer
	// Locker serialises Reconcile across instances when set.
	Locker *redislock.Client
}

type settlementService struct {
	store     repository.Store
	publisher Publisher
	opts      Options
	log       zerolog.Logger
	now       func() time.Time
}

func NewSettlementService(store repository.Store, publisher Publisher, opts Options, logger zerolog.Logger) SettlementService {
	if opts.Numberer == nil {
		opts.Numberer = CountingNumberer{Prefix: "INV"}
	}
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = "USD"
	}
	return &settlementService{
		store:     store,
		publisher: publisher,
		opts:      opts,
		log:       logger,
		now:       time.Now,
	}
}

// run executes fn in one scope. Events queued on the outbox are published
// only once the scope has committed.
func (s *settlementService) run(ctx context.Context, fn func(tx repository.Tx, box *outbox) error) error {
	box := &outbox{}
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		return fn(tx, box)
	})
	if err != nil {
		return err
	}
	box.flush(context.WithoutCancel(ctx), s.publisher)
	return nil
}

func (s *settlementService) today() time.Time {
	return truncateDate(s.now())
}

func truncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
