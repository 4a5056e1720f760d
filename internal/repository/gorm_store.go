package repository

import (
	"context"
	"errors"
	"fmt"

	"go-repair-billing/internal/apperrors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormStore struct {
	db *gorm.DB
}

// NewStore returns the Postgres-backed Store.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db}
}

func (s *gormStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{ctx: ctx, db: tx})
	})
}

// gormTx binds the repositories to one *gorm.DB transaction handle.
type gormTx struct {
	ctx context.Context
	db  *gorm.DB
}

func (t *gormTx) Context() context.Context { return t.ctx }
func (t *gormTx) Invoices() InvoiceRepository { return NewInvoiceRepo(t.db) }
func (t *gormTx) Items() InvoiceItemRepository { return NewInvoiceItemRepo(t.db) }
func (t *gormTx) Payments() PaymentRepository { return NewPaymentRepo(t.db) }
func (t *gormTx) Repairs() RepairRepository { return NewRepairRepo(t.db) }
func (t *gormTx) Stock() StockRepository { return NewStockRepo(t.db) }
func (t *gormTx) Parties() PartyRepository { return NewPartyRepo(t.db) }

// Savepoint relies on gorm turning a nested Transaction into SAVEPOINT /
// ROLLBACK TO SAVEPOINT.
func (t *gormTx) Savepoint(fn func(tx Tx) error) error {
	return t.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{ctx: t.ctx, db: tx})
	})
}

func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// notFound converts gorm's sentinel into the application one.
func notFound(err error, entity string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound(entity, id)
	}
	return err
}

const pgUniqueViolation = "23505"

// uniqueViolation maps a hit on one of the partial unique indexes onto the
// matching application error.
func uniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case "uq_invoice_items_service", "uq_invoice_items_inventory_item":
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, apperrors.ErrDuplicateItem)
	case "uq_invoices_live_repair":
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, apperrors.ErrAlreadyInvoiced)
	}
	return err
}
