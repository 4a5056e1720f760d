package repository

import (
	"context"
	"time"

	"go-repair-billing/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store opens transactional scopes over the ledger tables. Every engine
// operation runs inside exactly one scope: committed when fn returns nil,
// rolled back when it returns an error or panics.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx gives access to the repositories bound to one scope. All reads and
// writes made through it see the same transaction.
type Tx interface {
	Context() context.Context
	Invoices() InvoiceRepository
	Items() InvoiceItemRepository
	Payments() PaymentRepository
	Repairs() RepairRepository
	Stock() StockRepository
	Parties() PartyRepository

	// Savepoint runs fn in a nested scope. An error from fn undoes only the
	// nested work and is returned; the outer scope stays usable.
	Savepoint(fn func(tx Tx) error) error
}

type InvoiceRepository interface {
	Create(invoice *model.Invoice) error
	// FindByID loads a live invoice with its items.
	FindByID(id uuid.UUID) (*model.Invoice, error)
	// FindByIDForUpdate loads a live invoice with its items and holds a row
	// lock on the invoice until the scope ends.
	FindByIDForUpdate(id uuid.UUID) (*model.Invoice, error)
	FindAll() ([]model.Invoice, error)
	ExistsForRepair(repairID uuid.UUID) (bool, error)
	CountCreatedBetween(from, to time.Time) (int64, error)
	// Save writes the header columns, never the items.
	Save(invoice *model.Invoice) error
	UpdateStatus(id uuid.UUID, status model.InvoiceStatus, updatedBy string) error
	SoftDelete(id uuid.UUID, deletedBy string) error
}

type InvoiceItemRepository interface {
	Create(item *model.InvoiceItem) error
	FindByID(invoiceID, itemID uuid.UUID) (*model.InvoiceItem, error)
	ListByInvoice(invoiceID uuid.UUID) ([]model.InvoiceItem, error)
	Update(item *model.InvoiceItem) error
	Delete(item *model.InvoiceItem, deletedBy string) error
}

type PaymentRepository interface {
	Create(payment *model.Payment) error
	ListByInvoice(invoiceID uuid.UUID) ([]model.Payment, error)
	// SumByInvoice is the live paid-so-far aggregate.
	SumByInvoice(invoiceID uuid.UUID) (decimal.Decimal, error)
}

type RepairRepository interface {
	FindByIDForUpdate(id uuid.UUID) (*model.RepairRequest, error)
	CompletedServices(repairID uuid.UUID) ([]model.RepairService, error)
	ConsumedParts(repairID uuid.UUID) ([]model.RepairPart, error)
	UpdateStatus(id uuid.UUID, status model.RepairStatus, updatedBy string) error
}

type StockRepository interface {
	FindByIDForUpdate(id uuid.UUID) (*model.InventoryItem, error)
	UpdateStock(id uuid.UUID, newStock int, updatedBy string) error
	RecordMovement(movement *model.StockMovement) error
	MovementsByReference(referenceType string, referenceID uuid.UUID) ([]model.StockMovement, error)
}

type PartyRepository interface {
	FindCustomer(id uuid.UUID) (*model.Customer, error)
	FindVendor(id uuid.UUID) (*model.Vendor, error)
}
