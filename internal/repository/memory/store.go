// Package memory is a process-local implementation of repository.Store for
// tests and for running without Postgres. One mutex serialises every scope;
// a scope mutates a copy of the state that replaces the original only on
// commit, which gives the same all-or-nothing behaviour as the database.
package memory

import (
	"context"
	"sync"
	"time"

	"go-repair-billing/internal/model"
	"go-repair-billing/internal/repository"

	"github.com/google/uuid"
)

type state struct {
	invoices  *table[model.Invoice]
	items     *table[model.InvoiceItem]
	payments  *table[model.Payment]
	repairs   *table[model.RepairRequest]
	services  *table[model.RepairService]
	parts     *table[model.RepairPart]
	inventory *table[model.InventoryItem]
	movements *table[model.StockMovement]
	customers *table[model.Customer]
	vendors   *table[model.Vendor]
}

func newState() *state {
	return &state{
		invoices:  newTable[model.Invoice](),
		items:     newTable[model.InvoiceItem](),
		payments:  newTable[model.Payment](),
		repairs:   newTable[model.RepairRequest](),
		services:  newTable[model.RepairService](),
		parts:     newTable[model.RepairPart](),
		inventory: newTable[model.InventoryItem](),
		movements: newTable[model.StockMovement](),
		customers: newTable[model.Customer](),
		vendors:   newTable[model.Vendor](),
	}
}

func (s *state) clone() *state {
	return &state{
		invoices:  s.invoices.clone(),
		items:     s.items.clone(),
		payments:  s.payments.clone(),
		repairs:   s.repairs.clone(),
		services:  s.services.clone(),
		parts:     s.parts.clone(),
		inventory: s.inventory.clone(),
		movements: s.movements.clone(),
		customers: s.customers.clone(),
		vendors:   s.vendors.clone(),
	}
}

type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

var _ repository.Store = (*Store)(nil)

func New() *Store {
	return &Store{st: newState(), now: time.Now}
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{ctx: ctx, st: s.st.clone(), now: s.now}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = tx.st
	return nil
}

// Seed helpers write collaborator rows the engine only reads.

func (s *Store) SeedCustomer(c model.Customer) model.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()
	stamp(&c.BaseModel, s.now())
	s.st.customers.put(c.ID, c)
	return c
}

func (s *Store) SeedVendor(v model.Vendor) model.Vendor {
	s.mu.Lock()
	defer s.mu.Unlock()
	stamp(&v.BaseModel, s.now())
	s.st.vendors.put(v.ID, v)
	return v
}

func (s *Store) SeedInventoryItem(item model.InventoryItem) model.InventoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	stamp(&item.BaseModel, s.now())
	s.st.inventory.put(item.ID, item)
	return item
}

// SeedRepair stores a repair request with its services and consumed parts.
func (s *Store) SeedRepair(repair model.RepairRequest, services []model.RepairService, parts []model.RepairPart) model.RepairRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	stamp(&repair.BaseModel, now)
	if repair.Status == "" {
		repair.Status = model.RepairCompleted
	}
	s.st.repairs.put(repair.ID, repair)
	for _, svc := range services {
		stamp(&svc.BaseModel, now)
		svc.RepairRequestID = repair.ID
		s.st.services.put(svc.ID, svc)
	}
	for _, part := range parts {
		stamp(&part.BaseModel, now)
		part.RepairRequestID = repair.ID
		s.st.parts.put(part.ID, part)
	}
	return repair
}

func stamp(base *model.BaseModel, now time.Time) {
	if base.ID == uuid.Nil {
		base.ID = uuid.New()
	}
	if base.CreatedAt.IsZero() {
		base.CreatedAt = now
	}
	base.UpdatedAt = now
}

type memTx struct {
	ctx context.Context
	st  *state
	now func() time.Time
}

func (t *memTx) Context() context.Context { return t.ctx }
func (t *memTx) Invoices() repository.InvoiceRepository { return invoiceRepo{t} }
func (t *memTx) Items() repository.InvoiceItemRepository { return itemRepo{t} }
func (t *memTx) Payments() repository.PaymentRepository { return paymentRepo{t} }
func (t *memTx) Repairs() repository.RepairRepository { return repairRepo{t} }
func (t *memTx) Stock() repository.StockRepository { return stockRepo{t} }
func (t *memTx) Parties() repository.PartyRepository { return partyRepo{t} }

func (t *memTx) Savepoint(fn func(tx repository.Tx) error) error {
	if err := t.ctx.Err(); err != nil {
		return err
	}
	child := &memTx{ctx: t.ctx, st: t.st.clone(), now: t.now}
	if err := fn(child); err != nil {
		return err
	}
	t.st = child.st
	return nil
}
