package memory

import (
	"time"

	"go-repair-billing/internal/apperrors"
	"go-repair-billing/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func softDelete(base *model.BaseModel, deletedBy string, now time.Time) {
	base.DeletedBy = deletedBy
	base.DeletedAt = gorm.DeletedAt{Time: now, Valid: true}
}

type invoiceRepo struct{ tx *memTx }

func (r invoiceRepo) Create(invoice *model.Invoice) error {
	now := r.tx.now()
	stamp(&invoice.BaseModel, now)
	for i := range invoice.Items {
		item := &invoice.Items[i]
		stamp(&item.BaseModel, now)
		item.InvoiceID = invoice.ID
		r.tx.st.items.put(item.ID, *item)
	}
	header := *invoice
	header.Items = nil
	r.tx.st.invoices.put(header.ID, header)
	return nil
}

func (r invoiceRepo) FindByID(id uuid.UUID) (*model.Invoice, error) {
	invoice, ok := r.tx.st.invoices.get(id)
	if !ok || invoice.IsDeleted() {
		return nil, apperrors.NotFound("invoice", id)
	}
	items, _ := itemRepo{r.tx}.ListByInvoice(id)
	invoice.Items = items
	return &invoice, nil
}

// FindByIDForUpdate needs no extra locking: the store mutex already
// serialises scopes.
func (r invoiceRepo) FindByIDForUpdate(id uuid.UUID) (*model.Invoice, error) {
	return r.FindByID(id)
}

func (r invoiceRepo) FindAll() ([]model.Invoice, error) {
	return r.tx.st.invoices.list(func(i model.Invoice) bool { return !i.IsDeleted() }), nil
}

func (r invoiceRepo) ExistsForRepair(repairID uuid.UUID) (bool, error) {
	found := r.tx.st.invoices.list(func(i model.Invoice) bool {
		return !i.IsDeleted() && i.RepairRequestID != nil && *i.RepairRequestID == repairID
	})
	return len(found) > 0, nil
}

func (r invoiceRepo) CountCreatedBetween(from, to time.Time) (int64, error) {
	found := r.tx.st.invoices.list(func(i model.Invoice) bool {
		return !i.IsDeleted() && !i.CreatedAt.Before(from) && i.CreatedAt.Before(to)
	})
	return int64(len(found)), nil
}

func (r invoiceRepo) Save(invoice *model.Invoice) error {
	existing, ok := r.tx.st.invoices.get(invoice.ID)
	if !ok {
		return r.Create(invoice)
	}
	header := *invoice
	header.Items = nil
	header.CreatedAt = existing.CreatedAt
	header.UpdatedAt = r.tx.now()
	invoice.UpdatedAt = header.UpdatedAt
	r.tx.st.invoices.put(header.ID, header)
	return nil
}

func (r invoiceRepo) UpdateStatus(id uuid.UUID, status model.InvoiceStatus, updatedBy string) error {
	invoice, ok := r.tx.st.invoices.get(id)
	if !ok || invoice.IsDeleted() {
		return nil
	}
	invoice.Status = status
	invoice.UpdatedBy = updatedBy
	invoice.UpdatedAt = r.tx.now()
	r.tx.st.invoices.put(id, invoice)
	return nil
}

func (r invoiceRepo) SoftDelete(id uuid.UUID, deletedBy string) error {
	invoice, ok := r.tx.st.invoices.get(id)
	if !ok || invoice.IsDeleted() {
		return nil
	}
	softDelete(&invoice.BaseModel, deletedBy, r.tx.now())
	r.tx.st.invoices.put(id, invoice)
	return nil
}

type itemRepo struct{ tx *memTx }

func (r itemRepo) Create(item *model.InvoiceItem) error {
	stamp(&item.BaseModel, r.tx.now())
	r.tx.st.items.put(item.ID, *item)
	return nil
}

func (r itemRepo) FindByID(invoiceID, itemID uuid.UUID) (*model.InvoiceItem, error) {
	item, ok := r.tx.st.items.get(itemID)
	if !ok || item.IsDeleted() || item.InvoiceID != invoiceID {
		return nil, apperrors.NotFound("invoice item", itemID)
	}
	return &item, nil
}

func (r itemRepo) ListByInvoice(invoiceID uuid.UUID) ([]model.InvoiceItem, error) {
	return r.tx.st.items.list(func(i model.InvoiceItem) bool {
		return !i.IsDeleted() && i.InvoiceID == invoiceID
	}), nil
}

func (r itemRepo) Update(item *model.InvoiceItem) error {
	existing, ok := r.tx.st.items.get(item.ID)
	if !ok {
		return r.Create(item)
	}
	item.CreatedAt = existing.CreatedAt
	item.UpdatedAt = r.tx.now()
	r.tx.st.items.put(item.ID, *item)
	return nil
}

func (r itemRepo) Delete(item *model.InvoiceItem, deletedBy string) error {
	existing, ok := r.tx.st.items.get(item.ID)
	if !ok || existing.IsDeleted() {
		return nil
	}
	softDelete(&existing.BaseModel, deletedBy, r.tx.now())
	r.tx.st.items.put(existing.ID, existing)
	return nil
}

type paymentRepo struct{ tx *memTx }

func (r paymentRepo) Create(payment *model.Payment) error {
	stamp(&payment.BaseModel, r.tx.now())
	r.tx.st.payments.put(payment.ID, *payment)
	return nil
}

func (r paymentRepo) ListByInvoice(invoiceID uuid.UUID) ([]model.Payment, error) {
	return r.tx.st.payments.list(func(p model.Payment) bool {
		return !p.IsDeleted() && p.InvoiceID == invoiceID
	}), nil
}

func (r paymentRepo) SumByInvoice(invoiceID uuid.UUID) (decimal.Decimal, error) {
	payments, _ := r.ListByInvoice(invoiceID)
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total, nil
}

type repairRepo struct{ tx *memTx }

func (r repairRepo) FindByIDForUpdate(id uuid.UUID) (*model.RepairRequest, error) {
	repair, ok := r.tx.st.repairs.get(id)
	if !ok || repair.IsDeleted() {
		return nil, apperrors.NotFound("repair request", id)
	}
	return &repair, nil
}

func (r repairRepo) CompletedServices(repairID uuid.UUID) ([]model.RepairService, error) {
	return r.tx.st.services.list(func(s model.RepairService) bool {
		return !s.IsDeleted() && s.RepairRequestID == repairID && s.Status == model.ServiceCompleted
	}), nil
}

func (r repairRepo) ConsumedParts(repairID uuid.UUID) ([]model.RepairPart, error) {
	return r.tx.st.parts.list(func(p model.RepairPart) bool {
		return !p.IsDeleted() && p.RepairRequestID == repairID && p.Quantity > 0
	}), nil
}

func (r repairRepo) UpdateStatus(id uuid.UUID, status model.RepairStatus, updatedBy string) error {
	repair, ok := r.tx.st.repairs.get(id)
	if !ok || repair.IsDeleted() {
		return apperrors.NotFound("repair request", id)
	}
	repair.Status = status
	repair.UpdatedBy = updatedBy
	repair.UpdatedAt = r.tx.now()
	r.tx.st.repairs.put(id, repair)
	return nil
}

type stockRepo struct{ tx *memTx }

func (r stockRepo) FindByIDForUpdate(id uuid.UUID) (*model.InventoryItem, error) {
	item, ok := r.tx.st.inventory.get(id)
	if !ok || item.IsDeleted() {
		return nil, apperrors.NotFound("inventory item", id)
	}
	return &item, nil
}

func (r stockRepo) UpdateStock(id uuid.UUID, newStock int, updatedBy string) error {
	item, ok := r.tx.st.inventory.get(id)
	if !ok {
		return nil
	}
	item.Stock = newStock
	item.UpdatedBy = updatedBy
	item.UpdatedAt = r.tx.now()
	r.tx.st.inventory.put(id, item)
	return nil
}

func (r stockRepo) RecordMovement(movement *model.StockMovement) error {
	stamp(&movement.BaseModel, r.tx.now())
	r.tx.st.movements.put(movement.ID, *movement)
	return nil
}

func (r stockRepo) MovementsByReference(referenceType string, referenceID uuid.UUID) ([]model.StockMovement, error) {
	return r.tx.st.movements.list(func(m model.StockMovement) bool {
		return m.ReferenceType == referenceType && m.ReferenceID != nil && *m.ReferenceID == referenceID
	}), nil
}

type partyRepo struct{ tx *memTx }

func (r partyRepo) FindCustomer(id uuid.UUID) (*model.Customer, error) {
	customer, ok := r.tx.st.customers.get(id)
	if !ok || customer.IsDeleted() {
		return nil, apperrors.NotFound("customer", id)
	}
	return &customer, nil
}

func (r partyRepo) FindVendor(id uuid.UUID) (*model.Vendor, error) {
	vendor, ok := r.tx.st.vendors.get(id)
	if !ok || vendor.IsDeleted() {
		return nil, apperrors.NotFound("vendor", id)
	}
	return &vendor, nil
}
