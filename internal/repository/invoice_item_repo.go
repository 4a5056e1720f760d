package repository

import (
	"go-repair-billing/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type invoiceItemRepo struct {
	db *gorm.DB
}

func NewInvoiceItemRepo(db *gorm.DB) InvoiceItemRepository {
	return &invoiceItemRepo{db}
}

func (r *invoiceItemRepo) Create(item *model.InvoiceItem) error {
	return uniqueViolation(r.db.Create(item).Error)
}

func (r *invoiceItemRepo) FindByID(invoiceID, itemID uuid.UUID) (*model.InvoiceItem, error) {
	var item model.InvoiceItem
	err := r.db.First(&item, "id = ? AND invoice_id = ?", itemID, invoiceID).Error
	if err != nil {
		return nil, notFound(err, "invoice item", itemID)
	}
	return &item, nil
}

func (r *invoiceItemRepo) ListByInvoice(invoiceID uuid.UUID) ([]model.InvoiceItem, error) {
	var items []model.InvoiceItem
	err := r.db.Where("invoice_id = ?", invoiceID).Order("created_at ASC").Find(&items).Error
	return items, err
}

func (r *invoiceItemRepo) Update(item *model.InvoiceItem) error {
	return uniqueViolation(r.db.Save(item).Error)
}

func (r *invoiceItemRepo) Delete(item *model.InvoiceItem, deletedBy string) error {
	if err := r.db.Model(item).Update("deleted_by", deletedBy).Error; err != nil {
		return err
	}
	return r.db.Delete(item).Error
}
