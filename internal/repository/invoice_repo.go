package repository

import (
	"time"

	"go-repair-billing/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type invoiceRepo struct {
	db *gorm.DB
}

func NewInvoiceRepo(db *gorm.DB) InvoiceRepository {
	return &invoiceRepo{db}
}

func (r *invoiceRepo) Create(invoice *model.Invoice) error {
	return uniqueViolation(r.db.Create(invoice).Error)
}

func (r *invoiceRepo) FindByID(id uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	err := r.db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC")
	}).First(&invoice, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "invoice", id)
	}
	return &invoice, nil
}

// FindByIDForUpdate locks only the invoice row; items are read in a second
// query so the lock clause does not leak into it.
func (r *invoiceRepo) FindByIDForUpdate(id uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	if err := forUpdate(r.db).First(&invoice, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "invoice", id)
	}
	if err := r.db.Where("invoice_id = ?", id).Order("created_at ASC").Find(&invoice.Items).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepo) FindAll() ([]model.Invoice, error) {
	var invoices []model.Invoice
	err := r.db.Order("created_at ASC").Find(&invoices).Error
	return invoices, err
}

func (r *invoiceRepo) ExistsForRepair(repairID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.Model(&model.Invoice{}).Where("repair_request_id = ?", repairID).Count(&count).Error
	return count > 0, err
}

func (r *invoiceRepo) CountCreatedBetween(from, to time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&model.Invoice{}).
		Where("created_at >= ? AND created_at < ?", from, to).
		Count(&count).Error
	return count, err
}

func (r *invoiceRepo) Save(invoice *model.Invoice) error {
	return r.db.Omit(clause.Associations).Save(invoice).Error
}

func (r *invoiceRepo) UpdateStatus(id uuid.UUID, status model.InvoiceStatus, updatedBy string) error {
	return r.db.Model(&model.Invoice{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_by": updatedBy,
		}).Error
}

func (r *invoiceRepo) SoftDelete(id uuid.UUID, deletedBy string) error {
	if err := r.db.Model(&model.Invoice{}).Where("id = ?", id).Update("deleted_by", deletedBy).Error; err != nil {
		return err
	}
	return r.db.Delete(&model.Invoice{}, "id = ?", id).Error
}
