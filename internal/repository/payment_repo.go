package repository

import (
	"go-repair-billing/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Payments have no update path.
type paymentRepo struct {
	db *gorm.DB
}

func NewPaymentRepo(db *gorm.DB) PaymentRepository {
	return &paymentRepo{db}
}

func (r *paymentRepo) Create(payment *model.Payment) error {
	return r.db.Create(payment).Error
}

func (r *paymentRepo) ListByInvoice(invoiceID uuid.UUID) ([]model.Payment, error) {
	var payments []model.Payment
	err := r.db.Where("invoice_id = ?", invoiceID).
		Order("payment_date ASC, created_at ASC").
		Find(&payments).Error
	return payments, err
}

func (r *paymentRepo) SumByInvoice(invoiceID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.Model(&model.Payment{}).
		Where("invoice_id = ?", invoiceID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}
