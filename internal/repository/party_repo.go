package repository

import (
	"go-repair-billing/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type partyRepo struct {
	db *gorm.DB
}

func NewPartyRepo(db *gorm.DB) PartyRepository {
	return &partyRepo{db}
}

func (r *partyRepo) FindCustomer(id uuid.UUID) (*model.Customer, error) {
	var customer model.Customer
	if err := r.db.First(&customer, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "customer", id)
	}
	return &customer, nil
}

func (r *partyRepo) FindVendor(id uuid.UUID) (*model.Vendor, error) {
	var vendor model.Vendor
	if err := r.db.First(&vendor, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "vendor", id)
	}
	return &vendor, nil
}
