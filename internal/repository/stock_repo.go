package repository

import (
	"go-repair-billing/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type stockRepo struct {
	db *gorm.DB
}

func NewStockRepo(db *gorm.DB) StockRepository {
	return &stockRepo{db}
}

func (r *stockRepo) FindByIDForUpdate(id uuid.UUID) (*model.InventoryItem, error) {
	var item model.InventoryItem
	if err := forUpdate(r.db).First(&item, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "inventory item", id)
	}
	return &item, nil
}

// UpdateStock must run on the transaction that holds the row lock.
func (r *stockRepo) UpdateStock(id uuid.UUID, newStock int, updatedBy string) error {
	return r.db.Model(&model.InventoryItem{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"stock":      newStock,
			"updated_by": updatedBy,
		}).Error
}

func (r *stockRepo) RecordMovement(movement *model.StockMovement) error {
	return r.db.Create(movement).Error
}

func (r *stockRepo) MovementsByReference(referenceType string, referenceID uuid.UUID) ([]model.StockMovement, error) {
	var movements []model.StockMovement
	err := r.db.Where("reference_type = ? AND reference_id = ?", referenceType, referenceID).
		Order("created_at ASC").
		Find(&movements).Error
	return movements, err
}
