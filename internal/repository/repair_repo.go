package repository

import (
	"go-repair-billing/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type repairRepo struct {
	db *gorm.DB
}

func NewRepairRepo(db *gorm.DB) RepairRepository {
	return &repairRepo{db}
}

func (r *repairRepo) FindByIDForUpdate(id uuid.UUID) (*model.RepairRequest, error) {
	var repair model.RepairRequest
	if err := forUpdate(r.db).First(&repair, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "repair request", id)
	}
	return &repair, nil
}

func (r *repairRepo) CompletedServices(repairID uuid.UUID) ([]model.RepairService, error) {
	var services []model.RepairService
	err := r.db.Where("repair_request_id = ? AND status = ?", repairID, model.ServiceCompleted).
		Order("created_at ASC").
		Find(&services).Error
	return services, err
}

func (r *repairRepo) ConsumedParts(repairID uuid.UUID) ([]model.RepairPart, error) {
	var parts []model.RepairPart
	err := r.db.Where("repair_request_id = ? AND quantity > 0", repairID).
		Order("created_at ASC").
		Find(&parts).Error
	return parts, err
}

func (r *repairRepo) UpdateStatus(id uuid.UUID, status model.RepairStatus, updatedBy string) error {
	result := r.db.Model(&model.RepairRequest{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_by": updatedBy,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "repair request", id)
	}
	return nil
}
