package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BaseModel handles ID (UUID) and standard Audit Trails
type BaseModel struct {
	ID        uuid.UUID      `gorm:"type:uuid;primary_key;" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"` // Soft Delete support

	// Audit User Tracking
	CreatedBy string `json:"createdBy"`
	UpdatedBy string `json:"updatedBy"`
	DeletedBy string `json:"-"`
}

// BeforeCreate generates the UUID unless the caller already assigned one.
func (base *BaseModel) BeforeCreate(tx *gorm.DB) (err error) {
	if base.ID == uuid.Nil {
		base.ID = uuid.New()
	}
	return
}

// IsDeleted reports whether the row has been soft-deleted.
func (base *BaseModel) IsDeleted() bool {
	return base.DeletedAt.Valid
}
