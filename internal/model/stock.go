package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InventoryItem carries the on-hand stock level of one catalog part.
type InventoryItem struct {
	BaseModel
	SKU          string          `gorm:"type:varchar(50);uniqueIndex;not null" json:"sku"`
	Name         string          `gorm:"type:varchar(255);not null" json:"name"`
	Stock        int             `gorm:"default:0" json:"stock"`
	Unit         string          `gorm:"type:varchar(20)" json:"unit"`
	SellingPrice decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"sellingPrice"`
}

type MovementType string

const (
	MovementIn  MovementType = "IN"
	MovementOut MovementType = "OUT"
)

const ReferenceInvoice = "invoice"

// StockMovement is the append-only audit trail of stock changes.
type StockMovement struct {
	BaseModel
	InventoryItemID uuid.UUID    `gorm:"type:uuid;not null;index" json:"inventoryItemId"`
	Type            MovementType `gorm:"type:varchar(10);not null" json:"type"`
	Quantity        int          `gorm:"not null" json:"quantity"`
	StockAfter      int          `gorm:"not null" json:"stockAfter"`
	ReferenceType   string       `gorm:"type:varchar(30);index:idx_movement_reference" json:"referenceType"`
	ReferenceID     *uuid.UUID   `gorm:"type:uuid;index:idx_movement_reference" json:"referenceId,omitempty"`
	Note            string       `json:"note"`
}
