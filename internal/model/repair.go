package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type RepairStatus string

const (
	RepairPending          RepairStatus = "pending"
	RepairInProgress       RepairStatus = "in_progress"
	RepairCompleted        RepairStatus = "completed"
	RepairReadyForDelivery RepairStatus = "ready_for_delivery"
	RepairDelivered        RepairStatus = "delivered"
	RepairCancelled        RepairStatus = "cancelled"
)

// RepairRequest is the workflow record an invoice may be linked to. Only
// the fields billing reads or advances are modelled here.
type RepairRequest struct {
	BaseModel
	CustomerID  uuid.UUID        `gorm:"type:uuid;not null;index" json:"customerId"`
	Device      string           `gorm:"type:varchar(255)" json:"device"`
	Description string           `gorm:"type:text" json:"description"`
	Status      RepairStatus     `gorm:"type:varchar(30);not null" json:"status"`
	LaborCost   *decimal.Decimal `gorm:"type:numeric(14,2)" json:"laborCost,omitempty"`
}

type RepairServiceStatus string

const (
	ServicePending   RepairServiceStatus = "pending"
	ServiceCompleted RepairServiceStatus = "completed"
)

// RepairService is a catalog service performed on a repair.
type RepairService struct {
	BaseModel
	RepairRequestID uuid.UUID           `gorm:"type:uuid;not null;index" json:"repairRequestId"`
	ServiceID       uuid.UUID           `gorm:"type:uuid;not null" json:"serviceId"`
	Name            string              `gorm:"type:varchar(255);not null" json:"name"`
	CatalogPrice    decimal.Decimal     `gorm:"type:numeric(14,2);not null" json:"catalogPrice"`
	FinalPrice      *decimal.Decimal    `gorm:"type:numeric(14,2)" json:"finalPrice,omitempty"`
	Status          RepairServiceStatus `gorm:"type:varchar(20);not null" json:"status"`
}

// BillablePrice is the overridden final price when present, else the catalog price.
func (s *RepairService) BillablePrice() decimal.Decimal {
	if s.FinalPrice != nil {
		return *s.FinalPrice
	}
	return s.CatalogPrice
}

// RepairPart is an inventory item consumed by a repair.
type RepairPart struct {
	BaseModel
	RepairRequestID uuid.UUID       `gorm:"type:uuid;not null;index" json:"repairRequestId"`
	InventoryItemID uuid.UUID       `gorm:"type:uuid;not null" json:"inventoryItemId"`
	Name            string          `gorm:"type:varchar(255);not null" json:"name"`
	SellingPrice    decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"sellingPrice"`
	Quantity        int             `gorm:"not null" json:"quantity"`
}
