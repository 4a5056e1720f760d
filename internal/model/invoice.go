package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InvoiceKind string

const (
	InvoiceSale     InvoiceKind = "sale"
	InvoicePurchase InvoiceKind = "purchase"
)

func (k InvoiceKind) Valid() bool {
	return k == InvoiceSale || k == InvoicePurchase
}

type InvoiceStatus string

const (
	StatusDraft         InvoiceStatus = "draft"
	StatusSent          InvoiceStatus = "sent"
	StatusPartiallyPaid InvoiceStatus = "partially_paid"
	StatusPaid          InvoiceStatus = "paid"
	StatusOverdue       InvoiceStatus = "overdue"
	StatusCancelled     InvoiceStatus = "cancelled"
)

// Settled reports whether the invoice no longer accepts item changes.
func (s InvoiceStatus) Settled() bool {
	return s == StatusPaid || s == StatusCancelled
}

// Invoice is a billable document. Status is a cached projection of the
// payment history, see service.DeriveStatus.
type Invoice struct {
	BaseModel
	InvoiceNumber   string          `gorm:"type:varchar(32);index" json:"invoiceNumber"`
	Kind            InvoiceKind     `gorm:"type:varchar(16);not null" json:"kind"`
	RepairRequestID *uuid.UUID      `gorm:"type:uuid;index" json:"repairRequestId,omitempty"`
	CustomerID      *uuid.UUID      `gorm:"type:uuid;index" json:"customerId,omitempty"`
	VendorID        *uuid.UUID      `gorm:"type:uuid;index" json:"vendorId,omitempty"`
	Subtotal        decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"subtotal"`
	TaxRate         decimal.Decimal `gorm:"type:numeric(7,4);not null;default:0" json:"taxRate"` // percent
	TaxAmount       decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"taxAmount"`
	DiscountAmount  decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"discountAmount"`
	TotalAmount     decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"totalAmount"`
	Currency        string          `gorm:"type:varchar(3);not null" json:"currency"`
	Status          InvoiceStatus   `gorm:"type:varchar(20);not null;index" json:"status"`
	IssueDate       time.Time       `gorm:"type:date;not null" json:"issueDate"`
	DueDate         *time.Time      `gorm:"type:date" json:"dueDate,omitempty"`
	Notes           string          `gorm:"type:text" json:"notes,omitempty"`

	Items []InvoiceItem `gorm:"foreignKey:InvoiceID" json:"items,omitempty"`
}

type ItemKind string

const (
	ItemService ItemKind = "service"
	ItemPart    ItemKind = "part"
)

func (k ItemKind) Valid() bool {
	return k == ItemService || k == ItemPart
}

// InvoiceItem is one billable line. LineTotal is always recomputed from
// Quantity and UnitPrice. ServiceID and InventoryItemID are lookup-only
// references and may dangle.
type InvoiceItem struct {
	BaseModel
	InvoiceID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"invoiceId"`
	Description     string          `gorm:"type:varchar(255);not null" json:"description"`
	Quantity        int             `gorm:"not null" json:"quantity"`
	UnitPrice       decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"unitPrice"`
	LineTotal       decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"lineTotal"`
	Kind            ItemKind        `gorm:"type:varchar(16);not null" json:"kind"`
	ServiceID       *uuid.UUID      `gorm:"type:uuid" json:"serviceId,omitempty"`
	InventoryItemID *uuid.UUID      `gorm:"type:uuid" json:"inventoryItemId,omitempty"`
}

// Recalculate refreshes LineTotal from Quantity and UnitPrice.
func (i *InvoiceItem) Recalculate() {
	i.LineTotal = i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity))).Round(2)
}

// SameReference reports whether both items point at the same service or
// the same inventory item.
func (i *InvoiceItem) SameReference(other *InvoiceItem) bool {
	if i.ServiceID != nil && other.ServiceID != nil && *i.ServiceID == *other.ServiceID {
		return true
	}
	if i.InventoryItemID != nil && other.InventoryItemID != nil && *i.InventoryItemID == *other.InventoryItemID {
		return true
	}
	return false
}
