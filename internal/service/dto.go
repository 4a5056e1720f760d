package service

import (
	"encoding/json"
	"strings"
	"time"

	"go-repair-billing/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Date accepts either a calendar date (2006-01-02) or an RFC 3339 timestamp.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// Ptr returns the wrapped time, or nil for a nil Date.
func (d *Date) Ptr() *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

type ItemInput struct {
	Description     string          `json:"description" validate:"required,max=255"`
	Quantity        int             `json:"quantity" validate:"gt=0"`
	UnitPrice       decimal.Decimal `json:"unitPrice" validate:"gte=0"`
	Kind            model.ItemKind  `json:"kind" validate:"required,oneof=service part"`
	ServiceID       *uuid.UUID      `json:"serviceId,omitempty"`
	InventoryItemID *uuid.UUID      `json:"inventoryItemId,omitempty"`
}

type CreateInvoiceRequest struct {
	Kind            model.InvoiceKind `json:"kind" validate:"required,oneof=sale purchase"`
	RepairRequestID *uuid.UUID        `json:"repairRequestId,omitempty"`
	CustomerID      *uuid.UUID        `json:"customerId,omitempty"`
	VendorID        *uuid.UUID        `json:"vendorId,omitempty"`
	TaxRate         *decimal.Decimal  `json:"taxRate,omitempty" validate:"omitempty,gte=0,lte=100"`
	DiscountAmount  *decimal.Decimal  `json:"discountAmount,omitempty" validate:"omitempty,gte=0"`
	Currency        string            `json:"currency,omitempty" validate:"omitempty,len=3"`
	IssueDate       *Date             `json:"issueDate,omitempty"`
	DueDate         *Date             `json:"dueDate,omitempty"`
	Notes           string            `json:"notes,omitempty"`
	Items           []ItemInput       `json:"items" validate:"dive"`
}

type FromRepairRequest struct {
	TaxRate        *decimal.Decimal `json:"taxRate,omitempty" validate:"omitempty,gte=0,lte=100"`
	DiscountAmount *decimal.Decimal `json:"discountAmount,omitempty" validate:"omitempty,gte=0"`
	DueDate        *Date            `json:"dueDate,omitempty"`
	Notes          string           `json:"notes,omitempty"`
}

// AdjustmentRequest changes header fields; nil fields are left as they are.
type AdjustmentRequest struct {
	TaxRate        *decimal.Decimal `json:"taxRate,omitempty" validate:"omitempty,gte=0,lte=100"`
	DiscountAmount *decimal.Decimal `json:"discountAmount,omitempty" validate:"omitempty,gte=0"`
	DueDate        *Date            `json:"dueDate,omitempty"`
	Notes          *string          `json:"notes,omitempty"`
}

type PaymentRequest struct {
	InvoiceID uuid.UUID           `json:"invoiceId" validate:"uuid_required"`
	Amount    decimal.Decimal     `json:"amount"`
	Method    model.PaymentMethod `json:"method" validate:"required,oneof=cash card bank_transfer check other"`
	Date      *Date               `json:"date,omitempty"`
	Reference string              `json:"reference,omitempty" validate:"max=100"`
	Notes     string              `json:"notes,omitempty"`
}

// InvoiceView is the read model: the stored invoice plus the payment
// aggregate and the status derived from it.
type InvoiceView struct {
	model.Invoice
	TotalPaid decimal.Decimal `json:"totalPaid"`
	Remaining decimal.Decimal `json:"remaining"`
}

type ItemResult struct {
	Item     model.InvoiceItem `json:"item"`
	NewTotal decimal.Decimal   `json:"newTotal"`
}

type PaymentResult struct {
	model.Payment
	InvoiceStatus model.InvoiceStatus `json:"invoiceStatus"`
	Remaining     decimal.Decimal     `json:"remaining"`
}

type PaymentSummary struct {
	TotalPaid   decimal.Decimal `json:"totalPaid"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Remaining   decimal.Decimal `json:"remaining"`
}

type PaymentList struct {
	Payments []model.Payment `json:"payments"`
	Summary  PaymentSummary  `json:"summary"`
}

type ReconcileReport struct {
	Checked   int `json:"checked"`
	Corrected int `json:"corrected"`
}
