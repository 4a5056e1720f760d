package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentCard         PaymentMethod = "card"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentCheck        PaymentMethod = "check"
	PaymentOther        PaymentMethod = "other"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentBankTransfer, PaymentCheck, PaymentOther:
		return true
	}
	return false
}

// Payment is an immutable settlement event against one invoice.
type Payment struct {
	BaseModel
	InvoiceID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"invoiceId"`
	Amount      decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	Method      PaymentMethod   `gorm:"type:varchar(20);not null" json:"method"`
	PaymentDate time.Time       `gorm:"type:date;not null" json:"paymentDate"`
	Reference   string          `gorm:"type:varchar(100)" json:"reference,omitempty"`
	Notes       string          `gorm:"type:text" json:"notes,omitempty"`
	RecordedBy  string          `gorm:"type:varchar(255);not null" json:"recordedBy"`
}
