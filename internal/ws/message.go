package ws

import (
	"time"

	"github.com/google/uuid"
)

// Event is the JSON envelope delivered to subscribers.
type Event struct {
	Type            string     `json:"type"`
	Action          string     `json:"action,omitempty"`
	InvoiceID       *uuid.UUID `json:"invoiceId,omitempty"`
	PaymentID       *uuid.UUID `json:"paymentId,omitempty"`
	RepairID        *uuid.UUID `json:"repairId,omitempty"`
	InventoryItemID *uuid.UUID `json:"inventoryItemId,omitempty"`
	Message         string     `json:"message"`
	Data            any        `json:"data,omitempty"`
	Timestamp       time.Time  `json:"timestamp"`
}

// Control message types exchanged with a client.
const (
	TypeWelcome     = "welcome"
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypeSubscribed  = "subscribed"
	TypePing        = "ping"
	TypePong        = "pong"
	TypeError       = "error"
)

// inbound is anything a client may send.
type inbound struct {
	Type  string   `json:"type"`
	Rooms []string `json:"rooms"`
}

type control struct {
	Type      string    `json:"type"`
	ClientID  string    `json:"clientId,omitempty"`
	Rooms     []string  `json:"rooms,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Room names shared by publishers and subscribers.
const (
	RoomInvoices  = "invoices"
	RoomPayments  = "payments"
	RoomRepairs   = "repairs"
	RoomInventory = "inventory"
)

func InvoiceRoom(id uuid.UUID) string { return "invoice_" + id.String() }

func RepairRoom(id uuid.UUID) string { return "repair_" + id.String() }
