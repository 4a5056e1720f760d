package service

import (
	"context"

	"go-repair-billing/internal/model"
	"go-repair-billing/internal/ws"

	"github.com/google/uuid"
)

// Publisher is the broadcast side channel. *ws.Hub implements it.
type Publisher interface {
	Publish(ctx context.Context, e ws.Event, rooms ...string)
}

type pendingEvent struct {
	event ws.Event
	rooms []string
}

// outbox collects events during a transactional scope. They are published
// only after the scope commits.
type outbox struct {
	events []pendingEvent
}

func (o *outbox) add(e ws.Event, rooms ...string) {
	o.events = append(o.events, pendingEvent{event: e, rooms: rooms})
}

func (o *outbox) flush(ctx context.Context, p Publisher) {
	if p == nil {
		return
	}
	for _, pe := range o.events {
		p.Publish(ctx, pe.event, pe.rooms...)
	}
	o.events = nil
}

func idPtr(id uuid.UUID) *uuid.UUID { return &id }

func invoiceRooms(inv *model.Invoice) []string {
	rooms := []string{ws.RoomInvoices, ws.InvoiceRoom(inv.ID)}
	if inv.RepairRequestID != nil {
		rooms = append(rooms, ws.RepairRoom(*inv.RepairRequestID))
	}
	return rooms
}

func (o *outbox) invoiceEvent(typ, action string, inv *model.Invoice, message string) {
	o.add(ws.Event{
		Type:      typ,
		Action:    action,
		InvoiceID: idPtr(inv.ID),
		RepairID:  inv.RepairRequestID,
		Message:   message,
		Data: map[string]any{
			"invoiceNumber": inv.InvoiceNumber,
			"status":        inv.Status,
			"totalAmount":   inv.TotalAmount,
		},
	}, invoiceRooms(inv)...)
}

// Event types published by the settlement engine.
const (
	EventInvoiceCreated         = "invoice_created"
	EventInvoiceUpdated         = "invoice_updated"
	EventInvoiceDeleted         = "invoice_deleted"
	EventInvoicePaid            = "invoice_paid"
	EventPaymentCreated         = "payment_created"
	EventRepairReadyForDelivery = "repair_ready_for_delivery"
	EventRepairUpdate           = "repair_update"
	EventStockUpdate            = "stock_update"
)
