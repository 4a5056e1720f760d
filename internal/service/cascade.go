package service

import (
	"context"
	"errors"
	"fmt"

	"go-repair-billing/internal/apperrors"
	"go-repair-billing/internal/model"
	"go-repair-billing/internal/repository"
	"go-repair-billing/internal/ws"

	"github.com/shopspring/decimal"
)

var errInsufficientStock = errors.New("insufficient stock")

// isAbort reports whether err means the whole scope has to stop instead of
// degrading.
func isAbort(tx repository.Tx, err error) bool {
	return tx.Context().Err() != nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// transition writes the status derived from paid and runs the full-payment
// cascade when the invoice enters paid.
func (s *settlementService) transition(tx repository.Tx, invoice *model.Invoice, paid decimal.Decimal, userID string, box *outbox) error {
	next := DeriveStatus(invoice.Status, invoice.TotalAmount, paid)
	if next == invoice.Status {
		return nil
	}
	previous := invoice.Status
	if err := tx.Invoices().UpdateStatus(invoice.ID, next, userID); err != nil {
		return err
	}
	invoice.Status = next

	if next != model.StatusPaid || previous == model.StatusPaid {
		return nil
	}
	box.add(ws.Event{
		Type:      EventInvoicePaid,
		InvoiceID: idPtr(invoice.ID),
		RepairID:  invoice.RepairRequestID,
		Message:   fmt.Sprintf("Invoice %s is fully paid", invoice.InvoiceNumber),
		Data:      map[string]any{"totalAmount": invoice.TotalAmount},
	}, ws.RoomInvoices, ws.InvoiceRoom(invoice.ID))
	return s.cascade(tx, invoice, userID, box)
}

// cascade applies the secondary effects of a full payment. Each effect runs
// in its own savepoint: a failure is logged and undone on its own, the
// payment stands. Only a dead scope aborts.
func (s *settlementService) cascade(tx repository.Tx, invoice *model.Invoice, userID string, box *outbox) error {
	log := s.log.With().
		Str("invoice_id", invoice.ID.String()).
		Str("invoice_number", invoice.InvoiceNumber).
		Logger()

	items := invoice.Items
	if items == nil {
		var err error
		if items, err = tx.Items().ListByInvoice(invoice.ID); err != nil {
			return err
		}
	}

	for _, item := range items {
		if item.InventoryItemID == nil {
			continue
		}
		var updated *model.InventoryItem
		err := tx.Savepoint(func(sp repository.Tx) error {
			var err error
			updated, err = s.decrementStock(sp, invoice, item, userID)
			return err
		})
		switch {
		case err == nil:
			box.add(ws.Event{
				Type:            EventStockUpdate,
				Action:          "invoice_settled",
				InvoiceID:       idPtr(invoice.ID),
				InventoryItemID: idPtr(updated.ID),
				Message:         fmt.Sprintf("%s stock reduced by %d for invoice %s", updated.Name, item.Quantity, invoice.InvoiceNumber),
				Data:            map[string]any{"stock": updated.Stock, "quantity": item.Quantity},
			}, ws.RoomInventory)
		case isAbort(tx, err):
			return err
		case errors.Is(err, errInsufficientStock):
			log.Warn().Err(err).Str("inventory_item_id", item.InventoryItemID.String()).Msg("skipping stock decrement")
		default:
			sideErr := &apperrors.SideEffectError{Effect: "stock_decrement", Reference: item.InventoryItemID.String(), Err: err}
			log.Error().Err(sideErr).Msg("cascade side effect failed")
		}
	}

	if invoice.RepairRequestID == nil {
		return nil
	}
	repairID := *invoice.RepairRequestID
	var advanced bool
	err := tx.Savepoint(func(sp repository.Tx) error {
		repair, err := sp.Repairs().FindByIDForUpdate(repairID)
		if err != nil {
			return err
		}
		if repair.Status == model.RepairDelivered || repair.Status == model.RepairCancelled || repair.Status == model.RepairReadyForDelivery {
			return nil
		}
		advanced = true
		return sp.Repairs().UpdateStatus(repairID, model.RepairReadyForDelivery, userID)
	})
	switch {
	case err == nil && advanced:
		box.add(ws.Event{
			Type:      EventRepairReadyForDelivery,
			RepairID:  idPtr(repairID),
			InvoiceID: idPtr(invoice.ID),
			Message:   fmt.Sprintf("Repair is ready for delivery, invoice %s paid", invoice.InvoiceNumber),
		}, ws.RoomRepairs)
		box.add(ws.Event{
			Type:     EventRepairUpdate,
			RepairID: idPtr(repairID),
			Message:  "Repair status changed to ready_for_delivery",
			Data:     map[string]any{"status": model.RepairReadyForDelivery},
		}, ws.RepairRoom(repairID))
	case err == nil:
		log.Info().Str("repair_id", repairID.String()).Msg("repair already past billing, status left as is")
	case isAbort(tx, err):
		return err
	default:
		sideErr := &apperrors.SideEffectError{Effect: "repair_transition", Reference: repairID.String(), Err: err}
		log.Error().Err(sideErr).Msg("cascade side effect failed")
	}
	return nil
}

func (s *settlementService) decrementStock(tx repository.Tx, invoice *model.Invoice, item model.InvoiceItem, userID string) (*model.InventoryItem, error) {
	stock, err := tx.Stock().FindByIDForUpdate(*item.InventoryItemID)
	if err != nil {
		return nil, err
	}
	if stock.Stock < item.Quantity {
		return nil, fmt.Errorf("%s has %d on hand, invoice needs %d: %w", stock.SKU, stock.Stock, item.Quantity, errInsufficientStock)
	}

	stock.Stock -= item.Quantity
	if err := tx.Stock().UpdateStock(stock.ID, stock.Stock, userID); err != nil {
		return nil, err
	}
	movement := &model.StockMovement{
		InventoryItemID: stock.ID,
		Type:            model.MovementOut,
		Quantity:        item.Quantity,
		StockAfter:      stock.Stock,
		ReferenceType:   model.ReferenceInvoice,
		ReferenceID:     idPtr(invoice.ID),
		Note:            fmt.Sprintf("Invoice %s paid", invoice.InvoiceNumber),
	}
	movement.CreatedBy = userID
	movement.UpdatedBy = userID
	if err := tx.Stock().RecordMovement(movement); err != nil {
		return nil, err
	}
	return stock, nil
}
