package service

import (
	"context"
	"fmt"

	"go-repair-billing/internal/apperrors"
	"go-repair-billing/internal/model"
	"go-repair-billing/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// lockOpen loads and locks an invoice whose items may still change.
func lockOpen(tx repository.Tx, id uuid.UUID) (*model.Invoice, error) {
	invoice, err := tx.Invoices().FindByIDForUpdate(id)
	if err != nil {
		return nil, err
	}
	if invoice.Status.Settled() {
		return nil, apperrors.Conflict("invoice %s is %s", invoice.InvoiceNumber, invoice.Status)
	}
	return invoice, nil
}

// reprice recomputes the totals from the live items and saves the header.
// It refuses to bring the total below what has already been paid and
// returns that paid amount.
func reprice(tx repository.Tx, invoice *model.Invoice, userID string) (decimal.Decimal, error) {
	items, err := tx.Items().ListByInvoice(invoice.ID)
	if err != nil {
		return decimal.Zero, err
	}
	invoice.Items = items
	applyTotals(invoice)

	paid, err := tx.Payments().SumByInvoice(invoice.ID)
	if err != nil {
		return decimal.Zero, err
	}
	if invoice.TotalAmount.LessThan(paid) {
		return decimal.Zero, apperrors.Conflict("total %s would fall below the %s already paid",
			invoice.TotalAmount.StringFixed(2), paid.StringFixed(2))
	}
	invoice.UpdatedBy = userID
	if err := tx.Invoices().Save(invoice); err != nil {
		return decimal.Zero, err
	}
	return paid, nil
}

func (s *settlementService) AddItem(ctx context.Context, invoiceID uuid.UUID, req ItemInput, userID string) (*ItemResult, error) {
	var result *ItemResult
	err := s.run(ctx, func(tx repository.Tx, box *outbox) error {
		invoice, err := lockOpen(tx, invoiceID)
		if err != nil {
			return err
		}
		item, err := newItem(req, userID)
		if err != nil {
			return err
		}
		if err := checkDuplicate(invoice.Items, &item); err != nil {
			return err
		}
		item.InvoiceID = invoice.ID
		if err := tx.Items().Create(&item); err != nil {
			return err
		}

		paid, err := reprice(tx, invoice, userID)
		if err != nil {
			return err
		}
		box.invoiceEvent(EventInvoiceUpdated, "item_added", invoice,
			fmt.Sprintf("%s added %q to invoice %s", userID, item.Description, invoice.InvoiceNumber))
		if err := s.transition(tx, invoice, paid, userID, box); err != nil {
			return err
		}
		result = &ItemResult{Item: item, NewTotal: invoice.TotalAmount}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *settlementService) UpdateItem(ctx context.Context, invoiceID, itemID uuid.UUID, req ItemInput, userID string) (*ItemResult, error) {
	var result *ItemResult
	err := s.run(ctx, func(tx repository.Tx, box *outbox) error {
		invoice, err := lockOpen(tx, invoiceID)
		if err != nil {
			return err
		}
		existing, err := tx.Items().FindByID(invoiceID, itemID)
		if err != nil {
			return err
		}
		item, err := newItem(req, userID)
		if err != nil {
			return err
		}
		item.BaseModel = existing.BaseModel
		item.UpdatedBy = userID
		item.InvoiceID = invoice.ID
		if err := checkDuplicate(invoice.Items, &item); err != nil {
			return err
		}
		if err := tx.Items().Update(&item); err != nil {
			return err
		}

		paid, err := reprice(tx, invoice, userID)
		if err != nil {
			return err
		}
		box.invoiceEvent(EventInvoiceUpdated, "item_updated", invoice,
			fmt.Sprintf("%s updated %q on invoice %s", userID, item.Description, invoice.InvoiceNumber))
		if err := s.transition(tx, invoice, paid, userID, box); err != nil {
			return err
		}
		result = &ItemResult{Item: item, NewTotal: invoice.TotalAmount}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *settlementService) RemoveItem(ctx context.Context, invoiceID, itemID uuid.UUID, userID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.run(ctx, func(tx repository.Tx, box *outbox) error {
		invoice, err := lockOpen(tx, invoiceID)
		if err != nil {
			return err
		}
		item, err := tx.Items().FindByID(invoiceID, itemID)
		if err != nil {
			return err
		}
		if err := tx.Items().Delete(item, userID); err != nil {
			return err
		}

		paid, err := reprice(tx, invoice, userID)
		if err != nil {
			return err
		}
		box.invoiceEvent(EventInvoiceUpdated, "item_removed", invoice,
			fmt.Sprintf("%s removed %q from invoice %s", userID, item.Description, invoice.InvoiceNumber))
		if err := s.transition(tx, invoice, paid, userID, box); err != nil {
			return err
		}
		total = invoice.TotalAmount
		return nil
	})
	return total, err
}

func (s *settlementService) UpdateAdjustments(ctx context.Context, id uuid.UUID, req AdjustmentRequest, userID string) (*InvoiceView, error) {
	var view *InvoiceView
	err := s.run(ctx, func(tx repository.Tx, box *outbox) error {
		invoice, err := lockOpen(tx, id)
		if err != nil {
			return err
		}
		taxRate, discount := invoice.TaxRate, invoice.DiscountAmount
		if req.TaxRate != nil {
			taxRate = *req.TaxRate
		}
		if req.DiscountAmount != nil {
			discount = *req.DiscountAmount
		}
		if req.DueDate != nil {
			invoice.DueDate = req.DueDate.Ptr()
		}
		if req.Notes != nil {
			invoice.Notes = *req.Notes
		}
		if err := s.setRates(invoice, &taxRate, &discount); err != nil {
			return err
		}

		paid, err := reprice(tx, invoice, userID)
		if err != nil {
			return err
		}
		box.invoiceEvent(EventInvoiceUpdated, "adjusted", invoice,
			fmt.Sprintf("%s adjusted invoice %s", userID, invoice.InvoiceNumber))
		if err := s.transition(tx, invoice, paid, userID, box); err != nil {
			return err
		}
		view = newView(invoice, paid)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *settlementService) SendInvoice(ctx context.Context, id uuid.UUID, userID string) (*InvoiceView, error) {
	var view *InvoiceView
	err := s.run(ctx, func(tx repository.Tx, box *outbox) error {
		invoice, err := tx.Invoices().FindByIDForUpdate(id)
		if err != nil {
			return err
		}
		if invoice.Status != model.StatusDraft && invoice.Status != model.StatusOverdue {
			return apperrors.Conflict("invoice %s is %s and cannot be sent", invoice.InvoiceNumber, invoice.Status)
		}
		if err := tx.Invoices().UpdateStatus(invoice.ID, model.StatusSent, userID); err != nil {
			return err
		}
		invoice.Status = model.StatusSent

		paid, err := tx.Payments().SumByInvoice(invoice.ID)
		if err != nil {
			return err
		}
		box.invoiceEvent(EventInvoiceUpdated, "sent", invoice,
			fmt.Sprintf("%s sent invoice %s", userID, invoice.InvoiceNumber))
		view = newView(invoice, paid)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *settlementService) CancelInvoice(ctx context.Context, id uuid.UUID, userID string) (*InvoiceView, error) {
	var view *InvoiceView
	err := s.run(ctx, func(tx repository.Tx, box *outbox) error {
		invoice, err := tx.Invoices().FindByIDForUpdate(id)
		if err != nil {
			return err
		}
		if invoice.Status == model.StatusCancelled {
			return apperrors.Conflict("invoice %s is already cancelled", invoice.InvoiceNumber)
		}
		if err := requireUnpaid(tx, invoice, "cancelled"); err != nil {
			return err
		}
		if err := tx.Invoices().UpdateStatus(invoice.ID, model.StatusCancelled, userID); err != nil {
			return err
		}
		invoice.Status = model.StatusCancelled
		box.invoiceEvent(EventInvoiceUpdated, "cancelled", invoice,
			fmt.Sprintf("%s cancelled invoice %s", userID, invoice.InvoiceNumber))
		view = newView(invoice, decimal.Zero)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *settlementService) DeleteInvoice(ctx context.Context, id uuid.UUID, userID string) error {
	return s.run(ctx, func(tx repository.Tx, box *outbox) error {
		invoice, err := tx.Invoices().FindByIDForUpdate(id)
		if err != nil {
			return err
		}
		if err := requireUnpaid(tx, invoice, "deleted"); err != nil {
			return err
		}
		if err := tx.Invoices().SoftDelete(invoice.ID, userID); err != nil {
			return err
		}
		box.invoiceEvent(EventInvoiceDeleted, "", invoice,
			fmt.Sprintf("%s deleted invoice %s", userID, invoice.InvoiceNumber))
		return nil
	})
}

func requireUnpaid(tx repository.Tx, invoice *model.Invoice, action string) error {
	paid, err := tx.Payments().SumByInvoice(invoice.ID)
	if err != nil {
		return err
	}
	if paid.IsPositive() {
		return apperrors.Conflict("invoice %s has payments and cannot be %s", invoice.InvoiceNumber, action)
	}
	return nil
}

// GetInvoice reads an invoice with its payment aggregate. The status is
// derived from the payments, the stored column is not trusted.
func (s *settlementService) GetInvoice(ctx context.Context, id uuid.UUID) (*InvoiceView, error) {
	var view *InvoiceView
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		invoice, err := tx.Invoices().FindByID(id)
		if err != nil {
			return err
		}
		paid, err := tx.Payments().SumByInvoice(id)
		if err != nil {
			return err
		}
		invoice.Status = DeriveStatus(invoice.Status, invoice.TotalAmount, paid)
		view = newView(invoice, paid)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func newView(invoice *model.Invoice, paid decimal.Decimal) *InvoiceView {
	return &InvoiceView{
		Invoice:   *invoice,
		TotalPaid: paid,
		Remaining: Remaining(invoice.TotalAmount, paid),
	}
}
