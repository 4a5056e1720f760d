package service

import (
	"context"
	"fmt"

	"go-repair-billing/internal/apperrors"
	"go-repair-billing/internal/model"
	"go-repair-billing/internal/repository"
	"go-repair-billing/internal/ws"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecordPayment inserts a payment if it fits the outstanding balance. The
// invoice row lock is taken before the paid-so-far sum is read, so two
// payments on one invoice run one after the other and the second sees the
// first.
func (s *settlementService) RecordPayment(ctx context.Context, req PaymentRequest, userID string) (*PaymentResult, error) {
	var result *PaymentResult
	err := s.run(ctx, func(tx repository.Tx, box *outbox) error {
		invoice, err := tx.Invoices().FindByIDForUpdate(req.InvoiceID)
		if err != nil {
			return err
		}
		if invoice.Status == model.StatusCancelled {
			return apperrors.Conflict("invoice %s is cancelled", invoice.InvoiceNumber)
		}

		paid, err := tx.Payments().SumByInvoice(invoice.ID)
		if err != nil {
			return err
		}
		amount := req.Amount.Round(2)
		if !amount.IsPositive() {
			return apperrors.Validation("payment amount must be greater than zero")
		}
		if !req.Method.Valid() {
			return apperrors.Validation("invalid payment method %q", req.Method)
		}
		remaining := Remaining(invoice.TotalAmount, paid)
		if amount.GreaterThan(remaining) {
			return &apperrors.BalanceExceededError{Requested: amount, Remaining: remaining}
		}

		payment := &model.Payment{
			InvoiceID:   invoice.ID,
			Amount:      amount,
			Method:      req.Method,
			PaymentDate: s.today(),
			Reference:   req.Reference,
			Notes:       req.Notes,
			RecordedBy:  userID,
		}
		if req.Date != nil {
			payment.PaymentDate = truncateDate(req.Date.Time)
		}
		payment.CreatedBy = userID
		payment.UpdatedBy = userID
		if err := tx.Payments().Create(payment); err != nil {
			return err
		}

		paid = paid.Add(amount)
		box.add(ws.Event{
			Type:      EventPaymentCreated,
			InvoiceID: idPtr(invoice.ID),
			PaymentID: idPtr(payment.ID),
			RepairID:  invoice.RepairRequestID,
			Message:   fmt.Sprintf("%s recorded a %s payment of %s on invoice %s", userID, payment.Method, amount.StringFixed(2), invoice.InvoiceNumber),
			Data: map[string]any{
				"amount":    amount,
				"method":    payment.Method,
				"totalPaid": paid,
				"remaining": Remaining(invoice.TotalAmount, paid),
			},
		}, ws.RoomPayments, ws.InvoiceRoom(invoice.ID))

		if err := s.transition(tx, invoice, paid, userID, box); err != nil {
			return err
		}
		result = &PaymentResult{
			Payment:       *payment,
			InvoiceStatus: invoice.Status,
			Remaining:     Remaining(invoice.TotalAmount, paid),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *settlementService) ListPayments(ctx context.Context, invoiceID uuid.UUID) (*PaymentList, error) {
	var list *PaymentList
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		invoice, err := tx.Invoices().FindByID(invoiceID)
		if err != nil {
			return err
		}
		payments, err := tx.Payments().ListByInvoice(invoiceID)
		if err != nil {
			return err
		}
		paid := decimal.Zero
		for _, p := range payments {
			paid = paid.Add(p.Amount)
		}
		if payments == nil {
			payments = []model.Payment{}
		}
		list = &PaymentList{
			Payments: payments,
			Summary: PaymentSummary{
				TotalPaid:   paid,
				TotalAmount: invoice.TotalAmount,
				Remaining:   Remaining(invoice.TotalAmount, paid),
			},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}
