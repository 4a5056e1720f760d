package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-repair-billing/internal/apperrors"
	"go-repair-billing/internal/model"
	"go-repair-billing/internal/repository"

	"github.com/bsm/redislock"
)

const reconcileLockKey = "billing:lock:reconcile"

// ErrReconcileBusy means another instance holds the reconcile lock.
var ErrReconcileBusy = errors.New("reconcile already running elsewhere")

// Reconcile re-derives every live invoice's status from its payments and
// rewrites projections that drifted. Sent invoices past their due date with
// nothing paid are marked overdue.
func (s *settlementService) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	if s.opts.Locker != nil {
		lock, err := s.opts.Locker.Obtain(ctx, reconcileLockKey, 5*time.Minute, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, ErrReconcileBusy
		}
		if err != nil {
			return nil, fmt.Errorf("obtain reconcile lock: %w", err)
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				s.log.Warn().Err(err).Msg("failed to release reconcile lock")
			}
		}()
	}

	var invoices []model.Invoice
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		var err error
		invoices, err = tx.Invoices().FindAll()
		return err
	})
	if err != nil {
		return nil, err
	}

	report := &ReconcileReport{}
	today := s.today()
	for _, candidate := range invoices {
		corrected := false
		err := s.run(ctx, func(tx repository.Tx, box *outbox) error {
			invoice, err := tx.Invoices().FindByIDForUpdate(candidate.ID)
			if err != nil {
				return err
			}
			paid, err := tx.Payments().SumByInvoice(invoice.ID)
			if err != nil {
				return err
			}

			want := DeriveStatus(invoice.Status, invoice.TotalAmount, paid)
			if want == model.StatusSent && invoice.DueDate != nil && invoice.DueDate.Before(today) {
				want = model.StatusOverdue
			}
			if want == invoice.Status {
				return nil
			}
			s.log.Info().
				Str("invoice_id", invoice.ID.String()).
				Str("stored", string(invoice.Status)).
				Str("derived", string(want)).
				Msg("correcting invoice status")
			if err := tx.Invoices().UpdateStatus(invoice.ID, want, "reconcile"); err != nil {
				return err
			}
			invoice.Status = want
			corrected = true
			box.invoiceEvent(EventInvoiceUpdated, "reconciled", invoice,
				fmt.Sprintf("Invoice %s status corrected to %s", invoice.InvoiceNumber, want))
			return nil
		})
		if errors.Is(err, apperrors.ErrNotFound) {
			continue
		}
		if err != nil {
			return report, fmt.Errorf("reconcile invoice %s: %w", candidate.ID, err)
		}
		report.Checked++
		if corrected {
			report.Corrected++
		}
	}
	return report, nil
}
