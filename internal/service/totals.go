package service

import (
	"go-repair-billing/internal/model"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Totals is the money summary of an invoice.
type Totals struct {
	Subtotal  decimal.Decimal
	TaxAmount decimal.Decimal
	Total     decimal.Decimal
}

// ComputeTotals sums the live line totals and applies tax (a percentage)
// and discount. The total is clamped at zero.
func ComputeTotals(items []model.InvoiceItem, taxRate, discount decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for i := range items {
		items[i].Recalculate()
		subtotal = subtotal.Add(items[i].LineTotal)
	}
	tax := subtotal.Mul(taxRate).Div(hundred).Round(2)

	total := subtotal.Add(tax).Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return Totals{Subtotal: subtotal, TaxAmount: tax, Total: total.Round(2)}
}

// applyTotals recomputes the invoice header from its Items.
func applyTotals(invoice *model.Invoice) {
	t := ComputeTotals(invoice.Items, invoice.TaxRate, invoice.DiscountAmount)
	invoice.Subtotal = t.Subtotal
	invoice.TaxAmount = t.TaxAmount
	invoice.TotalAmount = t.Total
}

// DeriveStatus projects the lifecycle status from the total and the sum of
// recorded payments. Cancelled is terminal and never re-derived. With nothing
// paid, a status that only payments could have produced falls back to draft;
// any other status is kept.
func DeriveStatus(current model.InvoiceStatus, total, paid decimal.Decimal) model.InvoiceStatus {
	if current == model.StatusCancelled {
		return current
	}
	if !paid.IsPositive() {
		if current == model.StatusPartiallyPaid || current == model.StatusPaid {
			return model.StatusDraft
		}
		return current
	}
	if paid.GreaterThanOrEqual(total) {
		return model.StatusPaid
	}
	return model.StatusPartiallyPaid
}

// Remaining is the outstanding balance, never negative.
func Remaining(total, paid decimal.Decimal) decimal.Decimal {
	r := total.Sub(paid)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}
