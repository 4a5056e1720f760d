package service_test

import (
	"testing"

	"go-repair-billing/internal/model"
	"go-repair-billing/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeTotals(t *testing.T) {
	tests := []struct {
		name     string
		items    []model.InvoiceItem
		taxRate  string
		discount string
		subtotal string
		tax      string
		total    string
	}{
		{
			name:     "no items",
			taxRate:  "16",
			discount: "0",
			subtotal: "0", tax: "0", total: "0",
		},
		{
			name: "tax and discount",
			items: []model.InvoiceItem{
				{Quantity: 2, UnitPrice: dec("100")},
				{Quantity: 1, UnitPrice: dec("50.50")},
			},
			taxRate:  "16",
			discount: "10",
			subtotal: "250.50", tax: "40.08", total: "280.58",
		},
		{
			name:     "discount larger than subtotal plus tax clamps to zero",
			items:    []model.InvoiceItem{{Quantity: 1, UnitPrice: dec("100")}},
			taxRate:  "10",
			discount: "500",
			subtotal: "100", tax: "10", total: "0",
		},
		{
			name:     "tax rounds to cents",
			items:    []model.InvoiceItem{{Quantity: 3, UnitPrice: dec("3.33")}},
			taxRate:  "7.5",
			discount: "0",
			subtotal: "9.99", tax: "0.75", total: "10.74",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := service.ComputeTotals(tt.items, dec(tt.taxRate), dec(tt.discount))
			assert.True(t, got.Subtotal.Equal(dec(tt.subtotal)), "subtotal %s", got.Subtotal)
			assert.True(t, got.TaxAmount.Equal(dec(tt.tax)), "tax %s", got.TaxAmount)
			assert.True(t, got.Total.Equal(dec(tt.total)), "total %s", got.Total)
		})
	}
}

func TestComputeTotals_RecomputesLineTotals(t *testing.T) {
	items := []model.InvoiceItem{{Quantity: 4, UnitPrice: dec("2.50"), LineTotal: dec("999")}}
	got := service.ComputeTotals(items, decimal.Zero, decimal.Zero)

	assert.True(t, items[0].LineTotal.Equal(dec("10")))
	assert.True(t, got.Total.Equal(dec("10")))
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		current model.InvoiceStatus
		total   string
		paid    string
		want    model.InvoiceStatus
	}{
		{model.StatusDraft, "200", "0", model.StatusDraft},
		{model.StatusSent, "200", "0", model.StatusSent},
		{model.StatusOverdue, "200", "0", model.StatusOverdue},
		{model.StatusPartiallyPaid, "200", "0", model.StatusDraft},
		{model.StatusPaid, "200", "0", model.StatusDraft},
		{model.StatusDraft, "200", "150", model.StatusPartiallyPaid},
		{model.StatusSent, "200", "199.99", model.StatusPartiallyPaid},
		{model.StatusPartiallyPaid, "200", "200", model.StatusPaid},
		{model.StatusPaid, "150", "200", model.StatusPaid},
		{model.StatusCancelled, "200", "0", model.StatusCancelled},
	}

	for _, tt := range tests {
		name := string(tt.current) + "/" + tt.paid + "_of_" + tt.total
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, service.DeriveStatus(tt.current, dec(tt.total), dec(tt.paid)))
		})
	}
}

func TestRemaining(t *testing.T) {
	assert.True(t, service.Remaining(dec("200"), dec("150")).Equal(dec("50")))
	assert.True(t, service.Remaining(dec("200"), dec("250")).IsZero())
}
