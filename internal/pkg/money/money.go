// Package money computes the derived monetary fields shared by orders and
// invoices. All arithmetic is exact decimal arithmetic; nothing is rounded
// here, presentation layers round when they format.
package money

import (
	"github.com/shopspring/decimal"

	"github.com/clickmarket/marketplace/internal/pkg/apperr"
)

var hundred = decimal.NewFromInt(100)

// LineItem is one product entry of an order or invoice.
// LineTotal is always derived and never trusted from input.
type LineItem struct {
	ProductRef  string          `json:"product_ref"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// Adjustments are the caller supplied inputs applied on top of the subtotal.
type Adjustments struct {
	// TaxRate is a percentage in [0, 100].
	TaxRate     decimal.Decimal `json:"tax_rate"`
	ShippingFee decimal.Decimal `json:"shipping_fee"`
	Discount    decimal.Decimal `json:"discount"`
}

// Totals is the derived output of ComputeTotals.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	// TaxApplied is false when the rate is zero: the order is untaxed, which
	// is not the same thing as a computed tax of zero.
	TaxApplied bool            `json:"tax_applied"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

// ComputeTotals returns a copy of items with every LineTotal recomputed and
// the totals derived from them:
//
//	subtotal   = sum(quantity * unitPrice)
//	tax        = subtotal * taxRate / 100, only when taxRate > 0
//	grandTotal = subtotal + shippingFee + tax - discount
//
// grandTotal is not clamped at zero; a discount larger than everything else
// yields a negative total.
func ComputeTotals(items []LineItem, adj Adjustments) ([]LineItem, Totals, error) {
	if err := ValidateAdjustments(adj); err != nil {
		return nil, Totals{}, err
	}

	out := make([]LineItem, len(items))
	subtotal := decimal.Zero
	for i, it := range items {
		if err := validateItem(i, it); err != nil {
			return nil, Totals{}, err
		}
		it.LineTotal = it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		subtotal = subtotal.Add(it.LineTotal)
		out[i] = it
	}

	totals := Totals{Subtotal: subtotal, Tax: decimal.Zero}
	if adj.TaxRate.IsPositive() {
		// Shift is exact, Div would round at DivisionPrecision.
		totals.Tax = subtotal.Mul(adj.TaxRate).Shift(-2)
		totals.TaxApplied = true
	}
	totals.GrandTotal = subtotal.Add(adj.ShippingFee).Add(totals.Tax).Sub(adj.Discount)

	return out, totals, nil
}

// ValidateItems checks that items is non-empty and every entry is well formed.
func ValidateItems(items []LineItem) error {
	if len(items) == 0 {
		return apperr.New(apperr.Validation, "at least one line item is required")
	}
	for i, it := range items {
		if err := validateItem(i, it); err != nil {
			return err
		}
	}
	return nil
}

func ValidateAdjustments(adj Adjustments) error {
	if adj.TaxRate.IsNegative() || adj.TaxRate.GreaterThan(hundred) {
		return apperr.Newf(apperr.Validation, "tax rate must be between 0 and 100, got %s", adj.TaxRate)
	}
	if adj.ShippingFee.IsNegative() {
		return apperr.Newf(apperr.Validation, "shipping fee must not be negative, got %s", adj.ShippingFee)
	}
	if adj.Discount.IsNegative() {
		return apperr.Newf(apperr.Validation, "discount must not be negative, got %s", adj.Discount)
	}
	return nil
}

func validateItem(i int, it LineItem) error {
	if it.ProductRef == "" {
		return apperr.Newf(apperr.Validation, "line item %d: product reference is required", i)
	}
	if it.Quantity < 1 {
		return apperr.Newf(apperr.Validation, "line item %d: quantity must be at least 1, got %d", i, it.Quantity)
	}
	if it.UnitPrice.IsNegative() {
		return apperr.Newf(apperr.Validation, "line item %d: unit price must not be negative, got %s", i, it.UnitPrice)
	}
	return nil
}

// CopyItems returns an independent copy of items.
func CopyItems(items []LineItem) []LineItem {
	if items == nil {
		return nil
	}
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}
