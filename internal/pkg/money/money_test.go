package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clickmarket/marketplace/internal/pkg/apperr"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDecimal(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.Truef(t, d(want).Equal(got), "%s: want %s, got %s", field, want, got)
}

func TestComputeTotals(t *testing.T) {
	tests := []struct {
		name       string
		items      []LineItem
		adj        Adjustments
		subtotal   string
		tax        string
		taxApplied bool
		grandTotal string
	}{
		{
			name: "two items with shipping and tax",
			items: []LineItem{
				{ProductRef: "tomato", Quantity: 2, UnitPrice: d("2500")},
				{ProductRef: "mango", Quantity: 1, UnitPrice: d("1200")},
			},
			adj:        Adjustments{TaxRate: d("10"), ShippingFee: d("1000"), Discount: d("0")},
			subtotal:   "6200",
			tax:        "620",
			taxApplied: true,
			grandTotal: "7820",
		},
		{
			name:       "zero rate is untaxed",
			items:      []LineItem{{ProductRef: "onion", Quantity: 3, UnitPrice: d("150")}},
			adj:        Adjustments{ShippingFee: d("500")},
			subtotal:   "450",
			tax:        "0",
			taxApplied: false,
			grandTotal: "950",
		},
		{
			name:       "fractional rate keeps exact cents",
			items:      []LineItem{{ProductRef: "kiwi", Quantity: 7, UnitPrice: d("3.33")}},
			adj:        Adjustments{TaxRate: d("18.5")},
			subtotal:   "23.31",
			tax:        "4.31235",
			taxApplied: true,
			grandTotal: "27.62235",
		},
		{
			name:       "discount larger than total goes negative",
			items:      []LineItem{{ProductRef: "leek", Quantity: 1, UnitPrice: d("100")}},
			adj:        Adjustments{ShippingFee: d("50"), Discount: d("400")},
			subtotal:   "100",
			tax:        "0",
			grandTotal: "-250",
		},
		{
			name:       "free item",
			items:      []LineItem{{ProductRef: "sample", Quantity: 4, UnitPrice: d("0")}},
			adj:        Adjustments{TaxRate: d("20")},
			subtotal:   "0",
			tax:        "0",
			taxApplied: true,
			grandTotal: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, totals, err := ComputeTotals(tt.items, tt.adj)
			require.NoError(t, err)
			require.Len(t, items, len(tt.items))

			assertDecimal(t, tt.subtotal, totals.Subtotal, "subtotal")
			assertDecimal(t, tt.tax, totals.Tax, "tax")
			assertDecimal(t, tt.grandTotal, totals.GrandTotal, "grand total")
			assert.Equal(t, tt.taxApplied, totals.TaxApplied)
		})
	}
}

func TestComputeTotalsOverwritesLineTotals(t *testing.T) {
	in := []LineItem{{ProductRef: "carrot", Quantity: 2, UnitPrice: d("300"), LineTotal: d("1")}}

	items, totals, err := ComputeTotals(in, Adjustments{})
	require.NoError(t, err)

	assertDecimal(t, "600", items[0].LineTotal, "line total")
	assertDecimal(t, "600", totals.Subtotal, "subtotal")
	assertDecimal(t, "1", in[0].LineTotal, "input left untouched")
}

func TestComputeTotalsOrderIndependent(t *testing.T) {
	a := LineItem{ProductRef: "a", Quantity: 3, UnitPrice: d("19.99")}
	b := LineItem{ProductRef: "b", Quantity: 11, UnitPrice: d("0.07")}
	c := LineItem{ProductRef: "c", Quantity: 1, UnitPrice: d("1000")}
	adj := Adjustments{TaxRate: d("7.5"), ShippingFee: d("12")}

	_, t1, err := ComputeTotals([]LineItem{a, b, c}, adj)
	require.NoError(t, err)
	_, t2, err := ComputeTotals([]LineItem{c, a, b}, adj)
	require.NoError(t, err)

	assert.True(t, t1.Subtotal.Equal(t2.Subtotal))
	assert.True(t, t1.GrandTotal.Equal(t2.GrandTotal))
	assertDecimal(t, "1060.74", t1.Subtotal, "subtotal")
}

func TestComputeTotalsRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		items []LineItem
		adj   Adjustments
	}{
		{"zero quantity", []LineItem{{ProductRef: "x", Quantity: 0, UnitPrice: d("1")}}, Adjustments{}},
		{"negative quantity", []LineItem{{ProductRef: "x", Quantity: -2, UnitPrice: d("1")}}, Adjustments{}},
		{"negative price", []LineItem{{ProductRef: "x", Quantity: 1, UnitPrice: d("-1")}}, Adjustments{}},
		{"missing product", []LineItem{{Quantity: 1, UnitPrice: d("1")}}, Adjustments{}},
		{"rate above 100", []LineItem{{ProductRef: "x", Quantity: 1, UnitPrice: d("1")}}, Adjustments{TaxRate: d("100.01")}},
		{"negative rate", []LineItem{{ProductRef: "x", Quantity: 1, UnitPrice: d("1")}}, Adjustments{TaxRate: d("-5")}},
		{"negative shipping", []LineItem{{ProductRef: "x", Quantity: 1, UnitPrice: d("1")}}, Adjustments{ShippingFee: d("-1")}},
		{"negative discount", []LineItem{{ProductRef: "x", Quantity: 1, UnitPrice: d("1")}}, Adjustments{Discount: d("-1")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ComputeTotals(tt.items, tt.adj)
			require.Error(t, err)
			assert.True(t, apperr.IsKind(err, apperr.Validation), "got %v", err)
		})
	}
}

func TestValidateItemsRequiresAtLeastOne(t *testing.T) {
	err := ValidateItems(nil)
	assert.True(t, apperr.IsKind(err, apperr.Validation))

	assert.NoError(t, ValidateItems([]LineItem{{ProductRef: "x", Quantity: 1, UnitPrice: d("2")}}))
}

func TestCopyItemsIsIndependent(t *testing.T) {
	src := []LineItem{{ProductRef: "pepper", ProductName: "Pepper", Quantity: 1, UnitPrice: d("5")}}
	cp := CopyItems(src)
	cp[0].ProductName = "Chili"
	cp[0].Quantity = 9

	assert.Equal(t, "Pepper", src[0].ProductName)
	assert.Equal(t, 1, src[0].Quantity)
	assert.Nil(t, CopyItems(nil))
}
