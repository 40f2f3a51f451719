package service

import (
	"testing"

	"dutyfree/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeLine_TaxOnDiscountedLine(t *testing.T) {
	cases := []struct {
		name                     string
		price                    string
		qty                      int
		discount, rate           string
		lineTotal, tax, itemTotl string
	}{
		{"duty free spirits", "1000.00", 5, "0", "18", "5000.00", "900.00", "5900.00"},
		{"item discount before tax", "100.00", 2, "20.00", "10", "180.00", "18.00", "198.00"},
		{"tax rounds half up", "19.99", 3, "0", "7.5", "59.97", "4.50", "64.47"},
		{"zero rated", "12.50", 4, "0", "0", "50.00", "0.00", "50.00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ComputeLine(dec(tc.price), tc.qty, dec(tc.discount), dec(tc.rate))
			require.NoError(t, err)
			assert.Equal(t, tc.lineTotal, got.LineTotal.StringFixed(2))
			assert.Equal(t, tc.tax, got.TaxAmount.StringFixed(2))
			assert.Equal(t, tc.itemTotl, got.ItemTotal.StringFixed(2))
		})
	}
}

func TestComputeLine_Rejects(t *testing.T) {
	_, err := ComputeLine(dec("10"), 0, decimal.Zero, decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = ComputeLine(dec("10"), 1, dec("-1"), decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ComputeLine(dec("10"), 2, dec("20.01"), decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestComputeTotals(t *testing.T) {
	items := []model.SaleItem{
		{LineTotal: dec("5000.00"), TaxAmount: dec("900.00")},
		{LineTotal: dec("50.00"), TaxAmount: dec("0.00")},
	}

	got, err := ComputeTotals(items, decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, "5050.00", got.Subtotal.StringFixed(2))
	assert.Equal(t, "900.00", got.TaxAmount.StringFixed(2))
	assert.Equal(t, "5950.00", got.TotalAmount.StringFixed(2))

	// sale discount comes off the subtotal; tax is not recomputed
	got, err = ComputeTotals(items, dec("100"))
	require.NoError(t, err)
	assert.Equal(t, "4950.00", got.Subtotal.StringFixed(2))
	assert.Equal(t, "900.00", got.TaxAmount.StringFixed(2))
	assert.Equal(t, "5850.00", got.TotalAmount.StringFixed(2))

	_, err = ComputeTotals(items, dec("-1"))
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = ComputeTotals(items, dec("5050.01"))
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestComputeLine_SubCentDiscountIsRoundedBeforeUse(t *testing.T) {
	got, err := ComputeLine(dec("10.00"), 1, dec("0.005"), decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, "0.01", got.ItemDiscount.StringFixed(2))
	assert.Equal(t, "9.99", got.LineTotal.StringFixed(2))
	assert.True(t, dec("10.00").Sub(got.ItemDiscount).Equal(got.LineTotal))

	got, err = ComputeLine(dec("10.00"), 1, dec("0.004"), decimal.Zero)
	require.NoError(t, err)
	assert.True(t, got.ItemDiscount.IsZero())
	assert.Equal(t, "10.00", got.LineTotal.StringFixed(2))
}

func TestComputeTotals_SubCentSaleDiscountIsRoundedBeforeUse(t *testing.T) {
	items := []model.SaleItem{{LineTotal: dec("10.00"), TaxAmount: dec("1.00")}}

	got, err := ComputeTotals(items, dec("0.005"))
	require.NoError(t, err)
	assert.Equal(t, "0.01", got.Discount.StringFixed(2))
	assert.Equal(t, "9.99", got.Subtotal.StringFixed(2))
	assert.True(t, dec("10.00").Sub(got.Discount).Equal(got.Subtotal))
	assert.Equal(t, "10.99", got.TotalAmount.StringFixed(2))
}
