package service

import (
	"fmt"

	"dutyfree/internal/model"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// roundMoney rounds half away from zero to cents, which is half-up for the
// non-negative amounts a sale carries.
func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// LineAmounts is the computed money side of one sale line.
type LineAmounts struct {
	// ItemDiscount is the discount actually applied, rounded to cents
	ItemDiscount decimal.Decimal
	LineTotal    decimal.Decimal
	TaxAmount    decimal.Decimal
	ItemTotal    decimal.Decimal
}

// ComputeLine prices one line. Tax is computed on the discounted line, per
// line, so the sale's tax is a sum of rounded line taxes. The discount is
// rounded before use so the stored discount and line total agree.
func ComputeLine(unitPrice decimal.Decimal, quantity int, itemDiscount, taxRate decimal.Decimal) (LineAmounts, error) {
	if quantity <= 0 {
		return LineAmounts{}, fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidQuantity, quantity)
	}
	if itemDiscount.IsNegative() {
		return LineAmounts{}, fmt.Errorf("%w: item discount must not be negative", ErrInvalidAmount)
	}
	itemDiscount = roundMoney(itemDiscount)
	gross := unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	if itemDiscount.GreaterThan(gross) {
		return LineAmounts{}, fmt.Errorf("%w: item discount %s exceeds line amount %s",
			ErrInvalidAmount, itemDiscount.StringFixed(2), gross.StringFixed(2))
	}
	lineTotal := roundMoney(gross.Sub(itemDiscount))
	tax := roundMoney(lineTotal.Mul(taxRate).Div(hundred))
	return LineAmounts{
		ItemDiscount: itemDiscount,
		LineTotal:    lineTotal,
		TaxAmount:    tax,
		ItemTotal:    lineTotal.Add(tax),
	}, nil
}

// SaleTotals is the header money of a sale.
type SaleTotals struct {
	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	TaxAmount   decimal.Decimal
	TotalAmount decimal.Decimal
}

// ComputeTotals sums already-priced items and applies the sale-level
// discount to the subtotal. Tax is never recomputed on the sale total.
func ComputeTotals(items []model.SaleItem, saleDiscount decimal.Decimal) (SaleTotals, error) {
	if saleDiscount.IsNegative() {
		return SaleTotals{}, fmt.Errorf("%w: sale discount must not be negative", ErrInvalidAmount)
	}
	saleDiscount = roundMoney(saleDiscount)
	lines := decimal.Zero
	tax := decimal.Zero
	for _, it := range items {
		lines = lines.Add(it.LineTotal)
		tax = tax.Add(it.TaxAmount)
	}
	if saleDiscount.GreaterThan(lines) {
		return SaleTotals{}, fmt.Errorf("%w: sale discount %s exceeds line totals %s",
			ErrInvalidAmount, saleDiscount.StringFixed(2), lines.StringFixed(2))
	}
	subtotal := roundMoney(lines.Sub(saleDiscount))
	return SaleTotals{
		Subtotal:    subtotal,
		Discount:    saleDiscount,
		TaxAmount:   tax,
		TotalAmount: subtotal.Add(tax),
	}, nil
}
