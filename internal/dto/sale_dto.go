package dto

import "github.com/shopspring/decimal"

// ─── Filter / List ──────────────────────────────────────────────────────────

// SaleFilter is bound from the query string of GET /v1/sales.
type SaleFilter struct {
	Date       string `form:"date"`                    // YYYY-MM-DD; empty = any day
	Status     string `form:"status,default=all"`      // PENDING | COMPLETED | CANCELLED | all
	RegisterID string `form:"register_id"              validate:"omitempty,uuid"`
	Page       int    `form:"page,default=1"           validate:"min=1"`
	Limit      int    `form:"limit,default=50"         validate:"min=1,max=200"`
}

type SaleListResponse struct {
	Data  []SaleResponse `json:"data"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

// ─── Request DTOs ────────────────────────────────────────────────────────────

type SaleItemRequest struct {
	ProductID    string          `json:"product_id"    validate:"required,uuid"`
	Quantity     int             `json:"quantity"      validate:"required,min=1"`
	ItemDiscount decimal.Decimal `json:"item_discount" validate:"min=0"`
}

type PaymentRequest struct {
	Method   string          `json:"method"   validate:"required,oneof=cash card transfer voucher"`
	Amount   decimal.Decimal `json:"amount"   validate:"required"`
	// Currency the customer paid in; empty means the shop's base currency
	Currency string          `json:"currency" validate:"omitempty,len=3,uppercase"`
}

type CreateSaleRequest struct {
	RegisterID string            `json:"register_id" validate:"required,uuid"`
	CustomerID *string           `json:"customer_id" validate:"omitempty,uuid"`
	Items      []SaleItemRequest `json:"items"       validate:"required,min=1,dive"`
	Discount   decimal.Decimal   `json:"discount"    validate:"min=0"`
	Notes      string            `json:"notes"       validate:"max=500"`
	// Payments are applied right after creation; enough of them completes the sale.
	Payments   []PaymentRequest  `json:"payments"    validate:"omitempty,dive"`
}

type CancelSaleRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=255"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type SaleItemResponse struct {
	Position     int             `json:"position"`
	ProductID    string          `json:"product_id"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	ItemDiscount decimal.Decimal `json:"item_discount"`
	TaxRate      decimal.Decimal `json:"tax_rate"`
	TaxAmount    decimal.Decimal `json:"tax_amount"`
	LineTotal    decimal.Decimal `json:"line_total"`
	ItemTotal    decimal.Decimal `json:"item_total"`
	TracksStock  bool            `json:"tracks_stock"`
}

type PaymentResponse struct {
	Method    string          `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	CreatedAt string          `json:"created_at"`
}

type SaleResponse struct {
	ID          string             `json:"id"`
	Number      int64              `json:"number"`
	CashierID   string             `json:"cashier_id"`
	CustomerID  *string            `json:"customer_id,omitempty"`
	RegisterID  string             `json:"register_id"`
	Status      string             `json:"status"`
	Subtotal    decimal.Decimal    `json:"subtotal"`
	Discount    decimal.Decimal    `json:"discount"`
	TaxAmount   decimal.Decimal    `json:"tax_amount"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	AmountPaid  decimal.Decimal    `json:"amount_paid"`
	Change      decimal.Decimal    `json:"change"`
	Notes       string             `json:"notes"`
	Items       []SaleItemResponse `json:"items"`
	Payments    []PaymentResponse  `json:"payments"`
	CreatedAt   string             `json:"created_at"`
	CompletedAt *string            `json:"completed_at,omitempty"`
	CancelledAt *string            `json:"cancelled_at,omitempty"`
}
