package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CreateProductRequest struct {
	Code        string          `json:"code"         validate:"required,min=3,max=64"`
	Name        string          `json:"name"         validate:"required,min=2,max=120"`
	Description *string         `json:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price"   validate:"required"`
	TaxRate     decimal.Decimal `json:"tax_rate"     validate:"min=0,max=100"`
	// TracksStock defaults to true when omitted
	TracksStock *bool           `json:"tracks_stock"`
}

// ─── Filter / Pagination ─────────────────────────────────────────────────────

type ProductFilter struct {
	Name   string `form:"name"`
	Active string `form:"active"` // true (default) | false | all
	Page   int    `form:"page,default=1"   validate:"min=1"`
	Limit  int    `form:"limit,default=20" validate:"min=1,max=100"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ProductResponse struct {
	ID          string          `json:"id"`
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	TracksStock bool            `json:"tracks_stock"`
	Active      bool            `json:"active"`
}

type ProductListResponse struct {
	Data       []ProductResponse `json:"data"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"total_pages"`
}
