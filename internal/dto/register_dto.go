package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type OpenRegisterRequest struct {
	RegisterNumber int             `json:"register_number" validate:"required,min=1"`
	OpeningFloat   decimal.Decimal `json:"opening_float"   validate:"min=0"`
}

type CloseRegisterRequest struct {
	DeclaredCash decimal.Decimal `json:"declared_cash" validate:"min=0"`
	Notes        *string         `json:"notes"         validate:"omitempty,max=500"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type VarianceResponse struct {
	Amount         decimal.Decimal `json:"amount"`
	Percentage     decimal.Decimal `json:"percentage"`
	Classification string          `json:"classification"` // normal | warning | critical
}

type RegisterSessionResponse struct {
	ID              string                     `json:"id"`
	RegisterNumber  int                        `json:"register_number"`
	CashierID       string                     `json:"cashier_id"`
	Status          string                     `json:"status"`
	OpeningFloat    decimal.Decimal            `json:"opening_float"`
	ExpectedCash    *decimal.Decimal           `json:"expected_cash,omitempty"`
	DeclaredCash    *decimal.Decimal           `json:"declared_cash,omitempty"`
	Variance        *VarianceResponse          `json:"variance,omitempty"`
	// TakingsByMethod is filled on close: completed-sale payments per method
	TakingsByMethod map[string]decimal.Decimal `json:"takings_by_method,omitempty"`
	Notes           *string                    `json:"notes,omitempty"`
	OpenedAt        string                     `json:"opened_at"`
	ClosedAt        *string                    `json:"closed_at,omitempty"`
}
