package dto

import (
	"time"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type AddBatchRequest struct {
	ProductID    string     `json:"product_id"    validate:"required,uuid"`
	ProvenanceID *string    `json:"provenance_id" validate:"omitempty,uuid"`
	Quantity     int        `json:"quantity"      validate:"required,min=1"`
	Location     string     `json:"location"      validate:"max=64"`
	LotNumber    *string    `json:"lot_number"    validate:"omitempty,max=64"`
	ExpiryDate   *time.Time `json:"expiry_date"`
	ReceivedAt   *time.Time `json:"received_at"`
}

// QuantityRequest is the body of reserve, release and consume.
type QuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

type AdjustBatchRequest struct {
	Quantity *int `json:"quantity" validate:"required,min=0"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type StockBatchResponse struct {
	ID                string  `json:"id"`
	ProductID         string  `json:"product_id"`
	ProvenanceID      *string `json:"provenance_id,omitempty"`
	Quantity          int     `json:"quantity"`
	ReservedQuantity  int     `json:"reserved_quantity"`
	AvailableQuantity int     `json:"available_quantity"`
	Location          string  `json:"location"`
	LotNumber         *string `json:"lot_number,omitempty"`
	ExpiryDate        *string `json:"expiry_date,omitempty"`
	ReceivedAt        string  `json:"received_at"`
	Expired           bool    `json:"expired"`
}

type ProductStockResponse struct {
	ProductID         string               `json:"product_id"`
	TotalQuantity     int                  `json:"total_quantity"`
	AvailableQuantity int                  `json:"available_quantity"`
	ReservedQuantity  int                  `json:"reserved_quantity"`
	Batches           []StockBatchResponse `json:"batches"`
}

// ReleaseResponse reports a clamped release; Released < Requested means the
// product had fewer units reserved than asked for.
type ReleaseResponse struct {
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Released  int    `json:"released"`
}
