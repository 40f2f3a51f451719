package dto

import "time"

type ReceivingLineRequest struct {
	ProductID  string     `json:"product_id"  validate:"required,uuid"`
	Quantity   int        `json:"quantity"    validate:"required,min=1"`
	Location   string     `json:"location"    validate:"max=64"`
	LotNumber  *string    `json:"lot_number"  validate:"omitempty,max=64"`
	ExpiryDate *time.Time `json:"expiry_date"`
}

// ReceiveGoodsRequest is one supplier delivery. Every line becomes a batch.
type ReceiveGoodsRequest struct {
	Reference    string                 `json:"reference"     validate:"required,min=1,max=64"`
	SupplierName string                 `json:"supplier_name" validate:"max=120"`
	Notes        *string                `json:"notes"`
	Lines        []ReceivingLineRequest `json:"lines"         validate:"required,min=1,dive"`
}

type ReceivingResponse struct {
	ID           string   `json:"id"`
	Reference    string   `json:"reference"`
	SupplierName string   `json:"supplier_name"`
	ReceivedAt   string   `json:"received_at"`
	BatchIDs     []string `json:"batch_ids"`
}
