package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StockBatch is one physical lot of a product. Available stock is always
// derived as Quantity - ReservedQuantity and never stored on its own.
// Batches are never deleted; a batch drained to zero stays as history.
type StockBatch struct {
	ID        uuid.UUID `gorm:"type:char(36);primaryKey"`
	ProductID uuid.UUID `gorm:"type:char(36);not null;index"`
	// ProvenanceID points at the PurchaseReceipt that brought the goods in, if any
	ProvenanceID     *uuid.UUID `gorm:"type:char(36);index"`
	Quantity         int        `gorm:"not null;default:0;check:chk_stock_batches_quantity,quantity >= 0"`
	ReservedQuantity int        `gorm:"not null;default:0;check:chk_stock_batches_reserved,reserved_quantity >= 0 AND reserved_quantity <= quantity"`
	Location         string     `gorm:"type:varchar(64);not null;default:''"`
	LotNumber        *string    `gorm:"type:varchar(64)"`
	ExpiryDate       *time.Time `gorm:"index"`
	ReceivedAt       time.Time  `gorm:"not null"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (StockBatch) TableName() string { return "stock_batches" }

func (b *StockBatch) BeforeCreate(_ *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// AvailableQuantity is the part of the batch not promised to pending sales.
func (b *StockBatch) AvailableQuantity() int {
	return b.Quantity - b.ReservedQuantity
}

// Expired reports whether the batch's expiry date is strictly before now.
func (b *StockBatch) Expired(now time.Time) bool {
	return b.ExpiryDate != nil && b.ExpiryDate.Before(now)
}
