package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PurchaseReceipt records one delivery of goods. Each delivered line becomes
// a StockBatch whose ProvenanceID points back here.
type PurchaseReceipt struct {
	ID           uuid.UUID `gorm:"type:char(36);primaryKey"`
	Reference    string    `gorm:"type:varchar(64);uniqueIndex;not null"`
	SupplierName string    `gorm:"not null;default:''"`
	ReceivedBy   uuid.UUID `gorm:"type:char(36);not null"`
	ReceivedAt   time.Time `gorm:"not null"`
	Notes        *string
	CreatedAt    time.Time
}

func (p *PurchaseReceipt) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
