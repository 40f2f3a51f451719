package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Receipt tracks the rendering of a completed sale's ticket.
// Status: "pending" | "rendered" | "failed"
type Receipt struct {
	ID     uuid.UUID `gorm:"type:char(36);primaryKey"`
	SaleID uuid.UUID `gorm:"type:char(36);uniqueIndex;not null"`
	Number int64     `gorm:"uniqueIndex;not null"`
	Status string    `gorm:"type:varchar(20);not null;default:'pending'"`
	// PDFPath is set once rendered
	PDFPath    *string
	RetryCount int `gorm:"not null;default:0"`
	// NextRetryAt is when the sweeper may re-enqueue a pending receipt
	NextRetryAt *time.Time `gorm:"index"`
	LastError   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const (
	ReceiptStatusPending  = "pending"
	ReceiptStatusRendered = "rendered"
	ReceiptStatusFailed   = "failed"
)

func (r *Receipt) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
