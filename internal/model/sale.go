package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SaleStatus: PENDING is the only non-terminal state.
type SaleStatus string

const (
	SaleStatusPending   SaleStatus = "PENDING"
	SaleStatusCompleted SaleStatus = "COMPLETED"
	SaleStatusCancelled SaleStatus = "CANCELLED"
)

// Terminal reports whether no further transition is allowed from s.
func (s SaleStatus) Terminal() bool {
	return s == SaleStatusCompleted || s == SaleStatusCancelled
}

// Sale is the transaction document. Items are fixed at creation and owned
// exclusively by the sale. Stock is linked only through the reservation
// protocol, never by a stored reference to a batch.
type Sale struct {
	ID          uuid.UUID       `gorm:"type:char(36);primaryKey"`
	Number      int64           `gorm:"uniqueIndex;not null"`
	CashierID   uuid.UUID       `gorm:"type:char(36);not null;index"`
	CustomerID  *uuid.UUID      `gorm:"type:char(36);index"`
	RegisterID  uuid.UUID       `gorm:"type:char(36);not null;index"`
	Status      SaleStatus      `gorm:"type:varchar(20);not null;index"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Discount    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	TaxAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Notes       string          `gorm:"type:varchar(2000);not null;default:''"`
	CreatedAt   time.Time       `gorm:"index"`
	UpdatedAt   time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time

	Items    []SaleItem    `gorm:"foreignKey:SaleID"`
	Payments []SalePayment `gorm:"foreignKey:SaleID"`
}

func (s *Sale) BeforeCreate(_ *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// SaleItem snapshots price, tax rate and stock tracking at sale time.
type SaleItem struct {
	ID           uuid.UUID       `gorm:"type:char(36);primaryKey"`
	SaleID       uuid.UUID       `gorm:"type:char(36);not null;index"`
	Position     int             `gorm:"not null"`
	ProductID    uuid.UUID       `gorm:"type:char(36);not null;index"`
	Quantity     int             `gorm:"not null"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	ItemDiscount decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	TaxRate      decimal.Decimal `gorm:"type:decimal(5,2);not null"`
	TaxAmount    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	LineTotal    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	ItemTotal    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	TracksStock  bool            `gorm:"not null"`
}

func (i *SaleItem) BeforeCreate(_ *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// SalePayment is a tender recorded against a sale. Amount is expressed in
// the shop's base currency; Currency records what the customer handed over.
type SalePayment struct {
	ID        uuid.UUID       `gorm:"type:char(36);primaryKey"`
	SaleID    uuid.UUID       `gorm:"type:char(36);not null;index"`
	Amount    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Method    string          `gorm:"type:varchar(20);not null"`
	Currency  string          `gorm:"type:varchar(3);not null"`
	CreatedAt time.Time
}

func (p *SalePayment) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
