package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RegisterSession is the lifecycle of one cash register shift.
// Status: "open" | "closed". Sales reference the session id.
type RegisterSession struct {
	ID             uuid.UUID       `gorm:"type:char(36);primaryKey"`
	RegisterNumber int             `gorm:"not null;index"`
	CashierID      uuid.UUID       `gorm:"type:char(36);not null"`
	OpeningFloat   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	// ExpectedCash is computed on close: OpeningFloat + cash taken on completed sales
	ExpectedCash *decimal.Decimal `gorm:"type:decimal(12,2)"`
	DeclaredCash *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Variance     *decimal.Decimal `gorm:"type:decimal(12,2)"`
	VariancePct  *decimal.Decimal `gorm:"type:decimal(7,2)"`
	// VarianceClass: "normal" | "warning" | "critical"
	VarianceClass *string `gorm:"type:varchar(20)"`
	Status        string  `gorm:"type:varchar(20);not null;default:'open'"`
	Notes         *string
	OpenedAt      time.Time
	ClosedAt      *time.Time
}

const (
	RegisterStatusOpen   = "open"
	RegisterStatusClosed = "closed"
)

func (s *RegisterSession) BeforeCreate(_ *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
