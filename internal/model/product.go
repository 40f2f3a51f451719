package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a catalog entry. TaxRate is a percentage (18 means 18%).
// TracksStock=false marks services and gift cards that never touch batches.
// TracksStock has no column default: gorm omits zero values of defaulted
// fields from the INSERT, which would store false as true.
type Product struct {
	ID          uuid.UUID `gorm:"type:char(36);primaryKey"`
	Code        string    `gorm:"type:varchar(64);uniqueIndex;not null"`
	Name        string    `gorm:"index;not null"`
	Description *string
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	TaxRate     decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	TracksStock bool            `gorm:"not null"`
	Active      bool            `gorm:"not null;default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (p *Product) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// ProductPricing is the snapshot a sale takes of a product when it is created.
type ProductPricing struct {
	ProductID   uuid.UUID
	Name        string
	UnitPrice   decimal.Decimal
	TaxRate     decimal.Decimal
	TracksStock bool
}

// Pricing returns the sale-time snapshot of the product.
func (p *Product) Pricing() ProductPricing {
	return ProductPricing{
		ProductID:   p.ID,
		Name:        p.Name,
		UnitPrice:   p.UnitPrice,
		TaxRate:     p.TaxRate,
		TracksStock: p.TracksStock,
	}
}
