package repository

import (
	"context"

	"dutyfree/internal/model"

	"gorm.io/gorm"
)

type PurchaseReceiptRepository interface {
	CreateTx(tx *gorm.DB, p *model.PurchaseReceipt) error
	FindByReference(ctx context.Context, reference string) (*model.PurchaseReceipt, error)
}

type purchaseReceiptRepo struct{ db *gorm.DB }

func NewPurchaseReceiptRepository(db *gorm.DB) PurchaseReceiptRepository {
	return &purchaseReceiptRepo{db: db}
}

func (r *purchaseReceiptRepo) CreateTx(tx *gorm.DB, p *model.PurchaseReceipt) error {
	return tx.Create(p).Error
}

func (r *purchaseReceiptRepo) FindByReference(ctx context.Context, reference string) (*model.PurchaseReceipt, error) {
	var p model.PurchaseReceipt
	if err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}
