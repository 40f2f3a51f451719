package repository

import (
	"context"
	"errors"
	"time"

	"dutyfree/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReceiptRepository interface {
	Create(ctx context.Context, r *model.Receipt) error
	FindBySaleID(ctx context.Context, saleID uuid.UUID) (*model.Receipt, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Receipt, error)
	ExistsForSale(ctx context.Context, saleID uuid.UUID) (bool, error)
	Update(ctx context.Context, r *model.Receipt) error
	// ListPendingRetries returns pending receipts whose next_retry_at has passed.
	ListPendingRetries(ctx context.Context, now time.Time, limit int) ([]model.Receipt, error)
}

type receiptRepo struct{ db *gorm.DB }

func NewReceiptRepository(db *gorm.DB) ReceiptRepository {
	return &receiptRepo{db: db}
}

func (r *receiptRepo) Create(ctx context.Context, rc *model.Receipt) error {
	return r.db.WithContext(ctx).Create(rc).Error
}

func (r *receiptRepo) FindBySaleID(ctx context.Context, saleID uuid.UUID) (*model.Receipt, error) {
	var rc model.Receipt
	if err := r.db.WithContext(ctx).Where("sale_id = ?", saleID).First(&rc).Error; err != nil {
		return nil, err
	}
	return &rc, nil
}

func (r *receiptRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Receipt, error) {
	var rc model.Receipt
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rc).Error; err != nil {
		return nil, err
	}
	return &rc, nil
}

func (r *receiptRepo) ExistsForSale(ctx context.Context, saleID uuid.UUID) (bool, error) {
	_, err := r.FindBySaleID(ctx, saleID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (r *receiptRepo) Update(ctx context.Context, rc *model.Receipt) error {
	return r.db.WithContext(ctx).Save(rc).Error
}

func (r *receiptRepo) ListPendingRetries(ctx context.Context, now time.Time, limit int) ([]model.Receipt, error) {
	var out []model.Receipt
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?", model.ReceiptStatusPending, now).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
