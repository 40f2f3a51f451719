package repository

import (
	"context"
	"time"

	"dutyfree/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockBatchRepository is the batch ledger. It only persists and queries;
// every quantity rule lives in the stock service. Methods with a Tx suffix
// must run inside the caller's transaction.
type StockBatchRepository interface {
	CreateTx(tx *gorm.DB, b *model.StockBatch) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.StockBatch, error)
	FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.StockBatch, error)
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]model.StockBatch, error)
	ListByProductTx(tx *gorm.DB, productID uuid.UUID) ([]model.StockBatch, error)
	// LockProductsTx takes row locks on every batch of the given products,
	// in ascending batch id order, for the rest of the transaction.
	LockProductsTx(tx *gorm.DB, productIDs []uuid.UUID) error
	UpdateQuantitiesTx(tx *gorm.DB, b *model.StockBatch) error
	SumByProduct(ctx context.Context, productID uuid.UUID) (total int, available int, err error)
	ListExpiring(ctx context.Context, from, to time.Time) ([]model.StockBatch, error)
	ListExpiredBefore(ctx context.Context, t time.Time) ([]model.StockBatch, error)

	// DB exposes the underlying *gorm.DB so services can open transactions.
	DB() *gorm.DB
}

type stockBatchRepo struct{ db *gorm.DB }

func NewStockBatchRepository(db *gorm.DB) StockBatchRepository { return &stockBatchRepo{db: db} }

func (r *stockBatchRepo) DB() *gorm.DB { return r.db }

func (r *stockBatchRepo) CreateTx(tx *gorm.DB, b *model.StockBatch) error {
	return tx.Create(b).Error
}

func (r *stockBatchRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.StockBatch, error) {
	return r.FindByIDTx(r.db.WithContext(ctx), id)
}

func (r *stockBatchRepo) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.StockBatch, error) {
	var b model.StockBatch
	if err := tx.Where("id = ?", id).First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *stockBatchRepo) ListByProduct(ctx context.Context, productID uuid.UUID) ([]model.StockBatch, error) {
	return r.ListByProductTx(r.db.WithContext(ctx), productID)
}

func (r *stockBatchRepo) ListByProductTx(tx *gorm.DB, productID uuid.UUID) ([]model.StockBatch, error) {
	var batches []model.StockBatch
	err := tx.Where("product_id = ?", productID).Order("id ASC").Find(&batches).Error
	return batches, err
}

func (r *stockBatchRepo) LockProductsTx(tx *gorm.DB, productIDs []uuid.UUID) error {
	if len(productIDs) == 0 {
		return nil
	}
	// SQLite has no row locks; the service's in-process product locks cover it.
	if tx.Dialector.Name() == "sqlite" {
		return nil
	}
	var ids []uuid.UUID
	return tx.Model(&model.StockBatch{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id IN ?", productIDs).
		Order("id ASC").
		Pluck("id", &ids).Error
}

func (r *stockBatchRepo) UpdateQuantitiesTx(tx *gorm.DB, b *model.StockBatch) error {
	return tx.Model(&model.StockBatch{}).Where("id = ?", b.ID).Updates(map[string]interface{}{
		"quantity":          b.Quantity,
		"reserved_quantity": b.ReservedQuantity,
		"updated_at":        time.Now().UTC(),
	}).Error
}

func (r *stockBatchRepo) SumByProduct(ctx context.Context, productID uuid.UUID) (int, int, error) {
	var row struct {
		Total     int64
		Available int64
	}
	err := r.db.WithContext(ctx).Model(&model.StockBatch{}).
		Select("COALESCE(SUM(quantity), 0) AS total, COALESCE(SUM(quantity - reserved_quantity), 0) AS available").
		Where("product_id = ?", productID).
		Scan(&row).Error
	return int(row.Total), int(row.Available), err
}

func (r *stockBatchRepo) ListExpiring(ctx context.Context, from, to time.Time) ([]model.StockBatch, error) {
	var batches []model.StockBatch
	err := r.db.WithContext(ctx).
		Where("expiry_date IS NOT NULL AND expiry_date >= ? AND expiry_date <= ? AND quantity > 0", from, to).
		Order("expiry_date ASC, received_at ASC, id ASC").
		Find(&batches).Error
	return batches, err
}

func (r *stockBatchRepo) ListExpiredBefore(ctx context.Context, t time.Time) ([]model.StockBatch, error) {
	var batches []model.StockBatch
	err := r.db.WithContext(ctx).
		Where("expiry_date IS NOT NULL AND expiry_date < ? AND quantity > 0", t).
		Order("expiry_date ASC, received_at ASC, id ASC").
		Find(&batches).Error
	return batches, err
}
