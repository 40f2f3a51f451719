package repository

import (
	"context"
	"fmt"
	"time"

	"dutyfree/internal/dto"
	"dutyfree/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SaleRepository interface {
	CreateTx(tx *gorm.DB, s *model.Sale) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Sale, error)
	FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Sale, error)
	NextNumberTx(tx *gorm.DB) (int64, error)
	// TransitionTx moves a sale from one status to another only if it is
	// still in `from`. It reports whether the row was updated.
	TransitionTx(tx *gorm.DB, id uuid.UUID, from, to model.SaleStatus, fields map[string]interface{}) (bool, error)
	List(ctx context.Context, filter dto.SaleFilter) ([]model.Sale, int64, error)
	DB() *gorm.DB // exposes the DB for transaction creation in service layer
}

type saleRepo struct{ db *gorm.DB }

func NewSaleRepository(db *gorm.DB) SaleRepository { return &saleRepo{db: db} }

func (r *saleRepo) DB() *gorm.DB { return r.db }

func (r *saleRepo) CreateTx(tx *gorm.DB, s *model.Sale) error {
	return tx.Create(s).Error
}

func (r *saleRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Sale, error) {
	return r.FindByIDTx(r.db.WithContext(ctx), id)
}

func (r *saleRepo) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Sale, error) {
	var s model.Sale
	err := tx.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("id = ?", id).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *saleRepo) NextNumberTx(tx *gorm.DB) (int64, error) {
	var num int64
	if tx.Dialector.Name() == "postgres" {
		// Sequence created by infra.RunMigrations
		err := tx.Raw("SELECT nextval('sales_number_seq')").Scan(&num).Error
		return num, err
	}
	// Other dialects: the counter row stays locked until this transaction
	// ends, so concurrent creates take numbers one after another.
	res := tx.Model(&model.Counter{}).Where("name = ?", model.CounterSales).
		UpdateColumn("value", gorm.Expr("value + 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, fmt.Errorf("counter %q is missing; run migrations", model.CounterSales)
	}
	err := tx.Model(&model.Counter{}).Where("name = ?", model.CounterSales).
		Select("value").Scan(&num).Error
	return num, err
}

func (r *saleRepo) TransitionTx(tx *gorm.DB, id uuid.UUID, from, to model.SaleStatus, fields map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	for k, v := range fields {
		updates[k] = v
	}
	res := tx.Model(&model.Sale{}).Where("id = ? AND status = ?", id, from).Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *saleRepo) List(ctx context.Context, filter dto.SaleFilter) ([]model.Sale, int64, error) {
	var sales []model.Sale
	var total int64
	offset := (filter.Page - 1) * filter.Limit

	q := r.db.WithContext(ctx).Model(&model.Sale{})

	if filter.Status != "" && filter.Status != "all" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.RegisterID != "" {
		q = q.Where("register_id = ?", filter.RegisterID)
	}
	if filter.Date != "" {
		if day, err := time.Parse("2006-01-02", filter.Date); err == nil {
			q = q.Where("created_at >= ? AND created_at < ?", day, day.AddDate(0, 0, 1))
		}
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := q.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Payments").
		Order("created_at DESC").
		Offset(offset).Limit(filter.Limit).
		Find(&sales).Error

	return sales, total, err
}
