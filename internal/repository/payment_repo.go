package repository

import (
	"context"

	"dutyfree/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentRepository is the default payment ledger: one sale_payments row per
// tender. Amounts are summed in Go to keep decimal precision on every dialect.
type PaymentRepository interface {
	RecordPayment(ctx context.Context, saleID uuid.UUID, amount decimal.Decimal, method, currency string) error
	TotalPaid(ctx context.Context, saleID uuid.UUID) (decimal.Decimal, error)
	// SumByMethodForRegister totals payments of completed sales taken on a
	// register session, grouped by payment method.
	SumByMethodForRegister(ctx context.Context, registerID uuid.UUID) (map[string]decimal.Decimal, error)
}

type paymentRepo struct{ db *gorm.DB }

func NewPaymentRepository(db *gorm.DB) PaymentRepository { return &paymentRepo{db: db} }

func (r *paymentRepo) RecordPayment(ctx context.Context, saleID uuid.UUID, amount decimal.Decimal, method, currency string) error {
	return r.db.WithContext(ctx).Create(&model.SalePayment{
		SaleID:   saleID,
		Amount:   amount,
		Method:   method,
		Currency: currency,
	}).Error
}

func (r *paymentRepo) TotalPaid(ctx context.Context, saleID uuid.UUID) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	err := r.db.WithContext(ctx).Model(&model.SalePayment{}).
		Where("sale_id = ?", saleID).
		Pluck("amount", &amounts).Error
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total, nil
}

func (r *paymentRepo) SumByMethodForRegister(ctx context.Context, registerID uuid.UUID) (map[string]decimal.Decimal, error) {
	var payments []model.SalePayment
	err := r.db.WithContext(ctx).
		Joins("JOIN sales ON sales.id = sale_payments.sale_id").
		Where("sales.register_id = ? AND sales.status = ?", registerID, model.SaleStatusCompleted).
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	sums := make(map[string]decimal.Decimal)
	for _, p := range payments {
		sums[p.Method] = sums[p.Method].Add(p.Amount)
	}
	return sums, nil
}
