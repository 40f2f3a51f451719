package service

import (
	"context"
	"testing"

	"dutyfree/internal/dto"
	"dutyfree/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProduct_TracksStockSurvivesCreate(t *testing.T) {
	svc := NewProductService(repository.NewProductRepository(newTestDB(t)))
	ctx := context.Background()
	untracked, tracked := false, true

	tests := []struct {
		name  string
		flag  *bool
		wants bool
	}{
		{"explicitly untracked", &untracked, false},
		{"explicitly tracked", &tracked, true},
		{"omitted defaults to tracked", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.Create(ctx, dto.CreateProductRequest{
				Code:        "GC-" + uuid.NewString()[:8],
				Name:        "Gift card",
				UnitPrice:   decimal.NewFromInt(50),
				TracksStock: tt.flag,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wants, resp.TracksStock)

			pricing, err := svc.GetPricing(ctx, uuid.MustParse(resp.ID))
			require.NoError(t, err)
			assert.Equal(t, tt.wants, pricing.TracksStock)
		})
	}
}

func TestProduct_CreateRejects(t *testing.T) {
	svc := NewProductService(repository.NewProductRepository(newTestDB(t)))
	ctx := context.Background()

	_, err := svc.Create(ctx, dto.CreateProductRequest{Code: "DUP-1", Name: "Perfume", UnitPrice: decimal.NewFromInt(80)})
	require.NoError(t, err)

	_, err = svc.Create(ctx, dto.CreateProductRequest{Code: "DUP-1", Name: "Perfume", UnitPrice: decimal.NewFromInt(80)})
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = svc.Create(ctx, dto.CreateProductRequest{Code: "NEG-1", Name: "Perfume", UnitPrice: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.Create(ctx, dto.CreateProductRequest{Code: "TAX-1", Name: "Perfume", UnitPrice: decimal.NewFromInt(1), TaxRate: decimal.NewFromInt(101)})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestProduct_InactiveCannotBePriced(t *testing.T) {
	svc := NewProductService(repository.NewProductRepository(newTestDB(t)))
	ctx := context.Background()

	resp, err := svc.Create(ctx, dto.CreateProductRequest{Code: "OLD-1", Name: "Discontinued", UnitPrice: decimal.NewFromInt(5)})
	require.NoError(t, err)
	id := uuid.MustParse(resp.ID)
	require.NoError(t, svc.Deactivate(ctx, id))

	_, err = svc.GetPricing(ctx, id)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = svc.GetPricing(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Deactivate(ctx, uuid.New()), ErrNotFound)
}
