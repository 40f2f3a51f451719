package service

import (
	"context"
	"testing"

	"dutyfree/internal/dto"
	"dutyfree/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReceiving(env *testEnv) ReceivingService {
	return NewReceivingService(repository.NewPurchaseReceiptRepository(env.db), env.stock, env.products)
}

func TestReceiving_CreatesOneBatchPerLine(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := newReceiving(env)
	whisky := env.product(t, "45.00", "0", true)
	perfume := env.product(t, "80.00", "0", true)
	lot := "L-2291"

	resp, err := svc.Receive(ctx, env.cashier, dto.ReceiveGoodsRequest{
		Reference:    "DN-1001",
		SupplierName: "Highland Imports",
		Lines: []dto.ReceivingLineRequest{
			{ProductID: whisky.String(), Quantity: 12, Location: "A1", LotNumber: &lot, ExpiryDate: date("2031-01-01")},
			{ProductID: perfume.String(), Quantity: 6, Location: "B4"},
		},
	})
	require.NoError(t, err)
	require.Len(t, resp.BatchIDs, 2)

	batches, err := env.stock.ListBatches(ctx, whisky)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, 12, batches[0].Quantity)
	assert.Equal(t, "A1", batches[0].Location)
	require.NotNil(t, batches[0].ProvenanceID)
	assert.Equal(t, resp.ID, batches[0].ProvenanceID.String())

	total, err := env.stock.TotalQuantity(ctx, perfume)
	require.NoError(t, err)
	assert.Equal(t, 6, total)
}

func TestReceiving_DuplicateReferenceRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := newReceiving(env)
	p := env.product(t, "10.00", "0", true)
	req := dto.ReceiveGoodsRequest{
		Reference: "DN-2002",
		Lines:     []dto.ReceivingLineRequest{{ProductID: p.String(), Quantity: 3}},
	}

	_, err := svc.Receive(ctx, env.cashier, req)
	require.NoError(t, err)
	_, err = svc.Receive(ctx, env.cashier, req)
	assert.ErrorIs(t, err, ErrInvalidState)

	total, err := env.stock.TotalQuantity(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestReceiving_RejectsWholeDeliveryOnBadLine(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := newReceiving(env)
	tracked := env.product(t, "10.00", "0", true)
	giftWrap := env.product(t, "10.00", "0", false)

	_, err := svc.Receive(ctx, env.cashier, dto.ReceiveGoodsRequest{
		Reference: "DN-3003",
		Lines: []dto.ReceivingLineRequest{
			{ProductID: tracked.String(), Quantity: 3},
			{ProductID: giftWrap.String(), Quantity: 1},
		},
	})
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = svc.Receive(ctx, env.cashier, dto.ReceiveGoodsRequest{
		Reference: "DN-3004",
		Lines:     []dto.ReceivingLineRequest{{ProductID: uuid.NewString(), Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrNotFound)

	total, err := env.stock.TotalQuantity(ctx, tracked)
	require.NoError(t, err)
	assert.Zero(t, total)
}
