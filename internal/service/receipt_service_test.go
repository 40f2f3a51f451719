package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dutyfree/internal/infra"
	"dutyfree/internal/model"
	"dutyfree/internal/repository"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubQueue struct {
	mu  sync.Mutex
	ids []uuid.UUID
	err error
}

func (q *stubQueue) EnqueueReceipt(_ context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.ids = append(q.ids, id)
	return nil
}

func newReceiptFixture(t *testing.T, queue ReceiptQueue, cb *infra.CircuitBreaker) (ReceiptService, repository.ReceiptRepository) {
	t.Helper()
	db := newTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	repo := repository.NewReceiptRepository(db)
	return NewReceiptService(repo, queue, cb, node), repo
}

func TestReceipt_GenerateIsIdempotent(t *testing.T) {
	queue := &stubQueue{}
	svc, _ := newReceiptFixture(t, queue, nil)
	ctx := context.Background()
	saleID := uuid.New()

	first, err := svc.Generate(ctx, saleID)
	require.NoError(t, err)
	second, err := svc.Generate(ctx, saleID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []uuid.UUID{first}, queue.ids)

	has, err := svc.HasReceipt(ctx, saleID)
	require.NoError(t, err)
	assert.True(t, has)

	resp, err := svc.GetBySale(ctx, saleID)
	require.NoError(t, err)
	assert.Equal(t, model.ReceiptStatusPending, resp.Status)
	assert.NotZero(t, resp.Number)
}

func TestReceipt_EnqueueFailureLeavesPendingRecord(t *testing.T) {
	queue := &stubQueue{err: errors.New("redis down")}
	svc, repo := newReceiptFixture(t, queue, nil)
	ctx := context.Background()
	saleID := uuid.New()

	id, err := svc.Generate(ctx, saleID)
	require.Error(t, err)
	require.NotEqual(t, uuid.Nil, id)

	rc, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.ReceiptStatusPending, rc.Status)
	require.NotNil(t, rc.NextRetryAt)
	assert.True(t, rc.NextRetryAt.After(time.Now().UTC()), "the sweeper picks it up later")
}

func TestReceipt_OpenBreakerSkipsQueue(t *testing.T) {
	queue := &stubQueue{err: errors.New("redis down")}
	cb := infra.NewCircuitBreaker(infra.CircuitBreakerConfig{Name: "test", FailureThreshold: 1, OpenTimeout: time.Hour})
	svc, _ := newReceiptFixture(t, queue, cb)
	ctx := context.Background()

	_, err := svc.Generate(ctx, uuid.New())
	require.Error(t, err)
	assert.Equal(t, infra.CBOpen, cb.State())

	queue.err = nil
	_, err = svc.Generate(ctx, uuid.New())
	assert.ErrorIs(t, err, infra.ErrCircuitOpen)
	assert.Empty(t, queue.ids)
}

func TestReceipt_NilQueueOnlyRecords(t *testing.T) {
	svc, _ := newReceiptFixture(t, nil, nil)
	_, err := svc.Generate(context.Background(), uuid.New())
	assert.NoError(t, err)
}

func TestReceipt_GetBySaleUnknown(t *testing.T) {
	svc, _ := newReceiptFixture(t, &stubQueue{}, nil)
	_, err := svc.GetBySale(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
