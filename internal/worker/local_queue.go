package worker

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Enqueuer hands a receipt to whatever renders it. Both Dispatcher and
// LocalQueue satisfy it.
type Enqueuer interface {
	EnqueueReceipt(ctx context.Context, receiptID uuid.UUID) error
}

// LocalQueue renders receipts on goroutines of this process. Used when
// REDIS_URL is empty; jobs lost on shutdown are picked up by the sweeper.
type LocalQueue struct {
	ctx    context.Context
	worker *ReceiptWorker
	wg     sync.WaitGroup
}

// NewLocalQueue runs jobs under ctx rather than the caller's request
// context, which ends as soon as the response is written.
func NewLocalQueue(ctx context.Context, w *ReceiptWorker) *LocalQueue {
	return &LocalQueue{ctx: ctx, worker: w}
}

func (q *LocalQueue) EnqueueReceipt(_ context.Context, receiptID uuid.UUID) error {
	if err := q.ctx.Err(); err != nil {
		return err
	}
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		_ = q.worker.Process(q.ctx, receiptID)
	}()
	return nil
}

// Wait blocks until every started job has returned.
func (q *LocalQueue) Wait() { q.wg.Wait() }
