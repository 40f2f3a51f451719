package worker

// Periodically re-enqueues receipts stuck in pending whose next_retry_at has
// passed: jobs lost while redis was down, or renders that failed earlier.

import (
	"context"
	"time"

	"dutyfree/internal/infra"
	"dutyfree/internal/repository"

	"github.com/rs/zerolog/log"
)

const (
	sweepTickInterval = 30 * time.Second
	sweepBatchSize    = 20
)

type SweeperConfig struct {
	Receipts repository.ReceiptRepository
	Queue    Enqueuer
	CB       *infra.CircuitBreaker
}

// StartReceiptSweeper ticks every 30s until ctx is cancelled.
func StartReceiptSweeper(ctx context.Context, cfg SweeperConfig) {
	go func() {
		ticker := time.NewTicker(sweepTickInterval)
		defer ticker.Stop()
		log.Info().Msg("receipt_sweeper: started")
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("receipt_sweeper: shutting down")
				return
			case <-ticker.C:
				sweepReceipts(ctx, cfg, time.Now().UTC())
			}
		}
	}()
}

// sweepReceipts returns how many receipts were re-enqueued.
func sweepReceipts(ctx context.Context, cfg SweeperConfig, now time.Time) int {
	if cfg.CB != nil && cfg.CB.State() == infra.CBOpen {
		log.Debug().Msg("receipt_sweeper: circuit breaker is open, skipping tick")
		return 0
	}
	pending, err := cfg.Receipts.ListPendingRetries(ctx, now, sweepBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("receipt_sweeper: failed to query pending receipts")
		return 0
	}

	queued := 0
	for i := range pending {
		rc := &pending[i]
		enqueue := func() error { return cfg.Queue.EnqueueReceipt(ctx, rc.ID) }
		var err error
		if cfg.CB != nil {
			err = cfg.CB.Execute(enqueue)
		} else {
			err = enqueue()
		}
		if err != nil {
			log.Warn().Err(err).Str("receipt_id", rc.ID.String()).Msg("receipt_sweeper: enqueue failed, stopping tick")
			return queued
		}
		// push the deadline out so the next tick does not queue it twice
		next := now.Add(retryBackoff(rc.RetryCount + 1))
		rc.NextRetryAt = &next
		if err := cfg.Receipts.Update(ctx, rc); err != nil {
			log.Error().Err(err).Str("receipt_id", rc.ID.String()).Msg("receipt_sweeper: failed to save next_retry_at")
		}
		queued++
	}
	if queued > 0 {
		log.Info().Int("count", queued).Msg("receipt_sweeper: receipts re-enqueued")
	}
	return queued
}
