package worker

// Renders receipts queued on QueueReceipts. Rendering is retried in-process
// with backoff; a receipt that keeps failing is rescheduled for the sweeper
// and, once out of attempts, marked failed and copied to the DLQ.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dutyfree/internal/infra"
	"dutyfree/internal/model"
	"dutyfree/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// RenderFunc writes a receipt document and returns the file path.
type RenderFunc func(doc infra.ReceiptDocument, storagePath string) (string, error)

type ReceiptWorkerConfig struct {
	Receipts    repository.ReceiptRepository
	Sales       repository.SaleRepository
	Products    repository.ProductRepository
	RDB         *redis.Client // DLQ; may be nil
	Render      RenderFunc    // defaults to infra.GenerateReceiptPDF
	StoragePath string
	ShopName    string
	MaxRetries  int
}

type ReceiptWorker struct {
	cfg ReceiptWorkerConfig
}

func NewReceiptWorker(cfg ReceiptWorkerConfig) *ReceiptWorker {
	if cfg.Render == nil {
		cfg.Render = infra.GenerateReceiptPDF
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	return &ReceiptWorker{cfg: cfg}
}

// Handle is the pool Handler for JobTypeReceipt.
func (w *ReceiptWorker) Handle(ctx context.Context, raw json.RawMessage) error {
	var payload ReceiptJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("receipt job: invalid payload: %w", err)
	}
	id, err := uuid.Parse(payload.ReceiptID)
	if err != nil {
		return fmt.Errorf("receipt job: invalid receipt_id %q", payload.ReceiptID)
	}
	return w.Process(ctx, id)
}

// Process renders one receipt. Rendered receipts are skipped, so duplicate
// jobs are harmless.
func (w *ReceiptWorker) Process(ctx context.Context, receiptID uuid.UUID) error {
	rc, err := w.cfg.Receipts.FindByID(ctx, receiptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn().Str("receipt_id", receiptID.String()).Msg("receipt_worker: receipt not found, dropping job")
			return nil
		}
		return err
	}
	if rc.Status != model.ReceiptStatusPending {
		return nil
	}

	sale, err := w.cfg.Sales.FindByID(ctx, rc.SaleID)
	if err != nil {
		w.recordFailure(ctx, rc, fmt.Errorf("load sale: %w", err))
		return nil
	}

	doc := infra.ReceiptDocument{
		ShopName:     w.cfg.ShopName,
		Number:       rc.Number,
		Sale:         sale,
		ProductNames: w.productNames(ctx, sale),
	}

	var path string
	renderErr := withRetry(ctx, 3, func(attempt int) error {
		p, err := w.cfg.Render(doc, w.cfg.StoragePath)
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt+1).Str("receipt_id", rc.ID.String()).
				Msg("receipt_worker: render attempt failed")
			return err
		}
		path = p
		return nil
	})
	if renderErr != nil {
		w.recordFailure(ctx, rc, renderErr)
		return nil
	}

	rc.Status = model.ReceiptStatusRendered
	rc.PDFPath = &path
	rc.NextRetryAt = nil
	rc.LastError = nil
	if err := w.cfg.Receipts.Update(ctx, rc); err != nil {
		return fmt.Errorf("receipt_worker: save rendered receipt: %w", err)
	}
	log.Info().Str("receipt_id", rc.ID.String()).Int64("number", rc.Number).Str("pdf", path).Msg("receipt rendered")
	return nil
}

func (w *ReceiptWorker) recordFailure(ctx context.Context, rc *model.Receipt, cause error) {
	rc.RetryCount++
	msg := cause.Error()
	rc.LastError = &msg

	if rc.RetryCount >= w.cfg.MaxRetries {
		rc.Status = model.ReceiptStatusFailed
		rc.NextRetryAt = nil
		payload, _ := json.Marshal(ReceiptJobPayload{ReceiptID: rc.ID.String()})
		SendToDLQ(ctx, w.cfg.RDB, QueueReceipts, JobTypeReceipt, payload, msg, rc.RetryCount)
		log.Error().Str("receipt_id", rc.ID.String()).Int("retries", rc.RetryCount).
			Msg("receipt_worker: giving up on receipt")
	} else {
		next := time.Now().UTC().Add(retryBackoff(rc.RetryCount))
		rc.NextRetryAt = &next
		log.Warn().Str("receipt_id", rc.ID.String()).Int("retries", rc.RetryCount).Time("next_retry_at", next).
			Msg("receipt_worker: rendering failed, rescheduled")
	}
	if err := w.cfg.Receipts.Update(ctx, rc); err != nil {
		log.Error().Err(err).Str("receipt_id", rc.ID.String()).Msg("receipt_worker: failed to save retry state")
	}
}

func (w *ReceiptWorker) productNames(ctx context.Context, sale *model.Sale) map[uuid.UUID]string {
	names := make(map[uuid.UUID]string, len(sale.Items))
	if w.cfg.Products == nil {
		return names
	}
	for _, it := range sale.Items {
		if _, ok := names[it.ProductID]; ok {
			continue
		}
		if p, err := w.cfg.Products.FindByID(ctx, it.ProductID); err == nil {
			names[it.ProductID] = p.Name
		}
	}
	return names
}

// withRetry calls fn up to maxAttempts times, waiting 1s, 2s, ... between
// attempts. Returns the last error if every attempt fails.
func withRetry(ctx context.Context, maxAttempts int, fn func(attempt int) error) error {
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if i > 0 {
			wait := time.Duration(1<<uint(i-1)) * retryUnit
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := fn(i); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

// retryUnit is the base backoff step; tests shrink it.
var retryUnit = time.Second

// retryBackoff is the sweeper delay after n failed jobs: 1m, 2m, 4m ... capped at 1h.
func retryBackoff(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	d := time.Minute << uint(n-1)
	if d > time.Hour || d <= 0 {
		return time.Hour
	}
	return d
}
