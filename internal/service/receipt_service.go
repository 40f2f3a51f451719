package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dutyfree/internal/dto"
	"dutyfree/internal/infra"
	"dutyfree/internal/model"
	"dutyfree/internal/repository"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ReceiptQueue hands a receipt to the rendering workers.
type ReceiptQueue interface {
	EnqueueReceipt(ctx context.Context, receiptID uuid.UUID) error
}

// receiptSweepDelay is how long a pending receipt waits before the sweeper
// re-enqueues it, in case the first job was lost.
const receiptSweepDelay = 2 * time.Minute

// ReceiptService is the default ReceiptGenerator: it records one receipt per
// sale and queues it for PDF rendering.
type ReceiptService interface {
	ReceiptGenerator
	GetBySale(ctx context.Context, saleID uuid.UUID) (*dto.ReceiptResponse, error)
}

type receiptService struct {
	repo    repository.ReceiptRepository
	queue   ReceiptQueue
	breaker *infra.CircuitBreaker
	node    *snowflake.Node
}

func NewReceiptService(repo repository.ReceiptRepository, queue ReceiptQueue, breaker *infra.CircuitBreaker, node *snowflake.Node) ReceiptService {
	return &receiptService{repo: repo, queue: queue, breaker: breaker, node: node}
}

// Generate is idempotent per sale: a second call returns the first receipt.
func (s *receiptService) Generate(ctx context.Context, saleID uuid.UUID) (uuid.UUID, error) {
	existing, err := s.repo.FindBySaleID(ctx, saleID)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, err
	}

	next := time.Now().UTC().Add(receiptSweepDelay)
	rc := &model.Receipt{
		SaleID:      saleID,
		Number:      s.node.Generate().Int64(),
		Status:      model.ReceiptStatusPending,
		NextRetryAt: &next,
	}
	if err := s.repo.Create(ctx, rc); err != nil {
		// Lost a race on the unique sale_id
		if existing, ferr := s.repo.FindBySaleID(ctx, saleID); ferr == nil {
			return existing.ID, nil
		}
		return uuid.Nil, err
	}

	if err := s.dispatch(ctx, rc.ID); err != nil {
		log.Warn().Err(err).Str("receipt_id", rc.ID.String()).Msg("receipt enqueue failed; sweeper will retry")
		return rc.ID, fmt.Errorf("enqueue receipt %d: %w", rc.Number, err)
	}
	return rc.ID, nil
}

func (s *receiptService) HasReceipt(ctx context.Context, saleID uuid.UUID) (bool, error) {
	return s.repo.ExistsForSale(ctx, saleID)
}

func (s *receiptService) GetBySale(ctx context.Context, saleID uuid.UUID) (*dto.ReceiptResponse, error) {
	rc, err := s.repo.FindBySaleID(ctx, saleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("receipt", saleID)
		}
		return nil, err
	}
	return &dto.ReceiptResponse{
		ID:         rc.ID.String(),
		SaleID:     rc.SaleID.String(),
		Number:     rc.Number,
		Status:     rc.Status,
		PDFPath:    rc.PDFPath,
		RetryCount: rc.RetryCount,
		LastError:  rc.LastError,
		CreatedAt:  rc.CreatedAt.Format(timeLayout),
	}, nil
}

func (s *receiptService) dispatch(ctx context.Context, receiptID uuid.UUID) error {
	if s.queue == nil {
		return nil
	}
	if s.breaker == nil {
		return s.queue.EnqueueReceipt(ctx, receiptID)
	}
	return s.breaker.Execute(func() error {
		return s.queue.EnqueueReceipt(ctx, receiptID)
	})
}
