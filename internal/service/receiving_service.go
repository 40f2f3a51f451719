package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dutyfree/internal/dto"
	"dutyfree/internal/model"
	"dutyfree/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ReceivingService books supplier deliveries into stock. A delivery is one
// PurchaseReceipt plus one batch per line, committed together.
type ReceivingService interface {
	Receive(ctx context.Context, receivedBy uuid.UUID, req dto.ReceiveGoodsRequest) (*dto.ReceivingResponse, error)
}

type receivingService struct {
	repo    repository.PurchaseReceiptRepository
	stock   StockService
	catalog ProductCatalog
}

func NewReceivingService(repo repository.PurchaseReceiptRepository, stock StockService, catalog ProductCatalog) ReceivingService {
	return &receivingService{repo: repo, stock: stock, catalog: catalog}
}

func (s *receivingService) Receive(ctx context.Context, receivedBy uuid.UUID, req dto.ReceiveGoodsRequest) (*dto.ReceivingResponse, error) {
	if len(req.Lines) == 0 {
		return nil, fmt.Errorf("%w: a delivery needs at least one line", ErrInvalidQuantity)
	}
	if _, err := s.repo.FindByReference(ctx, req.Reference); err == nil {
		return nil, fmt.Errorf("%w: delivery %q was already received", ErrInvalidState, req.Reference)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// Validate every line before opening the transaction
	productIDs := make([]uuid.UUID, len(req.Lines))
	for i, line := range req.Lines {
		pid, err := uuid.Parse(line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("%w: product_id %q", ErrInvalidInput, line.ProductID)
		}
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: line %d quantity must be positive, got %d", ErrInvalidQuantity, i+1, line.Quantity)
		}
		pricing, err := s.catalog.GetPricing(ctx, pid)
		if err != nil {
			return nil, err
		}
		if !pricing.TracksStock {
			return nil, fmt.Errorf("%w: product %s does not track stock", ErrInvalidState, pid)
		}
		productIDs[i] = pid
	}

	now := time.Now().UTC()
	receipt := &model.PurchaseReceipt{
		ID:           uuid.New(),
		Reference:    req.Reference,
		SupplierName: req.SupplierName,
		ReceivedBy:   receivedBy,
		ReceivedAt:   now,
		Notes:        req.Notes,
	}

	batchIDs := make([]string, 0, len(req.Lines))
	err := s.stock.Atomic(ctx, productIDs, func(tx *gorm.DB) error {
		if err := s.repo.CreateTx(tx, receipt); err != nil {
			return err
		}
		for i, line := range req.Lines {
			id, err := s.stock.AddBatchTx(tx, AddBatchParams{
				ProductID:    productIDs[i],
				ProvenanceID: &receipt.ID,
				Quantity:     line.Quantity,
				Location:     line.Location,
				LotNumber:    line.LotNumber,
				ExpiryDate:   utcPtr(line.ExpiryDate),
				ReceivedAt:   now,
			})
			if err != nil {
				return fmt.Errorf("line %d: %w", i+1, err)
			}
			batchIDs = append(batchIDs, id.String())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("reference", req.Reference).
		Int("lines", len(req.Lines)).
		Msg("delivery received")

	return &dto.ReceivingResponse{
		ID:           receipt.ID.String(),
		Reference:    receipt.Reference,
		SupplierName: receipt.SupplierName,
		ReceivedAt:   now.Format(timeLayout),
		BatchIDs:     batchIDs,
	}, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
