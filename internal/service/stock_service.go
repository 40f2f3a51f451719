package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dutyfree/internal/model"
	"dutyfree/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// AddBatchParams describes a lot of goods entering inventory.
type AddBatchParams struct {
	ProductID    uuid.UUID
	ProvenanceID *uuid.UUID
	Quantity     int
	Location     string
	LotNumber    *string
	ExpiryDate   *time.Time
	ReceivedAt   time.Time // zero means now
}

// StockService is the stock allocator. Every mutation runs as one atomic
// unit per product: the read of reserved/available and the write that
// follows never interleave with another mutation on the same product.
//
// The Tx variants perform the same operation inside a transaction opened by
// Atomic; callers must have passed the product to Atomic.
type StockService interface {
	AddBatch(ctx context.Context, p AddBatchParams) (uuid.UUID, error)
	AddBatchTx(tx *gorm.DB, p AddBatchParams) (uuid.UUID, error)
	Reserve(ctx context.Context, productID uuid.UUID, quantity int) error
	Release(ctx context.Context, productID uuid.UUID, quantity int) error
	Consume(ctx context.Context, productID uuid.UUID, quantity int) error
	Adjust(ctx context.Context, batchID uuid.UUID, newQuantity int) error

	ReserveTx(tx *gorm.DB, productID uuid.UUID, quantity int) error
	ReleaseTx(tx *gorm.DB, productID uuid.UUID, quantity int) error
	ConsumeTx(tx *gorm.DB, productID uuid.UUID, quantity int) error
	Atomic(ctx context.Context, productIDs []uuid.UUID, fn func(tx *gorm.DB) error) error

	TotalQuantity(ctx context.Context, productID uuid.UUID) (int, error)
	AvailableQuantity(ctx context.Context, productID uuid.UUID) (int, error)
	ListBatches(ctx context.Context, productID uuid.UUID) ([]model.StockBatch, error)
	ExpiringWithin(ctx context.Context, days int) ([]model.StockBatch, error)
	Expired(ctx context.Context) ([]model.StockBatch, error)
}

type stockService struct {
	repo    repository.StockBatchRepository
	locks   *productLocks
	metrics *Metrics
	now     func() time.Time
}

func NewStockService(repo repository.StockBatchRepository, metrics *Metrics) StockService {
	return &stockService{
		repo:    repo,
		locks:   newProductLocks(),
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Atomic opens one unit of work over the given products: product locks in
// ascending id order, a DB transaction, and row locks on their batches.
func (s *stockService) Atomic(ctx context.Context, productIDs []uuid.UUID, fn func(tx *gorm.DB) error) error {
	unlock := s.locks.lock(productIDs)
	defer unlock()

	return s.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.LockProductsTx(tx, sortedUnique(productIDs)); err != nil {
			return fmt.Errorf("lock stock batches: %w", err)
		}
		return fn(tx)
	})
}

// ── AddBatch ─────────────────────────────────────────────────────────────────

func (s *stockService) AddBatch(ctx context.Context, p AddBatchParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.Atomic(ctx, []uuid.UUID{p.ProductID}, func(tx *gorm.DB) error {
		var err error
		id, err = s.AddBatchTx(tx, p)
		return err
	})
	s.metrics.allocation("add_batch", p.Quantity, err)
	return id, err
}

func (s *stockService) AddBatchTx(tx *gorm.DB, p AddBatchParams) (uuid.UUID, error) {
	if p.Quantity <= 0 {
		return uuid.Nil, fmt.Errorf("%w: batch quantity must be positive, got %d", ErrInvalidQuantity, p.Quantity)
	}
	if p.ProductID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: batch needs a product", ErrInvalidState)
	}
	receivedAt := p.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = s.now()
	}
	batch := &model.StockBatch{
		ID:           uuid.New(),
		ProductID:    p.ProductID,
		ProvenanceID: p.ProvenanceID,
		Quantity:     p.Quantity,
		Location:     p.Location,
		LotNumber:    p.LotNumber,
		ExpiryDate:   p.ExpiryDate,
		ReceivedAt:   receivedAt,
	}
	if err := s.repo.CreateTx(tx, batch); err != nil {
		return uuid.Nil, err
	}
	log.Info().
		Str("batch_id", batch.ID.String()).
		Str("product_id", p.ProductID.String()).
		Int("quantity", p.Quantity).
		Msg("stock batch added")
	return batch.ID, nil
}

// ── Reserve ──────────────────────────────────────────────────────────────────

func (s *stockService) Reserve(ctx context.Context, productID uuid.UUID, quantity int) error {
	err := s.Atomic(ctx, []uuid.UUID{productID}, func(tx *gorm.DB) error {
		return s.ReserveTx(tx, productID, quantity)
	})
	s.metrics.allocation("reserve", quantity, err)
	return err
}

// ReserveTx earmarks quantity across the product's batches, FEFO order.
// It is all-or-nothing: when the product is short nothing is written.
func (s *stockService) ReserveTx(tx *gorm.DB, productID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: reserve quantity must be positive, got %d", ErrInvalidQuantity, quantity)
	}
	batches, err := s.repo.ListByProductTx(tx, productID)
	if err != nil {
		return err
	}

	available := 0
	for i := range batches {
		available += batches[i].AvailableQuantity()
	}
	if available < quantity {
		return fmt.Errorf("%w: product %s has %d available, %d requested",
			ErrInsufficientStock, productID, available, quantity)
	}

	sortFEFO(batches)
	remaining := quantity
	for i := range batches {
		if remaining == 0 {
			break
		}
		b := &batches[i]
		take := min(b.AvailableQuantity(), remaining)
		if take <= 0 {
			continue
		}
		b.ReservedQuantity += take
		if err := s.repo.UpdateQuantitiesTx(tx, b); err != nil {
			return err
		}
		remaining -= take
	}
	return nil
}

// ── Release ──────────────────────────────────────────────────────────────────

// Release commits whatever could be released even when the request exceeds
// the product's reservations, then reports the shortfall.
func (s *stockService) Release(ctx context.Context, productID uuid.UUID, quantity int) error {
	var shortfall error
	err := s.Atomic(ctx, []uuid.UUID{productID}, func(tx *gorm.DB) error {
		err := s.ReleaseTx(tx, productID, quantity)
		var sf *ReleaseShortfallError
		if errors.As(err, &sf) {
			shortfall = err
			return nil
		}
		return err
	})
	if err == nil {
		err = shortfall
	}
	s.metrics.allocation("release", quantity, err)
	return err
}

// ReleaseTx hands reserved units back, latest-expiring reservation first.
// No batch goes below zero reserved; a request larger than what is reserved
// is released as far as possible and returned as *ReleaseShortfallError.
func (s *stockService) ReleaseTx(tx *gorm.DB, productID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: release quantity must be positive, got %d", ErrInvalidQuantity, quantity)
	}
	batches, err := s.repo.ListByProductTx(tx, productID)
	if err != nil {
		return err
	}

	sortFEFO(batches)
	remaining := quantity
	for i := len(batches) - 1; i >= 0 && remaining > 0; i-- {
		b := &batches[i]
		take := min(b.ReservedQuantity, remaining)
		if take <= 0 {
			continue
		}
		b.ReservedQuantity -= take
		if err := s.repo.UpdateQuantitiesTx(tx, b); err != nil {
			return err
		}
		remaining -= take
	}

	if remaining > 0 {
		log.Warn().
			Str("product_id", productID.String()).
			Int("requested", quantity).
			Int("shortfall", remaining).
			Msg("release exceeded reserved stock; clamped")
		return &ReleaseShortfallError{
			ProductID: productID.String(),
			Requested: quantity,
			Released:  quantity - remaining,
		}
	}
	return nil
}

// ── Consume ──────────────────────────────────────────────────────────────────

func (s *stockService) Consume(ctx context.Context, productID uuid.UUID, quantity int) error {
	err := s.Atomic(ctx, []uuid.UUID{productID}, func(tx *gorm.DB) error {
		return s.ConsumeTx(tx, productID, quantity)
	})
	s.metrics.allocation("consume", quantity, err)
	return err
}

// ConsumeTx removes reserved units from inventory for good, FEFO order.
func (s *stockService) ConsumeTx(tx *gorm.DB, productID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: consume quantity must be positive, got %d", ErrInvalidQuantity, quantity)
	}
	batches, err := s.repo.ListByProductTx(tx, productID)
	if err != nil {
		return err
	}

	reserved := 0
	for i := range batches {
		reserved += batches[i].ReservedQuantity
	}
	if reserved < quantity {
		return fmt.Errorf("%w: product %s has %d reserved, %d requested",
			ErrInsufficientReserved, productID, reserved, quantity)
	}

	sortFEFO(batches)
	remaining := quantity
	for i := range batches {
		if remaining == 0 {
			break
		}
		b := &batches[i]
		take := min(b.ReservedQuantity, remaining)
		if take <= 0 {
			continue
		}
		b.ReservedQuantity -= take
		b.Quantity -= take
		if err := s.repo.UpdateQuantitiesTx(tx, b); err != nil {
			return err
		}
		remaining -= take
	}
	return nil
}

// ── Adjust ───────────────────────────────────────────────────────────────────

// Adjust overwrites a batch's physical quantity after a stock count. The
// previous value is only logged; there is no adjustment history table.
func (s *stockService) Adjust(ctx context.Context, batchID uuid.UUID, newQuantity int) error {
	if newQuantity < 0 {
		return fmt.Errorf("%w: quantity must not be negative, got %d", ErrInvalidQuantity, newQuantity)
	}
	batch, err := s.repo.FindByID(ctx, batchID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("stock_batch", batchID)
		}
		return err
	}

	err = s.Atomic(ctx, []uuid.UUID{batch.ProductID}, func(tx *gorm.DB) error {
		b, err := s.repo.FindByIDTx(tx, batchID)
		if err != nil {
			return err
		}
		if newQuantity < b.ReservedQuantity {
			return fmt.Errorf("%w: batch %s has %d reserved, cannot set quantity to %d",
				ErrInvalidState, batchID, b.ReservedQuantity, newQuantity)
		}
		previous := b.Quantity
		b.Quantity = newQuantity
		if err := s.repo.UpdateQuantitiesTx(tx, b); err != nil {
			return err
		}
		log.Info().
			Str("batch_id", batchID.String()).
			Str("product_id", b.ProductID.String()).
			Int("previous", previous).
			Int("quantity", newQuantity).
			Msg("stock batch adjusted")
		return nil
	})
	s.metrics.allocation("adjust", newQuantity, err)
	return err
}

// ── Queries ──────────────────────────────────────────────────────────────────

func (s *stockService) TotalQuantity(ctx context.Context, productID uuid.UUID) (int, error) {
	total, _, err := s.repo.SumByProduct(ctx, productID)
	return total, err
}

func (s *stockService) AvailableQuantity(ctx context.Context, productID uuid.UUID) (int, error) {
	_, available, err := s.repo.SumByProduct(ctx, productID)
	return available, err
}

func (s *stockService) ListBatches(ctx context.Context, productID uuid.UUID) ([]model.StockBatch, error) {
	batches, err := s.repo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	sortFEFO(batches)
	return batches, nil
}

// ExpiringWithin lists non-empty batches expiring between now and now+days.
func (s *stockService) ExpiringWithin(ctx context.Context, days int) ([]model.StockBatch, error) {
	if days < 0 {
		return nil, fmt.Errorf("%w: days must not be negative, got %d", ErrInvalidQuantity, days)
	}
	now := s.now()
	return s.repo.ListExpiring(ctx, now, now.AddDate(0, 0, days))
}

// Expired lists non-empty batches whose expiry date has passed.
func (s *stockService) Expired(ctx context.Context) ([]model.StockBatch, error) {
	return s.repo.ListExpiredBefore(ctx, s.now())
}
