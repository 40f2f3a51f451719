package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dutyfree/internal/dto"
	"dutyfree/internal/model"
	"dutyfree/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductCatalog supplies the price, tax and stock-tracking snapshot a sale
// line is built from.
type ProductCatalog interface {
	GetPricing(ctx context.Context, productID uuid.UUID) (model.ProductPricing, error)
}

// CashRegisterSession answers whether a register session accepts sales.
type CashRegisterSession interface {
	IsOpen(ctx context.Context, registerID uuid.UUID) (bool, error)
}

// PaymentLedger records tenders against a sale. Amounts are in the shop's
// base currency.
type PaymentLedger interface {
	RecordPayment(ctx context.Context, saleID uuid.UUID, amount decimal.Decimal, method, currency string) error
	TotalPaid(ctx context.Context, saleID uuid.UUID) (decimal.Decimal, error)
}

// ReceiptGenerator produces the customer receipt of a completed sale.
type ReceiptGenerator interface {
	Generate(ctx context.Context, saleID uuid.UUID) (uuid.UUID, error)
	HasReceipt(ctx context.Context, saleID uuid.UUID) (bool, error)
}

type SaleService interface {
	Create(ctx context.Context, cashierID uuid.UUID, req dto.CreateSaleRequest) (*dto.SaleResponse, error)
	ApplyPayment(ctx context.Context, saleID uuid.UUID, req dto.PaymentRequest) (*dto.SaleResponse, error)
	Complete(ctx context.Context, saleID uuid.UUID) (*dto.SaleResponse, error)
	Cancel(ctx context.Context, saleID uuid.UUID, reason string) (*dto.SaleResponse, error)
	Get(ctx context.Context, saleID uuid.UUID) (*dto.SaleResponse, error)
	List(ctx context.Context, filter dto.SaleFilter) (*dto.SaleListResponse, error)
}

type saleService struct {
	repo         repository.SaleRepository
	stock        StockService
	catalog      ProductCatalog
	registers    CashRegisterSession
	payments     PaymentLedger
	receipts     ReceiptGenerator
	metrics      *Metrics
	baseCurrency string
	now          func() time.Time
}

func NewSaleService(
	repo repository.SaleRepository,
	stock StockService,
	catalog ProductCatalog,
	registers CashRegisterSession,
	payments PaymentLedger,
	receipts ReceiptGenerator,
	metrics *Metrics,
	baseCurrency string,
) SaleService {
	return &saleService{
		repo:         repo,
		stock:        stock,
		catalog:      catalog,
		registers:    registers,
		payments:     payments,
		receipts:     receipts,
		metrics:      metrics,
		baseCurrency: baseCurrency,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// ── Create ────────────────────────────────────────────────────────────────────
//   1. Register session must be open
//   2. Price every line from the catalog snapshot, compute totals
//   3. One atomic scope: reserve tracked lines, take a number, persist PENDING
//   4. Apply initial payments and evaluate auto-completion

func (s *saleService) Create(ctx context.Context, cashierID uuid.UUID, req dto.CreateSaleRequest) (*dto.SaleResponse, error) {
	registerID, err := uuid.Parse(req.RegisterID)
	if err != nil {
		return nil, fmt.Errorf("%w: register_id %q", ErrInvalidInput, req.RegisterID)
	}

	// 1. Register session
	open, err := s.registers.IsOpen(ctx, registerID)
	if err != nil {
		return nil, fmt.Errorf("check register %s: %w", registerID, err)
	}
	if !open {
		return nil, fmt.Errorf("%w: %s", ErrRegisterNotOpen, registerID)
	}

	// 2. Lines and totals, outside any transaction
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: a sale needs at least one item", ErrInvalidQuantity)
	}
	var customerID *uuid.UUID
	if req.CustomerID != nil {
		cid, err := uuid.Parse(*req.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("%w: customer_id %q", ErrInvalidInput, *req.CustomerID)
		}
		customerID = &cid
	}

	saleID := uuid.New()
	items := make([]model.SaleItem, 0, len(req.Items))
	var tracked []uuid.UUID
	for i, line := range req.Items {
		productID, err := uuid.Parse(line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("%w: product_id %q", ErrInvalidInput, line.ProductID)
		}
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: line %d quantity must be positive, got %d", ErrInvalidQuantity, i+1, line.Quantity)
		}
		pricing, err := s.catalog.GetPricing(ctx, productID)
		if err != nil {
			return nil, err
		}
		amounts, err := ComputeLine(pricing.UnitPrice, line.Quantity, line.ItemDiscount, pricing.TaxRate)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		items = append(items, model.SaleItem{
			ID:           uuid.New(),
			SaleID:       saleID,
			Position:     i + 1,
			ProductID:    productID,
			Quantity:     line.Quantity,
			UnitPrice:    pricing.UnitPrice,
			ItemDiscount: amounts.ItemDiscount,
			TaxRate:      pricing.TaxRate,
			TaxAmount:    amounts.TaxAmount,
			LineTotal:    amounts.LineTotal,
			ItemTotal:    amounts.ItemTotal,
			TracksStock:  pricing.TracksStock,
		})
		if pricing.TracksStock {
			tracked = append(tracked, productID)
		}
	}

	totals, err := ComputeTotals(items, req.Discount)
	if err != nil {
		return nil, err
	}
	for _, p := range req.Payments {
		if !p.Amount.IsPositive() {
			return nil, fmt.Errorf("%w: payment amount must be positive", ErrInvalidAmount)
		}
	}

	now := s.now()
	sale := &model.Sale{
		ID:          saleID,
		CashierID:   cashierID,
		CustomerID:  customerID,
		RegisterID:  registerID,
		Status:      model.SaleStatusPending,
		Subtotal:    totals.Subtotal,
		Discount:    totals.Discount,
		TaxAmount:   totals.TaxAmount,
		TotalAmount: totals.TotalAmount,
		Notes:       strings.TrimSpace(req.Notes),
		CreatedAt:   now,
		UpdatedAt:   now,
		Items:       items,
	}

	// 3. Reservations and the sale row commit together or not at all
	err = s.stock.Atomic(ctx, tracked, func(tx *gorm.DB) error {
		for _, it := range items {
			if !it.TracksStock {
				continue
			}
			if err := s.stock.ReserveTx(tx, it.ProductID, it.Quantity); err != nil {
				return fmt.Errorf("reserve line %d: %w", it.Position, err)
			}
		}
		number, err := s.repo.NextNumberTx(tx)
		if err != nil {
			return fmt.Errorf("next sale number: %w", err)
		}
		sale.Number = number
		return s.repo.CreateTx(tx, sale)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.transition(string(model.SaleStatusPending))

	log.Info().
		Str("sale_id", sale.ID.String()).
		Int64("number", sale.Number).
		Str("total", sale.TotalAmount.StringFixed(2)).
		Int("items", len(items)).
		Msg("sale created")

	// 4. Initial payments. The caller has no sale id yet, so a ledger failure
	// cancels the sale and releases its reservations before returning.
	if len(req.Payments) > 0 {
		for i, p := range req.Payments {
			if err := s.payments.RecordPayment(ctx, sale.ID, p.Amount, p.Method, s.currency(p.Currency)); err != nil {
				return nil, s.abandon(ctx, sale, i, err)
			}
		}
		// The sale is paid and persisted; a failed auto-completion leaves it
		// PENDING for an explicit complete.
		if err := s.completeIfPaid(ctx, sale.ID); err != nil {
			log.Warn().Err(err).
				Str("sale_id", sale.ID.String()).
				Int64("number", sale.Number).
				Msg("auto-completion failed; sale stays pending")
		}
	}

	return s.Get(ctx, sale.ID)
}

// abandon cancels a freshly created sale whose initial payment failed.
// recorded is the number of payments the ledger accepted before the failure;
// those stay on the cancelled sale for a manual refund.
func (s *saleService) abandon(ctx context.Context, sale *model.Sale, recorded int, cause error) error {
	ctx = context.WithoutCancel(ctx)
	if _, err := s.Cancel(ctx, sale.ID, "initial payment failed"); err != nil {
		log.Error().Err(err).
			AnErr("cause", cause).
			Str("sale_id", sale.ID.String()).
			Int64("number", sale.Number).
			Msg("could not cancel sale after payment failure")
		return fmt.Errorf("%w: sale %d (%s) is still pending: %w", ErrPaymentFailed, sale.Number, sale.ID, cause)
	}
	ev := log.Warn().Err(cause).
		Str("sale_id", sale.ID.String()).
		Int64("number", sale.Number)
	if recorded > 0 {
		ev = ev.Int("payments_to_refund", recorded)
	}
	ev.Msg("initial payment failed; sale cancelled and stock released")
	return fmt.Errorf("%w: sale %d cancelled and its stock released: %w", ErrPaymentFailed, sale.Number, cause)
}

// ── ApplyPayment ──────────────────────────────────────────────────────────────

func (s *saleService) ApplyPayment(ctx context.Context, saleID uuid.UUID, req dto.PaymentRequest) (*dto.SaleResponse, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: payment amount must be positive", ErrInvalidAmount)
	}
	sale, err := s.load(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if sale.Status != model.SaleStatusPending {
		return nil, fmt.Errorf("%w: sale %d is %s", ErrInvalidState, sale.Number, sale.Status)
	}

	if err := s.payments.RecordPayment(ctx, saleID, req.Amount, req.Method, s.currency(req.Currency)); err != nil {
		return nil, fmt.Errorf("%w: sale %d: %w", ErrPaymentFailed, sale.Number, err)
	}
	if err := s.completeIfPaid(ctx, saleID); err != nil {
		return nil, err
	}
	return s.Get(ctx, saleID)
}

// completeIfPaid finalizes the sale once payments cover the total. Losing a
// race to another finalizer is not an error here.
func (s *saleService) completeIfPaid(ctx context.Context, saleID uuid.UUID) error {
	sale, err := s.load(ctx, saleID)
	if err != nil {
		return err
	}
	paid, err := s.payments.TotalPaid(ctx, saleID)
	if err != nil {
		return fmt.Errorf("total paid for sale %d: %w", sale.Number, err)
	}
	if paid.LessThan(sale.TotalAmount) {
		return nil
	}
	if err := s.finalize(ctx, sale); err != nil && !errors.Is(err, ErrInvalidState) {
		return err
	}
	return nil
}

// ── Complete ──────────────────────────────────────────────────────────────────

func (s *saleService) Complete(ctx context.Context, saleID uuid.UUID) (*dto.SaleResponse, error) {
	sale, err := s.load(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if sale.Status != model.SaleStatusPending {
		return nil, fmt.Errorf("%w: sale %d is %s", ErrInvalidState, sale.Number, sale.Status)
	}
	paid, err := s.payments.TotalPaid(ctx, saleID)
	if err != nil {
		return nil, fmt.Errorf("total paid for sale %d: %w", sale.Number, err)
	}
	if paid.LessThan(sale.TotalAmount) {
		return nil, fmt.Errorf("%w: sale %d paid %s of %s", ErrPaymentIncomplete,
			sale.Number, paid.StringFixed(2), sale.TotalAmount.StringFixed(2))
	}
	if err := s.finalize(ctx, sale); err != nil {
		return nil, err
	}
	return s.Get(ctx, saleID)
}

// finalize moves the sale to COMPLETED and consumes its reservations in one
// scope, then asks for a receipt. The status swap goes first so a concurrent
// finalizer fails before touching stock.
func (s *saleService) finalize(ctx context.Context, sale *model.Sale) error {
	err := s.stock.Atomic(ctx, trackedProducts(sale.Items), func(tx *gorm.DB) error {
		ok, err := s.repo.TransitionTx(tx, sale.ID, model.SaleStatusPending, model.SaleStatusCompleted,
			map[string]interface{}{"completed_at": s.now()})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: sale %d is no longer pending", ErrInvalidState, sale.Number)
		}
		for _, it := range sale.Items {
			if !it.TracksStock {
				continue
			}
			if err := s.stock.ConsumeTx(tx, it.ProductID, it.Quantity); err != nil {
				return fmt.Errorf("consume line %d: %w", it.Position, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.metrics.transition(string(model.SaleStatusCompleted))
	log.Info().Str("sale_id", sale.ID.String()).Int64("number", sale.Number).Msg("sale completed")

	s.requestReceipt(ctx, sale)
	return nil
}

// requestReceipt never fails the sale: it is financially final already.
func (s *saleService) requestReceipt(ctx context.Context, sale *model.Sale) {
	if s.receipts == nil {
		return
	}
	has, err := s.receipts.HasReceipt(ctx, sale.ID)
	if err != nil {
		log.Warn().Err(err).Str("sale_id", sale.ID.String()).Msg("receipt lookup failed")
	}
	if has {
		return
	}
	if _, err := s.receipts.Generate(ctx, sale.ID); err != nil {
		s.metrics.receiptFailed()
		log.Error().Err(err).
			Str("sale_id", sale.ID.String()).
			Int64("number", sale.Number).
			Msg("receipt generation failed; sale stays completed")
	}
}

// ── Cancel ────────────────────────────────────────────────────────────────────

func (s *saleService) Cancel(ctx context.Context, saleID uuid.UUID, reason string) (*dto.SaleResponse, error) {
	sale, err := s.load(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if sale.Status != model.SaleStatusPending {
		return nil, fmt.Errorf("%w: sale %d is %s", ErrInvalidState, sale.Number, sale.Status)
	}

	notes := appendNote(sale.Notes, cancellationNote(reason))
	err = s.stock.Atomic(ctx, trackedProducts(sale.Items), func(tx *gorm.DB) error {
		ok, err := s.repo.TransitionTx(tx, sale.ID, model.SaleStatusPending, model.SaleStatusCancelled,
			map[string]interface{}{"cancelled_at": s.now(), "notes": notes})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: sale %d is no longer pending", ErrInvalidState, sale.Number)
		}
		for _, it := range sale.Items {
			if !it.TracksStock {
				continue
			}
			err := s.stock.ReleaseTx(tx, it.ProductID, it.Quantity)
			var shortfall *ReleaseShortfallError
			if errors.As(err, &shortfall) {
				log.Warn().
					Str("sale_id", sale.ID.String()).
					Int("line", it.Position).
					Int("released", shortfall.Released).
					Int("requested", shortfall.Requested).
					Msg("cancel released less than the line reserved")
				continue
			}
			if err != nil {
				return fmt.Errorf("release line %d: %w", it.Position, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.transition(string(model.SaleStatusCancelled))
	log.Info().Str("sale_id", sale.ID.String()).Int64("number", sale.Number).Str("reason", reason).Msg("sale cancelled")

	return s.Get(ctx, saleID)
}

func cancellationNote(reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "Cancelled"
	}
	return "Cancelled: " + reason
}

func appendNote(notes, line string) string {
	if strings.TrimSpace(notes) == "" {
		return line
	}
	return notes + "\n" + line
}

// ── Reads ─────────────────────────────────────────────────────────────────────

func (s *saleService) Get(ctx context.Context, saleID uuid.UUID) (*dto.SaleResponse, error) {
	sale, err := s.load(ctx, saleID)
	if err != nil {
		return nil, err
	}
	paid, err := s.payments.TotalPaid(ctx, saleID)
	if err != nil {
		return nil, fmt.Errorf("total paid for sale %d: %w", sale.Number, err)
	}
	resp := saleToResponse(sale, paid)
	return &resp, nil
}

func (s *saleService) List(ctx context.Context, filter dto.SaleFilter) (*dto.SaleListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 50
	}
	sales, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	data := make([]dto.SaleResponse, 0, len(sales))
	for i := range sales {
		paid := decimal.Zero
		for _, p := range sales[i].Payments {
			paid = paid.Add(p.Amount)
		}
		data = append(data, saleToResponse(&sales[i], paid))
	}
	return &dto.SaleListResponse{Data: data, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

func (s *saleService) load(ctx context.Context, saleID uuid.UUID) (*model.Sale, error) {
	sale, err := s.repo.FindByID(ctx, saleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("sale", saleID)
		}
		return nil, err
	}
	return sale, nil
}

func (s *saleService) currency(c string) string {
	if c == "" {
		return s.baseCurrency
	}
	return strings.ToUpper(c)
}

func trackedProducts(items []model.SaleItem) []uuid.UUID {
	var ids []uuid.UUID
	for _, it := range items {
		if it.TracksStock {
			ids = append(ids, it.ProductID)
		}
	}
	return ids
}

// ── Mapping ───────────────────────────────────────────────────────────────────

const timeLayout = time.RFC3339

func saleToResponse(s *model.Sale, paid decimal.Decimal) dto.SaleResponse {
	items := make([]dto.SaleItemResponse, 0, len(s.Items))
	for _, it := range s.Items {
		items = append(items, dto.SaleItemResponse{
			Position:     it.Position,
			ProductID:    it.ProductID.String(),
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			ItemDiscount: it.ItemDiscount,
			TaxRate:      it.TaxRate,
			TaxAmount:    it.TaxAmount,
			LineTotal:    it.LineTotal,
			ItemTotal:    it.ItemTotal,
			TracksStock:  it.TracksStock,
		})
	}
	payments := make([]dto.PaymentResponse, 0, len(s.Payments))
	for _, p := range s.Payments {
		payments = append(payments, dto.PaymentResponse{
			Method:    p.Method,
			Amount:    p.Amount,
			Currency:  p.Currency,
			CreatedAt: p.CreatedAt.Format(timeLayout),
		})
	}

	change := paid.Sub(s.TotalAmount)
	if change.IsNegative() {
		change = decimal.Zero
	}

	resp := dto.SaleResponse{
		ID:          s.ID.String(),
		Number:      s.Number,
		CashierID:   s.CashierID.String(),
		RegisterID:  s.RegisterID.String(),
		Status:      string(s.Status),
		Subtotal:    s.Subtotal,
		Discount:    s.Discount,
		TaxAmount:   s.TaxAmount,
		TotalAmount: s.TotalAmount,
		AmountPaid:  paid,
		Change:      change,
		Notes:       s.Notes,
		Items:       items,
		Payments:    payments,
		CreatedAt:   s.CreatedAt.Format(timeLayout),
		CompletedAt: formatTimePtr(s.CompletedAt),
		CancelledAt: formatTimePtr(s.CancelledAt),
	}
	if s.CustomerID != nil {
		cid := s.CustomerID.String()
		resp.CustomerID = &cid
	}
	return resp
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.Format(timeLayout)
	return &v
}
