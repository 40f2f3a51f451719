package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"dutyfree/internal/dto"
	"dutyfree/internal/model"
	"dutyfree/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cash(amount string) dto.PaymentRequest {
	return dto.PaymentRequest{Method: "cash", Amount: decimal.RequireFromString(amount)}
}

// ── Create ────────────────────────────────────────────────────────────────────

func TestSale_CreatePricesAndReserves(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reg := env.openRegister(t)
	p := env.product(t, "1000.00", "18", true)
	env.batch(t, p, 10, nil)

	sale, err := env.sales.Create(ctx, env.cashier, saleRequest(reg, line(p, 5)))
	require.NoError(t, err)

	assert.Equal(t, string(model.SaleStatusPending), sale.Status)
	assert.Equal(t, "5000.00", sale.Subtotal.StringFixed(2))
	assert.Equal(t, "900.00", sale.TaxAmount.StringFixed(2))
	assert.Equal(t, "5900.00", sale.TotalAmount.StringFixed(2))
	require.Len(t, sale.Items, 1)
	assert.Equal(t, "5000.00", sale.Items[0].LineTotal.StringFixed(2))
	assert.Equal(t, "900.00", sale.Items[0].TaxAmount.StringFixed(2))
	assert.Equal(t, "5900.00", sale.Items[0].ItemTotal.StringFixed(2))
	assert.Equal(t, env.cashier.String(), sale.CashierID)
	assert.Positive(t, sale.Number)

	available, reserved := env.levels(t, p)
	assert.Equal(t, 5, available)
	assert.Equal(t, 5, reserved)
}

func TestSale_CreateNumbersAreSequential(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reg := env.openRegister(t)
	p := env.product(t, "5.00", "0", false)

	first, err := env.sales.Create(ctx, env.cashier, saleRequest(reg, line(p, 1)))
	require.NoError(t, err)
	second, err := env.sales.Create(ctx, env.cashier, saleRequest(reg, line(p, 1)))
	require.NoError(t, err)
	assert.Equal(t, first.Number+1, second.Number)
}

func TestSale_CreateRequiresOpenRegister(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.product(t, "10.00", "0", true)
	env.batch(t, p, 10, nil)

	_, err := env.sales.Create(ctx, env.cashier, saleRequest(uuid.New(), line(p, 1)))
	assert.ErrorIs(t, err, ErrRegisterNotOpen)

	reg := env.openRegister(t)
	_, err = env.registers.Close(ctx, reg, dto.CloseRegisterRequest{DeclaredCash: decimal.NewFromInt(100)})
	require.NoError(t, err)
	_, err = env.sales.Create(ctx, env.cashier, saleRequest(reg, line(p, 1)))
	assert.ErrorIs(t, err, ErrRegisterNotOpen)

	_, reserved := env.levels(t, p)
	assert.Zero(t, reserved)
}

func TestSale_CreateRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reg := env.openRegister(t)
	p := env.product(t, "10.00", "0", true)
	env.batch(t, p, 10, nil)

	_, err := env.sales.Create(ctx, env.cashier, saleRequest(reg))
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = env.sales.Create(ctx, env.cashier, saleRequest(reg, line(p, 0)))
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = env.sales.Create(ctx, env.cashier, dto.CreateSaleRequest{RegisterID: "nope", Items: []dto.SaleItemRequest{line(p, 1)}})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.sales.Create(ctx, env.cashier, saleRequest(reg, line(uuid.New(), 1)))
	assert.ErrorIs(t, err, ErrNotFound)

	req := saleRequest(reg, line(p, 1))
	req.Payments = []dto.PaymentRequest{cash("0")}
	_, err = env.sales.Create(ctx, env.cashier, req)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, reserved := env.levels(t, p)
	assert.Zero(t, reserved, "rejected sales reserve nothing")
}

func TestSale_CreateIsAtomicAcrossLines(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reg := env.openRegister(t)
	plenty := env.product(t, "10.00", "0", true)
	scarce := env.product(t, "10.00", "0", true)
	env.batch(t, plenty, 10, nil)
	env.batch(t, scarce, 1, nil)

	_, err := env.sales.Create(ctx, env.cashier, saleRequest(reg, line(plenty, 3), line(scarce, 2)))
	assert.ErrorIs(t, err, ErrInsufficientStock)

	_, reserved := env.levels(t, plenty)
	assert.Zero(t, reserved, "the first line's reservation must roll back")

	list, err := env.sales.List(ctx, dto.SaleFilter{Status: "all"})
	require.NoError(t, err)
	assert.Zero(t, list.Total)
}

func TestSale_UntrackedLinesSkipStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reg := env.openRegister(t)
	giftCard := env.product(t, "25.00", "0", false)

	req := saleRequest(reg, line(giftCard, 2))
	req.Payments = []dto.PaymentRequest{cash("50.00")}
	sale, err := env.sales.Create(ctx, env.cashier, req)
	require.NoError(t, err)
	assert.Equal(t, string(model.SaleStatusCompleted), sale.Status)
	assert.False(t, sale.Items[0].TracksStock)
}

func TestSale_CreateRoundsSubCentDiscounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reg := env.openRegister(t)
	p := env.product(t, "10.00", "0", true)
	env.batch(t, p, 5, nil)

	req := saleRequest(reg, dto.SaleItemRequest{ProductID: p.String(), Quantity: 1, ItemDiscount: decimal.RequireFromString("0.005")})
	req.Discount = decimal.RequireFromString("0.005")
	sale, err := env.sales.Create(ctx, env.cashier, req)
	require.NoError(t, err)

	it := sale.Items[0]
	assert.Equal(t, "0.01", it.ItemDiscount.StringFixed(2))
	assert.True(t, it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))).Sub(it.ItemDiscount).Equal(it.LineTotal))
	assert.Equal(t, "0.01", sale.Discount.StringFixed(2))
	assert.True(t, it.LineTotal.Sub(sale.Discount).Equal(sale.Subtotal))
	assert.Equal(t, "9.98", sale.Subtotal.StringFixed(2))
}

// ── Payments and completion ───────────────────────────────────────────────────

func TestSale_FullInitialPaymentCompletes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reg := env.openRegister(t)
	p := env.product(t, "40.00", "0", true)
	env.batch(t, p, 10, nil)

	req := saleRequest(reg, line(p, 2))
	req.Payments = []dto.PaymentRequest{cash("100.00")}
	sale, err := env.sales.Create(ctx, env.cashier, req)
	require.NoError(t, err)

	assert.Equal(t, string(model.SaleStatusCompleted), sale.Status)
	assert.NotNil(t, sale.CompletedAt)
	assert.Equal(t, "100.00", sale.AmountPaid.StringFixed(2))
	assert.Equal(t, "20.00", sale.Change.StringFixed(2))
	assert.Equal(t, "EUR", sale.Payments[0].Currency)

	total, err := env.stock.TotalQuantity(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 8, total)
	_, reserved := env.levels(t, p)
	assert.Zero(t, reserved)
	assert.Equal(t, 1, env.receipts.count(uuid.MustParse(sale.ID)))
}

func TestSale_PartialPaymentsThenAutoComplete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reg := env.openRegister(t)
	p := env.product(t, "30.00", "0", true)
	env.batch(t, p, 5, nil)

	sale, err := env.sales.Create(ctx, env.cashier, saleRequest(reg, line(p, 1)))
	require.NoError(t, err)
	id := uuid.MustParse(sale.ID)

	sale, err = env.sales.ApplyPayment(ctx, id, dto.PaymentRequest{Method: "card", Amount: dec("10.00"), Currency: "USD"})
	require.NoError(t, err)
	assert.Equal(t, string(model.SaleStatusPending), sale.Status)

	_, err = env.sales.Complete(ctx, id)
	assert.ErrorIs(t, err, ErrPaymentIncomplete)

	sale, err = env.sales.ApplyPayment(ctx, id, cash("20.00"))
	require.NoError(t, err)
	assert.Equal(t, string(model.SaleStatusCompleted), sale.Status)
	assert.Len(t, sale.Payments, 2)
	assert.Equal(t, "USD", sale.Payments[0].Currency)

	_, err = env.sales.ApplyPayment(ctx, id, cash("1.00"))
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestSale_ApplyPaymentRejectsNonPositive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reg := env.openRegister(t)
	p := env.product(t, "30.00", "0", false)
	sale, err := env.sales.Create(ctx, env.cashier, saleRequest(reg, line(p, 1)))
	require.NoError(t, err)

	_, err = env.sales.ApplyPayment(ctx, uuid.MustParse(sale.ID), cash("-5"))
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = env.sales.ApplyPayment(ctx, uuid.New(), cash("5"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSale_CompleteTwiceConsumesOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reg := env.openRegister(t)
	p := env.product(t, "10.00", "0", true)
	env.batch(t, p, 10, nil)

	sale, err := env.sales.Create(ctx, env.cashier, saleRequest(reg, line(p, 4)))
	require.NoError(t, err)
	id := uuid.MustParse(sale.ID)
	// record the tender directly so the sale stays PENDING
	require.NoError(t, env.payments.RecordPayment(ctx, id, dec("40.00"), "cash", "EUR"))

	_, err = env.sales.Complete(ctx, id)
	require.NoError(t, err)
	_, err = env.sales.Complete(ctx, id)
	assert.ErrorIs(t, err, ErrInvalidState)

	total, err := env.stock.TotalQuantity(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 6, total)
}

func TestSale_ConcurrentCompleteConsumesOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reg := env.openRegister(t)
	p := env.product(t, "10.00", "0", true)
	env.batch(t, p, 10, nil)

	sale, err := env.sales.Create(ctx, env.cashier, saleRequest(reg, line(p, 4)))
	require.NoError(t, err)
	id := uuid.MustParse(sale.ID)
	require.NoError(t, env.payments.RecordPayment(ctx, id, dec("40.00"), "cash", "EUR"))

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.sales.Complete(ctx, id)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrInvalidState)
		}
	}
	assert.Equal(t, 1, succeeded)

	total, err := env.stock.TotalQuantity(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 6, total)
	assert.Equal(t, 1, env.receipts.count(id))
}

func TestSale_ReceiptFailureKeepsSaleCompleted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.receipts.err = errors.New("printer on fire")
	reg := env.openRegister(t)
	p := env.product(t, "10.00", "0", true)
	env.batch(t, p, 10, nil)

	req := saleRequest(reg, line(p, 1))
	req.Payments = []dto.PaymentRequest{cash("10.00")}
	sale, err := env.sales.Create(ctx, env.cashier, req)
	require.NoError(t, err)
	assert.Equal(t, string(model.SaleStatusCompleted), sale.Status)
}

// ── Cancel ────────────────────────────────────────────────────────────────────

func TestSale_CancelRestoresStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reg := env.openRegister(t)
	p := env.product(t, "10.00", "0", true)
	env.batch(t, p, 20, date("2030-01-01"))
	env.batch(t, p, 3, date("2029-01-01"))
	require.NoError(t, env.stock.Reserve(ctx, p, 2)) // unrelated reservation
	beforeAvailable, beforeReserved := env.levels(t, p)

	sale, err := env.sales.Create(ctx, env.cashier, saleRequest(reg, line(p, 5)))
	require.NoError(t, err)

	sale, err = env.sales.Cancel(ctx, uuid.MustParse(sale.ID), "customer changed mind")
	require.NoError(t, err)
	assert.Equal(t, string(model.SaleStatusCancelled), sale.Status)
	assert.NotNil(t, sale.CancelledAt)

	available, reserved := env.levels(t, p)
	assert.Equal(t, beforeAvailable, available)
	assert.Equal(t, beforeReserved, reserved)
}

func TestSale_CancelAppendsReasonAndIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reg := env.openRegister(t)
	p := env.product(t, "10.00", "0", false)

	req := saleRequest(reg, line(p, 1))
	req.Notes = "gate B12"
	sale, err := env.sales.Create(ctx, env.cashier, req)
	require.NoError(t, err)
	id := uuid.MustParse(sale.ID)

	sale, err = env.sales.Cancel(ctx, id, "flight boarding")
	require.NoError(t, err)
	assert.Equal(t, "gate B12\nCancelled: flight boarding", sale.Notes)

	_, err = env.sales.Cancel(ctx, id, "again")
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = env.sales.Complete(ctx, id)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestSale_CancelCompletedFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reg := env.openRegister(t)
	p := env.product(t, "10.00", "0", true)
	env.batch(t, p, 10, nil)

	req := saleRequest(reg, line(p, 1))
	req.Payments = []dto.PaymentRequest{cash("10.00")}
	sale, err := env.sales.Create(ctx, env.cashier, req)
	require.NoError(t, err)

	_, err = env.sales.Cancel(ctx, uuid.MustParse(sale.ID), "too late")
	assert.ErrorIs(t, err, ErrInvalidState)

	total, err := env.stock.TotalQuantity(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 9, total)
}

func TestCancellationNote(t *testing.T) {
	assert.Equal(t, "Cancelled", cancellationNote("  "))
	assert.Equal(t, "Cancelled: damaged", cancellationNote("damaged"))
	assert.Equal(t, "x", appendNote("", "x"))
	assert.Equal(t, "a\nx", appendNote("a", "x"))
}

// ── Concurrency and listing ───────────────────────────────────────────────────

func TestSale_ConcurrentCreatesNeverOversell(t *testing.T) {
	env := newTestEnv(t)
	reg := env.openRegister(t)
	p := env.product(t, "10.00", "0", true)
	env.batch(t, p, 10, nil)

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	created, short := 0, 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.sales.Create(context.Background(), env.cashier, saleRequest(reg, line(p, 2)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, ErrInsufficientStock):
				short++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, created)
	assert.Equal(t, 3, short)
	available, reserved := env.levels(t, p)
	assert.Equal(t, 0, available)
	assert.Equal(t, 10, reserved)
}

func TestSale_ListFiltersByStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reg := env.openRegister(t)
	p := env.product(t, "10.00", "0", false)

	pending, err := env.sales.Create(ctx, env.cashier, saleRequest(reg, line(p, 1)))
	require.NoError(t, err)
	req := saleRequest(reg, line(p, 1))
	req.Payments = []dto.PaymentRequest{cash("10.00")}
	_, err = env.sales.Create(ctx, env.cashier, req)
	require.NoError(t, err)

	list, err := env.sales.List(ctx, dto.SaleFilter{Status: string(model.SaleStatusPending), Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, int64(1), list.Total)
	assert.Equal(t, pending.ID, list.Data[0].ID)

	list, err = env.sales.List(ctx, dto.SaleFilter{Status: "all", RegisterID: reg.String()})
	require.NoError(t, err)
	assert.Equal(t, int64(2), list.Total)
	assert.Equal(t, 50, list.Limit)
}

// ── Payment ledger failures ───────────────────────────────────────────────────

// flakyLedger fails the failOn-th RecordPayment call and delegates the rest.
type flakyLedger struct {
	PaymentLedger
	mu     sync.Mutex
	calls  int
	failOn int
}

func (l *flakyLedger) RecordPayment(ctx context.Context, saleID uuid.UUID, amount decimal.Decimal, method, currency string) error {
	l.mu.Lock()
	l.calls++
	fail := l.calls == l.failOn
	l.mu.Unlock()
	if fail {
		return errors.New("ledger down")
	}
	return l.PaymentLedger.RecordPayment(ctx, saleID, amount, method, currency)
}

func (e *testEnv) salesWithLedger(ledger PaymentLedger) SaleService {
	return NewSaleService(
		repository.NewSaleRepository(e.db), e.stock, e.products, e.registers,
		ledger, e.receipts, nil, "EUR",
	)
}

func TestSale_InitialPaymentFailureCancelsAndReleases(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reg := env.openRegister(t)
	p := env.product(t, "10.00", "0", true)
	env.batch(t, p, 5, nil)
	sales := env.salesWithLedger(&flakyLedger{PaymentLedger: env.payments, failOn: 2})

	req := saleRequest(reg, line(p, 5))
	req.Payments = []dto.PaymentRequest{cash("20.00"), cash("30.00")}
	resp, err := sales.Create(ctx, env.cashier, req)
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrPaymentFailed)
	assert.Contains(t, err.Error(), "ledger down")

	available, reserved := env.levels(t, p)
	assert.Equal(t, 5, available, "no stock stays held by the failed sale")
	assert.Zero(t, reserved)

	pending, err := env.sales.List(ctx, dto.SaleFilter{Status: string(model.SaleStatusPending), Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, pending.Total)

	cancelled, err := env.sales.List(ctx, dto.SaleFilter{Status: string(model.SaleStatusCancelled), Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, int64(1), cancelled.Total)
	assert.Equal(t, "Cancelled: initial payment failed", cancelled.Data[0].Notes)
}

func TestSale_ApplyPaymentFailureKeepsSalePending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reg := env.openRegister(t)
	p := env.product(t, "10.00", "0", true)
	env.batch(t, p, 5, nil)
	sales := env.salesWithLedger(&flakyLedger{PaymentLedger: env.payments, failOn: 1})

	sale, err := sales.Create(ctx, env.cashier, saleRequest(reg, line(p, 2)))
	require.NoError(t, err)

	_, err = sales.ApplyPayment(ctx, uuid.MustParse(sale.ID), cash("20.00"))
	assert.ErrorIs(t, err, ErrPaymentFailed)

	got, err := sales.Get(ctx, uuid.MustParse(sale.ID))
	require.NoError(t, err)
	assert.Equal(t, string(model.SaleStatusPending), got.Status)
	_, reserved := env.levels(t, p)
	assert.Equal(t, 2, reserved)

	// the ledger recovered; the same sale can now be paid
	got, err = sales.ApplyPayment(ctx, uuid.MustParse(sale.ID), cash("20.00"))
	require.NoError(t, err)
	assert.Equal(t, string(model.SaleStatusCompleted), got.Status)
}

func TestSale_ConcurrentUntrackedSalesGetDistinctNumbers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reg := env.openRegister(t)
	giftCard := env.product(t, "25.00", "0", false)

	const workers = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = make(map[int64]bool)
		errs    []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sale, err := env.sales.Create(ctx, env.cashier, saleRequest(reg, line(giftCard, 1)))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			numbers[sale.Number] = true
		}()
	}
	wg.Wait()

	assert.Empty(t, errs)
	assert.Len(t, numbers, workers)
	for n := int64(1); n <= workers; n++ {
		assert.True(t, numbers[n], "number %d issued", n)
	}
}
