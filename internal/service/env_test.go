package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"dutyfree/internal/dto"
	"dutyfree/internal/infra"
	"dutyfree/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ── Fixtures ──────────────────────────────────────────────────────────────────

// newTestDB opens a private in-memory SQLite database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := infra.NewDatabase(infra.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// stubReceipts is an in-memory ReceiptGenerator.
type stubReceipts struct {
	mu    sync.Mutex
	calls map[uuid.UUID]int
	err   error
}

func newStubReceipts() *stubReceipts {
	return &stubReceipts{calls: make(map[uuid.UUID]int)}
}

func (r *stubReceipts) Generate(_ context.Context, saleID uuid.UUID) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return uuid.Nil, r.err
	}
	r.calls[saleID]++
	return uuid.New(), nil
}

func (r *stubReceipts) HasReceipt(_ context.Context, saleID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[saleID] > 0, nil
}

func (r *stubReceipts) count(saleID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[saleID]
}

var _ ReceiptGenerator = (*stubReceipts)(nil)

type testEnv struct {
	db        *gorm.DB
	products  ProductService
	stock     StockService
	registers RegisterService
	payments  repository.PaymentRepository
	receipts  *stubReceipts
	sales     SaleService
	cashier   uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	env := &testEnv{
		db:       db,
		products: NewProductService(repository.NewProductRepository(db)),
		stock:    NewStockService(repository.NewStockBatchRepository(db), nil),
		payments: repository.NewPaymentRepository(db),
		receipts: newStubReceipts(),
		cashier:  uuid.New(),
	}
	env.registers = NewRegisterService(repository.NewRegisterRepository(db), env.payments)
	env.sales = NewSaleService(
		repository.NewSaleRepository(db), env.stock, env.products, env.registers,
		env.payments, env.receipts, nil, "EUR",
	)
	return env
}

func (e *testEnv) product(t *testing.T, price, taxRate string, tracksStock bool) uuid.UUID {
	t.Helper()
	resp, err := e.products.Create(context.Background(), dto.CreateProductRequest{
		Code:        "P-" + uuid.NewString()[:8],
		Name:        "Product " + price,
		UnitPrice:   decimal.RequireFromString(price),
		TaxRate:     decimal.RequireFromString(taxRate),
		TracksStock: &tracksStock,
	})
	require.NoError(t, err)
	return uuid.MustParse(resp.ID)
}

func (e *testEnv) batch(t *testing.T, productID uuid.UUID, qty int, expiry *time.Time) uuid.UUID {
	t.Helper()
	id, err := e.stock.AddBatch(context.Background(), AddBatchParams{
		ProductID:  productID,
		Quantity:   qty,
		ExpiryDate: expiry,
	})
	require.NoError(t, err)
	return id
}

func (e *testEnv) openRegister(t *testing.T) uuid.UUID {
	t.Helper()
	resp, err := e.registers.Open(context.Background(), e.cashier, dto.OpenRegisterRequest{
		RegisterNumber: int(uuid.New().ID()%100000) + 1,
		OpeningFloat:   decimal.NewFromInt(100),
	})
	require.NoError(t, err)
	return uuid.MustParse(resp.ID)
}

// levels returns the product's (available, reserved) across all batches.
func (e *testEnv) levels(t *testing.T, productID uuid.UUID) (int, int) {
	t.Helper()
	batches, err := e.stock.ListBatches(context.Background(), productID)
	require.NoError(t, err)
	available, reserved := 0, 0
	for i := range batches {
		available += batches[i].AvailableQuantity()
		reserved += batches[i].ReservedQuantity
	}
	return available, reserved
}

func date(s string) *time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &d
}

func saleRequest(registerID uuid.UUID, lines ...dto.SaleItemRequest) dto.CreateSaleRequest {
	return dto.CreateSaleRequest{RegisterID: registerID.String(), Items: lines}
}

func line(productID uuid.UUID, qty int) dto.SaleItemRequest {
	return dto.SaleItemRequest{ProductID: productID.String(), Quantity: qty}
}
