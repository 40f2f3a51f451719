package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"dutyfree/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateReceiptPDF(t *testing.T) {
	dir := t.TempDir()
	productID := uuid.New()
	sale := &model.Sale{
		Number:      42,
		Subtotal:    decimal.RequireFromString("5000.00"),
		TaxAmount:   decimal.RequireFromString("900.00"),
		TotalAmount: decimal.RequireFromString("5900.00"),
		CreatedAt:   time.Now().UTC(),
		Items: []model.SaleItem{{
			ProductID:    productID,
			Quantity:     5,
			ItemDiscount: decimal.RequireFromString("10.00"),
			ItemTotal:    decimal.RequireFromString("5900.00"),
		}},
		Payments: []model.SalePayment{{Method: "card", Currency: "EUR", Amount: decimal.RequireFromString("5900.00")}},
	}

	path, err := GenerateReceiptPDF(ReceiptDocument{
		ShopName:     "Terminal 2 Duty Free",
		Number:       1234,
		Sale:         sale,
		ProductNames: map[uuid.UUID]string{productID: "Single Malt 18 Years Old Limited Edition"},
	}, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "receipt_1234.pdf"), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestGenerateReceiptPDF_RequiresSale(t *testing.T) {
	_, err := GenerateReceiptPDF(ReceiptDocument{Number: 1}, t.TempDir())
	assert.Error(t, err)
}
