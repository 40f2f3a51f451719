package infra

import (
	"fmt"
	"os"
	"path/filepath"

	"dutyfree/internal/model"

	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"
)

// ReceiptDocument is everything printed on a customer receipt.
type ReceiptDocument struct {
	ShopName     string
	Number       int64
	Sale         *model.Sale
	ProductNames map[uuid.UUID]string
}

// GenerateReceiptPDF renders a thermal-style receipt (74 × 105 mm) into
// storagePath/receipt_{number}.pdf and returns the file path.
func GenerateReceiptPDF(doc ReceiptDocument, storagePath string) (string, error) {
	if doc.Sale == nil {
		return "", fmt.Errorf("pdf: receipt %d has no sale", doc.Number)
	}
	if err := os.MkdirAll(storagePath, 0o755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}
	filePath := filepath.Join(storagePath, fmt.Sprintf("receipt_%d.pdf", doc.Number))
	sale := doc.Sale

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: 74, Ht: 105},
	})
	pdf.SetMargins(4, 4, 4)
	pdf.SetAutoPageBreak(true, 4)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 8

	// Header
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(contentW, 6, doc.ShopName, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(contentW, 4, "Tax-free sales receipt", "", 1, "C", false, 0, "")
	pdf.Ln(1)

	pdf.SetFont("Helvetica", "B", 7)
	pdf.CellFormat(contentW, 4, fmt.Sprintf("Receipt %d  Sale %d", doc.Number, sale.Number), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(contentW, 4, sale.CreatedAt.Format("2006-01-02 15:04 MST"), "", 1, "L", false, 0, "")
	pdf.Ln(1)
	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(1)

	// Lines
	col1 := contentW * 0.52
	col2 := contentW * 0.14
	col3 := contentW * 0.34

	pdf.SetFont("Helvetica", "B", 7)
	pdf.CellFormat(col1, 4, "Item", "B", 0, "L", false, 0, "")
	pdf.CellFormat(col2, 4, "Qty", "B", 0, "C", false, 0, "")
	pdf.CellFormat(col3, 4, "Amount", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 7)
	for _, it := range sale.Items {
		name := doc.ProductNames[it.ProductID]
		if name == "" {
			name = it.ProductID.String()[:8]
		}
		if len(name) > 24 {
			name = name[:23] + "."
		}
		pdf.CellFormat(col1, 4, name, "", 0, "L", false, 0, "")
		pdf.CellFormat(col2, 4, fmt.Sprintf("x%d", it.Quantity), "", 0, "C", false, 0, "")
		pdf.CellFormat(col3, 4, it.ItemTotal.StringFixed(2), "", 1, "R", false, 0, "")
		if !it.ItemDiscount.IsZero() {
			pdf.CellFormat(col1+col2, 3, "  discount", "", 0, "L", false, 0, "")
			pdf.CellFormat(col3, 3, "-"+it.ItemDiscount.StringFixed(2), "", 1, "R", false, 0, "")
		}
	}

	pdf.Ln(1)
	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(1)

	// Totals
	row := func(label, value string) {
		pdf.CellFormat(col1+col2, 4, label, "", 0, "L", false, 0, "")
		pdf.CellFormat(col3, 4, value, "", 1, "R", false, 0, "")
	}
	if !sale.Discount.IsZero() {
		row("Discount", "-"+sale.Discount.StringFixed(2))
	}
	row("Subtotal", sale.Subtotal.StringFixed(2))
	row("Tax", sale.TaxAmount.StringFixed(2))
	pdf.SetFont("Helvetica", "B", 9)
	row("TOTAL", sale.TotalAmount.StringFixed(2))

	pdf.SetFont("Helvetica", "", 7)
	for _, p := range sale.Payments {
		row(fmt.Sprintf("Paid (%s, %s)", p.Method, p.Currency), p.Amount.StringFixed(2))
	}

	pdf.Ln(2)
	pdf.SetFont("Helvetica", "I", 7)
	pdf.CellFormat(contentW, 4, "Thank you for shopping with us", "", 1, "C", false, 0, "")

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}
	return filePath, nil
}
