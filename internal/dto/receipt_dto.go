package dto

type ReceiptResponse struct {
	ID         string  `json:"id"`
	SaleID     string  `json:"sale_id"`
	Number     int64   `json:"number"`
	Status     string  `json:"status"` // pending | rendered | failed
	PDFPath    *string `json:"pdf_path,omitempty"`
	RetryCount int     `json:"retry_count"`
	LastError  *string `json:"last_error,omitempty"`
	CreatedAt  string  `json:"created_at"`
}
