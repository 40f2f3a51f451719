package handler

import (
	"net/http"

	"dutyfree/internal/service"

	"github.com/gin-gonic/gin"
)

type ReceiptsHandler struct{ svc service.ReceiptService }

func NewReceiptsHandler(svc service.ReceiptService) *ReceiptsHandler {
	return &ReceiptsHandler{svc: svc}
}

// GetBySale returns the receipt record of a sale, including its render
// status and retry count.
func (h *ReceiptsHandler) GetBySale(c *gin.Context) {
	saleID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.GetBySale(c.Request.Context(), saleID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
