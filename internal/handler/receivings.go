package handler

import (
	"net/http"

	"dutyfree/internal/dto"
	"dutyfree/internal/middleware"
	"dutyfree/internal/service"

	"github.com/gin-gonic/gin"
)

type ReceivingsHandler struct{ svc service.ReceivingService }

func NewReceivingsHandler(svc service.ReceivingService) *ReceivingsHandler {
	return &ReceivingsHandler{svc: svc}
}

// Receive godoc
// @Summary      Receive a supplier delivery
// @Description  Records the delivery and creates one stock batch per line in a single transaction.
// @Tags         receivings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.ReceiveGoodsRequest true "Delivery"
// @Success      201  {object} dto.ReceivingResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/receivings [post]
func (h *ReceivingsHandler) Receive(c *gin.Context) {
	var req dto.ReceiveGoodsRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Receive(c.Request.Context(), middleware.CashierID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}
