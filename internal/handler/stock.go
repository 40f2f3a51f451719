package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"dutyfree/internal/apierror"
	"dutyfree/internal/dto"
	"dutyfree/internal/model"
	"dutyfree/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type StockHandler struct{ svc service.StockService }

func NewStockHandler(svc service.StockService) *StockHandler { return &StockHandler{svc: svc} }

// AddBatch godoc
// @Summary      Add a stock batch
// @Description  Registers a physical lot of a product. Reserved quantity starts at zero.
// @Tags         stock
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.AddBatchRequest true "Batch"
// @Success      201  {object} dto.StockBatchResponse
// @Failure      422  {object} apierror.APIError
// @Router       /v1/stock/batches [post]
func (h *StockHandler) AddBatch(c *gin.Context) {
	var req dto.AddBatchRequest
	if !bindAndValidate(c, &req) {
		return
	}
	productID, _ := uuid.Parse(req.ProductID)
	params := service.AddBatchParams{
		ProductID:  productID,
		Quantity:   req.Quantity,
		Location:   req.Location,
		LotNumber:  req.LotNumber,
		ExpiryDate: utcPtr(req.ExpiryDate),
	}
	if req.ProvenanceID != nil {
		pid, _ := uuid.Parse(*req.ProvenanceID)
		params.ProvenanceID = &pid
	}
	if req.ReceivedAt != nil {
		params.ReceivedAt = req.ReceivedAt.UTC()
	}

	id, err := h.svc.AddBatch(c.Request.Context(), params)
	if err != nil {
		respondError(c, err)
		return
	}
	batches, err := h.svc.ListBatches(c.Request.Context(), productID)
	if err != nil {
		respondError(c, err)
		return
	}
	for i := range batches {
		if batches[i].ID == id {
			c.JSON(http.StatusCreated, batchToResponse(&batches[i], time.Now().UTC()))
			return
		}
	}
	c.JSON(http.StatusCreated, gin.H{"id": id.String()})
}

// GetProductStock godoc
// @Summary      Stock of a product
// @Description  Totals and every batch of the product in FEFO order.
// @Tags         stock
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Product UUID"
// @Success      200 {object} dto.ProductStockResponse
// @Router       /v1/products/{id}/stock [get]
func (h *StockHandler) GetProductStock(c *gin.Context) {
	productID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	batches, err := h.svc.ListBatches(c.Request.Context(), productID)
	if err != nil {
		respondError(c, err)
		return
	}
	now := time.Now().UTC()
	resp := dto.ProductStockResponse{
		ProductID: productID.String(),
		Batches:   make([]dto.StockBatchResponse, 0, len(batches)),
	}
	for i := range batches {
		resp.TotalQuantity += batches[i].Quantity
		resp.ReservedQuantity += batches[i].ReservedQuantity
		resp.AvailableQuantity += batches[i].AvailableQuantity()
		resp.Batches = append(resp.Batches, batchToResponse(&batches[i], now))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *StockHandler) Reserve(c *gin.Context) {
	h.allocate(c, h.svc.Reserve)
}

func (h *StockHandler) Consume(c *gin.Context) {
	h.allocate(c, h.svc.Consume)
}

// Release answers 409 with the released count when the product had fewer
// units reserved than requested; the reservable part is released anyway.
func (h *StockHandler) Release(c *gin.Context) {
	productID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.QuantityRequest
	if !bindAndValidate(c, &req) {
		return
	}
	err := h.svc.Release(c.Request.Context(), productID, req.Quantity)
	var shortfall *service.ReleaseShortfallError
	if errors.As(err, &shortfall) {
		c.JSON(http.StatusConflict, gin.H{
			"code":   "insufficient_reserved",
			"detail": shortfall.Error(),
			"release": dto.ReleaseResponse{
				ProductID: productID.String(),
				Requested: shortfall.Requested,
				Released:  shortfall.Released,
			},
		})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	h.writeTotals(c, productID)
}

func (h *StockHandler) allocate(c *gin.Context, op func(ctx context.Context, productID uuid.UUID, qty int) error) {
	productID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.QuantityRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := op(c.Request.Context(), productID, req.Quantity); err != nil {
		respondError(c, err)
		return
	}
	h.writeTotals(c, productID)
}

func (h *StockHandler) writeTotals(c *gin.Context, productID uuid.UUID) {
	total, err := h.svc.TotalQuantity(c.Request.Context(), productID)
	if err != nil {
		respondError(c, err)
		return
	}
	available, err := h.svc.AvailableQuantity(c.Request.Context(), productID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ProductStockResponse{
		ProductID:         productID.String(),
		TotalQuantity:     total,
		AvailableQuantity: available,
		ReservedQuantity:  total - available,
	})
}

// AdjustBatch godoc
// @Summary      Adjust a batch after a stock count
// @Description  Overwrites the physical quantity. Fails if below what is reserved.
// @Tags         stock
// @Accept       json
// @Security     BearerAuth
// @Param        id   path string                 true "Batch UUID"
// @Param        body body dto.AdjustBatchRequest true "New quantity"
// @Success      204
// @Failure      409 {object} apierror.APIError
// @Router       /v1/stock/batches/{id} [patch]
func (h *StockHandler) AdjustBatch(c *gin.Context) {
	batchID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.AdjustBatchRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.svc.Adjust(c.Request.Context(), batchID, *req.Quantity); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *StockHandler) Expiring(c *gin.Context) {
	days := 30
	if raw := c.Query("days"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, apierror.New("days must be an integer"))
			return
		}
		days = d
	}
	batches, err := h.svc.ExpiringWithin(c.Request.Context(), days)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, batchesToResponse(batches))
}

func (h *StockHandler) Expired(c *gin.Context) {
	batches, err := h.svc.Expired(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, batchesToResponse(batches))
}

func batchesToResponse(batches []model.StockBatch) []dto.StockBatchResponse {
	now := time.Now().UTC()
	out := make([]dto.StockBatchResponse, 0, len(batches))
	for i := range batches {
		out = append(out, batchToResponse(&batches[i], now))
	}
	return out
}

func batchToResponse(b *model.StockBatch, now time.Time) dto.StockBatchResponse {
	resp := dto.StockBatchResponse{
		ID:                b.ID.String(),
		ProductID:         b.ProductID.String(),
		Quantity:          b.Quantity,
		ReservedQuantity:  b.ReservedQuantity,
		AvailableQuantity: b.AvailableQuantity(),
		Location:          b.Location,
		LotNumber:         b.LotNumber,
		ReceivedAt:        b.ReceivedAt.UTC().Format(time.RFC3339),
		Expired:           b.Expired(now),
	}
	if b.ProvenanceID != nil {
		p := b.ProvenanceID.String()
		resp.ProvenanceID = &p
	}
	if b.ExpiryDate != nil {
		e := b.ExpiryDate.UTC().Format("2006-01-02")
		resp.ExpiryDate = &e
	}
	return resp
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
