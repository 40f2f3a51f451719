package handler

import (
	"net/http"

	"dutyfree/internal/dto"
	"dutyfree/internal/middleware"
	"dutyfree/internal/service"

	"github.com/gin-gonic/gin"
)

type RegistersHandler struct{ svc service.RegisterService }

func NewRegistersHandler(svc service.RegisterService) *RegistersHandler {
	return &RegistersHandler{svc: svc}
}

// Open godoc
// @Summary      Open a register session
// @Tags         registers
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.OpenRegisterRequest true "Register number and opening float"
// @Success      201  {object} dto.RegisterSessionResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/registers/open [post]
func (h *RegistersHandler) Open(c *gin.Context) {
	var req dto.OpenRegisterRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Open(c.Request.Context(), middleware.CashierID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Close godoc
// @Summary      Close a register session
// @Description  Blind count: the expected cash and variance are computed after the declaration.
// @Tags         registers
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                   true "Session UUID"
// @Param        body body dto.CloseRegisterRequest true "Declared cash"
// @Success      200  {object} dto.RegisterSessionResponse
// @Router       /v1/registers/{id}/close [post]
func (h *RegistersHandler) Close(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.CloseRegisterRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Close(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *RegistersHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
