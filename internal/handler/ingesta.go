package handler

import (
	"net/http"

	"cobranzas/internal/dto"
	"cobranzas/internal/middleware"
	"cobranzas/internal/service"

	"github.com/gin-gonic/gin"
)

type IngestaHandler struct{ svc service.IngestaService }

func NewIngestaHandler(svc service.IngestaService) *IngestaHandler {
	return &IngestaHandler{svc: svc}
}

// RegistrarMovimiento godoc
// @Summary Registra un movimiento de caja (asincronico)
// @Tags ingesta
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.MovimientoRequest true "Movimiento"
// @Success 202 {object} dto.MovimientoAceptadoResponse
// @Failure 400 {object} apierror.APIError
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/movimientos [post]
func (h *IngestaHandler) RegistrarMovimiento(c *gin.Context) {
	var req dto.MovimientoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)
	req.CobradorID = middleware.CobradorForzado(claims, req.CobradorID)

	resp, err := h.svc.EncolarMovimiento(c.Request.Context(), claims.TenantID, claims.ActorID(), req)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, resp)
}

// RegistrarCierre godoc
// @Summary Registra el cierre diario de un cobrador
// @Tags ingesta
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CierreRequest true "Cierre"
// @Success 201 {object} dto.CierreResponse
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/cierres [post]
func (h *IngestaHandler) RegistrarCierre(c *gin.Context) {
	var req dto.CierreRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)
	req.CobradorID = middleware.CobradorForzado(claims, req.CobradorID)

	resp, err := h.svc.RegistrarCierre(c.Request.Context(), claims.TenantID, claims.ActorID(), req)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}
