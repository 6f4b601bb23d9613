package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cobranzas/internal/dto"
	"cobranzas/internal/infra"
	"cobranzas/internal/middleware"
	"cobranzas/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// errSinEmision is returned when a view does not settle within the snapshot
// timeout.
var errSinEmision = errors.New("la vista no emitio a tiempo")

// suscriptor is the Suscribir method shared by every view service.
type suscriptor[P, T any] func(ctx context.Context, p P, fn func(dto.Estado[T])) (*service.Suscripcion[P], error)

// primeraEmision subscribes, waits for the first emission that is no longer
// loading and closes the subscription.
func primeraEmision[P, T any](ctx context.Context, timeout time.Duration, sus suscriptor[P, T], p P) (dto.Estado[T], error) {
	listo := make(chan dto.Estado[T], 1)
	sub, err := sus(ctx, p, func(e dto.Estado[T]) {
		if e.Cargando {
			return
		}
		select {
		case listo <- e:
		default:
		}
	})
	if err != nil {
		return dto.Estado[T]{}, err
	}
	defer sub.Cerrar()

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case e := <-listo:
		return e, nil
	case <-t.C:
		return dto.Estado[T]{}, errSinEmision
	case <-ctx.Done():
		return dto.Estado[T]{}, ctx.Err()
	}
}

// VistasServices groups the live view services.
type VistasServices struct {
	Caja      service.CajaService
	Cierres   service.CierresService
	Rutas     service.RutasService
	Alertas   service.AlertasService
	Auditoria service.AuditoriaService
	Morosidad service.MorosidadService
}

// VistasHandler serves every dashboard view both as a one-shot snapshot and
// as a WebSocket stream.
type VistasHandler struct {
	svc     VistasServices
	timeout time.Duration
	zona    *time.Location
	ahora   func() time.Time
}

func NewVistasHandler(svc VistasServices, timeout time.Duration, zona *time.Location) *VistasHandler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &VistasHandler{svc: svc, timeout: timeout, zona: zona, ahora: time.Now}
}

// ── Parameters ───────────────────────────────────────────────────────────────

// completarFiltros applies the claims (tenant, forced collector) and defaults
// an empty window to today in the tenant zone.
func (h *VistasHandler) completarFiltros(c *gin.Context, f *dto.Filtros) {
	claims := middleware.GetClaims(c)
	f.TenantID = claims.TenantID
	f.CobradorID = middleware.CobradorForzado(claims, f.CobradorID)
	if f.Desde == "" && f.Hasta == "" {
		hoy := infra.HoyEn(h.zona, h.ahora())
		f.Desde, f.Hasta = hoy, hoy
	}
}

func (h *VistasHandler) filtros(c *gin.Context) (dto.Filtros, bool) {
	var f dto.Filtros
	ok := bindQuery(c, &f, func() { h.completarFiltros(c, &f) })
	return f, ok
}

func (h *VistasHandler) rutasParams(c *gin.Context) (dto.RutasParams, bool) {
	var p dto.RutasParams
	ok := bindQuery(c, &p, func() { h.completarFiltros(c, &p.Filtros) })
	return p, ok
}

func (h *VistasHandler) auditoriaParams(c *gin.Context) (dto.AuditoriaParams, bool) {
	var p dto.AuditoriaParams
	ok := bindQuery(c, &p, func() { h.completarFiltros(c, &p.Filtros) })
	return p, ok
}

func (h *VistasHandler) morosidadParams(c *gin.Context) (dto.MorosidadParams, bool) {
	var p dto.MorosidadParams
	ok := bindQuery(c, &p, func() {
		claims := middleware.GetClaims(c)
		p.TenantID = claims.TenantID
		p.CobradorID = middleware.CobradorForzado(claims, p.CobradorID)
	})
	return p, ok
}

// unaVez is the shared one-shot handler body.
func unaVez[P, T any](c *gin.Context, timeout time.Duration, vista string, sus suscriptor[P, T], p P) {
	e, err := primeraEmision(c.Request.Context(), timeout, sus, p)
	if err != nil {
		log.Warn().Err(err).Str("vista", vista).Msg("vistas: snapshot failed")
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

// ── One-shot snapshots ───────────────────────────────────────────────────────

// Caja godoc
// @Summary Movimientos y resumen de caja de la ventana
// @Tags vistas
// @Produce json
// @Security BearerAuth
// @Param desde query string false "yyyy-mm-dd (default hoy)"
// @Param hasta query string false "yyyy-mm-dd (default hoy)"
// @Param ruta_id query string false "Ruta"
// @Param cobrador_id query string false "Cobrador"
// @Success 200 {object} dto.Estado[dto.CajaSnapshot]
// @Failure 400 {object} apierror.APIError
// @Router /v1/caja [get]
func (h *VistasHandler) Caja(c *gin.Context) {
	f, ok := h.filtros(c)
	if !ok {
		return
	}
	unaVez(c, h.timeout, "caja", h.svc.Caja.Suscribir, f)
}

// Cierres godoc
// @Summary Cierres diarios por dia y cobrador
// @Tags vistas
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.Estado[dto.CierresSnapshot]
// @Router /v1/cierres [get]
func (h *VistasHandler) Cierres(c *gin.Context) {
	f, ok := h.filtros(c)
	if !ok {
		return
	}
	unaVez(c, h.timeout, "cierres", h.svc.Cierres.Suscribir, f)
}

// CierresPDF godoc
// @Summary Reporte PDF de cierres diarios
// @Tags vistas
// @Produce application/pdf
// @Security BearerAuth
// @Success 200 {file} binary
// @Router /v1/cierres/pdf [get]
func (h *VistasHandler) CierresPDF(c *gin.Context) {
	f, ok := h.filtros(c)
	if !ok {
		return
	}
	e, err := primeraEmision(c.Request.Context(), h.timeout, h.svc.Cierres.Suscribir, f)
	if err != nil {
		responderError(c, err)
		return
	}
	pdf, err := infra.GenerateCierresPDF(f.TenantID, e.Datos, h.ahora().In(h.zona))
	if err != nil {
		_ = c.Error(err)
		return
	}
	nombre := fmt.Sprintf("cierres_%s_%s.pdf", f.Desde, f.Hasta)
	c.Header("Content-Disposition", `attachment; filename="`+nombre+`"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// Rutas godoc
// @Summary Ranking de rutas y cobradores
// @Tags vistas
// @Produce json
// @Security BearerAuth
// @Param orden query string false "score | cobrado | caja | prestado | gastos"
// @Success 200 {object} dto.Estado[[]dto.RutaRow]
// @Router /v1/rutas [get]
func (h *VistasHandler) Rutas(c *gin.Context) {
	p, ok := h.rutasParams(c)
	if !ok {
		return
	}
	unaVez(c, h.timeout, "rutas", h.svc.Rutas.Suscribir, p)
}

// Alertas godoc
// @Summary Cierres faltantes y promesas vencidas
// @Tags vistas
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.Estado[[]dto.Alerta]
// @Router /v1/alertas [get]
func (h *VistasHandler) Alertas(c *gin.Context) {
	f, ok := h.filtros(c)
	if !ok {
		return
	}
	unaVez(c, h.timeout, "alertas", h.svc.Alertas.Suscribir, f)
}

// Auditoria godoc
// @Summary Bitacora de auditoria
// @Tags vistas
// @Produce json
// @Security BearerAuth
// @Param tipo query string false "all | cobro | prestamo | ..."
// @Success 200 {object} dto.Estado[[]dto.AuditoriaRow]
// @Router /v1/auditoria [get]
func (h *VistasHandler) Auditoria(c *gin.Context) {
	p, ok := h.auditoriaParams(c)
	if !ok {
		return
	}
	unaVez(c, h.timeout, "auditoria", h.svc.Auditoria.Suscribir, p)
}

// Morosidad godoc
// @Summary Resumen de morosidad de prestamos activos
// @Tags vistas
// @Produce json
// @Security BearerAuth
// @Param top query int false "Cantidad de morosos (default 10)"
// @Success 200 {object} dto.Estado[dto.MorosidadSnapshot]
// @Router /v1/morosidad [get]
func (h *VistasHandler) Morosidad(c *gin.Context) {
	p, ok := h.morosidadParams(c)
	if !ok {
		return
	}
	unaVez(c, h.timeout, "morosidad", h.svc.Morosidad.Suscribir, p)
}
