package handler

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"cobranzas/internal/dto"
	"cobranzas/internal/middleware"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ── Wire messages ────────────────────────────────────────────────────────────
// Server → client: {"tipo":"estado","datos":Estado} after every emission,
// {"tipo":"error","detalle":"..."} for rejected client messages, "pong".
// Client → server: {"tipo":"filtros","datos":{...}} updates the view
// parameters (same fields as the query string; omitted fields keep their
// value), "ping".

type mensajeCliente struct {
	Tipo  string          `json:"tipo"`
	Datos json.RawMessage `json:"datos,omitempty"`
}

type mensajeServidor struct {
	Tipo    string `json:"tipo"`
	Datos   any    `json:"datos,omitempty"`
	Detalle string `json:"detalle,omitempty"`
}

const escrituraTimeout = 10 * time.Second

// transmitir serves one view over a WebSocket until the client disconnects.
// Emissions are coalesced: a slow client only ever receives the latest state.
// ajustar re-applies the caller's claims to parameters sent by the client.
func transmitir[P, T any](c *gin.Context, vista string, sus suscriptor[P, T], p P, ajustar func(*P)) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Warn().Err(err).Str("vista", vista).Msg("stream: websocket accept")
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	ultimo := make(chan dto.Estado[T], 1)
	publicar := func(e dto.Estado[T]) {
		select {
		case <-ultimo:
		default:
		}
		ultimo <- e
	}

	sub, err := sus(ctx, p, publicar)
	if err != nil {
		_ = wsjson.Write(ctx, conn, mensajeServidor{Tipo: "error", Detalle: err.Error()})
		conn.Close(websocket.StatusPolicyViolation, "parametros invalidos")
		return
	}
	defer sub.Cerrar()

	control := make(chan mensajeServidor, 4)
	enviar := func(m mensajeServidor) {
		select {
		case control <- m:
		case <-ctx.Done():
		}
	}
	go func() {
		defer cancel()
		for {
			var msg mensajeCliente
			if err := wsjson.Read(ctx, conn, &msg); err != nil {
				if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
					log.Debug().Err(err).Str("vista", vista).Msg("stream: read")
				}
				return
			}
			switch msg.Tipo {
			case "ping":
				enviar(mensajeServidor{Tipo: "pong"})
			case "filtros":
				nuevo := p
				if err := json.Unmarshal(msg.Datos, &nuevo); err != nil {
					enviar(mensajeServidor{Tipo: "error", Detalle: "filtros invalidos"})
					continue
				}
				ajustar(&nuevo)
				if err := validate.Struct(nuevo); err != nil {
					enviar(mensajeServidor{Tipo: "error", Detalle: err.Error()})
					continue
				}
				if err := sub.Actualizar(ctx, nuevo); err != nil {
					enviar(mensajeServidor{Tipo: "error", Detalle: err.Error()})
					continue
				}
				p = nuevo
			default:
				enviar(mensajeServidor{Tipo: "error", Detalle: "tipo de mensaje desconocido: " + msg.Tipo})
			}
		}
	}()

	for {
		var out mensajeServidor
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case e := <-ultimo:
			out = mensajeServidor{Tipo: "estado", Datos: e}
		case out = <-control:
		}
		wctx, wcancel := context.WithTimeout(ctx, escrituraTimeout)
		err := wsjson.Write(wctx, conn, out)
		wcancel()
		if err != nil {
			log.Debug().Err(err).Str("vista", vista).Msg("stream: write")
			return
		}
	}
}

// ── Stream endpoints ─────────────────────────────────────────────────────────

func (h *VistasHandler) ajustarFiltros(c *gin.Context) func(*dto.Filtros) {
	claims := middleware.GetClaims(c)
	return func(f *dto.Filtros) {
		f.TenantID = claims.TenantID
		f.CobradorID = middleware.CobradorForzado(claims, f.CobradorID)
	}
}

// CajaStream godoc
// @Summary Caja en vivo (WebSocket)
// @Tags vistas
// @Security BearerAuth
// @Router /v1/caja/stream [get]
func (h *VistasHandler) CajaStream(c *gin.Context) {
	f, ok := h.filtros(c)
	if !ok {
		return
	}
	transmitir(c, "caja", h.svc.Caja.Suscribir, f, h.ajustarFiltros(c))
}

// CierresStream godoc
// @Summary Cierres en vivo (WebSocket)
// @Tags vistas
// @Security BearerAuth
// @Router /v1/cierres/stream [get]
func (h *VistasHandler) CierresStream(c *gin.Context) {
	f, ok := h.filtros(c)
	if !ok {
		return
	}
	transmitir(c, "cierres", h.svc.Cierres.Suscribir, f, h.ajustarFiltros(c))
}

// AlertasStream godoc
// @Summary Alertas en vivo (WebSocket)
// @Tags vistas
// @Security BearerAuth
// @Router /v1/alertas/stream [get]
func (h *VistasHandler) AlertasStream(c *gin.Context) {
	f, ok := h.filtros(c)
	if !ok {
		return
	}
	transmitir(c, "alertas", h.svc.Alertas.Suscribir, f, h.ajustarFiltros(c))
}

// RutasStream godoc
// @Summary Ranking de rutas en vivo (WebSocket)
// @Tags vistas
// @Security BearerAuth
// @Router /v1/rutas/stream [get]
func (h *VistasHandler) RutasStream(c *gin.Context) {
	p, ok := h.rutasParams(c)
	if !ok {
		return
	}
	ajustar := h.ajustarFiltros(c)
	transmitir(c, "rutas", h.svc.Rutas.Suscribir, p, func(p *dto.RutasParams) { ajustar(&p.Filtros) })
}

// AuditoriaStream godoc
// @Summary Auditoria en vivo (WebSocket)
// @Tags vistas
// @Security BearerAuth
// @Router /v1/auditoria/stream [get]
func (h *VistasHandler) AuditoriaStream(c *gin.Context) {
	p, ok := h.auditoriaParams(c)
	if !ok {
		return
	}
	ajustar := h.ajustarFiltros(c)
	transmitir(c, "auditoria", h.svc.Auditoria.Suscribir, p, func(p *dto.AuditoriaParams) { ajustar(&p.Filtros) })
}

// MorosidadStream godoc
// @Summary Morosidad en vivo (WebSocket)
// @Tags vistas
// @Security BearerAuth
// @Router /v1/morosidad/stream [get]
func (h *VistasHandler) MorosidadStream(c *gin.Context) {
	p, ok := h.morosidadParams(c)
	if !ok {
		return
	}
	claims := middleware.GetClaims(c)
	transmitir(c, "morosidad", h.svc.Morosidad.Suscribir, p, func(p *dto.MorosidadParams) {
		p.TenantID = claims.TenantID
		p.CobradorID = middleware.CobradorForzado(claims, p.CobradorID)
	})
}
