package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"cobranzas/internal/caja"
	"cobranzas/internal/dto"
	"cobranzas/internal/model"
	"cobranzas/internal/repository"
	"cobranzas/internal/stream"

	"github.com/shopspring/decimal"
)

const (
	fuenteAuditRaiz     = "auditLogs"
	fuenteAuditTenant   = "auditLogsTenant"
	fuenteAuditGrupo    = "auditLogsGrupo"
	fuenteAuditRespaldo = "cajaDiaria"
)

// AuditoriaService is the live audit trail. When a tenant has no audit log
// documents at all, rows are synthesized from the cash events instead.
type AuditoriaService interface {
	Suscribir(ctx context.Context, p dto.AuditoriaParams, fn func(dto.Estado[[]dto.AuditoriaRow])) (*Suscripcion[dto.AuditoriaParams], error)
}

type auditoriaService struct {
	motor
}

func NewAuditoriaService(store repository.Store, opts Opciones) AuditoriaService {
	return &auditoriaService{motor{store: store, opts: opts.conDefaults()}}
}

func consultaAuditoria(f dto.Filtros, coleccion string, grupo bool) repository.Consulta {
	q := repository.Consulta{
		TenantID:   f.TenantID,
		Coleccion:  coleccion,
		Grupo:      grupo,
		CampoFecha: "operationalDate",
		Desde:      f.Desde,
		Hasta:      f.Hasta,
		Orden:      repository.Orden{Campo: "operationalDate", Desc: true},
	}
	if f.RutaID != "" {
		q = q.Con("rutaId", f.RutaID)
	}
	if f.CobradorID != "" {
		q = q.Con("admin", f.CobradorID)
	}
	return q
}

func fuentesAuditoria(f dto.Filtros) []stream.Fuente {
	return []stream.Fuente{
		{Nombre: fuenteAuditRaiz, Consulta: consultaAuditoria(f, model.ColeccionAuditLogs, false)},
		{Nombre: fuenteAuditTenant, Consulta: consultaAuditoria(f, model.ColeccionAuditLogsTenant(f.TenantID), false)},
		{Nombre: fuenteAuditGrupo, Consulta: consultaAuditoria(f, model.ColeccionAuditLogs, true)},
		{Nombre: fuenteAuditRespaldo, Consulta: consultaAuditoria(f, model.ColeccionCajaDiaria, false)},
	}
}

func (s *auditoriaService) Suscribir(ctx context.Context, p dto.AuditoriaParams, fn func(dto.Estado[[]dto.AuditoriaRow])) (*Suscripcion[dto.AuditoriaParams], error) {
	return suscribir(ctx, s.store, "auditoria", p, func(ctx context.Context, v *stream.Vista, p dto.AuditoriaParams) error {
		if err := validarFiltros(p.Filtros); err != nil {
			return err
		}
		// Once a real audit document shows up, the synthesized rows are never
		// used again for these parameters.
		conAuditoria := false
		return v.Iniciar(ctx, fuentesAuditoria(p.Filtros), func(c stream.Cambio) {
			var filas []dto.AuditoriaRow
			filas, conAuditoria = s.calcular(p, c.Entradas, conAuditoria)
			fn(estado(filas, c, errAuditoria))
		})
	})
}

func (s *auditoriaService) calcular(p dto.AuditoriaParams, entradas []stream.Entrada, conAuditoria bool) ([]dto.AuditoriaRow, bool) {
	var reales, sinteticas []dto.AuditoriaRow
	for _, e := range entradas {
		if e.Fuente == fuenteAuditRespaldo {
			if fila, ok := s.filaSintetica(e.Doc); ok {
				sinteticas = append(sinteticas, fila)
			}
			continue
		}
		reales = append(reales, s.filaAuditoria(e.Doc.ID, e.Doc.TenantID, e.Doc.Datos))
	}
	if len(reales) > 0 {
		conAuditoria = true
	}
	filas := sinteticas
	if conAuditoria {
		filas = reales
	}

	out := make([]dto.AuditoriaRow, 0, len(filas))
	for _, f := range filas {
		if p.Tipo != "" && p.Tipo != "all" && f.Tipo != p.Tipo {
			continue
		}
		out = append(out, f)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Ts != out[j].Ts {
			return out[i].Ts > out[j].Ts
		}
		return out[i].ID < out[j].ID
	})
	return out, conAuditoria
}

func (s *auditoriaService) filaAuditoria(id, tenantID string, d map[string]any) dto.AuditoriaRow {
	tipo := caja.ClasificarAuditoria(caja.Texto(d, "type", "tipo", "eventType"))
	ts, tieneTs := caja.MarcaTiempo(d)

	fecha := caja.Texto(d, "operationalDate", "date")
	if fecha == "" {
		if tieneTs {
			fecha = ts.UTC().Format(caja.FormatoDia)
		} else {
			fecha = s.opts.Ahora().UTC().Format(caja.FormatoDia)
		}
	}
	if !tieneTs {
		ts, _ = time.Parse(caja.FormatoDia, fecha)
	}
	if t := caja.Texto(d, "tenantId"); t != "" {
		tenantID = t
	}

	fila := dto.AuditoriaRow{
		ID:            id,
		TenantID:      tenantID,
		Tipo:          string(tipo),
		Ts:            ts.UnixMilli(),
		Fecha:         fecha,
		CobradorID:    caja.ActorAuditoria(d),
		RutaID:        caja.Texto(d, "rutaId"),
		ClienteID:     caja.ClienteID(d),
		ClienteNombre: caja.ClienteNombre(d),
		PrestamoID:    caja.PrestamoID(d),
		Mensaje:       caja.NotaAuditoria(d),
	}
	if monto, ok := caja.MontoMovimiento(d); ok {
		fila.Monto = &monto
	}
	fila.PrestamoValor = valorPrestamo(d, tipo, fila.Monto)
	fila.Etiqueta = etiquetaAuditoria(tipo, fila.Mensaje)
	return fila
}

// filaSintetica maps a cash event onto an audit row. Only kinds that take
// part in the cash formula are synthesized.
func (s *auditoriaService) filaSintetica(doc model.Documento) (dto.AuditoriaRow, bool) {
	d := doc.Datos
	raw := caja.Texto(d, "tipo")
	if _, ok := caja.Normalizar(raw); !ok {
		return dto.AuditoriaRow{}, false
	}
	fila := s.filaAuditoria("synth:"+doc.ID, doc.TenantID, d)
	fila.Tipo = string(caja.ClasificarAuditoria(raw))
	fila.CobradorID = caja.CobradorMovimiento(d)
	fila.Mensaje = caja.NotaMovimiento(d)
	fila.PrestamoValor = valorPrestamo(d, caja.TipoAuditoria(fila.Tipo), fila.Monto)
	fila.Etiqueta = etiquetaAuditoria(caja.TipoAuditoria(fila.Tipo), fila.Mensaje)
	fila.Sintetico = true
	return fila, true
}

func valorPrestamo(d map[string]any, tipo caja.TipoAuditoria, monto *decimal.Decimal) *decimal.Decimal {
	if v, ok := caja.ValorPrestamo(d); ok {
		return &v
	}
	if tipo == caja.AuditoriaPrestamo && monto != nil {
		v := *monto
		return &v
	}
	return nil
}

// etiquetaAuditoria is the short row label: collections and loans show their
// amounts instead, every other kind shows its note.
func etiquetaAuditoria(tipo caja.TipoAuditoria, mensaje string) string {
	switch tipo {
	case caja.AuditoriaCobro, caja.AuditoriaPrestamo:
		return ""
	}
	return strings.TrimSpace(mensaje)
}
