package service

import (
	"context"
	"fmt"
	"sort"

	"cobranzas/internal/caja"
	"cobranzas/internal/dto"
	"cobranzas/internal/model"
	"cobranzas/internal/repository"
	"cobranzas/internal/stream"

	"github.com/shopspring/decimal"
)

const topMorososDefault = 10

// MorosidadService is the live delinquency summary over active loans.
type MorosidadService interface {
	Suscribir(ctx context.Context, p dto.MorosidadParams, fn func(dto.Estado[dto.MorosidadSnapshot])) (*Suscripcion[dto.MorosidadParams], error)
}

type morosidadService struct {
	motor
}

func NewMorosidadService(store repository.Store, opts Opciones) MorosidadService {
	return &morosidadService{motor{store: store, opts: opts.conDefaults()}}
}

func (s *morosidadService) Suscribir(ctx context.Context, p dto.MorosidadParams, fn func(dto.Estado[dto.MorosidadSnapshot])) (*Suscripcion[dto.MorosidadParams], error) {
	return suscribir(ctx, s.store, "morosidad", p, func(ctx context.Context, v *stream.Vista, p dto.MorosidadParams) error {
		if p.TenantID == "" {
			return fmt.Errorf("%w: tenant requerido", ErrFiltrosInvalidos)
		}
		fuentes := []stream.Fuente{{
			Nombre: fuentePrestamos,
			Consulta: repository.Consulta{
				TenantID:  p.TenantID,
				Coleccion: model.ColeccionPrestamos,
				Grupo:     true,
			},
		}}
		return v.Iniciar(ctx, fuentes, func(c stream.Cambio) {
			fn(estado(calcularMorosidad(p, c.Entradas), c, errMorosidad))
		})
	})
}

type prestamoActivo struct {
	moroso   dto.Moroso
	enAtraso bool
}

func calcularMorosidad(p dto.MorosidadParams, entradas []stream.Entrada) dto.MorosidadSnapshot {
	top := p.Top
	if top <= 0 {
		top = topMorososDefault
	}

	var activos []prestamoActivo
	for _, e := range entradas {
		d := e.Doc.Datos
		restante, ok := caja.Numero(d, "restante")
		if !ok || !restante.IsPositive() {
			continue
		}
		rutaID := caja.Texto(d, "rutaId")
		actor := caja.CobradorPrestamo(d)
		if p.RutaID != "" && rutaID != p.RutaID {
			continue
		}
		if p.CobradorID != "" && actor != p.CobradorID {
			continue
		}
		atraso, _ := caja.Numero(d, "diasAtraso")
		activos = append(activos, prestamoActivo{
			moroso: dto.Moroso{
				PrestamoID:    e.Doc.ID,
				ClienteID:     caja.ClienteID(d),
				ClienteNombre: caja.ClienteNombre(d),
				Restante:      restante,
				DiasAtraso:    int(atraso.IntPart()),
				RutaID:        rutaID,
				CobradorID:    actor,
			},
			enAtraso: atraso.IsPositive() || caja.Bandera(d, "atraso"),
		})
	}

	morosos := make([]dto.Moroso, 0, len(activos))
	for _, a := range activos {
		if a.enAtraso {
			morosos = append(morosos, a.moroso)
		}
	}
	sort.SliceStable(morosos, func(i, j int) bool {
		if !morosos[i].Restante.Equal(morosos[j].Restante) {
			return morosos[i].Restante.GreaterThan(morosos[j].Restante)
		}
		if morosos[i].DiasAtraso != morosos[j].DiasAtraso {
			return morosos[i].DiasAtraso > morosos[j].DiasAtraso
		}
		return morosos[i].PrestamoID < morosos[j].PrestamoID
	})

	snap := dto.MorosidadSnapshot{
		Activos:  len(activos),
		EnAtraso: len(morosos),
		Ratio:    decimal.Zero,
	}
	if snap.Activos > 0 {
		snap.Ratio = decimal.NewFromInt(int64(snap.EnAtraso)).
			Div(decimal.NewFromInt(int64(snap.Activos))).
			Round(4)
	}
	if len(morosos) > top {
		morosos = morosos[:top]
	}
	snap.Top = morosos
	return snap
}
