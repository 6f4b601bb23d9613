package service

import (
	"context"
	"sort"

	"cobranzas/internal/caja"
	"cobranzas/internal/dto"
	"cobranzas/internal/model"
	"cobranzas/internal/repository"
	"cobranzas/internal/stream"
)

// CierresService is the live daily closings view: one row per day with the
// whole-tenant carry-forward, broken down per collector, each collector with
// its own carry-forward.
type CierresService interface {
	Suscribir(ctx context.Context, f dto.Filtros, fn func(dto.Estado[dto.CierresSnapshot])) (*Suscripcion[dto.Filtros], error)
}

type cierresService struct {
	motor
}

func NewCierresService(store repository.Store, opts Opciones) CierresService {
	return &cierresService{motor{store: store, opts: opts.conDefaults()}}
}

func (s *cierresService) Suscribir(ctx context.Context, f dto.Filtros, fn func(dto.Estado[dto.CierresSnapshot])) (*Suscripcion[dto.Filtros], error) {
	return suscribir(ctx, s.store, "cierres", f, func(ctx context.Context, v *stream.Vista, f dto.Filtros) error {
		if err := validarFiltros(f); err != nil {
			return err
		}
		return v.Iniciar(ctx, fuentesCaja(f), func(c stream.Cambio) {
			fn(estado(s.calcular(ctx, f, c), c, errCierres))
		})
	})
}

func (s *cierresService) calcular(ctx context.Context, f dto.Filtros, c stream.Cambio) dto.CierresSnapshot {
	agg, semillas := s.agregar(c, f)
	porDia := caja.Resolver(ctx, agg.Agrupar(caja.PorEntidad), caja.PorEntidad, semillas)[caja.Clave{}]
	porCobrador := caja.Resolver(ctx, agg.Agrupar(caja.PorCobrador), caja.PorCobrador, semillas)

	dias := make([]dto.CierreDia, 0, len(porDia))
	indice := make(map[string]int, len(porDia))
	for _, d := range porDia {
		indice[d.Dia] = len(dias)
		dias = append(dias, dto.CierreDia{
			Dia:         d.Dia,
			Totales:     totalesDTO(d.Montos),
			Movimientos: d.Movimientos,
			Cobradores:  []dto.CierreCobrador{},
		})
	}
	for _, k := range caja.Claves(porCobrador) {
		actor := k.Cobrador
		if actor == "" {
			actor = model.ActorSinNombre
		}
		for _, d := range porCobrador[k] {
			i, ok := indice[d.Dia]
			if !ok {
				continue
			}
			dias[i].Cobradores = append(dias[i].Cobradores, dto.CierreCobrador{
				CobradorID:  actor,
				Totales:     totalesDTO(d.Montos),
				Movimientos: d.Movimientos,
			})
		}
	}
	sort.Slice(dias, func(i, j int) bool { return dias[i].Dia > dias[j].Dia })

	return dto.CierresSnapshot{Desde: f.Desde, Hasta: f.Hasta, Dias: dias}
}
