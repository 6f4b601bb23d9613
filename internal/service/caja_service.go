package service

import (
	"context"
	"sort"

	"cobranzas/internal/caja"
	"cobranzas/internal/dto"
	"cobranzas/internal/repository"
	"cobranzas/internal/stream"

	"github.com/shopspring/decimal"
)

// CajaService is the live cash aggregate of one tenant and window.
type CajaService interface {
	Suscribir(ctx context.Context, f dto.Filtros, fn func(dto.Estado[dto.CajaSnapshot])) (*Suscripcion[dto.Filtros], error)
}

type cajaService struct {
	motor
}

func NewCajaService(store repository.Store, opts Opciones) CajaService {
	return &cajaService{motor{store: store, opts: opts.conDefaults()}}
}

func (s *cajaService) Suscribir(ctx context.Context, f dto.Filtros, fn func(dto.Estado[dto.CajaSnapshot])) (*Suscripcion[dto.Filtros], error) {
	return suscribir(ctx, s.store, "caja", f, func(ctx context.Context, v *stream.Vista, f dto.Filtros) error {
		if err := validarFiltros(f); err != nil {
			return err
		}
		return v.Iniciar(ctx, fuentesCaja(f), func(c stream.Cambio) {
			fn(estado(s.calcular(ctx, f, c), c, errCaja))
		})
	})
}

// calcular builds the whole snapshot from the merged state in one pass.
func (s *cajaService) calcular(ctx context.Context, f dto.Filtros, c stream.Cambio) dto.CajaSnapshot {
	agg, semillas := s.agregar(c, f)
	dias := caja.Resolver(ctx, agg.Agrupar(caja.PorEntidad), caja.PorEntidad, semillas)[caja.Clave{}]

	resumen := dto.CajaResumen{
		Totales: totalesDTO(caja.Totales(dias)),
		PorDia:  agg.CobradoPorDia(),
		PorTipo: make(map[string]decimal.Decimal),
		Dias:    make([]dto.DiaCaja, 0, len(dias)),
	}
	for t, v := range agg.PorTipo() {
		resumen.PorTipo[string(t)] = v
	}
	for _, d := range dias {
		resumen.Dias = append(resumen.Dias, diaDTO(d))
	}

	return dto.CajaSnapshot{Movimientos: filasMovimiento(agg.Eventos), Resumen: resumen}
}

func filasMovimiento(eventos []caja.Evento) []dto.MovimientoRow {
	ordenados := make([]caja.Evento, len(eventos))
	copy(ordenados, eventos)
	sort.SliceStable(ordenados, func(i, j int) bool {
		a, b := ordenados[i], ordenados[j]
		if a.Dia != b.Dia {
			return a.Dia < b.Dia
		}
		if !a.CreadoEn.Equal(b.CreadoEn) {
			return a.CreadoEn.Before(b.CreadoEn)
		}
		return a.ID < b.ID
	})

	filas := make([]dto.MovimientoRow, 0, len(ordenados))
	for _, e := range ordenados {
		fila := dto.MovimientoRow{
			ID:            e.ID,
			Tipo:          string(e.Tipo),
			TipoReal:      e.TipoReal,
			Monto:         e.Monto,
			Dia:           e.Dia,
			RutaID:        e.RutaID,
			CobradorID:    e.Cobrador,
			ClienteID:     e.ClienteID,
			ClienteNombre: e.ClienteNombre,
			PrestamoID:    e.PrestamoID,
			Nota:          e.Nota,
			Demo:          e.Demo,
		}
		if !e.CreadoEn.IsZero() {
			creado := e.CreadoEn
			fila.CreadoEn = &creado
		}
		filas = append(filas, fila)
	}
	return filas
}
