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

// RutasService ranks (route, collector) pairs over the window.
type RutasService interface {
	Suscribir(ctx context.Context, p dto.RutasParams, fn func(dto.Estado[[]dto.RutaRow])) (*Suscripcion[dto.RutasParams], error)
}

type rutasService struct {
	motor
}

func NewRutasService(store repository.Store, opts Opciones) RutasService {
	return &rutasService{motor{store: store, opts: opts.conDefaults()}}
}

func (s *rutasService) Suscribir(ctx context.Context, p dto.RutasParams, fn func(dto.Estado[[]dto.RutaRow])) (*Suscripcion[dto.RutasParams], error) {
	return suscribir(ctx, s.store, "rutas", p, func(ctx context.Context, v *stream.Vista, p dto.RutasParams) error {
		if err := validarFiltros(p.Filtros); err != nil {
			return err
		}
		return v.Iniciar(ctx, fuentesCaja(p.Filtros), func(c stream.Cambio) {
			fn(estado(s.calcular(ctx, p, c), c, errRutas))
		})
	})
}

func (s *rutasService) calcular(ctx context.Context, p dto.RutasParams, c stream.Cambio) []dto.RutaRow {
	agg, semillas := s.agregar(c, p.Filtros)
	resueltos := caja.Resolver(ctx, agg.Agrupar(caja.PorPar), caja.PorPar, semillas)

	filas := make([]dto.RutaRow, 0, len(resueltos))
	for _, k := range caja.Claves(resueltos) {
		dias := resueltos[k]
		tot := caja.Totales(dias)
		apertura := decimal.Zero
		for _, d := range dias {
			apertura = apertura.Add(d.Apertura)
		}
		filas = append(filas, dto.RutaRow{
			RutaID:      k.RutaID,
			CobradorID:  k.Cobrador,
			Etiqueta:    etiquetaRuta(k),
			Totales:     totalesDTO(tot),
			Apertura:    apertura,
			Movimientos: movimientos(dias),
			Score:       caja.PuntajeDecimal(tot),
		})
	}
	ordenarRutas(filas, p.Orden)
	return filas
}

func etiquetaRuta(k caja.Clave) string {
	switch {
	case k.RutaID != "" && k.Cobrador != "":
		return k.RutaID + " / " + k.Cobrador
	case k.RutaID != "":
		return k.RutaID
	case k.Cobrador != "":
		return k.Cobrador
	}
	return "—"
}

// ordenarRutas sorts descending by the chosen key (score by default), except
// gastos which sorts ascending. Ties keep the route then collector order the
// rows were built in.
func ordenarRutas(filas []dto.RutaRow, orden string) {
	valor := func(r dto.RutaRow) decimal.Decimal {
		switch orden {
		case "cobrado":
			return r.Cobrado
		case "caja":
			return r.CajaFinal
		case "prestado":
			return r.Prestado
		case "gastos":
			return r.Gastos
		}
		return r.Score
	}
	sort.SliceStable(filas, func(i, j int) bool {
		if orden == "gastos" {
			return valor(filas[i]).LessThan(valor(filas[j]))
		}
		return valor(filas[i]).GreaterThan(valor(filas[j]))
	})
}
