package caja

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// DiaSaldo is one day of a group after the opening balance has been resolved.
type DiaSaldo struct {
	Dia         string          `json:"dia"`
	Montos                      // Inicial is the resolved opening
	Apertura    decimal.Decimal `json:"apertura"`
	CajaFinal   decimal.Decimal `json:"cajaFinal"`
	Movimientos int             `json:"movimientos"`
}

// Arrastrar walks the series in ascending day order. A day with a non-zero
// explicit opening uses it; any other day inherits the previous closing,
// starting from semilla.
func Arrastrar(s Serie, semilla decimal.Decimal) []DiaSaldo {
	dias := s.Dias()
	out := make([]DiaSaldo, 0, len(dias))
	corriente := semilla
	for _, dia := range dias {
		acc := s[dia]
		inicial := corriente
		if !acc.Apertura.IsZero() {
			inicial = acc.Apertura
		}
		m := acc.Montos(inicial)
		cierre := CajaFinal(m)
		out = append(out, DiaSaldo{
			Dia:         dia,
			Montos:      m,
			Apertura:    acc.Apertura,
			CajaFinal:   cierre,
			Movimientos: acc.Movimientos,
		})
		corriente = cierre
	}
	return out
}

// NecesitaSemilla reports whether the first day of the series has no explicit
// opening, so its opening must come from before the window.
func NecesitaSemilla(s Serie) bool {
	dias := s.Dias()
	if len(dias) == 0 {
		return false
	}
	return s[dias[0]].Apertura.IsZero()
}

// Retroceso fetches the aggregate of the days immediately preceding the
// window, with the same filters as the window itself.
type Retroceso func(ctx context.Context) (Agregado, error)

// Semillas runs the lookback at most once and hands out closing balances per
// group. The lookback is never itself seeded: its first day starts at zero.
type Semillas struct {
	retroceso Retroceso

	once sync.Once
	agg  Agregado
	err  error
}

// NuevasSemillas wraps r. A nil r yields zero seeds.
func NuevasSemillas(r Retroceso) *Semillas {
	return &Semillas{retroceso: r}
}

func (s *Semillas) cargar(ctx context.Context) {
	s.once.Do(func() {
		if s.retroceso == nil {
			return
		}
		s.agg, s.err = s.retroceso(ctx)
		if s.err != nil {
			log.Warn().Err(s.err).Msg("arrastre: lookback failed, seeding opening balances with zero")
			s.agg = Agregado{}
		}
	})
}

// Para returns the closing balance of every group at the end of the lookback
// period. Groups absent from the lookback are missing from the map (zero).
func (s *Semillas) Para(ctx context.Context, grupo Agrupador) map[Clave]decimal.Decimal {
	s.cargar(ctx)
	out := make(map[Clave]decimal.Decimal)
	for k, serie := range s.agg.Agrupar(grupo) {
		dias := Arrastrar(serie, decimal.Zero)
		if len(dias) == 0 {
			continue
		}
		out[k] = dias[len(dias)-1].CajaFinal
	}
	return out
}

// Err reports the lookback failure, if the lookback ran and failed.
func (s *Semillas) Err() error { return s.err }

// Resolver resolves the opening balances of every group. The lookback is only
// consulted when some group's first day lacks an explicit opening.
func Resolver(ctx context.Context, series map[Clave]Serie, grupo Agrupador, semillas *Semillas) map[Clave][]DiaSaldo {
	var previas map[Clave]decimal.Decimal
	for _, s := range series {
		if NecesitaSemilla(s) {
			if semillas != nil {
				previas = semillas.Para(ctx, grupo)
			}
			break
		}
	}
	out := make(map[Clave][]DiaSaldo, len(series))
	for k, s := range series {
		out[k] = Arrastrar(s, previas[k])
	}
	return out
}

// Totales reduces the resolved days of one group to window-level amounts:
// Inicial is the first day's opening, every other category is summed.
func Totales(dias []DiaSaldo) Montos {
	var t Montos
	if len(dias) == 0 {
		return t
	}
	t.Inicial = dias[0].Inicial
	for _, d := range dias {
		t.Cobrado = t.Cobrado.Add(d.Cobrado)
		t.Prestado = t.Prestado.Add(d.Prestado)
		t.Gastos = t.Gastos.Add(d.Gastos)
		t.Ingresos = t.Ingresos.Add(d.Ingresos)
		t.Retiros = t.Retiros.Add(d.Retiros)
	}
	return t
}

// Claves returns the group keys sorted by route then collector.
func Claves[V any](m map[Clave]V) []Clave {
	out := make([]Clave, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RutaID != out[j].RutaID {
			return out[i].RutaID < out[j].RutaID
		}
		return out[i].Cobrador < out[j].Cobrador
	})
	return out
}
