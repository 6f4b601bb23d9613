package caja

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Clave identifies an accumulation bucket. Empty RutaID / Cobrador stand for
// "no route" / "no collector". Group keys used by Agrupar leave Dia empty.
type Clave struct {
	Dia      string
	RutaID   string
	Cobrador string
}

// Acumulado holds the six non-negative category sums of one bucket plus the
// number of events folded into it. Signs are applied only by CajaFinal.
type Acumulado struct {
	Apertura    decimal.Decimal
	Cobrado     decimal.Decimal
	Prestado    decimal.Decimal
	Gastos      decimal.Decimal
	Ingresos    decimal.Decimal
	Retiros     decimal.Decimal
	Movimientos int
}

// Sumar folds one amount into the category of tipo.
func (a *Acumulado) Sumar(tipo Tipo, monto decimal.Decimal) {
	switch tipo {
	case TipoApertura:
		a.Apertura = a.Apertura.Add(monto)
	case TipoAbono:
		a.Cobrado = a.Cobrado.Add(monto)
	case TipoPrestamo:
		a.Prestado = a.Prestado.Add(monto)
	case TipoGasto:
		a.Gastos = a.Gastos.Add(monto)
	case TipoIngreso:
		a.Ingresos = a.Ingresos.Add(monto)
	case TipoRetiro:
		a.Retiros = a.Retiros.Add(monto)
	default:
		return
	}
	a.Movimientos++
}

// Mas returns the category-wise sum of two accumulators.
func (a Acumulado) Mas(b Acumulado) Acumulado {
	return Acumulado{
		Apertura:    a.Apertura.Add(b.Apertura),
		Cobrado:     a.Cobrado.Add(b.Cobrado),
		Prestado:    a.Prestado.Add(b.Prestado),
		Gastos:      a.Gastos.Add(b.Gastos),
		Ingresos:    a.Ingresos.Add(b.Ingresos),
		Retiros:     a.Retiros.Add(b.Retiros),
		Movimientos: a.Movimientos + b.Movimientos,
	}
}

// Montos builds the formula input of the bucket with the given opening.
func (a Acumulado) Montos(inicial decimal.Decimal) Montos {
	return Montos{
		Inicial:  inicial,
		Cobrado:  a.Cobrado,
		Prestado: a.Prestado,
		Gastos:   a.Gastos,
		Ingresos: a.Ingresos,
		Retiros:  a.Retiros,
	}
}

// Filtro restricts aggregation to a date window and optional route/collector.
type Filtro struct {
	Desde    string
	Hasta    string
	RutaID   string
	Cobrador string
}

// Incluye applies the window and the optional filters. Route-agnostic events
// pass any route filter.
func (f Filtro) Incluye(e Evento) bool {
	if f.Desde != "" && e.Dia < f.Desde {
		return false
	}
	if f.Hasta != "" && e.Dia > f.Hasta {
		return false
	}
	if f.Cobrador != "" && e.Cobrador != f.Cobrador {
		return false
	}
	if f.RutaID != "" && e.RutaID != f.RutaID && !e.RutaAgnostica() {
		return false
	}
	return true
}

// Agregado is the output of one aggregation pass. Buckets is the ground truth;
// every other view is a reduction of it.
type Agregado struct {
	Buckets map[Clave]Acumulado
	// Eventos are the events that passed the filter, in input order.
	Eventos []Evento
}

// Agregar folds the events into (day, route, collector) buckets in a single
// pass. The input slice is not modified.
func Agregar(eventos []Evento, f Filtro) Agregado {
	out := Agregado{Buckets: make(map[Clave]Acumulado)}
	for _, e := range eventos {
		if e.Tipo == "" || !f.Incluye(e) {
			continue
		}
		k := Clave{Dia: e.Dia, RutaID: e.RutaID, Cobrador: e.Cobrador}
		acc := out.Buckets[k]
		acc.Sumar(e.Tipo, e.Monto)
		out.Buckets[k] = acc
		out.Eventos = append(out.Eventos, e)
	}
	return out
}

// Serie maps day → accumulator for one group.
type Serie map[string]Acumulado

// Dias returns the series' days in ascending order.
func (s Serie) Dias() []string {
	dias := make([]string, 0, len(s))
	for d := range s {
		dias = append(dias, d)
	}
	sort.Strings(dias)
	return dias
}

// Total sums every day of the series.
func (s Serie) Total() Acumulado {
	var t Acumulado
	for _, a := range s {
		t = t.Mas(a)
	}
	return t
}

// Agrupador projects a bucket key onto a group key (Dia is ignored).
type Agrupador func(Clave) Clave

// PorEntidad groups every bucket together.
func PorEntidad(Clave) Clave { return Clave{} }

// PorCobrador groups by collector, ignoring the route.
func PorCobrador(c Clave) Clave { return Clave{Cobrador: c.Cobrador} }

// PorPar groups by (route, collector).
func PorPar(c Clave) Clave { return Clave{RutaID: c.RutaID, Cobrador: c.Cobrador} }

// Agrupar reduces the buckets into one series per group.
func (a Agregado) Agrupar(grupo Agrupador) map[Clave]Serie {
	out := make(map[Clave]Serie)
	for k, acc := range a.Buckets {
		g := grupo(k)
		g.Dia = ""
		s, ok := out[g]
		if !ok {
			s = make(Serie)
			out[g] = s
		}
		s[k.Dia] = s[k.Dia].Mas(acc)
	}
	return out
}

// PorTipo sums the buckets per canonical kind.
func (a Agregado) PorTipo() map[Tipo]decimal.Decimal {
	var t Acumulado
	for _, acc := range a.Buckets {
		t = t.Mas(acc)
	}
	out := make(map[Tipo]decimal.Decimal, len(Tipos))
	for _, tp := range Tipos {
		var v decimal.Decimal
		switch tp {
		case TipoApertura:
			v = t.Apertura
		case TipoAbono:
			v = t.Cobrado
		case TipoPrestamo:
			v = t.Prestado
		case TipoGasto:
			v = t.Gastos
		case TipoIngreso:
			v = t.Ingresos
		case TipoRetiro:
			v = t.Retiros
		}
		if !v.IsZero() {
			out[tp] = v
		}
	}
	return out
}

// CobradoPorDia sums collections per day.
func (a Agregado) CobradoPorDia() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for k, acc := range a.Buckets {
		if acc.Cobrado.IsZero() {
			continue
		}
		out[k.Dia] = out[k.Dia].Add(acc.Cobrado)
	}
	return out
}
