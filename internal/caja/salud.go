package caja

import (
	"math"

	"github.com/shopspring/decimal"
)

// Health score weights. This is a business heuristic, not a validated model;
// the constants are kept stable so scores stay comparable across releases.
const (
	pesoCobranza = 85.0
	pesoGastos   = 30.0
	pesoRetiros  = 20.0
	epsilon      = 1e-6
)

// Puntaje scores a route/collector pair in [0, 100] from its window totals:
// tanh(cobrado/prestado)·85 minus expense and outgoing penalties relative to
// collections.
func Puntaje(m Montos) float64 {
	cobrado := m.Cobrado.InexactFloat64()
	prestado := m.Prestado.InexactFloat64()
	gastos := m.Gastos.InexactFloat64()
	retiros := m.Retiros.InexactFloat64()

	base := math.Tanh(cobrado/(prestado+epsilon)) * pesoCobranza
	malus := gastos/(cobrado+epsilon)*pesoGastos + retiros/(cobrado+epsilon)*pesoRetiros
	return acotar(base-malus, 0, 100)
}

func acotar(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// PuntajeDecimal is Puntaje rounded to two places for presentation.
func PuntajeDecimal(m Montos) decimal.Decimal {
	return decimal.NewFromFloat(Puntaje(m)).Round(2)
}
