package caja

import "github.com/shopspring/decimal"

// Montos is the six-category input of the closing formula.
type Montos struct {
	Inicial  decimal.Decimal `json:"inicial"`
	Cobrado  decimal.Decimal `json:"cobrado"`
	Prestado decimal.Decimal `json:"prestado"`
	Gastos   decimal.Decimal `json:"gastos"`
	Ingresos decimal.Decimal `json:"ingresos"`
	Retiros  decimal.Decimal `json:"retiros"`
}

// CajaFinal is the closing balance:
// inicial + cobrado + ingresos − retiros − prestado − gastos.
// No other sign convention exists anywhere in the module.
func CajaFinal(m Montos) decimal.Decimal {
	return m.Inicial.
		Add(m.Cobrado).
		Add(m.Ingresos).
		Sub(m.Retiros).
		Sub(m.Prestado).
		Sub(m.Gastos)
}
