package caja

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPuntajeSinMovimientoEsCero(t *testing.T) {
	p := Puntaje(Montos{})
	assert.False(t, math.IsNaN(p))
	assert.Equal(t, 0.0, p)
}

func TestPuntajeAcotado(t *testing.T) {
	// heavy expenses push the raw score below zero
	p := Puntaje(Montos{
		Cobrado:  decimal.NewFromInt(10),
		Prestado: decimal.NewFromInt(100),
		Gastos:   decimal.NewFromInt(100),
	})
	assert.Equal(t, 0.0, p)

	// efficient route saturates near 85
	p = Puntaje(Montos{
		Cobrado:  decimal.NewFromInt(1000),
		Prestado: decimal.NewFromInt(100),
	})
	assert.InDelta(t, 85.0, p, 0.01)
	assert.LessOrEqual(t, p, 100.0)
}

func TestPuntajeConstantes(t *testing.T) {
	m := Montos{
		Cobrado:  decimal.NewFromInt(100),
		Prestado: decimal.NewFromInt(100),
		Gastos:   decimal.NewFromInt(10),
		Retiros:  decimal.NewFromInt(5),
	}
	esperado := math.Tanh(1)*85 - 0.1*30 - 0.05*20
	assert.InDelta(t, esperado, Puntaje(m), 1e-4)
	assert.Equal(t, decimal.NewFromFloat(Puntaje(m)).Round(2).String(), PuntajeDecimal(m).String())
}
