package caja

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClienteNombrePrioridad(t *testing.T) {
	d := map[string]any{
		"nombre":  "Segundo",
		"cliente": map[string]any{"nombre": "Tercero"},
	}
	assert.Equal(t, "Segundo", ClienteNombre(d))

	d["clienteNombre"] = "Primero"
	assert.Equal(t, "Primero", ClienteNombre(d))

	assert.Equal(t, "Anidado", ClienteNombre(map[string]any{
		"cliente": map[string]any{"displayName": "Anidado"},
	}))
	assert.Equal(t, "", ClienteNombre(map[string]any{"nombre": "   "}))
}

func TestClienteEtiqueta(t *testing.T) {
	assert.Equal(t, "Anidado", ClienteEtiqueta(map[string]any{
		"cliente": map[string]any{"displayName": "Anidado", "id": "c9"},
	}))
	assert.Equal(t, "c9", ClienteEtiqueta(map[string]any{"cliente": map[string]any{"id": "c9"}}))
	assert.Equal(t, "Cliente", ClienteEtiqueta(map[string]any{}))
}

func TestNumeroAceptaVariantes(t *testing.T) {
	for _, v := range []any{150, int64(150), 150.0, "150", json.Number("150")} {
		n, ok := MontoMovimiento(map[string]any{"monto": v})
		require.True(t, ok)
		assert.Equal(t, "150", n.String())
	}

	n, ok := MontoMovimiento(map[string]any{"amount": 75.5})
	require.True(t, ok)
	assert.Equal(t, "75.5", n.String())

	_, ok = MontoMovimiento(map[string]any{"monto": "abc"})
	assert.False(t, ok)
}

func TestFechaPromesaPrioridad(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)

	// 2024-03-10T01:00Z is still 2024-03-09 in São Paulo.
	ts := time.Date(2024, 3, 10, 1, 0, 0, 0, time.UTC)
	d := map[string]any{"promesaPagoAt": ts, "promesa": "2024-01-01"}
	assert.Equal(t, "2024-03-09", FechaPromesa(d, loc))

	d["promesaPago"] = "2024-02-02"
	assert.Equal(t, "2024-02-02", FechaPromesa(d, loc))

	assert.Equal(t, "2024-01-01", FechaPromesa(map[string]any{"promesa": "2024-01-01"}, loc))
	assert.Equal(t, "", FechaPromesa(map[string]any{}, loc))
}

func TestPromesaCumplida(t *testing.T) {
	assert.True(t, PromesaCumplida(map[string]any{"promesaCumplida": true}))
	assert.False(t, PromesaCumplida(map[string]any{"promesaCumplida": false, "promesa_cumplida": true}))
	assert.True(t, PromesaCumplida(map[string]any{"promesa_cumplida": true}))
	assert.False(t, PromesaCumplida(map[string]any{}))
}

func TestMarcaTiempoEpochMs(t *testing.T) {
	ts, ok := MarcaTiempo(map[string]any{"createdAtMs": float64(1704067200000)})
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), ts)
}
