package stream

import (
	"context"
	"errors"
	"testing"

	"cobranzas/internal/model"
	"cobranzas/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doc(col, id, tipo string) model.Documento {
	return model.Documento{Coleccion: col, ID: id, TenantID: "t1", Datos: map[string]any{"tipo": tipo, "tenantId": "t1"}}
}

func claves(c Cambio) []string {
	out := make([]string, 0, len(c.Entradas))
	for _, e := range c.Entradas {
		out = append(out, e.Clave)
	}
	return out
}

func TestMergerDeduplicaYReemplaza(t *testing.T) {
	var ultimo Cambio
	m := NewMerger([]Fuente{
		{Nombre: "principal", Consulta: repository.Consulta{Coleccion: "cajaDiaria"}},
		{Nombre: "gastos", Consulta: repository.Consulta{Coleccion: "cajaDiaria"}},
		{Nombre: "demo", Consulta: repository.Consulta{Coleccion: "prestamos", Grupo: true}},
	}, func(c Cambio) { ultimo = c })

	m.Actualizar(0, []model.Documento{doc("cajaDiaria", "a", "abono"), doc("cajaDiaria", "g", "gasto_admin")})
	assert.True(t, ultimo.Cargando)
	assert.Equal(t, []string{"cajaDiaria:a", "cajaDiaria:g"}, claves(ultimo))

	// overlapping source reports the same expense
	m.Actualizar(1, []model.Documento{doc("cajaDiaria", "g", "gasto_admin")})
	assert.Equal(t, []string{"cajaDiaria:a", "cajaDiaria:g"}, claves(ultimo))

	// same raw id in another collection never collides
	m.Actualizar(2, []model.Documento{doc("clientes/c1/prestamos", "a", "prestamo")})
	assert.False(t, ultimo.Cargando)
	assert.Equal(t, []string{"cajaDiaria:a", "cajaDiaria:g", "clientes/c1/prestamos:a"}, claves(ultimo))

	// last write wins per source: the main source drops "a"
	m.Actualizar(0, []model.Documento{doc("cajaDiaria", "g", "gasto_admin")})
	assert.Equal(t, []string{"cajaDiaria:g", "clientes/c1/prestamos:a"}, claves(ultimo))
}

func TestMergerFuenteVaciaNoEsError(t *testing.T) {
	var ultimo Cambio
	m := NewMerger([]Fuente{{Nombre: "principal", Consulta: repository.Consulta{Coleccion: "cajaDiaria"}}},
		func(c Cambio) { ultimo = c })
	m.Actualizar(0, []model.Documento{})
	assert.NoError(t, ultimo.Err)
	assert.False(t, ultimo.Cargando)
	assert.Empty(t, ultimo.Entradas)
}

func TestMergerFallaConservaUltimoSnapshot(t *testing.T) {
	var ultimo Cambio
	m := NewMerger([]Fuente{{Nombre: "principal", Consulta: repository.Consulta{Coleccion: "cajaDiaria"}}},
		func(c Cambio) { ultimo = c })
	m.Actualizar(0, []model.Documento{doc("cajaDiaria", "a", "abono")})
	m.Fallar(0, errors.New("quota"))
	assert.EqualError(t, ultimo.Err, "quota")
	assert.Len(t, ultimo.Entradas, 1)

	m.Actualizar(0, []model.Documento{doc("cajaDiaria", "a", "abono")})
	assert.NoError(t, ultimo.Err)
}

func TestVistaReiniciarDisponeSuscripciones(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()
	v := NewVista(store, "caja")

	var cambios []Cambio
	fuentes := []Fuente{
		{Nombre: "principal", Consulta: repository.Consulta{TenantID: "t1", Coleccion: "cajaDiaria"}},
		{Nombre: "gastos", Consulta: repository.Consulta{TenantID: "t1", Coleccion: "cajaDiaria"}.Con("tipo", "gasto_admin")},
	}
	require.NoError(t, v.Iniciar(ctx, fuentes, func(c Cambio) { cambios = append(cambios, c) }))
	assert.Equal(t, 2, store.Suscripciones())
	assert.Equal(t, 2, v.Activas())
	require.Len(t, cambios, 2)
	assert.False(t, cambios[1].Cargando)

	var nuevos []Cambio
	require.NoError(t, v.Iniciar(ctx, fuentes[:1], func(c Cambio) { nuevos = append(nuevos, c) }))
	assert.Equal(t, 1, store.Suscripciones())

	d := doc("cajaDiaria", "x", "abono")
	require.NoError(t, store.Put(ctx, &d))
	assert.Len(t, cambios, 2, "replaced callbacks must not fire")
	require.Len(t, nuevos, 2)
	assert.Len(t, nuevos[1].Entradas, 1)

	v.Cerrar()
	assert.Equal(t, 0, store.Suscripciones())
	assert.ErrorIs(t, v.Iniciar(ctx, fuentes, func(Cambio) {}), ErrVistaCerrada)
}

func TestVistaErrorDeFuente(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()
	v := NewVista(store, "caja")
	defer v.Cerrar()

	var ultimo Cambio
	require.NoError(t, v.Iniciar(ctx, []Fuente{
		{Nombre: "principal", Consulta: repository.Consulta{TenantID: "t1", Coleccion: "cajaDiaria"}},
	}, func(c Cambio) { ultimo = c }))

	d := doc("cajaDiaria", "x", "abono")
	require.NoError(t, store.Put(ctx, &d))
	store.FallarSuscripciones("cajaDiaria", errors.New("permission denied"))

	assert.EqualError(t, ultimo.Err, "permission denied")
	assert.Len(t, ultimo.Entradas, 1)
}
