package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"cobranzas/internal/dto"
	"cobranzas/internal/model"
	"cobranzas/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── Helpers ──────────────────────────────────────────────────────────────────

func mov(id, dia, tipo string, monto float64, extra ...string) *model.Documento {
	datos := map[string]any{
		"tenantId":        "t1",
		"operationalDate": dia,
		"tipo":            tipo,
		"monto":           monto,
	}
	for i := 0; i+1 < len(extra); i += 2 {
		datos[extra[i]] = extra[i+1]
	}
	return &model.Documento{Coleccion: model.ColeccionCajaDiaria, ID: id, TenantID: "t1", Datos: datos}
}

func poner(t *testing.T, s repository.Store, docs ...*model.Documento) {
	t.Helper()
	for _, d := range docs {
		require.NoError(t, s.Put(context.Background(), d))
	}
}

func filtros(desde, hasta string) dto.Filtros {
	return dto.Filtros{TenantID: "t1", Desde: desde, Hasta: hasta}
}

// ultimo keeps the latest emission of a view.
type ultimo[T any] struct {
	n      int
	estado dto.Estado[T]
}

func (u *ultimo[T]) fn(e dto.Estado[T]) {
	u.n++
	u.estado = e
}

func opcionesPrueba() Opciones {
	return Opciones{
		Zona:  time.UTC,
		Ahora: func() time.Time { return time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC) },
	}
}

// ── Caja ─────────────────────────────────────────────────────────────────────

func TestCajaEscenarioDosDias(t *testing.T) {
	store := repository.NewMemoryStore()
	poner(t, store,
		mov("m1", "2024-01-01", "apertura", 1000),
		mov("m2", "2024-01-01", "abono", 200),
		mov("m3", "2024-01-02", "abono", 150),
		mov("m4", "2024-01-02", "gasto_admin", 50),
	)

	var u ultimo[dto.CajaSnapshot]
	sub, err := NewCajaService(store, opcionesPrueba()).Suscribir(context.Background(), filtros("2024-01-01", "2024-01-02"), u.fn)
	require.NoError(t, err)
	defer sub.Cerrar()

	require.False(t, u.estado.Cargando)
	assert.Empty(t, u.estado.Error)
	r := u.estado.Datos.Resumen
	require.Len(t, r.Dias, 2)
	assert.Equal(t, "1200", r.Dias[0].CajaFinal.String())
	assert.Equal(t, "1200", r.Dias[1].Inicial.String())
	assert.Equal(t, "1300", r.Dias[1].CajaFinal.String())
	assert.Equal(t, "1000", r.Inicial.String())
	assert.Equal(t, "350", r.Cobrado.String())
	assert.Equal(t, "1300", r.CajaFinal.String())
	assert.Equal(t, "150", r.PorDia["2024-01-02"].String())
	assert.Equal(t, "50", r.PorTipo["gasto"].String())
	assert.Len(t, u.estado.Datos.Movimientos, 4)
	assert.Equal(t, "cajaDiaria:m1", u.estado.Datos.Movimientos[0].ID)
}

func TestCajaReemiteConNuevoMovimiento(t *testing.T) {
	store := repository.NewMemoryStore()
	poner(t, store, mov("m1", "2024-01-01", "apertura", 100))

	var u ultimo[dto.CajaSnapshot]
	sub, err := NewCajaService(store, opcionesPrueba()).Suscribir(context.Background(), filtros("2024-01-01", "2024-01-01"), u.fn)
	require.NoError(t, err)
	defer sub.Cerrar()
	assert.Equal(t, "100", u.estado.Datos.Resumen.CajaFinal.String())

	poner(t, store, mov("m2", "2024-01-01", "retiro_banco", 30))
	assert.Equal(t, "70", u.estado.Datos.Resumen.CajaFinal.String())
	assert.Equal(t, "30", u.estado.Datos.Resumen.Retiros.String())
}

func TestCajaAperturaDesdeDiaAnterior(t *testing.T) {
	store := repository.NewMemoryStore()
	poner(t, store,
		mov("m1", "2024-01-01", "apertura", 100),
		mov("m2", "2024-01-01", "abono", 50),
		mov("m3", "2024-01-01", "gasto_admin", 20),
		mov("m4", "2024-01-02", "abono", 10),
	)

	var u ultimo[dto.CajaSnapshot]
	sub, err := NewCajaService(store, opcionesPrueba()).Suscribir(context.Background(), filtros("2024-01-02", "2024-01-02"), u.fn)
	require.NoError(t, err)
	defer sub.Cerrar()

	r := u.estado.Datos.Resumen
	assert.Equal(t, "130", r.Inicial.String())
	assert.Equal(t, "140", r.CajaFinal.String())
}

func TestCajaAperturaDesdeDiaAnteriorConFiltroDeRuta(t *testing.T) {
	store := repository.NewMemoryStore()
	poner(t, store,
		mov("m1", "2024-01-01", "apertura", 100, "rutaId", "R1"),
		mov("m2", "2024-01-01", "abono", 50, "rutaId", "R1"),
		// routeless expense counts under any route, in the lookback too
		mov("m3", "2024-01-01", "gasto_admin", 20),
		mov("m4", "2024-01-01", "apertura", 500, "rutaId", "R2"),
		mov("m5", "2024-01-01", "gasto_admin", 7, "rutaId", "R2"),
		mov("m6", "2024-01-02", "abono", 10, "rutaId", "R1"),
	)
	f := filtros("2024-01-02", "2024-01-02")
	f.RutaID = "R1"

	var u ultimo[dto.CajaSnapshot]
	sub, err := NewCajaService(store, opcionesPrueba()).Suscribir(context.Background(), f, u.fn)
	require.NoError(t, err)
	defer sub.Cerrar()

	r := u.estado.Datos.Resumen
	assert.Equal(t, "130", r.Inicial.String())
	assert.Equal(t, "140", r.CajaFinal.String())
}

func TestCajaRetrocesoFallidoSiembraCero(t *testing.T) {
	store := repository.NewMemoryStore()
	poner(t, store,
		mov("m1", "2024-01-01", "apertura", 100),
		mov("m4", "2024-01-02", "abono", 10),
	)
	store.FallarLecturas(errors.New("timeout"))

	var u ultimo[dto.CajaSnapshot]
	sub, err := NewCajaService(store, opcionesPrueba()).Suscribir(context.Background(), filtros("2024-01-02", "2024-01-02"), u.fn)
	require.NoError(t, err)
	defer sub.Cerrar()

	assert.Empty(t, u.estado.Error)
	assert.Equal(t, "0", u.estado.Datos.Resumen.Inicial.String())
	assert.Equal(t, "10", u.estado.Datos.Resumen.CajaFinal.String())
}

func TestCajaGastoAdminSinRuta(t *testing.T) {
	store := repository.NewMemoryStore()
	poner(t, store,
		mov("m1", "2024-01-01", "apertura", 100, "rutaId", "R1"),
		mov("m2", "2024-01-01", "gasto_admin", 25),
		mov("m3", "2024-01-01", "gasto_admin", 40, "rutaId", "R2"),
	)

	f := filtros("2024-01-01", "2024-01-01")
	f.RutaID = "R1"
	var u ultimo[dto.CajaSnapshot]
	sub, err := NewCajaService(store, opcionesPrueba()).Suscribir(context.Background(), f, u.fn)
	require.NoError(t, err)
	defer sub.Cerrar()

	assert.Equal(t, "25", u.estado.Datos.Resumen.Gastos.String())
	assert.Equal(t, "75", u.estado.Datos.Resumen.CajaFinal.String())
}

func TestCajaIncluyePrestamosDemo(t *testing.T) {
	store := repository.NewMemoryStore()
	poner(t, store,
		mov("m1", "2024-01-01", "apertura", 500, "admin", "ana"),
		&model.Documento{
			Coleccion: "clientes/c1/prestamos",
			ID:        "p1",
			TenantID:  "t1",
			Datos: map[string]any{
				"tenantId":      "t1",
				"source":        "demo",
				"fechaInicio":   "2024-01-01",
				"totalPrestamo": 120.0,
				"creadoPor":     "ana",
			},
		},
	)

	f := filtros("2024-01-01", "2024-01-01")
	f.RutaID = "R9"
	f.CobradorID = "ana"
	var u ultimo[dto.CajaSnapshot]
	sub, err := NewCajaService(store, opcionesPrueba()).Suscribir(context.Background(), f, u.fn)
	require.NoError(t, err)
	defer sub.Cerrar()

	// the opening is on no route, so only the demo loan passes R9
	assert.Equal(t, "120", u.estado.Datos.Resumen.Prestado.String())
	require.Len(t, u.estado.Datos.Movimientos, 1)
	assert.True(t, u.estado.Datos.Movimientos[0].Demo)
}

func TestCajaErrorDeFuenteConservaDatos(t *testing.T) {
	store := repository.NewMemoryStore()
	poner(t, store, mov("m1", "2024-01-01", "apertura", 100))

	var u ultimo[dto.CajaSnapshot]
	sub, err := NewCajaService(store, opcionesPrueba()).Suscribir(context.Background(), filtros("2024-01-01", "2024-01-01"), u.fn)
	require.NoError(t, err)
	defer sub.Cerrar()

	store.FallarSuscripciones(model.ColeccionCajaDiaria, errors.New("permission denied"))
	assert.Equal(t, errCaja, u.estado.Error)
	assert.Equal(t, "100", u.estado.Datos.Resumen.CajaFinal.String())
}

func TestCajaFiltrosInvalidos(t *testing.T) {
	svc := NewCajaService(repository.NewMemoryStore(), opcionesPrueba())
	_, err := svc.Suscribir(context.Background(), filtros("2024-01-05", "2024-01-01"), func(dto.Estado[dto.CajaSnapshot]) {})
	assert.ErrorIs(t, err, ErrFiltrosInvalidos)

	_, err = svc.Suscribir(context.Background(), filtros("ayer", "2024-01-01"), func(dto.Estado[dto.CajaSnapshot]) {})
	assert.ErrorIs(t, err, ErrFiltrosInvalidos)
}

func TestSuscripcionActualizarYCerrar(t *testing.T) {
	store := repository.NewMemoryStore()
	poner(t, store,
		mov("m1", "2024-01-01", "apertura", 100),
		mov("m2", "2024-01-02", "apertura", 300),
	)

	var u ultimo[dto.CajaSnapshot]
	sub, err := NewCajaService(store, opcionesPrueba()).Suscribir(context.Background(), filtros("2024-01-01", "2024-01-01"), u.fn)
	require.NoError(t, err)
	assert.Equal(t, "100", u.estado.Datos.Resumen.CajaFinal.String())

	require.NoError(t, sub.Actualizar(context.Background(), filtros("2024-01-02", "2024-01-02")))
	assert.Equal(t, "300", u.estado.Datos.Resumen.CajaFinal.String())
	assert.Equal(t, 2, store.Suscripciones(), "main source and demo loans")

	sub.Cerrar()
	assert.Equal(t, 0, store.Suscripciones())
	n := u.n
	poner(t, store, mov("m3", "2024-01-02", "abono", 5))
	assert.Equal(t, n, u.n)
}
