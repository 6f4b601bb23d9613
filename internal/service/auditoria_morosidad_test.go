package service

import (
	"context"
	"testing"
	"time"

	"cobranzas/internal/dto"
	"cobranzas/internal/model"
	"cobranzas/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func conDato(d *model.Documento, campo string, v any) *model.Documento {
	d.Datos[campo] = v
	return d
}

func auditoria(coleccion, id string, datos map[string]any) *model.Documento {
	datos["tenantId"] = "t1"
	return &model.Documento{Coleccion: coleccion, ID: id, TenantID: "t1", Datos: datos}
}

func auditoriaParams(tipo string) dto.AuditoriaParams {
	return dto.AuditoriaParams{Filtros: filtros("2024-01-01", "2024-01-02"), Tipo: tipo}
}

// ── Auditoría ────────────────────────────────────────────────────────────────

func TestAuditoriaSinLogsSintetizaDesdeCaja(t *testing.T) {
	store := repository.NewMemoryStore()
	poner(t, store,
		conDato(mov("m1", "2024-01-01", "abono", 100, "admin", "ana", "nota", "cuota 3"), "createdAtMs", 2000.0),
		conDato(mov("m2", "2024-01-01", "gasto_admin", 20, "categoria", " papeleria "), "createdAtMs", 1000.0),
		mov("m3", "2024-01-01", "gasto_cobrador", 5, "admin", "ana"),
	)

	var u ultimo[[]dto.AuditoriaRow]
	sub, err := NewAuditoriaService(store, opcionesPrueba()).Suscribir(context.Background(), auditoriaParams("all"), u.fn)
	require.NoError(t, err)
	defer sub.Cerrar()

	filas := u.estado.Datos
	require.Len(t, filas, 2)

	cobro := filas[0]
	assert.Equal(t, "synth:m1", cobro.ID)
	assert.Equal(t, "cobro", cobro.Tipo)
	assert.True(t, cobro.Sintetico)
	assert.Equal(t, "ana", cobro.CobradorID)
	assert.Equal(t, int64(2000), cobro.Ts)
	assert.Equal(t, "cuota 3", cobro.Mensaje)
	assert.Empty(t, cobro.Etiqueta, "collections show the amount instead")
	require.NotNil(t, cobro.Monto)
	assert.Equal(t, "100", cobro.Monto.String())

	gasto := filas[1]
	assert.Equal(t, "gasto_admin", gasto.Tipo)
	assert.Equal(t, "papeleria", gasto.Etiqueta)
}

func TestAuditoriaLogsRealesReemplazanSinteticos(t *testing.T) {
	store := repository.NewMemoryStore()
	poner(t, store, mov("m1", "2024-01-01", "abono", 100))

	var u ultimo[[]dto.AuditoriaRow]
	sub, err := NewAuditoriaService(store, opcionesPrueba()).Suscribir(context.Background(), auditoriaParams(""), u.fn)
	require.NoError(t, err)
	defer sub.Cerrar()
	require.Len(t, u.estado.Datos, 1)
	assert.True(t, u.estado.Datos[0].Sintetico)

	poner(t, store,
		auditoria(model.ColeccionAuditLogsTenant("t1"), "a1", map[string]any{
			"operationalDate": "2024-01-02",
			"type":            "user_update",
			"actor":           "root",
			"message":         "alta de ana",
		}),
		// the root collection also matches the collection-group source
		auditoria(model.ColeccionAuditLogs, "a2", map[string]any{
			"operationalDate": "2024-01-01",
			"eventType":       "prestamo",
			"valor":           800.0,
			"monto":           750.0,
			"createdAtMs":     3000.0,
		}),
	)

	filas := u.estado.Datos
	require.Len(t, filas, 2)
	for _, f := range filas {
		assert.False(t, f.Sintetico)
	}

	a1 := filas[0]
	assert.Equal(t, "a1", a1.ID)
	assert.Equal(t, "usuario", a1.Tipo)
	assert.Equal(t, "root", a1.CobradorID)
	assert.Equal(t, "alta de ana", a1.Etiqueta)
	// no timestamp: midnight of the operational date
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC).UnixMilli(), a1.Ts)

	a2 := filas[1]
	assert.Equal(t, "prestamo", a2.Tipo)
	require.NotNil(t, a2.PrestamoValor)
	assert.Equal(t, "800", a2.PrestamoValor.String())
	assert.Empty(t, a2.Etiqueta)
}

func TestAuditoriaFiltroTipo(t *testing.T) {
	store := repository.NewMemoryStore()
	poner(t, store,
		mov("m1", "2024-01-01", "abono", 100),
		mov("m2", "2024-01-01", "retiro_banco", 40),
		mov("m3", "2024-01-02", "retiro", 10),
	)

	var u ultimo[[]dto.AuditoriaRow]
	sub, err := NewAuditoriaService(store, opcionesPrueba()).Suscribir(context.Background(), auditoriaParams("retiro"), u.fn)
	require.NoError(t, err)
	defer sub.Cerrar()

	require.Len(t, u.estado.Datos, 2)
	assert.Equal(t, "synth:m3", u.estado.Datos[0].ID, "newest first")
	assert.Equal(t, "synth:m2", u.estado.Datos[1].ID)
}

// ── Morosidad ────────────────────────────────────────────────────────────────

func TestMorosidadResumen(t *testing.T) {
	store := repository.NewMemoryStore()
	poner(t, store,
		prestamo("p1", map[string]any{"restante": 500.0, "diasAtraso": 3.0, "clienteNombre": "Marta"}),
		prestamo("p2", map[string]any{"restante": 200.0, "atraso": true}),
		prestamo("p3", map[string]any{"restante": 100.0}),
		prestamo("p4", map[string]any{"restante": 0.0, "diasAtraso": 9.0}),
		prestamo("p5", map[string]any{"restante": "500", "diasAtraso": 5.0, "rutaId": "R1"}),
	)

	var u ultimo[dto.MorosidadSnapshot]
	sub, err := NewMorosidadService(store, opcionesPrueba()).Suscribir(context.Background(),
		dto.MorosidadParams{TenantID: "t1", Top: 2}, u.fn)
	require.NoError(t, err)
	defer sub.Cerrar()

	snap := u.estado.Datos
	assert.Equal(t, 4, snap.Activos)
	assert.Equal(t, 3, snap.EnAtraso)
	assert.Equal(t, "0.75", snap.Ratio.String())
	require.Len(t, snap.Top, 2)
	assert.Equal(t, "p5", snap.Top[0].PrestamoID)
	assert.Equal(t, "p1", snap.Top[1].PrestamoID)
	assert.Equal(t, "Marta", snap.Top[1].ClienteNombre)
	assert.Equal(t, 3, snap.Top[1].DiasAtraso)
}

func TestMorosidadFiltroRutaYSinTenant(t *testing.T) {
	store := repository.NewMemoryStore()
	poner(t, store,
		prestamo("p1", map[string]any{"restante": 500.0, "diasAtraso": 3.0}),
		prestamo("p5", map[string]any{"restante": 500.0, "diasAtraso": 5.0, "rutaId": "R1"}),
	)
	svc := NewMorosidadService(store, opcionesPrueba())

	var u ultimo[dto.MorosidadSnapshot]
	sub, err := svc.Suscribir(context.Background(), dto.MorosidadParams{TenantID: "t1", RutaID: "R1"}, u.fn)
	require.NoError(t, err)
	defer sub.Cerrar()
	assert.Equal(t, 1, u.estado.Datos.Activos)
	assert.Equal(t, "1", u.estado.Datos.Ratio.String())

	_, err = svc.Suscribir(context.Background(), dto.MorosidadParams{}, func(dto.Estado[dto.MorosidadSnapshot]) {})
	assert.ErrorIs(t, err, ErrFiltrosInvalidos)
}

func TestMorosidadSinPrestamos(t *testing.T) {
	var u ultimo[dto.MorosidadSnapshot]
	sub, err := NewMorosidadService(repository.NewMemoryStore(), opcionesPrueba()).Suscribir(context.Background(),
		dto.MorosidadParams{TenantID: "t1"}, u.fn)
	require.NoError(t, err)
	defer sub.Cerrar()

	assert.False(t, u.estado.Cargando)
	assert.Equal(t, 0, u.estado.Datos.Activos)
	assert.True(t, u.estado.Datos.Ratio.IsZero())
	assert.Empty(t, u.estado.Datos.Top)
}
