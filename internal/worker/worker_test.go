package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"cobranzas/internal/dto"
	"cobranzas/internal/infra"
	"cobranzas/internal/model"
	"cobranzas/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payloadPrueba() MovimientoJobPayload {
	return MovimientoJobPayload{
		ID:       "mov-1",
		TenantID: "t1",
		Actor:    "ana",
		Movimiento: dto.MovimientoRequest{
			Tipo:            "abono",
			Monto:           decimal.RequireFromString("125.50"),
			OperationalDate: "2024-01-01",
			RutaID:          "R1",
			ClienteNombre:   "Marta",
		},
		RecibidoEn: time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC),
	}
}

// ── Movimientos ──────────────────────────────────────────────────────────────

func TestDocumentoMovimiento(t *testing.T) {
	doc, err := DocumentoMovimiento(payloadPrueba())
	require.NoError(t, err)

	assert.Equal(t, model.ColeccionCajaDiaria, doc.Coleccion)
	assert.Equal(t, "mov-1", doc.ID)
	assert.Equal(t, "t1", doc.TenantID)
	assert.Equal(t, json.Number("125.5"), doc.Datos["monto"])
	assert.Equal(t, "ana", doc.Datos["admin"], "the actor is the collector when none is given")
	assert.Equal(t, "R1", doc.Datos["rutaId"])
	assert.Equal(t, "Marta", doc.Datos["clienteNombre"])
	assert.NotContains(t, doc.Datos, "prestamoId")
	assert.Equal(t, int64(1704121200000), doc.Datos["createdAtMs"])
}

func TestDocumentoMovimientoCobradorExplicito(t *testing.T) {
	p := payloadPrueba()
	p.Movimiento.CobradorID = "beto"
	doc, err := DocumentoMovimiento(p)
	require.NoError(t, err)
	assert.Equal(t, "beto", doc.Datos["admin"])
	assert.Equal(t, "ana", doc.Datos["registradoPor"])
}

func TestDocumentoMovimientoSinTenant(t *testing.T) {
	p := payloadPrueba()
	p.TenantID = ""
	_, err := DocumentoMovimiento(p)
	assert.ErrorIs(t, err, ErrPayloadInvalido)
	assert.True(t, esPermanente(err))
}

func TestMovimientoWorkerProcess(t *testing.T) {
	store := repository.NewMemoryStore()
	w := NewMovimientoWorker(store)

	raw, err := json.Marshal(payloadPrueba())
	require.NoError(t, err)
	require.NoError(t, w.Process(context.Background(), raw))
	// a retried job overwrites its own document
	require.NoError(t, w.Process(context.Background(), raw))

	docs, err := store.QueryOnce(context.Background(), repository.Consulta{TenantID: "t1", Coleccion: model.ColeccionCajaDiaria})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "abono", docs[0].Datos["tipo"])

	err = w.Process(context.Background(), json.RawMessage(`{"id":`))
	assert.ErrorIs(t, err, ErrPayloadInvalido)
}

func TestHandlersTipoDesconocido(t *testing.T) {
	h := &WorkerHandlers{}
	assert.Error(t, h.handle(context.Background(), Job{Type: "factura"}))
	assert.Error(t, h.handle(context.Background(), Job{Type: "movimiento"}))
}

// ── Digest ───────────────────────────────────────────────────────────────────

type alertasFalsas struct {
	porTenant map[string][]dto.Alerta
	filtros   []dto.Filtros
}

func (a *alertasFalsas) Calcular(_ context.Context, f dto.Filtros) ([]dto.Alerta, error) {
	a.filtros = append(a.filtros, f)
	if f.TenantID == "roto" {
		return nil, errors.New("store down")
	}
	return a.porTenant[f.TenantID], nil
}

type colaEmail struct {
	emails []EmailJobPayload
}

func (c *colaEmail) EnqueueEmail(_ context.Context, p EmailJobPayload) error {
	c.emails = append(c.emails, p)
	return nil
}

func TestProcesarDigest(t *testing.T) {
	alertas := &alertasFalsas{porTenant: map[string][]dto.Alerta{
		"t1": {{ID: "cierre:2024-01-09:ana", Severidad: "high", Fecha: "2024-01-09", Mensaje: "Falta cierre de ana en 2024-01-09"}},
	}}
	cola := &colaEmail{}
	cfg := DigestCronConfig{
		Alertas:       alertas,
		Cola:          cola,
		Tenants:       []string{"roto", "t1", "t2"},
		Destinatarios: []string{"ops@example.com"},
		Dias:          7,
		Zona:          time.UTC,
	}

	procesarDigest(context.Background(), cfg, time.Date(2024, 1, 10, 3, 0, 0, 0, time.UTC))

	require.Len(t, alertas.filtros, 3)
	assert.Equal(t, "2024-01-04", alertas.filtros[1].Desde)
	assert.Equal(t, "2024-01-10", alertas.filtros[1].Hasta)

	require.Len(t, cola.emails, 1, "tenants without alerts get no email")
	e := cola.emails[0]
	assert.Equal(t, []string{"ops@example.com"}, e.To)
	assert.Equal(t, "[t1] 1 alertas abiertas (2024-01-04 a 2024-01-10)", e.Subject)
	assert.Contains(t, e.Body, "- [HIGH] 2024-01-09 Falta cierre de ana en 2024-01-09")
}

func TestProcesarDigestZonaDelTenant(t *testing.T) {
	alertas := &alertasFalsas{}
	cfg := DigestCronConfig{
		Alertas:       alertas,
		Cola:          &colaEmail{},
		Tenants:       []string{"t1"},
		Destinatarios: []string{"ops@example.com"},
		Dias:          1,
		Zona:          time.FixedZone("BRT", -3*3600),
	}
	// 01:00 UTC is still the previous day at UTC-3
	procesarDigest(context.Background(), cfg, time.Date(2024, 1, 10, 1, 0, 0, 0, time.UTC))
	require.Len(t, alertas.filtros, 1)
	assert.Equal(t, "2024-01-09", alertas.filtros[0].Desde)
	assert.Equal(t, "2024-01-09", alertas.filtros[0].Hasta)
}

func TestProcesarDigestCircuitoAbierto(t *testing.T) {
	cb := infra.NewCircuitBreaker(infra.CircuitBreakerConfig{FailureThreshold: 1, OpenTimeout: time.Hour})
	_ = cb.Execute(func() error { return errors.New("x") })
	require.Equal(t, infra.CBOpen, cb.State())

	alertas := &alertasFalsas{}
	cfg := DigestCronConfig{
		Alertas:       alertas,
		Cola:          &colaEmail{},
		CB:            cb,
		Tenants:       []string{"t1"},
		Destinatarios: []string{"ops@example.com"},
	}
	procesarDigest(context.Background(), cfg, time.Now())
	assert.Empty(t, alertas.filtros)
}

// ── DLQ replay ────────────────────────────────────────────────────────────────

func TestReintentable(t *testing.T) {
	assert.True(t, reintentable(DLQEntry{JobType: "movimiento", Replays: 0}))
	assert.True(t, reintentable(DLQEntry{JobType: "movimiento", Replays: MaxReplays - 1}))
	assert.False(t, reintentable(DLQEntry{JobType: "movimiento", Replays: MaxReplays}))
	assert.False(t, reintentable(DLQEntry{JobType: "movimiento", Permanente: true}))
	assert.False(t, reintentable(DLQEntry{JobType: "desconocido"}))
}

func TestProcessRetriesCircuitoAbierto(t *testing.T) {
	cb := infra.NewCircuitBreaker(infra.CircuitBreakerConfig{FailureThreshold: 1})
	_ = cb.Execute(func() error { return assert.AnError })
	require.Equal(t, infra.CBOpen, cb.State())

	// an open breaker returns before touching Redis
	processRetries(context.Background(), RetryCronConfig{CB: cb}, QueueMovimientos)
}
