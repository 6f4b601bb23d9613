//go:build integration

package router

// End-to-end tests against real Postgres + Redis via testcontainers.
// Run with: go test -tags integration ./internal/router/... -v

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cobranzas/internal/dto"
	"cobranzas/internal/infra"
	"cobranzas/internal/middleware"
	"cobranzas/internal/repository"
	"cobranzas/internal/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// ── Test Suite Setup ─────────────────────────────────────────────────────────

type testEnv struct {
	server *httptest.Server
	token  string // admin JWT
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcPostgres.WithDatabase("cobranzas_test"),
		tcPostgres.WithUsername("cobranzas"),
		tcPostgres.WithPassword("cobranzas"),
		testcontainers.WithWaitStrategy(
			tcPostgres.BasicWaitStrategies()...,
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rdC, err := tcRedis.RunContainer(ctx,
		testcontainers.WithImage("redis:7-alpine"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })

	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := newTestCfg()
	cfg.DatabaseURL = pgURL
	cfg.RedisURL = rdURL
	cfg.WorkerPoolSize = 1

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	require.NoError(t, err)

	rdb, err := infra.NewRedis(cfg.RedisURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	cb := infra.NewCircuitBreaker(infra.DefaultCBConfig())
	store := repository.NewStoreProtegido(repository.NewPostgresStore(db, rdb), cb)

	workerCtx, cancel := context.WithCancel(ctx)
	t.Cleanup(cancel)
	worker.StartWorkerPool(workerCtx, rdb, &worker.WorkerHandlers{
		Movimientos: worker.NewMovimientoWorker(store),
	}, cfg.WorkerPoolSize)

	engine := New(cfg, db, rdb, Dependencias{Store: store, StoreCB: cb, Cola: worker.NewDispatcher(rdb)})
	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, token: token(t, middleware.RolAdministrador, "admin")}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.token)
	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestE2E_Health(t *testing.T) {
	env := setupTestEnv(t)
	resp := env.do(t, http.MethodGet, "/health", nil)
	var body map[string]any
	decodeJSON(t, resp, &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "connected", body["db"])
	assert.Equal(t, "closed", body["store_cb"])
}

// Movement accepted → worker persists it → caja and cierres reflect it.
func TestE2E_MovimientoEncoladoLlegaACaja(t *testing.T) {
	env := setupTestEnv(t)

	for _, m := range []map[string]any{
		{"tipo": "apertura", "monto": "500", "operational_date": "2024-03-01", "cobrador_id": "ana", "ruta_id": "R1"},
		{"tipo": "abono", "monto": "120", "operational_date": "2024-03-01", "cobrador_id": "ana", "ruta_id": "R1"},
		{"tipo": "gasto_admin", "monto": "20", "operational_date": "2024-03-01", "cobrador_id": "ana", "categoria": "papeleria"},
	} {
		resp := env.do(t, http.MethodPost, "/v1/movimientos", m)
		var ack dto.MovimientoAceptadoResponse
		decodeJSON(t, resp, &ack)
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
		assert.Equal(t, "encolado", ack.Estado)
	}

	var e dto.Estado[dto.CajaSnapshot]
	require.Eventually(t, func() bool {
		resp := env.do(t, http.MethodGet, "/v1/caja?desde=2024-03-01&hasta=2024-03-01", nil)
		decodeJSON(t, resp, &e)
		return resp.StatusCode == http.StatusOK && len(e.Datos.Movimientos) == 3
	}, 10*time.Second, 200*time.Millisecond)
	assert.Equal(t, "600", e.Datos.Resumen.CajaFinal.String())

	resp := env.do(t, http.MethodGet, "/v1/cierres?desde=2024-03-01&hasta=2024-03-01", nil)
	var c dto.Estado[dto.CierresSnapshot]
	decodeJSON(t, resp, &c)
	require.Len(t, c.Datos.Dias, 1)
	assert.Equal(t, "600", c.Datos.Dias[0].CajaFinal.String())

	// no closing yet for ana on 2024-03-01
	resp = env.do(t, http.MethodGet, "/v1/alertas?desde=2024-03-01&hasta=2024-03-01", nil)
	var a dto.Estado[[]dto.Alerta]
	decodeJSON(t, resp, &a)
	require.NotEmpty(t, a.Datos)
	assert.Equal(t, "cierre_faltante", a.Datos[0].Tipo)

	resp = env.do(t, http.MethodPost, "/v1/cierres", map[string]any{"dia": "2024-03-01", "cobrador_id": "ana", "caja_final": "600"})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}
