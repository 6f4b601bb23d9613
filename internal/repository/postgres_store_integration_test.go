//go:build integration

package repository

// Postgres + Redis store tests against real containers.
// Run with: go test -tags integration ./internal/repository/... -v

import (
	"context"
	"sync"
	"testing"
	"time"

	"cobranzas/internal/infra"
	"cobranzas/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func setupPostgresStore(t *testing.T) *PostgresStore {
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

	db, err := infra.NewDatabase(pgURL)
	require.NoError(t, err)
	rdb, err := infra.NewRedis(rdURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	return NewPostgresStore(db, rdb)
}

func TestPostgresStoreConsultaYPointRead(t *testing.T) {
	s := setupPostgresStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, mov("a", "t1", "2024-01-01", "abono", 10)))
	require.NoError(t, s.Put(ctx, mov("b", "t1", "2024-01-02", "gasto_admin", 5)))
	require.NoError(t, s.Put(ctx, mov("c", "t1", "2024-01-05", "abono", 7)))
	require.NoError(t, s.Put(ctx, mov("d", "t2", "2024-01-01", "abono", 1)))

	docs, err := s.QueryOnce(ctx, Consulta{
		TenantID:   "t1",
		Coleccion:  model.ColeccionCajaDiaria,
		CampoFecha: "operationalDate",
		Desde:      "2024-01-01",
		Hasta:      "2024-01-02",
		Orden:      Orden{Campo: "operationalDate", Desc: true},
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "b", docs[0].ID)
	assert.Equal(t, "gasto_admin", docs[0].Datos["tipo"])

	docs, err = s.QueryOnce(ctx, Consulta{TenantID: "t1", Coleccion: model.ColeccionCajaDiaria}.Con("tipo", "abono"))
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	_, err = s.PointRead(ctx, model.ColeccionCajaDiaria, "a")
	require.NoError(t, err)
	_, err = s.PointRead(ctx, model.ColeccionCajaDiaria, "zzz")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStoreSuscripcionRecibeCambios(t *testing.T) {
	s := setupPostgresStore(t)
	ctx := context.Background()

	var mu sync.Mutex
	var ultimo []model.Documento
	entregas := 0

	dispose, err := s.SubscribeRange(ctx, Consulta{TenantID: "t1", Coleccion: model.ColeccionCajaDiaria},
		func(docs []model.Documento) {
			mu.Lock()
			defer mu.Unlock()
			ultimo = docs
			entregas++
		}, func(err error) { t.Logf("subscription error: %v", err) })
	require.NoError(t, err)
	defer dispose()

	require.NoError(t, s.Put(ctx, mov("a", "t1", "2024-01-01", "abono", 10)))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ultimo) == 1
	}, 5*time.Second, 20*time.Millisecond)

	dispose()
	mu.Lock()
	antes := entregas
	mu.Unlock()

	require.NoError(t, s.Put(ctx, mov("b", "t1", "2024-01-01", "abono", 10)))
	time.Sleep(200 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, antes, entregas)
}
