// cmd/seed/main.go: carga datos de demo para un tenant.
// Uso: go run ./cmd/seed -tenant demo -dias 5
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"cobranzas/internal/config"
	"cobranzas/internal/dto"
	"cobranzas/internal/infra"
	"cobranzas/internal/model"
	"cobranzas/internal/repository"
	"cobranzas/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type cobradorDemo struct {
	id   string
	ruta string
}

var cobradores = []cobradorDemo{{"ana", "R1"}, {"beto", "R2"}}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	tenant := flag.String("tenant", "demo", "tenant id")
	dias := flag.Int("dias", 5, "dias de movimientos hasta hoy")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	ctx := context.Background()
	store := repository.NewPostgresStore(db, rdb)
	ingesta := service.NewIngestaService(store, nil)
	zona := infra.CargarZona(cfg.TenantTZ)
	hoy := time.Now().In(zona)

	n := 0
	for i := *dias - 1; i >= 0; i-- {
		dia := hoy.AddDate(0, 0, -i).Format("2006-01-02")
		for j, c := range cobradores {
			base := int64(100 * (j + 1))
			movs := []dto.MovimientoRequest{
				{Tipo: "abono", Monto: decimal.NewFromInt(base + int64(10*i)), ClienteNombre: "Cliente " + c.id},
				{Tipo: "gasto_cobrador", Monto: decimal.NewFromInt(15), Categoria: "transporte"},
				{Tipo: "prestamo", Monto: decimal.NewFromInt(base * 2), ClienteNombre: "Cliente nuevo " + c.id},
			}
			if i == *dias-1 {
				movs = append([]dto.MovimientoRequest{{Tipo: "apertura", Monto: decimal.NewFromInt(500)}}, movs...)
			}
			if j == 0 {
				movs = append(movs, dto.MovimientoRequest{Tipo: "gasto_admin", Monto: decimal.NewFromInt(20), Categoria: "papeleria"})
			}
			for _, m := range movs {
				m.OperationalDate = dia
				m.RutaID = c.ruta
				m.CobradorID = c.id
				if _, err := ingesta.EncolarMovimiento(ctx, *tenant, "seed", m); err != nil {
					log.Fatal().Err(err).Str("dia", dia).Msg("failed to seed movimiento")
				}
				n++
			}
			// today's closings stay open so the alerts view has something to show
			if i > 0 {
				cierre := dto.CierreRequest{Dia: dia, CobradorID: c.id, CajaFinal: decimal.NewFromInt(base * 3)}
				if _, err := ingesta.RegistrarCierre(ctx, *tenant, "seed", cierre); err != nil {
					log.Fatal().Err(err).Str("dia", dia).Msg("failed to seed cierre")
				}
			}
		}
	}

	for k, c := range cobradores {
		for p := 0; p < 3; p++ {
			datos := map[string]any{
				"tenantId":      *tenant,
				"rutaId":        c.ruta,
				"admin":         c.id,
				"clienteNombre": fmt.Sprintf("Cliente %s %d", c.id, p+1),
				"restante":      float64(300 * (p + 1)),
				"diasAtraso":    float64((p + k) % 3 * 4),
				"promesaPago":   hoy.AddDate(0, 0, -p).Format("2006-01-02"),
			}
			doc := &model.Documento{
				Coleccion: model.ColeccionPrestamos,
				ID:        uuid.NewString(),
				TenantID:  *tenant,
				Datos:     datos,
			}
			if err := store.Put(ctx, doc); err != nil {
				log.Fatal().Err(err).Msg("failed to seed prestamo")
			}
		}
	}

	log.Info().Str("tenant", *tenant).Int("movimientos", n).Msg("seed completed")
}
