package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"cobranzas/internal/config"
	"cobranzas/internal/infra"
	"cobranzas/internal/repository"
	"cobranzas/internal/router"
	"cobranzas/internal/service"
	"cobranzas/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Structured logger: dev pretty, prod JSON
	if os.Getenv("APP_ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

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

	// Point reads and lookback queries go through the breaker; live
	// subscriptions report their own errors.
	storeCB := infra.NewCircuitBreaker(infra.CircuitBreakerConfig{
		FailureThreshold: cfg.StoreCBFailureThreshold,
		OpenTimeout:      time.Duration(cfg.StoreCBOpenSeconds) * time.Second,
	})
	store := repository.NewStoreProtegido(repository.NewPostgresStore(db, rdb), storeCB)

	// Worker handlers are wired here (composition root) so that the pool
	// has access to the store and the mailer.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mailer := infra.NewMailer(cfg)
	dispatcher := worker.NewDispatcher(rdb)

	workerHandlers := &worker.WorkerHandlers{
		Movimientos: worker.NewMovimientoWorker(store),
		Email:       worker.NewEmailWorker(mailer),
	}
	worker.StartWorkerPool(ctx, rdb, workerHandlers, cfg.WorkerPoolSize)

	if cfg.DLQReplaySeconds > 0 {
		worker.StartRetryCron(ctx, worker.RetryCronConfig{
			RDB:       rdb,
			CB:        storeCB,
			Intervalo: time.Duration(cfg.DLQReplaySeconds) * time.Second,
		})
	}

	opts := service.OpcionesDeConfig(cfg)
	if cfg.AlertasDigestIntervaloMin > 0 {
		worker.StartDigestCron(ctx, worker.DigestCronConfig{
			Alertas:       service.NewAlertasService(store, opts),
			Cola:          dispatcher,
			CB:            storeCB,
			Tenants:       config.Lista(cfg.AlertasDigestTenants),
			Destinatarios: config.Lista(cfg.AlertasDigestDestinatarios),
			Intervalo:     time.Duration(cfg.AlertasDigestIntervaloMin) * time.Minute,
			Dias:          cfg.AlertasDigestDias,
			Zona:          opts.Zona,
		})
	}

	r := router.New(cfg, db, rdb, router.Dependencias{
		Store:   store,
		StoreCB: storeCB,
		Cola:    dispatcher,
	})

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     r,
		ReadTimeout: 10 * time.Second,
		// no WriteTimeout: view streams stay open until the client leaves
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("cobranzas backend listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
