package worker

// alertas_digest.go
// Background goroutine that periodically computes the alerts of the
// configured tenants over the last days and enqueues one digest email per
// tenant with open alerts. Skips ticks while the store circuit breaker is open.

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cobranzas/internal/dto"
	"cobranzas/internal/infra"

	"github.com/rs/zerolog/log"
)

// CalculadorAlertas computes the alerts of one window without subscribing.
type CalculadorAlertas interface {
	Calcular(ctx context.Context, f dto.Filtros) ([]dto.Alerta, error)
}

// EncoladorEmail enqueues email jobs.
type EncoladorEmail interface {
	EnqueueEmail(ctx context.Context, payload EmailJobPayload) error
}

// DigestCronConfig holds all dependencies for the digest goroutine.
type DigestCronConfig struct {
	Alertas       CalculadorAlertas
	Cola          EncoladorEmail
	CB            *infra.CircuitBreaker // optional
	Tenants       []string
	Destinatarios []string
	Intervalo     time.Duration
	Dias          int
	Zona          *time.Location
}

// StartDigestCron launches the digest goroutine. It respects the context for
// graceful shutdown.
func StartDigestCron(ctx context.Context, cfg DigestCronConfig) {
	go func() {
		ticker := time.NewTicker(cfg.Intervalo)
		defer ticker.Stop()

		log.Info().Strs("tenants", cfg.Tenants).Dur("intervalo", cfg.Intervalo).Msg("alertas_digest: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("alertas_digest: shutting down")
				return
			case now := <-ticker.C:
				procesarDigest(ctx, cfg, now)
			}
		}
	}()
}

func procesarDigest(ctx context.Context, cfg DigestCronConfig, now time.Time) {
	if cfg.CB != nil && cfg.CB.State() == infra.CBOpen {
		log.Debug().Msg("alertas_digest: circuit breaker is open, skipping tick")
		return
	}
	if len(cfg.Destinatarios) == 0 {
		return
	}
	dias := cfg.Dias
	if dias <= 0 {
		dias = 7
	}
	hasta := infra.HoyEn(cfg.Zona, now)
	fin, _ := time.Parse("2006-01-02", hasta)
	desde := fin.AddDate(0, 0, -(dias - 1)).Format("2006-01-02")

	for _, tenant := range cfg.Tenants {
		alertas, err := cfg.Alertas.Calcular(ctx, dto.Filtros{TenantID: tenant, Desde: desde, Hasta: hasta})
		if err != nil {
			log.Error().Err(err).Str("tenant_id", tenant).Msg("alertas_digest: failed to compute alerts")
			continue
		}
		if len(alertas) == 0 {
			continue
		}
		payload := EmailJobPayload{
			To:      cfg.Destinatarios,
			Subject: fmt.Sprintf("[%s] %d alertas abiertas (%s a %s)", tenant, len(alertas), desde, hasta),
			Body:    CuerpoDigest(tenant, desde, hasta, alertas),
		}
		if err := cfg.Cola.EnqueueEmail(ctx, payload); err != nil {
			log.Error().Err(err).Str("tenant_id", tenant).Msg("alertas_digest: failed to enqueue email")
			continue
		}
		log.Info().Str("tenant_id", tenant).Int("alertas", len(alertas)).Msg("alertas_digest: digest enqueued")
	}
}

// CuerpoDigest renders the plain-text digest body.
func CuerpoDigest(tenant, desde, hasta string, alertas []dto.Alerta) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Alertas de %s entre %s y %s\n\n", tenant, desde, hasta)
	for _, a := range alertas {
		fmt.Fprintf(&b, "- [%s] %s %s\n", strings.ToUpper(a.Severidad), a.Fecha, a.Mensaje)
	}
	return b.String()
}
