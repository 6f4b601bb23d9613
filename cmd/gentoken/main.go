// cmd/gentoken/main.go: emite un JWT de desarrollo.
// Uso: go run ./cmd/gentoken -tenant t1 -rol cobrador -actor ana
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"cobranzas/internal/config"
	"cobranzas/internal/middleware"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	tenant := flag.String("tenant", "demo", "tenant id")
	rol := flag.String("rol", middleware.RolAdministrador, "administrador | cobrador")
	actor := flag.String("actor", "", "actor (cobrador)")
	horas := flag.Int("horas", 0, "validez en horas (default JWT_EXPIRATION_HOURS)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET no configurado")
	}
	if *horas <= 0 {
		*horas = cfg.JWTExpirationHours
	}

	token, err := middleware.NewToken(cfg.JWTSecret, middleware.JWTClaims{
		UserID:   uuid.NewString(),
		TenantID: *tenant,
		Actor:    *actor,
		Rol:      *rol,
	}, time.Duration(*horas)*time.Hour)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to sign token")
	}
	fmt.Println(token)
}
