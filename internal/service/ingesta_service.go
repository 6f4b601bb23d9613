package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cobranzas/internal/caja"
	"cobranzas/internal/dto"
	"cobranzas/internal/model"
	"cobranzas/internal/repository"
	"cobranzas/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrTipoDesconocido is returned when a cash event kind is outside the
// vocabulary the readers understand.
var ErrTipoDesconocido = errors.New("tipo de movimiento desconocido")

// Encolador enqueues ingestion jobs; *worker.Dispatcher implements it.
type Encolador interface {
	EnqueueMovimiento(ctx context.Context, payload worker.MovimientoJobPayload) error
}

// IngestaService accepts cash events and daily closings. Events are written
// by the worker pool; closings are written synchronously.
type IngestaService interface {
	EncolarMovimiento(ctx context.Context, tenantID, actor string, req dto.MovimientoRequest) (*dto.MovimientoAceptadoResponse, error)
	RegistrarCierre(ctx context.Context, tenantID, actor string, req dto.CierreRequest) (*dto.CierreResponse, error)
}

type ingestaService struct {
	store repository.Store
	cola  Encolador
	ahora func() time.Time
}

// NewIngestaService wires ingestion. A nil cola writes events inline.
func NewIngestaService(store repository.Store, cola Encolador) IngestaService {
	return &ingestaService{store: store, cola: cola, ahora: time.Now}
}

// ── EncolarMovimiento ────────────────────────────────────────────────────────

func (s *ingestaService) EncolarMovimiento(ctx context.Context, tenantID, actor string, req dto.MovimientoRequest) (*dto.MovimientoAceptadoResponse, error) {
	tipo := caja.NormalizarTipoReal(req.Tipo)
	if _, ok := caja.Normalizar(tipo); !ok && tipo != caja.TipoRealGastoCobrador {
		return nil, fmt.Errorf("%w: %q", ErrTipoDesconocido, req.Tipo)
	}
	req.Tipo = tipo

	payload := worker.MovimientoJobPayload{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		Actor:      actor,
		Movimiento: req,
		RecibidoEn: s.ahora().UTC(),
	}

	if s.cola == nil {
		doc, err := worker.DocumentoMovimiento(payload)
		if err != nil {
			return nil, err
		}
		if err := s.store.Put(ctx, doc); err != nil {
			return nil, err
		}
		return &dto.MovimientoAceptadoResponse{ID: payload.ID, Estado: "registrado"}, nil
	}

	if err := s.cola.EnqueueMovimiento(ctx, payload); err != nil {
		return nil, fmt.Errorf("encolar movimiento: %w", err)
	}
	log.Debug().Str("tenant_id", tenantID).Str("movimiento_id", payload.ID).Msg("ingesta: movimiento encolado")
	return &dto.MovimientoAceptadoResponse{ID: payload.ID, Estado: "encolado"}, nil
}

// ── RegistrarCierre ──────────────────────────────────────────────────────────
// Closings live at cierres/{tenant}/{yyyymmdd}/{actor}. Writing one clears the
// missing-closing alert of that day and actor.

func (s *ingestaService) RegistrarCierre(ctx context.Context, tenantID, actor string, req dto.CierreRequest) (*dto.CierreResponse, error) {
	cobrador := req.CobradorID
	if cobrador == "" {
		cobrador = actor
	}
	if cobrador == "" {
		cobrador = model.ActorSinNombre
	}

	datos := map[string]any{
		"tenantId":        tenantID,
		"operationalDate": req.Dia,
		"admin":           cobrador,
		"cajaFinal":       json.Number(req.CajaFinal.String()),
		"createdAtMs":     s.ahora().UTC().UnixMilli(),
		"registradoPor":   actor,
	}
	if req.Nota != "" {
		datos["nota"] = req.Nota
	}

	coleccion := model.ColeccionCierres(tenantID, strings.ReplaceAll(req.Dia, "-", ""))
	doc := &model.Documento{
		Coleccion: coleccion,
		ID:        cobrador,
		TenantID:  tenantID,
		Datos:     datos,
	}
	if err := s.store.Put(ctx, doc); err != nil {
		return nil, err
	}
	return &dto.CierreResponse{Coleccion: coleccion, CobradorID: cobrador, Dia: req.Dia}, nil
}
