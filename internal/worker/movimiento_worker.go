package worker

// movimiento_worker.go
// Processes ingestion jobs from QueueMovimientos: every accepted cash event
// becomes one immutable cajaDiaria document. Writing it through the store
// publishes the change to every live view of the tenant.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cobranzas/internal/dto"
	"cobranzas/internal/model"
	"cobranzas/internal/repository"

	"github.com/rs/zerolog/log"
)

// ErrPayloadInvalido marks jobs that can never succeed; they skip retries.
var ErrPayloadInvalido = errors.New("payload inválido")

func esPermanente(err error) bool { return errors.Is(err, ErrPayloadInvalido) }

// MovimientoJobPayload is the job envelope sent to QueueMovimientos. ID is
// minted on enqueue so a retried job overwrites its own document.
type MovimientoJobPayload struct {
	ID         string                `json:"id"`
	TenantID   string                `json:"tenant_id"`
	Actor      string                `json:"actor"`
	Movimiento dto.MovimientoRequest `json:"movimiento"`
	RecibidoEn time.Time             `json:"recibido_en"`
}

// DocumentoMovimiento builds the cajaDiaria document of an ingestion job.
// Fields use the names every reader of the collection already understands.
func DocumentoMovimiento(p MovimientoJobPayload) (*model.Documento, error) {
	if p.ID == "" || p.TenantID == "" {
		return nil, fmt.Errorf("%w: id y tenant requeridos", ErrPayloadInvalido)
	}
	m := p.Movimiento
	admin := m.CobradorID
	if admin == "" {
		admin = p.Actor
	}
	datos := map[string]any{
		"tenantId":        p.TenantID,
		"tipo":            m.Tipo,
		"monto":           json.Number(m.Monto.String()),
		"operationalDate": m.OperationalDate,
		"createdAtMs":     p.RecibidoEn.UnixMilli(),
		"source":          "api",
	}
	opcionales := map[string]string{
		"admin":         admin,
		"rutaId":        m.RutaID,
		"clienteId":     m.ClienteID,
		"clienteNombre": m.ClienteNombre,
		"prestamoId":    m.PrestamoID,
		"categoria":     m.Categoria,
		"nota":          m.Nota,
		"registradoPor": p.Actor,
	}
	for k, v := range opcionales {
		if v != "" {
			datos[k] = v
		}
	}
	return &model.Documento{
		Coleccion: model.ColeccionCajaDiaria,
		ID:        p.ID,
		TenantID:  p.TenantID,
		Datos:     datos,
		CreatedAt: p.RecibidoEn,
	}, nil
}

// MovimientoWorker persists ingestion jobs.
type MovimientoWorker struct {
	store repository.Store
}

func NewMovimientoWorker(store repository.Store) *MovimientoWorker {
	return &MovimientoWorker{store: store}
}

// Process writes the document of one ingestion job.
func (w *MovimientoWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload MovimientoJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrPayloadInvalido, err)
	}
	doc, err := DocumentoMovimiento(payload)
	if err != nil {
		return err
	}
	if err := w.store.Put(ctx, doc); err != nil {
		return fmt.Errorf("movimiento_worker: put: %w", err)
	}
	log.Info().
		Str("tenant_id", payload.TenantID).
		Str("movimiento_id", payload.ID).
		Str("tipo", payload.Movimiento.Tipo).
		Msg("movimiento_worker: cash event stored")
	return nil
}
