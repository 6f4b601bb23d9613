package worker

// email_worker.go
// Processes email jobs from QueueEmail (alert digests).

import (
	"context"
	"encoding/json"
	"fmt"

	"cobranzas/internal/infra"

	"github.com/rs/zerolog/log"
)

// EmailJobPayload is the job envelope sent to QueueEmail.
type EmailJobPayload struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	Adjunto string   `json:"adjunto,omitempty"`
}

// EmailWorker sends queued emails via SMTP.
type EmailWorker struct {
	mailer *infra.Mailer
}

// NewEmailWorker creates an EmailWorker with the provided SMTP mailer.
func NewEmailWorker(mailer *infra.Mailer) *EmailWorker {
	return &EmailWorker{mailer: mailer}
}

// Process sends one email.
func (w *EmailWorker) Process(_ context.Context, raw json.RawMessage) error {
	var payload EmailJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrPayloadInvalido, err)
	}
	if len(payload.To) == 0 {
		log.Warn().Msg("email_worker: no recipients, skipping")
		return nil
	}

	if err := w.mailer.Send(payload.To, payload.Subject, payload.Body, payload.Adjunto); err != nil {
		return fmt.Errorf("email_worker: send: %w", err)
	}
	log.Info().Strs("to", payload.To).Str("subject", payload.Subject).Msg("email_worker: email sent")
	return nil
}
