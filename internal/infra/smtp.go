package infra

import (
	"fmt"
	"net/smtp"

	"cobranzas/internal/config"

	"github.com/jordan-wright/email"
)

// Mailer wraps SMTP configuration for sending emails with optional attachments.
type Mailer struct {
	host     string
	port     int
	user     string
	password string
	addr     string
}

func NewMailer(cfg *config.Config) *Mailer {
	return &Mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		addr:     fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
	}
}

// Configurado reports whether an SMTP host is set.
func (m *Mailer) Configurado() bool { return m != nil && m.host != "" }

// Send delivers a plain-text email; adjunto is an optional file path.
func (m *Mailer) Send(to []string, subject, body, adjunto string) error {
	if !m.Configurado() {
		return fmt.Errorf("mailer: SMTP no configurado")
	}
	e := email.NewEmail()
	e.From = m.user
	e.To = to
	e.Subject = subject
	e.Text = []byte(body)

	if adjunto != "" {
		if _, err := e.AttachFile(adjunto); err != nil {
			return fmt.Errorf("mailer: attach file: %w", err)
		}
	}

	auth := smtp.PlainAuth("", m.user, m.password, m.host)
	return e.Send(m.addr, auth)
}
