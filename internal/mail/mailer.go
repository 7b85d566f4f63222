// Package mail delivers verification codes to users.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
)

// Mailer sends a verification code to an address. Delivery mechanics are a
// collaborator concern; the verification service only depends on this
// interface.
type Mailer interface {
	SendCode(ctx context.Context, to, code string) error
}

// SMTPConfig holds SMTP delivery settings.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// SMTPMailer delivers codes over plain SMTP with auth.
type SMTPMailer struct {
	cfg SMTPConfig
}

// NewSMTP creates an SMTP-backed mailer.
func NewSMTP(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// SendCode sends the verification code email.
func (m *SMTPMailer) SendCode(ctx context.Context, to, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: Your Maria verification code\r\n\r\n"+
			"Hi! Your verification code is %s. It expires in 10 minutes.\r\n",
		m.cfg.From, to, code,
	)

	addr := m.cfg.Host + ":" + m.cfg.Port
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, []byte(body)); err != nil {
		return fmt.Errorf("send verification mail: %w", err)
	}
	return nil
}

// LogMailer logs codes instead of sending them. Used in development when no
// SMTP credentials are configured.
type LogMailer struct{}

// SendCode logs the code that would have been mailed.
func (LogMailer) SendCode(_ context.Context, to, code string) error {
	slog.Info("Verification code (dev mailer)", "to", to, "code", code)
	return nil
}
