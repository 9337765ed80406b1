package notification

import (
	"fmt"
	"net/smtp"
	"strings"

	"DHTSpectra/internal/config"
	"DHTSpectra/internal/model"
)

// EmailNotifier delivers alert notifications over SMTP. It implements
// model.Notifier.
type EmailNotifier struct {
	cfg  config.SMTPConfig
	auth smtp.Auth
}

// NewEmailNotifier creates a notifier for the configured SMTP account. The
// recipient list is the comma-separated `to` field.
func NewEmailNotifier(cfg config.SMTPConfig) model.Notifier {
	// PlainAuth refuses to transmit the password except over TLS or to
	// localhost.
	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	return &EmailNotifier{cfg: cfg, auth: auth}
}

// Send delivers one alert to every configured recipient.
func (n *EmailNotifier) Send(subject, body string) error {
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	recipients := strings.Split(n.cfg.To, ",")

	msg := buildMessage(n.cfg.From, n.cfg.To, subject, body)
	if err := smtp.SendMail(addr, n.auth, n.cfg.From, recipients, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// buildMessage assembles the RFC 5322 message: headers, a blank line, then
// the plain-text body.
func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
