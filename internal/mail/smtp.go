// Package mail delivers ticket notifications by e-mail.
package mail

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/spec-kit/helpdesk/internal/config"
)

// Sender delivers one message.
type Sender interface {
	Send(to, subject, plainBody, htmlBody string) error
}

// SMTPSender sends through an SMTP relay.
type SMTPSender struct {
	from   string
	dialer *gomail.Dialer
}

// NewSMTPSender builds a sender from the notification settings.
func NewSMTPSender(cfg config.NotificationConfig) *SMTPSender {
	return &SMTPSender{
		from:   cfg.EmailFrom,
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
	}
}

// Send implements Sender.
func (s *SMTPSender) Send(to, subject, plainBody, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", plainBody)
	if htmlBody != "" {
		m.AddAlternative("text/html", htmlBody)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
