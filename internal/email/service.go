package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/care-portal/internal/config"
)

type Service interface {
	SendCustom(ctx context.Context, to string, subject string, content string) error
}

// Dialer is the subset of gomail.Dialer used to deliver a message.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type smtpService struct {
	dialer Dialer
	from   string
}

// NewSMTPService sends mail through the configured relay.
func NewSMTPService(cfg config.SMTPConfig) Service {
	return NewService(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg.From)
}

func NewService(d Dialer, from string) Service {
	return &smtpService{dialer: d, from: from}
}

// SendCustom sends an HTML message with a plain-text alternative.
func (s *smtpService) SendCustom(ctx context.Context, to, subject, content string) error {
	if to == "" {
		return fmt.Errorf("recipient is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", content)
	m.AddAlternative("text/html", "<pre>"+htmlEscaper.Replace(content)+"</pre>")

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

type nopService struct{}

// Nop drops every message. Used when no SMTP host is configured.
func Nop() Service { return nopService{} }

func (nopService) SendCustom(context.Context, string, string, string) error { return nil }
