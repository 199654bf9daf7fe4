package mailer

import (
	"context"
	"crypto/tls"
	"log/slog"
	"sync"

	mail "github.com/go-mail/mail/v2"
	"github.com/hugh/go-crm/pkg/config"
)

type Message struct {
	To      []string
	Subject string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New returns an SMTP mailer when SMTP is configured and a log-only mailer otherwise.
func New(cfg config.SMTPConfig, logger *slog.Logger) Mailer {
	if !cfg.Configured() {
		return NewLogMailer(logger)
	}
	return NewSMTPMailer(cfg)
}

type SMTPMailer struct {
	cfg    config.SMTPConfig
	dialer *mail.Dialer
}

func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	if cfg.Port == 587 {
		d.StartTLSPolicy = mail.MandatoryStartTLS
	}
	d.TLSConfig = &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.SkipTLSVerify,
	}
	return &SMTPMailer{cfg: cfg, dialer: d}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	message := mail.NewMessage()
	message.SetHeader("From", m.cfg.From)
	message.SetHeader("To", msg.To...)
	message.SetHeader("Subject", msg.Subject)
	message.SetBody("text/html", msg.HTML)

	return m.dialer.DialAndSend(message)
}

// LogMailer records messages instead of sending them.
type LogMailer struct {
	logger *slog.Logger

	mu   sync.Mutex
	sent []Message
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return nil
	}
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()

	m.logger.Info("mail not sent, smtp not configured",
		"to", msg.To,
		"subject", msg.Subject,
	)
	return nil
}

// Sent returns a copy of the messages recorded so far.
func (m *LogMailer) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}
