package mail

import (
	"context"
	"crypto/tls"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/ldruley/tripmailer/pkg/config"
	"github.com/ldruley/tripmailer/pkg/metrics"
)

// Message is one outbound email, fully rendered.
type Message struct {
	From     string
	To       string
	Subject  string
	HTML     string
	Text     string
	Tracking bool
}

// Sender dispatches a single message to the configured mail provider. One
// call is one provider attempt; callers own retries.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
	Name() string
}

// NewSender builds the Sender selected by the mail configuration. The config
// must already have passed Validate; an unusable provider here is a
// programming error surfaced as a plain error for main to treat as fatal.
func NewSender(cfg config.Mail, log *zap.SugaredLogger) (Sender, error) {
	provider := cfg.Provider
	if provider == "" {
		if cfg.APIKey != "" && cfg.Domain != "" {
			provider = "mailgun"
		} else if cfg.Host != "" {
			provider = "smtp"
		}
	}

	switch provider {
	case "mailgun":
		return NewMailgunSender(cfg, log), nil
	case "smtp":
		return NewSMTPSender(cfg, log), nil
	default:
		return nil, fmt.Errorf("no usable mail provider configured")
	}
}

// SMTPSender delivers through an SMTP relay using gomail.
type SMTPSender struct {
	dialer *gomail.Dialer
	log    *zap.SugaredLogger
}

func NewSMTPSender(cfg config.Mail, log *zap.SugaredLogger) *SMTPSender {
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	log.Infow("initializing SMTP mail sender", "host", cfg.Host, "port", port, "user", cfg.User)
	d := gomail.NewDialer(cfg.Host, port, cfg.User, cfg.Password)
	if cfg.InsecureSkipVerify {
		log.Warnw("InsecureSkipVerify is enabled for the SMTP TLS connection")
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &SMTPSender{dialer: d, log: log}
}

func (s *SMTPSender) Name() string { return "smtp" }

// build assembles the wire message. Message.From is already fully formatted
// ("Name <addr>") by the caller and is set verbatim.
func (s *SMTPSender) build(msg *Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", msg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	if msg.Text != "" {
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	} else {
		m.SetBody("text/html", msg.HTML)
	}
	return m
}

func (s *SMTPSender) Send(_ context.Context, msg *Message) error {
	if err := s.dialer.DialAndSend(s.build(msg)); err != nil {
		metrics.MailSendFailure.WithLabelValues(s.Name()).Inc()
		return fmt.Errorf("smtp dispatch to %s via %s: %w", msg.To, s.dialer.Host, err)
	}
	metrics.MailSendSuccess.WithLabelValues(s.Name()).Inc()
	return nil
}
