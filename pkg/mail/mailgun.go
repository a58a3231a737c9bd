package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/mailgun/mailgun-go/v4"
	"go.uber.org/zap"

	"github.com/ldruley/tripmailer/pkg/config"
	"github.com/ldruley/tripmailer/pkg/metrics"
)

const mailgunSendTimeout = 15 * time.Second

// MailgunSender delivers through the Mailgun HTTP API, scoped to one sending
// domain.
type MailgunSender struct {
	mg     mailgun.Mailgun
	domain string
	log    *zap.SugaredLogger
}

func NewMailgunSender(cfg config.Mail, log *zap.SugaredLogger) *MailgunSender {
	log.Infow("initializing Mailgun mail sender", "domain", cfg.Domain)
	return &MailgunSender{
		mg:     mailgun.NewMailgun(cfg.Domain, cfg.APIKey),
		domain: cfg.Domain,
		log:    log,
	}
}

func (s *MailgunSender) Name() string { return "mailgun" }

// Domain returns the configured sending domain.
func (s *MailgunSender) Domain() string { return s.domain }

func (s *MailgunSender) Send(ctx context.Context, msg *Message) error {
	m := s.mg.NewMessage(msg.From, msg.Subject, msg.Text, msg.To)
	m.SetHtml(msg.HTML)
	if msg.Tracking {
		m.SetTracking(true)
		m.SetTrackingClicks(true)
		m.SetTrackingOpens(true)
	}

	ctx, cancel := context.WithTimeout(ctx, mailgunSendTimeout)
	defer cancel()

	_, id, err := s.mg.Send(ctx, m)
	if err != nil {
		metrics.MailSendFailure.WithLabelValues(s.Name()).Inc()
		return fmt.Errorf("mailgun dispatch to %s: %w", msg.To, err)
	}

	metrics.MailSendSuccess.WithLabelValues(s.Name()).Inc()
	s.log.Debugw("mailgun accepted message", "to", msg.To, "providerID", id)
	return nil
}
