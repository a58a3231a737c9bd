package mail

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ldruley/tripmailer/pkg/config"
)

func TestNewSender(t *testing.T) {
	log := zap.NewNop().Sugar()

	t.Run("auto-detects mailgun from api credentials", func(t *testing.T) {
		s, err := NewSender(config.Mail{APIKey: "key-test", Domain: "mail.tripplanner.example"}, log)
		require.NoError(t, err)
		assert.Equal(t, "mailgun", s.Name())
	})

	t.Run("auto-detects smtp from relay host", func(t *testing.T) {
		s, err := NewSender(config.Mail{Host: "smtp.internal"}, log)
		require.NoError(t, err)
		assert.Equal(t, "smtp", s.Name())
	})

	t.Run("explicit provider wins over auto-detection", func(t *testing.T) {
		s, err := NewSender(config.Mail{
			Provider: "smtp",
			APIKey:   "key-test",
			Domain:   "mail.tripplanner.example",
			Host:     "smtp.internal",
		}, log)
		require.NoError(t, err)
		assert.Equal(t, "smtp", s.Name())
	})

	t.Run("no credentials is an error", func(t *testing.T) {
		_, err := NewSender(config.Mail{}, log)
		require.Error(t, err)
	})
}

func TestMailgunSenderDomain(t *testing.T) {
	s := NewMailgunSender(config.Mail{APIKey: "key-test", Domain: "mail.tripplanner.example"}, zap.NewNop().Sugar())
	assert.Equal(t, "mail.tripplanner.example", s.Domain())
}

func TestSMTPSenderDefaults(t *testing.T) {
	// Port defaults to the submission port when unset.
	s := NewSMTPSender(config.Mail{Host: "smtp.internal"}, zap.NewNop().Sugar())
	assert.Equal(t, "smtp", s.Name())
	assert.Equal(t, 587, s.dialer.Port)
}

func TestSMTPSenderFromHeader(t *testing.T) {
	s := NewSMTPSender(config.Mail{Host: "smtp.internal", SenderName: "TripPlanner"}, zap.NewNop().Sugar())

	// The caller owns display-name formatting; the sender must not wrap the
	// address a second time.
	m := s.build(&Message{
		From:    "TripPlanner <noreply@tripplanner.example>",
		To:      "user@example.com",
		Subject: "hi",
		HTML:    "<p>hi</p>",
	})
	assert.Equal(t, []string{"TripPlanner <noreply@tripplanner.example>"}, m.GetHeader("From"))
	assert.Equal(t, []string{"user@example.com"}, m.GetHeader("To"))
}
