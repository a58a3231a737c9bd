package email

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ldruley/tripmailer/pkg/queue"
)

// ErrUnknownTemplate is returned when a submission names a template outside
// the closed set this service ships.
var ErrUnknownTemplate = errors.New("unknown email template")

// JobTypeSendEmail is the only job type the email queue carries today.
const JobTypeSendEmail = "send-email"

// Payload is the job body persisted in the broker for a send-email job. It
// carries the fully rendered message so the delivery worker never needs the
// template engine or the caller's variables.
type Payload struct {
	To          string `json:"to"`
	Subject     string `json:"subject"`
	HTML        string `json:"html"`
	Text        string `json:"text,omitempty"`
	Priority    int    `json:"priority"`
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"maxAttempts"`
}

// Validate checks the fields the delivery worker cannot dispatch without.
// A payload that fails validation can never succeed, so callers should treat
// the error as permanent.
func (p *Payload) Validate() error {
	if p.To == "" {
		return errors.New("payload is missing recipient")
	}
	if !strings.Contains(p.To, "@") {
		return fmt.Errorf("recipient %q is not an email address", p.To)
	}
	if p.Subject == "" {
		return errors.New("payload is missing subject")
	}
	if p.HTML == "" {
		return errors.New("payload is missing html body")
	}
	return nil
}

// decodePayload unmarshals and validates the payload of a claimed job.
// Malformed or invalid payloads are terminal: retrying cannot fix them.
func decodePayload(job *queue.Job) (*Payload, error) {
	if job.Type != JobTypeSendEmail {
		return nil, queue.Terminalf("unsupported job type %q", job.Type)
	}
	var payload Payload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, queue.Terminalf("malformed payload: %v", err)
	}
	if err := payload.Validate(); err != nil {
		return nil, queue.Terminal(err)
	}
	return &payload, nil
}
