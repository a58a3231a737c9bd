/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package email

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ldruley/tripmailer/pkg/events"
	"github.com/ldruley/tripmailer/pkg/mail"
	"github.com/ldruley/tripmailer/pkg/metrics"
	"github.com/ldruley/tripmailer/pkg/queue"
)

// WorkerName identifies the email delivery worker in the registry.
const WorkerName = "email"

// postSendDelay is a fixed pause after each successful dispatch, on top of
// the worker's rate limiter, to stay friendly with provider throttling.
const postSendDelay = 200 * time.Millisecond

// DeliveryConfig carries the delivery worker's routing and throttle settings.
type DeliveryConfig struct {
	// From is the envelope sender, e.g. "noreply@example.com".
	From string

	// SenderName is the optional display name prepended to From.
	SenderName string

	// TestRecipient, when set outside production, replaces every outgoing
	// recipient so staging runs never email real users.
	TestRecipient string

	// Production disables recipient redirection.
	Production bool

	Concurrency int
	RateLimit   *queue.RateLimit
}

// Delivery is the processor behind the email queue's worker. It validates
// payloads, applies recipient redirection, dispatches through the configured
// provider and publishes the outcome of every attempt.
type Delivery struct {
	sender mail.Sender
	sink   events.Sink // nil means delivery events are not published
	cfg    DeliveryConfig
	log    *zap.SugaredLogger

	// sendDelay is swapped out in tests.
	sendDelay time.Duration
}

// NewDelivery builds the delivery processor. A nil sink disables event
// publishing.
func NewDelivery(sender mail.Sender, sink events.Sink, cfg DeliveryConfig, log *zap.SugaredLogger) *Delivery {
	return &Delivery{
		sender:    sender,
		sink:      sink,
		cfg:       cfg,
		log:       log.With("component", "email-worker"),
		sendDelay: postSendDelay,
	}
}

// Register creates the email worker in the registry with this processor as
// its handler.
func (d *Delivery) Register(registry *queue.Registry) (*queue.Worker, error) {
	return registry.CreateWorker(WorkerName, queue.WorkerOptions{
		Queue:       QueueName,
		Handler:     d.Process,
		Concurrency: d.cfg.Concurrency,
		RateLimit:   d.cfg.RateLimit,
	})
}

// Process handles one claimed send-email job. A nil return completes the
// job; a terminal error fails it permanently; any other error schedules a
// retry per the queue's backoff policy.
func (d *Delivery) Process(ctx context.Context, job *queue.Job) error {
	payload, err := decodePayload(job)
	if err != nil {
		return err
	}

	to := payload.To
	originalRecipient := ""
	if !d.cfg.Production && d.cfg.TestRecipient != "" && !strings.EqualFold(to, d.cfg.TestRecipient) {
		originalRecipient = to
		to = d.cfg.TestRecipient
		metrics.EmailsRedirected.Inc()
		d.log.Infow("redirecting email to test recipient",
			"jobID", job.ID, "originalRecipient", originalRecipient, "testRecipient", to)
	}

	text := payload.Text
	if text == "" {
		text = stripTags(payload.HTML)
	}

	msg := &mail.Message{
		From:     d.fromAddress(),
		To:       to,
		Subject:  payload.Subject,
		HTML:     payload.HTML,
		Text:     text,
		Tracking: true,
	}

	if err := d.sender.Send(ctx, msg); err != nil {
		d.publish(job, to, originalRecipient, events.StatusFailed, err)
		if payload.MaxAttempts > 0 && job.Attempts >= payload.MaxAttempts {
			return queue.Terminalf("delivery to %s failed after %d attempts: %v", to, job.Attempts, err)
		}
		return fmt.Errorf("delivery to %s: %w", to, err)
	}

	d.log.Infow("email delivered", "jobID", job.ID, "recipient", to, "attempt", job.Attempts)
	d.publish(job, to, originalRecipient, events.StatusSent, nil)

	// Settle before releasing the slot back to the rate limiter.
	select {
	case <-time.After(d.sendDelay):
	case <-ctx.Done():
	}
	return nil
}

func (d *Delivery) fromAddress() string {
	if d.cfg.SenderName != "" {
		return fmt.Sprintf("%s <%s>", d.cfg.SenderName, d.cfg.From)
	}
	return d.cfg.From
}

func (d *Delivery) publish(job *queue.Job, recipient, originalRecipient, status string, sendErr error) {
	if d.sink == nil {
		return
	}
	event := &events.Event{
		JobID:             job.ID,
		Queue:             job.Queue,
		Recipient:         recipient,
		OriginalRecipient: originalRecipient,
		Status:            status,
		Attempt:           job.Attempts,
		Timestamp:         time.Now().UTC(),
	}
	if sendErr != nil {
		event.Error = sendErr.Error()
	}
	if err := d.sink.Write(context.Background(), event); err != nil {
		d.log.Warnw("failed to publish delivery event", "jobID", job.ID, "error", err)
	}
}
