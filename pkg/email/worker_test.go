package email

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ldruley/tripmailer/pkg/events"
	"github.com/ldruley/tripmailer/pkg/mail"
	"github.com/ldruley/tripmailer/pkg/queue"
)

// fakeSender records dispatched messages and optionally fails.
type fakeSender struct {
	mu       sync.Mutex
	messages []*mail.Message
	err      error
}

func (f *fakeSender) Send(_ context.Context, msg *mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeSender) Name() string { return "fake" }

func (f *fakeSender) last() *mail.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return nil
	}
	return f.messages[len(f.messages)-1]
}

// recordingSink collects published delivery events.
type recordingSink struct {
	mu     sync.Mutex
	events []*events.Event
}

func (r *recordingSink) Write(_ context.Context, event *events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) Close() error { return nil }
func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) last() *events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return nil
	}
	return r.events[len(r.events)-1]
}

func newTestDelivery(sender mail.Sender, sink events.Sink, cfg DeliveryConfig) *Delivery {
	if cfg.From == "" {
		cfg.From = "noreply@tripplanner.example"
	}
	d := NewDelivery(sender, sink, cfg, zap.NewNop().Sugar())
	d.sendDelay = 0
	return d
}

func sendEmailJob(t *testing.T, payload Payload, attempts int) *queue.Job {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return &queue.Job{
		ID:          "job-1",
		Queue:       QueueName,
		Type:        JobTypeSendEmail,
		Payload:     raw,
		State:       queue.StateActive,
		Attempts:    attempts,
		MaxAttempts: payload.MaxAttempts,
	}
}

func TestDeliveryProcess(t *testing.T) {
	basePayload := Payload{
		To:          "user@example.com",
		Subject:     "Welcome to TripPlanner!",
		HTML:        "<p>Hello <strong>Ada</strong></p>",
		MaxAttempts: 3,
	}

	t.Run("dispatches with tracking and text fallback", func(t *testing.T) {
		sender := &fakeSender{}
		sink := &recordingSink{}
		d := newTestDelivery(sender, sink, DeliveryConfig{Production: true, SenderName: "TripPlanner"})

		err := d.Process(context.Background(), sendEmailJob(t, basePayload, 1))
		require.NoError(t, err)

		msg := sender.last()
		require.NotNil(t, msg)
		assert.Equal(t, "TripPlanner <noreply@tripplanner.example>", msg.From)
		assert.Equal(t, "user@example.com", msg.To)
		assert.True(t, msg.Tracking)
		assert.Equal(t, "Hello Ada", msg.Text)

		event := sink.last()
		require.NotNil(t, event)
		assert.Equal(t, events.StatusSent, event.Status)
		assert.Equal(t, "user@example.com", event.Recipient)
		assert.Empty(t, event.OriginalRecipient)
		assert.Equal(t, 1, event.Attempt)
	})

	t.Run("keeps explicit text body", func(t *testing.T) {
		sender := &fakeSender{}
		d := newTestDelivery(sender, nil, DeliveryConfig{Production: true})

		payload := basePayload
		payload.Text = "plain words"
		require.NoError(t, d.Process(context.Background(), sendEmailJob(t, payload, 1)))
		assert.Equal(t, "plain words", sender.last().Text)
	})

	t.Run("redirects outside production", func(t *testing.T) {
		sender := &fakeSender{}
		sink := &recordingSink{}
		d := newTestDelivery(sender, sink, DeliveryConfig{TestRecipient: "qa@tripplanner.example"})

		require.NoError(t, d.Process(context.Background(), sendEmailJob(t, basePayload, 1)))

		assert.Equal(t, "qa@tripplanner.example", sender.last().To)
		event := sink.last()
		assert.Equal(t, "qa@tripplanner.example", event.Recipient)
		assert.Equal(t, "user@example.com", event.OriginalRecipient)
	})

	t.Run("never redirects in production", func(t *testing.T) {
		sender := &fakeSender{}
		d := newTestDelivery(sender, nil, DeliveryConfig{Production: true, TestRecipient: "qa@tripplanner.example"})

		require.NoError(t, d.Process(context.Background(), sendEmailJob(t, basePayload, 1)))
		assert.Equal(t, "user@example.com", sender.last().To)
	})

	t.Run("malformed payload is terminal", func(t *testing.T) {
		d := newTestDelivery(&fakeSender{}, nil, DeliveryConfig{Production: true})
		job := sendEmailJob(t, basePayload, 1)
		job.Payload = []byte("{not json")

		err := d.Process(context.Background(), job)
		require.Error(t, err)
		assert.True(t, queue.IsTerminal(err))
	})

	t.Run("invalid payload is terminal", func(t *testing.T) {
		d := newTestDelivery(&fakeSender{}, nil, DeliveryConfig{Production: true})
		payload := basePayload
		payload.To = ""

		err := d.Process(context.Background(), sendEmailJob(t, payload, 1))
		require.Error(t, err)
		assert.True(t, queue.IsTerminal(err))
	})

	t.Run("unsupported job type is terminal", func(t *testing.T) {
		d := newTestDelivery(&fakeSender{}, nil, DeliveryConfig{Production: true})
		job := sendEmailJob(t, basePayload, 1)
		job.Type = "send-sms"

		err := d.Process(context.Background(), job)
		require.Error(t, err)
		assert.True(t, queue.IsTerminal(err))
	})

	t.Run("provider failure below the ceiling retries", func(t *testing.T) {
		sender := &fakeSender{err: errors.New("rate limited")}
		sink := &recordingSink{}
		d := newTestDelivery(sender, sink, DeliveryConfig{Production: true})

		err := d.Process(context.Background(), sendEmailJob(t, basePayload, 1))
		require.Error(t, err)
		assert.False(t, queue.IsTerminal(err))

		event := sink.last()
		require.NotNil(t, event)
		assert.Equal(t, events.StatusFailed, event.Status)
		assert.Contains(t, event.Error, "rate limited")
	})

	t.Run("provider failure on the last attempt is terminal", func(t *testing.T) {
		sender := &fakeSender{err: errors.New("rate limited")}
		d := newTestDelivery(sender, nil, DeliveryConfig{Production: true})

		err := d.Process(context.Background(), sendEmailJob(t, basePayload, 3))
		require.Error(t, err)
		assert.True(t, queue.IsTerminal(err))
		assert.Contains(t, err.Error(), "after 3 attempts")
	})
}

func TestDeliveryRegister(t *testing.T) {
	registry, _ := newTestRegistry(t)
	d := newTestDelivery(&fakeSender{}, nil, DeliveryConfig{
		Production:  true,
		Concurrency: 2,
		RateLimit:   &queue.RateLimit{Max: 10, Window: time.Second},
	})

	worker, err := d.Register(registry)
	require.NoError(t, err)
	require.NotNil(t, worker)
	assert.Same(t, worker, registry.GetWorker(WorkerName))
	require.NoError(t, registry.Shutdown(context.Background()))
}
