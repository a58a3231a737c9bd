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
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ldruley/tripmailer/pkg/metrics"
	"github.com/ldruley/tripmailer/pkg/queue"
)

// QueueName is the queue all transactional email flows through.
const QueueName = "email"

// Priorities for the built-in flows. Higher wins; security-sensitive mail
// (password reset, verification) outranks onboarding mail.
const (
	PriorityWelcome  = 8
	PrioritySecurity = 9
)

// responseCacheTTL bounds how long a submission receipt stays readable after
// the broker has evicted the underlying job record.
const responseCacheTTL = 24 * time.Hour

// Status is the caller-facing projection of a job's broker state. Callers
// never see broker states directly.
type Status string

const (
	StatusQueued Status = "queued"
	StatusSent   Status = "sent"
	StatusFailed Status = "failed"
)

// Request describes one email submission. Template and Variables drive
// rendering; everything else is routing.
type Request struct {
	To          string         `json:"to"`
	Subject     string         `json:"subject"`
	Template    Template       `json:"template"`
	Variables   map[string]any `json:"variables,omitempty"`
	Priority    int            `json:"priority,omitempty"`
	ScheduledAt *time.Time     `json:"scheduledAt,omitempty"`
}

// Response is what callers get back from a submission or a status lookup.
type Response struct {
	ID      string     `json:"id"`
	Status  Status     `json:"status"`
	Message string     `json:"message,omitempty"`
	SentAt  *time.Time `json:"sentAt,omitempty"`
	Error   string     `json:"error,omitempty"`
}

type cacheEntry struct {
	response  Response
	expiresAt time.Time
}

// Service renders templates and submits send-email jobs. It owns the email
// queue's registration and a short-lived receipt cache so submission
// responses stay readable after broker retention evicts the job record.
type Service struct {
	queue *queue.Queue
	log   *zap.SugaredLogger
	now   func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry // submission receipts keyed recipient|subject|submit-millis
	byID  map[string]string     // job id -> cache key
}

// NewService registers the email queue with its default policy and returns
// the submission service. Registration is idempotent: if the queue already
// exists, the existing instance is reused.
func NewService(registry *queue.Registry, log *zap.SugaredLogger) *Service {
	return &Service{
		queue: registry.CreateQueue(QueueName, queue.Policy{}),
		log:   log.With("component", "email-service"),
		now:   time.Now,
		cache: make(map[string]cacheEntry),
		byID:  make(map[string]string),
	}
}

// SendEmail renders the requested template and enqueues the resulting
// message. The returned response reflects acceptance by the broker, not
// delivery: its status is always "queued". A future ScheduledAt delays
// eligibility; one in the past or unset means immediate.
func (s *Service) SendEmail(ctx context.Context, req Request) (*Response, error) {
	if req.To == "" {
		return nil, fmt.Errorf("email submission is missing a recipient")
	}
	if req.Subject == "" {
		return nil, fmt.Errorf("email submission is missing a subject")
	}

	content, err := Render(req.Template, req.Variables)
	if err != nil {
		return nil, err
	}

	if req.Priority <= 0 {
		req.Priority = queue.DefaultPriority
	}

	var delay time.Duration
	if req.ScheduledAt != nil {
		if d := time.Until(*req.ScheduledAt); d > 0 {
			delay = d
		}
	}

	policy := s.queue.Policy()
	payload := Payload{
		To:          req.To,
		Subject:     req.Subject,
		HTML:        content.HTML,
		Text:        content.Text,
		Priority:    req.Priority,
		MaxAttempts: policy.Attempts,
	}

	job, err := s.queue.Add(ctx, JobTypeSendEmail, payload, queue.JobOptions{
		Priority: req.Priority,
		Delay:    delay,
	})
	if err != nil {
		return nil, fmt.Errorf("enqueueing email to %s: %w", req.To, err)
	}

	s.log.Infow("email queued",
		"jobID", job.ID, "template", req.Template, "priority", job.Priority, "delay", delay)
	metrics.EmailsQueued.WithLabelValues(string(req.Template)).Inc()

	resp := Response{
		ID:      job.ID,
		Status:  StatusQueued,
		Message: fmt.Sprintf("Email queued for delivery to %s", req.To),
	}
	s.remember(req.To, req.Subject, resp)
	return &resp, nil
}

// SendWelcomeEmail submits the onboarding email for a newly created account.
func (s *Service) SendWelcomeEmail(ctx context.Context, to string, variables map[string]any) (*Response, error) {
	return s.SendEmail(ctx, Request{
		To:        to,
		Subject:   "Welcome to TripPlanner!",
		Template:  TemplateWelcome,
		Variables: variables,
		Priority:  PriorityWelcome,
	})
}

// SendPasswordResetEmail submits a password reset email at security priority.
func (s *Service) SendPasswordResetEmail(ctx context.Context, to string, variables map[string]any) (*Response, error) {
	return s.SendEmail(ctx, Request{
		To:        to,
		Subject:   "Reset your TripPlanner password",
		Template:  TemplatePasswordReset,
		Variables: variables,
		Priority:  PrioritySecurity,
	})
}

// SendEmailVerification submits an address verification email at security
// priority.
func (s *Service) SendEmailVerification(ctx context.Context, to string, variables map[string]any) (*Response, error) {
	return s.SendEmail(ctx, Request{
		To:        to,
		Subject:   "Verify your email address",
		Template:  TemplateEmailVerification,
		Variables: variables,
		Priority:  PrioritySecurity,
	})
}

// GetEmailStatus projects a job's broker state into the caller-facing status.
// Completed maps to "sent" with the dispatch timestamp, failed to "failed"
// with the recorded reason, and every live state to "queued". Ids the broker
// no longer holds fall back to the receipt cache; fully unknown ids return
// (nil, nil).
func (s *Service) GetEmailStatus(ctx context.Context, id string) (*Response, error) {
	job, err := s.queue.Job(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		if cached := s.recall(id); cached != nil {
			return cached, nil
		}
		return nil, nil
	}

	resp := &Response{ID: job.ID, Status: StatusQueued}
	switch job.State {
	case queue.StateCompleted:
		resp.Status = StatusSent
		if !job.ProcessedAt.IsZero() {
			sentAt := job.ProcessedAt
			resp.SentAt = &sentAt
		}
	case queue.StateFailed:
		resp.Status = StatusFailed
		resp.Error = job.FailedReason
	}
	return resp, nil
}

// GetQueueStats returns the email queue's job counts.
func (s *Service) GetQueueStats(ctx context.Context) (queue.Counts, error) {
	return s.queue.Counts(ctx)
}

func (s *Service) remember(to, subject string, resp Response) {
	now := s.now()
	key := fmt.Sprintf("%s|%s|%d", to, subject, now.UnixMilli())

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, entry := range s.cache {
		if now.After(entry.expiresAt) {
			delete(s.byID, entry.response.ID)
			delete(s.cache, k)
		}
	}
	s.cache[key] = cacheEntry{response: resp, expiresAt: now.Add(responseCacheTTL)}
	s.byID[resp.ID] = key
}

func (s *Service) recall(id string) *Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.byID[id]
	if !ok {
		return nil
	}
	entry, ok := s.cache[key]
	if !ok || s.now().After(entry.expiresAt) {
		return nil
	}
	resp := entry.response
	return &resp
}
