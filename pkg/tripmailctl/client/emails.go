package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ldruley/tripmailer/pkg/email"
	"github.com/ldruley/tripmailer/pkg/queue"
)

// EmailService calls the email submission and status endpoints.
type EmailService struct {
	client *Client
}

func (c *Client) Emails() *EmailService {
	return &EmailService{client: c}
}

// Send submits an email for delivery.
func (s *EmailService) Send(ctx context.Context, req email.Request) (*email.Response, error) {
	var resp email.Response
	if err := s.client.do(ctx, http.MethodPost, "api/emails", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status looks up the delivery status of a submitted email.
func (s *EmailService) Status(ctx context.Context, id string) (*email.Response, error) {
	var resp email.Response
	endpoint := fmt.Sprintf("api/emails/%s", url.PathEscape(id))
	if err := s.client.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AdminService calls the queue statistics and worker administration
// endpoints.
type AdminService struct {
	client *Client
}

func (c *Client) Admin() *AdminService {
	return &AdminService{client: c}
}

// QueueStats returns the email queue's job counts.
func (s *AdminService) QueueStats(ctx context.Context) (queue.Counts, error) {
	var counts queue.Counts
	if err := s.client.do(ctx, http.MethodGet, "api/queue/stats", nil, &counts); err != nil {
		return queue.Counts{}, err
	}
	return counts, nil
}

// WorkerStats returns the named worker's run state.
func (s *AdminService) WorkerStats(ctx context.Context, name string) (queue.WorkerStats, error) {
	var stats queue.WorkerStats
	endpoint := fmt.Sprintf("api/workers/%s", url.PathEscape(name))
	if err := s.client.do(ctx, http.MethodGet, endpoint, nil, &stats); err != nil {
		return queue.WorkerStats{}, err
	}
	return stats, nil
}

// PauseWorker stops the named worker's job pickup.
func (s *AdminService) PauseWorker(ctx context.Context, name string) (queue.WorkerStats, error) {
	var stats queue.WorkerStats
	endpoint := fmt.Sprintf("api/workers/%s/pause", url.PathEscape(name))
	if err := s.client.do(ctx, http.MethodPost, endpoint, nil, &stats); err != nil {
		return queue.WorkerStats{}, err
	}
	return stats, nil
}

// ResumeWorker restarts the named worker's job pickup.
func (s *AdminService) ResumeWorker(ctx context.Context, name string) (queue.WorkerStats, error) {
	var stats queue.WorkerStats
	endpoint := fmt.Sprintf("api/workers/%s/resume", url.PathEscape(name))
	if err := s.client.do(ctx, http.MethodPost, endpoint, nil, &stats); err != nil {
		return queue.WorkerStats{}, err
	}
	return stats, nil
}
