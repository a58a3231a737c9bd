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

package events

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Delivery outcome values carried in Event.Status.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Event records one delivery attempt outcome for a send-email job.
type Event struct {
	JobID             string    `json:"jobId"`
	Queue             string    `json:"queue"`
	Recipient         string    `json:"recipient"`
	OriginalRecipient string    `json:"originalRecipient,omitempty"`
	Status            string    `json:"status"`
	Attempt           int       `json:"attempt"`
	Error             string    `json:"error,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// Sink is a destination for delivery events.
type Sink interface {
	// Write sends a delivery event to the sink.
	Write(ctx context.Context, event *Event) error

	// Close releases any resources held by the sink.
	Close() error

	// Name returns the sink's identifier.
	Name() string
}

// LogSink writes delivery events to a structured logger. It is the fallback
// sink when no event stream is configured.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a new LogSink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("delivery-events")}
}

// Write logs the delivery event.
func (s *LogSink) Write(_ context.Context, event *Event) error {
	fields := []zap.Field{
		zap.String("job_id", event.JobID),
		zap.String("queue", event.Queue),
		zap.String("recipient", event.Recipient),
		zap.String("status", event.Status),
		zap.Int("attempt", event.Attempt),
		zap.Time("timestamp", event.Timestamp),
	}
	if event.OriginalRecipient != "" {
		fields = append(fields, zap.String("original_recipient", event.OriginalRecipient))
	}
	if event.Error != "" {
		fields = append(fields, zap.String("error", event.Error))
	}
	s.logger.Info("delivery_event", fields...)
	return nil
}

// Close is a no-op for LogSink.
func (s *LogSink) Close() error {
	return nil
}

// Name returns the sink identifier.
func (s *LogSink) Name() string {
	return "log"
}
