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

package queue

import (
	"encoding/json"
	"time"
)

// State is the broker-side lifecycle state of a job.
type State string

const (
	// StateWaiting means the job is eligible for pickup.
	StateWaiting State = "waiting"
	// StateDelayed means the job is parked until its ready-at time (initial
	// scheduling delay or retry backoff).
	StateDelayed State = "delayed"
	// StateActive means a worker currently holds the job.
	StateActive State = "active"
	// StateCompleted is terminal success.
	StateCompleted State = "completed"
	// StateFailed is terminal failure.
	StateFailed State = "failed"
)

// IsTerminal reports whether s is a terminal state. Terminal states are never
// left; state transitions are monotonic.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

const (
	// DefaultPriority is used when a job is submitted without one.
	DefaultPriority = 5
	// MaxPriority is the highest job priority.
	MaxPriority = 10
)

// Job is one unit of enqueued work together with its broker-managed metadata.
// A job belongs to exactly one queue for its lifetime.
type Job struct {
	ID           string          `json:"id"`
	Queue        string          `json:"queue"`
	Type         string          `json:"type"`
	Payload      json.RawMessage `json:"payload"`
	State        State           `json:"state"`
	Priority     int             `json:"priority"`
	Attempts     int             `json:"attempts"`
	MaxAttempts  int             `json:"maxAttempts"`
	FailedReason string          `json:"failedReason,omitempty"`
	Delay        time.Duration   `json:"delay,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	ProcessedAt  time.Time       `json:"processedAt,omitempty"`
	FinishedAt   time.Time       `json:"finishedAt,omitempty"`
}

// JobOptions control submission of a single job. Zero values fall back to the
// queue's default policy.
type JobOptions struct {
	// Priority orders pickup within a queue (1-10, 10 highest). Ties are
	// broken by enqueue order.
	Priority int
	// Delay parks the job in the delayed set until now+Delay.
	Delay time.Duration
	// Attempts overrides the queue's default retry ceiling for this job.
	Attempts int
}

// Policy is the default job policy of a queue, applied to every job submitted
// without per-job overrides.
type Policy struct {
	// Attempts is the total number of processing attempts before a job is
	// failed permanently.
	Attempts int
	// BackoffBase is the initial retry backoff; attempt n waits
	// BackoffBase * 2^(n-1).
	BackoffBase time.Duration
	// KeepCompleted / KeepFailed bound how many finished job records are
	// retained; older records are evicted together with their job data.
	KeepCompleted int
	KeepFailed    int
}

// DefaultPolicy mirrors the broker defaults used for the email queue.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:      3,
		BackoffBase:   2 * time.Second,
		KeepCompleted: 10,
		KeepFailed:    50,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.Attempts <= 0 {
		p.Attempts = d.Attempts
	}
	if p.BackoffBase <= 0 {
		p.BackoffBase = d.BackoffBase
	}
	if p.KeepCompleted <= 0 {
		p.KeepCompleted = d.KeepCompleted
	}
	if p.KeepFailed <= 0 {
		p.KeepFailed = d.KeepFailed
	}
	return p
}

// Backoff returns the delay before re-attempt number attempt (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.BackoffBase * time.Duration(1<<(attempt-1))
}

// Counts is a point-in-time operational snapshot of a queue. Each count is
// fetched independently and may reflect slightly different moments.
type Counts struct {
	Waiting   int64 `json:"waiting"`
	Delayed   int64 `json:"delayed"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}
