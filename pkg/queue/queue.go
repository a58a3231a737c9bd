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
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ldruley/tripmailer/pkg/metrics"
)

// Queue is a named, durable channel of jobs inside the broker. Queues store
// and order jobs; they never execute code. A queue instance is created lazily
// by the registry on first reference and lives for the process lifetime.
type Queue struct {
	name   string
	broker *Broker
	policy Policy
	keys   keys
	log    *zap.SugaredLogger

	closed atomic.Bool
}

func newQueue(name string, broker *Broker, policy Policy, log *zap.SugaredLogger) *Queue {
	return &Queue{
		name:   name,
		broker: broker,
		policy: policy.withDefaults(),
		keys:   newKeys(broker.Prefix(), name),
		log:    log.With("queue", name),
	}
}

// Name returns the queue's unique name.
func (q *Queue) Name() string { return q.name }

// Policy returns the queue's default job policy.
func (q *Queue) Policy() Policy { return q.policy }

// Add submits one job to the queue and suspends only until the broker
// acknowledges durable receipt, never until processing completes. The payload
// is marshalled to JSON. A positive opts.Delay parks the job in the delayed
// set; it becomes eligible for pickup at or after now+Delay.
func (q *Queue) Add(ctx context.Context, jobType string, payload interface{}, opts JobOptions) (*Job, error) {
	if q.closed.Load() {
		return nil, fmt.Errorf("queue %q is closed", q.name)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshalling payload for job type %q: %w", jobType, err)
	}

	priority := opts.Priority
	if priority <= 0 {
		priority = DefaultPriority
	}
	maxAttempts := opts.Attempts
	if maxAttempts <= 0 {
		maxAttempts = q.policy.Attempts
	}

	now := time.Now().UTC()
	job := &Job{
		ID:          uuid.NewString(),
		Queue:       q.name,
		Type:        jobType,
		Payload:     raw,
		Priority:    priority,
		MaxAttempts: maxAttempts,
		Delay:       opts.Delay,
		CreatedAt:   now,
	}
	if opts.Delay > 0 {
		job.State = StateDelayed
	} else {
		job.State = StateWaiting
	}

	rdb := q.broker.Client()
	pipe := rdb.TxPipeline()
	pipe.HSet(ctx, q.keys.job(job.ID), jobFields(job))
	if job.State == StateDelayed {
		readyAt := now.Add(opts.Delay)
		pipe.ZAdd(ctx, q.keys.delayed(), redis.Z{
			Score:  float64(readyAt.UnixMilli()),
			Member: job.ID,
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("enqueueing job %s on queue %q: %w", job.ID, q.name, err)
	}

	if job.State == StateWaiting {
		if err := q.pushWaiting(ctx, job.ID, priority); err != nil {
			return nil, err
		}
	}

	metrics.JobsSubmitted.WithLabelValues(q.name, jobType).Inc()
	return job, nil
}

// Job looks up a job record by id. Absence is a normal empty result:
// (nil, nil), never an error.
func (q *Queue) Job(ctx context.Context, id string) (*Job, error) {
	fields, err := q.broker.Client().HGetAll(ctx, q.keys.job(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading job %s on queue %q: %w", id, q.name, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return jobFromFields(fields)
}

// Counts returns an operational snapshot of the queue. The counts are fetched
// in one pipeline but are not transactionally consistent with any single
// point in time.
func (q *Queue) Counts(ctx context.Context) (Counts, error) {
	rdb := q.broker.Client()
	pipe := rdb.Pipeline()
	waiting := pipe.ZCard(ctx, q.keys.waiting())
	delayed := pipe.ZCard(ctx, q.keys.delayed())
	active := pipe.Get(ctx, q.keys.active())
	completed := pipe.LLen(ctx, q.keys.completed())
	failed := pipe.LLen(ctx, q.keys.failed())
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return Counts{}, fmt.Errorf("counting jobs on queue %q: %w", q.name, err)
	}

	activeCount, _ := strconv.ParseInt(active.Val(), 10, 64)
	return Counts{
		Waiting:   waiting.Val(),
		Delayed:   delayed.Val(),
		Active:    activeCount,
		Completed: completed.Val(),
		Failed:    failed.Val(),
	}, nil
}

// Close marks the queue closed for further submissions. Stored jobs stay in
// the broker untouched: shutdown drains, it never purges.
func (q *Queue) Close() error {
	if q.closed.CompareAndSwap(false, true) {
		q.log.Debugw("queue closed")
	}
	return nil
}

// pushWaiting makes a job eligible for pickup, ordered by priority with ties
// broken by enqueue sequence.
func (q *Queue) pushWaiting(ctx context.Context, id string, priority int) error {
	rdb := q.broker.Client()
	seq, err := rdb.Incr(ctx, q.keys.seq()).Result()
	if err != nil {
		return fmt.Errorf("allocating sequence on queue %q: %w", q.name, err)
	}
	pipe := rdb.TxPipeline()
	pipe.ZAdd(ctx, q.keys.waiting(), redis.Z{Score: waitingScore(priority, seq), Member: id})
	pipe.HSet(ctx, q.keys.job(id), "state", string(StateWaiting))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("pushing job %s to waiting on queue %q: %w", id, q.name, err)
	}
	return nil
}

// promoteDue moves delayed jobs whose ready-at time has passed into the
// waiting set. Called by workers before each poll; eligibility does not
// guarantee immediate pickup when concurrency or rate limits are saturated.
func (q *Queue) promoteDue(ctx context.Context, now time.Time) error {
	rdb := q.broker.Client()
	due, err := rdb.ZRangeByScore(ctx, q.keys.delayed(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: 100,
	}).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("scanning delayed jobs on queue %q: %w", q.name, err)
	}

	for _, id := range due {
		removed, err := rdb.ZRem(ctx, q.keys.delayed(), id).Result()
		if err != nil {
			return err
		}
		if removed == 0 {
			// Another worker promoted it first.
			continue
		}
		priority, err := rdb.HGet(ctx, q.keys.job(id), "priority").Int()
		if err == redis.Nil {
			// The job hash is gone (retention eviction); the delayed entry is
			// an orphan and must not resurface as a partial record.
			q.log.Warnw("dropping delayed entry with no job record", "jobID", id)
			continue
		}
		if err != nil {
			return err
		}
		if err := q.pushWaiting(ctx, id, priority); err != nil {
			return err
		}
	}
	return nil
}

// pop claims the highest-priority waiting job and marks it active,
// incrementing the broker's attempt counter. Returns (nil, nil) when the
// queue has no eligible job.
func (q *Queue) pop(ctx context.Context) (*Job, error) {
	rdb := q.broker.Client()
	popped, err := rdb.ZPopMin(ctx, q.keys.waiting(), 1).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("popping from queue %q: %w", q.name, err)
	}
	if len(popped) == 0 {
		return nil, nil
	}
	id, _ := popped[0].Member.(string)

	now := time.Now().UTC()
	pipe := rdb.TxPipeline()
	pipe.HSet(ctx, q.keys.job(id),
		"state", string(StateActive),
		"processedAt", now.Format(time.RFC3339Nano),
	)
	attempts := pipe.HIncrBy(ctx, q.keys.job(id), "attempts", 1)
	pipe.Incr(ctx, q.keys.active())
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("claiming job %s on queue %q: %w", id, q.name, err)
	}

	job, err := q.Job(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("claimed job %s on queue %q: %w", id, q.name, ErrJobNotFound)
	}
	job.Attempts = int(attempts.Val())
	return job, nil
}

// complete transitions an active job to its terminal completed state and
// applies the retention policy.
func (q *Queue) complete(ctx context.Context, job *Job) error {
	now := time.Now().UTC()
	rdb := q.broker.Client()
	pipe := rdb.TxPipeline()
	pipe.HSet(ctx, q.keys.job(job.ID),
		"state", string(StateCompleted),
		"finishedAt", now.Format(time.RFC3339Nano),
	)
	pipe.LPush(ctx, q.keys.completed(), job.ID)
	pipe.Decr(ctx, q.keys.active())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("completing job %s on queue %q: %w", job.ID, q.name, err)
	}
	job.State = StateCompleted
	job.FinishedAt = now
	return q.trimRetained(ctx, q.keys.completed(), q.policy.KeepCompleted)
}

// retry parks a failed attempt in the delayed set with exponential backoff.
// The job state returns to delayed, which is not terminal.
func (q *Queue) retry(ctx context.Context, job *Job, cause error) error {
	backoff := q.policy.Backoff(job.Attempts)
	readyAt := time.Now().UTC().Add(backoff)
	rdb := q.broker.Client()
	pipe := rdb.TxPipeline()
	pipe.HSet(ctx, q.keys.job(job.ID),
		"state", string(StateDelayed),
		"failedReason", cause.Error(),
	)
	pipe.ZAdd(ctx, q.keys.delayed(), redis.Z{
		Score:  float64(readyAt.UnixMilli()),
		Member: job.ID,
	})
	pipe.Decr(ctx, q.keys.active())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("scheduling retry for job %s on queue %q: %w", job.ID, q.name, err)
	}
	job.State = StateDelayed
	job.FailedReason = cause.Error()
	return nil
}

// fail transitions a job to its terminal failed state; no further retry will
// occur for it.
func (q *Queue) fail(ctx context.Context, job *Job, cause error) error {
	now := time.Now().UTC()
	rdb := q.broker.Client()
	pipe := rdb.TxPipeline()
	pipe.HSet(ctx, q.keys.job(job.ID),
		"state", string(StateFailed),
		"failedReason", cause.Error(),
		"finishedAt", now.Format(time.RFC3339Nano),
	)
	pipe.LPush(ctx, q.keys.failed(), job.ID)
	pipe.Decr(ctx, q.keys.active())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failing job %s on queue %q: %w", job.ID, q.name, err)
	}
	job.State = StateFailed
	job.FailedReason = cause.Error()
	job.FinishedAt = now
	return q.trimRetained(ctx, q.keys.failed(), q.policy.KeepFailed)
}

// trimRetained enforces a retention list bound, deleting the job records of
// evicted ids.
func (q *Queue) trimRetained(ctx context.Context, listKey string, keep int) error {
	rdb := q.broker.Client()
	length, err := rdb.LLen(ctx, listKey).Result()
	if err != nil {
		return err
	}
	for length > int64(keep) {
		id, err := rdb.RPop(ctx, listKey).Result()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return err
		}
		if err := rdb.Del(ctx, q.keys.job(id)).Err(); err != nil {
			return err
		}
		length--
	}
	return nil
}

// jobFields flattens a job into the hash representation stored in the broker.
func jobFields(job *Job) map[string]interface{} {
	fields := map[string]interface{}{
		"id":          job.ID,
		"queue":       job.Queue,
		"type":        job.Type,
		"payload":     string(job.Payload),
		"state":       string(job.State),
		"priority":    job.Priority,
		"attempts":    job.Attempts,
		"maxAttempts": job.MaxAttempts,
		"createdAt":   job.CreatedAt.Format(time.RFC3339Nano),
	}
	if job.Delay > 0 {
		fields["delayMs"] = job.Delay.Milliseconds()
	}
	return fields
}

func jobFromFields(fields map[string]string) (*Job, error) {
	job := &Job{
		ID:           fields["id"],
		Queue:        fields["queue"],
		Type:         fields["type"],
		Payload:      json.RawMessage(fields["payload"]),
		State:        State(fields["state"]),
		FailedReason: fields["failedReason"],
	}
	job.Priority, _ = strconv.Atoi(fields["priority"])
	job.Attempts, _ = strconv.Atoi(fields["attempts"])
	job.MaxAttempts, _ = strconv.Atoi(fields["maxAttempts"])
	if ms, err := strconv.ParseInt(fields["delayMs"], 10, 64); err == nil {
		job.Delay = time.Duration(ms) * time.Millisecond
	}

	var err error
	if job.CreatedAt, err = parseTimeField(fields["createdAt"]); err != nil {
		return nil, fmt.Errorf("job %s has malformed createdAt %q", job.ID, fields["createdAt"])
	}
	job.ProcessedAt, _ = parseTimeField(fields["processedAt"])
	job.FinishedAt, _ = parseTimeField(fields["finishedAt"])
	return job, nil
}

func parseTimeField(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, v)
}
