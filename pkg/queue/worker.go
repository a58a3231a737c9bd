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
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ldruley/tripmailer/pkg/metrics"
)

// Handler processes one job. A nil return completes the job; an error wrapped
// with Terminal fails it permanently; any other error lets the queue's
// backoff policy schedule a re-attempt (bounded by the job's attempt
// ceiling).
type Handler func(ctx context.Context, job *Job) error

// RateLimit caps how many jobs a worker may start per time window. The limit
// belongs to the worker, not the queue, so multiple workers on the same queue
// can carry independent limits.
type RateLimit struct {
	Max    int
	Window time.Duration
}

// WorkerOptions configure a named worker.
type WorkerOptions struct {
	// Queue is the name of the queue this worker consumes. Required.
	Queue string
	// Handler is the processing function. Required.
	Handler Handler
	// Concurrency is the number of jobs the worker may hold in flight
	// simultaneously. Defaults to 1; raising it is an explicit opt-in.
	Concurrency int
	// RateLimit optionally caps job starts per window.
	RateLimit *RateLimit
	// PollInterval is how long an idle consumer sleeps before checking the
	// queue again. Defaults to 250ms.
	PollInterval time.Duration
	// GracePeriod bounds how long Close waits for in-flight jobs to settle.
	// Defaults to 30s.
	GracePeriod time.Duration
}

func (o WorkerOptions) withDefaults() WorkerOptions {
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 250 * time.Millisecond
	}
	if o.GracePeriod <= 0 {
		o.GracePeriod = 30 * time.Second
	}
	return o
}

// WorkerStats reports a worker's run state without side effects.
type WorkerStats struct {
	Name        string     `json:"name"`
	Queue       string     `json:"queue"`
	Running     bool       `json:"running"`
	Paused      bool       `json:"paused"`
	Concurrency int        `json:"concurrency"`
	InFlight    int64      `json:"inFlight"`
	RateLimit   *RateLimit `json:"rateLimit,omitempty"`
}

// Worker is a named consumer bound to exactly one queue. Each worker runs its
// own consumption goroutines; queues are pure storage.
type Worker struct {
	name    string
	queue   *Queue
	opts    WorkerOptions
	limiter *rate.Limiter
	log     *zap.SugaredLogger

	mu        sync.Mutex
	observers []Observer

	paused   atomic.Bool
	closed   atomic.Bool
	inFlight atomic.Int64
	stop     chan struct{}
	wg       sync.WaitGroup
}

func newWorker(name string, queue *Queue, opts WorkerOptions, log *zap.SugaredLogger) *Worker {
	opts = opts.withDefaults()

	w := &Worker{
		name:  name,
		queue: queue,
		opts:  opts,
		log:   log.With("worker", name, "queue", queue.Name()),
		stop:  make(chan struct{}),
	}
	if opts.RateLimit != nil && opts.RateLimit.Max > 0 && opts.RateLimit.Window > 0 {
		perSecond := float64(opts.RateLimit.Max) / opts.RateLimit.Window.Seconds()
		w.limiter = rate.NewLimiter(rate.Limit(perSecond), opts.RateLimit.Max)
	}

	for i := 0; i < opts.Concurrency; i++ {
		w.wg.Add(1)
		go w.consume(i)
	}

	w.log.Infow("worker started",
		"concurrency", opts.Concurrency,
		"rateLimited", w.limiter != nil)

	return w
}

// Name returns the worker's unique name.
func (w *Worker) Name() string { return w.name }

// AddObserver registers an observer for job outcomes. Observers are invoked
// synchronously on the consuming goroutine in registration order.
func (w *Worker) AddObserver(obs Observer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.observers = append(w.observers, obs)
}

// Pause stops job pickup without closing the worker. Jobs already in flight
// run to completion or failure.
func (w *Worker) Pause() {
	if w.paused.CompareAndSwap(false, true) {
		w.log.Infow("worker paused")
	}
}

// Resume restarts job pickup after a Pause.
func (w *Worker) Resume() {
	if w.paused.CompareAndSwap(true, false) {
		w.log.Infow("worker resumed")
	}
}

// Stats reports the worker's current run state.
func (w *Worker) Stats() WorkerStats {
	return WorkerStats{
		Name:        w.name,
		Queue:       w.queue.Name(),
		Running:     !w.closed.Load(),
		Paused:      w.paused.Load(),
		Concurrency: w.opts.Concurrency,
		InFlight:    w.inFlight.Load(),
		RateLimit:   w.opts.RateLimit,
	}
}

// Close stops job pickup and waits for in-flight jobs to settle, bounded by
// the worker's grace period (or ctx, whichever ends first). Settling past the
// deadline is a forced-close condition: it is logged as a potential job-loss
// event and reported as an error.
func (w *Worker) Close(ctx context.Context) error {
	if !w.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(w.stop)

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	grace := time.NewTimer(w.opts.GracePeriod)
	defer grace.Stop()

	select {
	case <-done:
		w.log.Infow("worker drained and closed")
		return nil
	case <-grace.C:
	case <-ctx.Done():
	}

	w.log.Warnw("worker close exceeded grace period, forcing close; in-flight jobs may be lost",
		"inFlight", w.inFlight.Load(), "gracePeriod", w.opts.GracePeriod)
	return fmt.Errorf("worker %q: %d in-flight jobs did not settle within %s", w.name, w.inFlight.Load(), w.opts.GracePeriod)
}

// consume is one consumption goroutine. Up to Concurrency of these run per
// worker.
func (w *Worker) consume(id int) {
	defer w.wg.Done()

	ctx := context.Background()
	idle := time.NewTimer(w.opts.PollInterval)
	defer idle.Stop()

	for {
		select {
		case <-w.stop:
			return
		default:
		}

		if w.paused.Load() {
			w.sleep(idle)
			continue
		}

		if err := w.queue.promoteDue(ctx, time.Now()); err != nil {
			w.log.Errorw("promoting delayed jobs failed", "consumer", id, "error", err)
			w.sleep(idle)
			continue
		}

		job, err := w.queue.pop(ctx)
		if err != nil {
			w.log.Errorw("claiming job failed", "consumer", id, "error", err)
			w.sleep(idle)
			continue
		}
		if job == nil {
			w.sleep(idle)
			continue
		}

		if w.limiter != nil {
			if err := w.limiter.Wait(ctx); err != nil {
				w.log.Errorw("rate limiter wait failed", "consumer", id, "error", err)
			}
		}

		w.process(ctx, job)
	}
}

// process runs the handler for one claimed job and settles its outcome.
func (w *Worker) process(ctx context.Context, job *Job) {
	w.inFlight.Add(1)
	defer w.inFlight.Add(-1)

	start := time.Now()
	err := w.opts.Handler(ctx, job)
	metrics.JobDuration.WithLabelValues(job.Queue, job.Type).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		if cerr := w.queue.complete(ctx, job); cerr != nil {
			w.log.Errorw("recording job completion failed", "jobID", job.ID, "error", cerr)
			return
		}
		metrics.JobsProcessed.WithLabelValues(job.Queue, "completed").Inc()
		w.notifyCompleted(job)

	case IsTerminal(err) || job.Attempts >= job.MaxAttempts:
		if ferr := w.queue.fail(ctx, job, err); ferr != nil {
			w.log.Errorw("recording job failure failed", "jobID", job.ID, "error", ferr)
			return
		}
		metrics.JobsProcessed.WithLabelValues(job.Queue, "failed").Inc()
		w.notifyFailed(job, err, true)

	default:
		if rerr := w.queue.retry(ctx, job, err); rerr != nil {
			w.log.Errorw("scheduling job retry failed", "jobID", job.ID, "error", rerr)
			return
		}
		metrics.JobsProcessed.WithLabelValues(job.Queue, "retried").Inc()
		w.notifyFailed(job, err, false)
	}
}

func (w *Worker) notifyCompleted(job *Job) {
	w.mu.Lock()
	observers := append([]Observer(nil), w.observers...)
	w.mu.Unlock()
	for _, obs := range observers {
		obs.JobCompleted(job)
	}
}

func (w *Worker) notifyFailed(job *Job, err error, terminal bool) {
	w.mu.Lock()
	observers := append([]Observer(nil), w.observers...)
	w.mu.Unlock()
	for _, obs := range observers {
		obs.JobFailed(job, err, terminal)
	}
}

func (w *Worker) sleep(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(w.opts.PollInterval)
	select {
	case <-w.stop:
	case <-t.C:
	}
}
