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

	"go.uber.org/zap"
)

// Registry is the idempotent factory and directory for queues and workers.
// One registry is created per process and passed explicitly to every
// component needing queue access; there is no ambient global state, so tests
// can run multiple isolated registries.
//
// Registry operations are synchronous with respect to the in-memory maps.
// Only the underlying broker calls (AddJob, worker Close) touch the network;
// their transient errors surface to the caller untouched — retry is a policy
// decision made by queue/worker options or by the caller, never inside the
// registry.
type Registry struct {
	broker *Broker
	log    *zap.SugaredLogger

	mu      sync.Mutex
	queues  map[string]*Queue
	workers map[string]*Worker
}

// NewRegistry creates an empty registry on top of a connected broker.
func NewRegistry(broker *Broker, log *zap.SugaredLogger) *Registry {
	return &Registry{
		broker:  broker,
		log:     log,
		queues:  make(map[string]*Queue),
		workers: make(map[string]*Worker),
	}
}

// CreateQueue returns the queue registered under name, creating it on first
// reference. First registration wins: when the name already exists the given
// policy is ignored and the existing instance is returned. Safe under
// concurrent first access — exactly one instance is ever created per name.
func (r *Registry) CreateQueue(name string, policy Policy) *Queue {
	r.mu.Lock()
	defer r.mu.Unlock()

	if q, ok := r.queues[name]; ok {
		return q
	}
	q := newQueue(name, r.broker, policy, r.log)
	r.queues[name] = q
	r.log.Infow("queue registered", "queue", name, "attempts", q.Policy().Attempts, "backoffBase", q.Policy().BackoffBase)
	return q
}

// CreateWorker returns the worker registered under name, creating and
// starting it on first reference with the same first-registration-wins rule
// as CreateQueue. The worker's queue is created implicitly if absent (with
// default policy) since a worker cannot exist without its queue. Every new
// worker gets a logging observer for completion/failure outcomes.
func (r *Registry) CreateWorker(name string, opts WorkerOptions) (*Worker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if w, ok := r.workers[name]; ok {
		return w, nil
	}
	if opts.Queue == "" {
		return nil, fmt.Errorf("worker %q: queue name is required", name)
	}
	if opts.Handler == nil {
		return nil, fmt.Errorf("worker %q: handler is required", name)
	}

	q, ok := r.queues[opts.Queue]
	if !ok {
		q = newQueue(opts.Queue, r.broker, Policy{}, r.log)
		r.queues[opts.Queue] = q
	}

	w := newWorker(name, q, opts, r.log)
	w.AddObserver(LoggingObserver{Log: r.log})
	r.workers[name] = w
	return w, nil
}

// GetQueue looks up a queue by name. Absence is a normal empty result
// signaling "not yet created".
func (r *Registry) GetQueue(name string) *Queue {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queues[name]
}

// GetWorker looks up a worker by name. Absence is a normal empty result.
func (r *Registry) GetWorker(name string) *Worker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.workers[name]
}

// AddJob submits a job to the named queue. The queue must have been created
// explicitly beforehand; submission never creates queues, so job-policy
// configuration cannot be defaulted away silently.
func (r *Registry) AddJob(ctx context.Context, queueName, jobType string, payload interface{}, opts JobOptions) (*Job, error) {
	q := r.GetQueue(queueName)
	if q == nil {
		return nil, fmt.Errorf("adding job of type %q: queue %q: %w", jobType, queueName, ErrQueueNotFound)
	}
	return q.Add(ctx, jobType, payload, opts)
}

// Shutdown drains the process in a fixed order: workers first (stop pickup,
// let in-flight jobs settle within their grace periods), then queues, then
// the broker connection. The first error is returned but shutdown continues
// through all stages regardless.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	workers := make([]*Worker, 0, len(r.workers))
	for _, w := range r.workers {
		workers = append(workers, w)
	}
	queues := make([]*Queue, 0, len(r.queues))
	for _, q := range r.queues {
		queues = append(queues, q)
	}
	r.mu.Unlock()

	var firstErr error
	for _, w := range workers {
		if err := w.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, q := range queues {
		if err := q.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := r.broker.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
