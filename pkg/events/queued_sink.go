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
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ldruley/tripmailer/pkg/metrics"
)

// QueuedSinkConfig configures a QueuedSink.
type QueuedSinkConfig struct {
	// QueueSize is the size of the async event queue.
	// Default: 10000
	QueueSize int

	// WorkerCount is the number of async processing workers.
	// Default: 2
	WorkerCount int

	// WriteTimeout is the timeout for writing to the underlying sink.
	// Default: 5s
	WriteTimeout time.Duration

	// CircuitBreakerThreshold is the number of consecutive failures before
	// opening the circuit.
	// Default: 5
	CircuitBreakerThreshold int

	// CircuitBreakerResetTime is how long to wait before attempting to close
	// the circuit.
	// Default: 30s
	CircuitBreakerResetTime time.Duration
}

// QueuedSink wraps a Sink with a bounded in-process queue. Writes never
// block: when the queue is full or the circuit is open, events are dropped
// and counted. A QueuedSink keeps a misbehaving downstream from ever backing
// pressure into the delivery worker.
type QueuedSink struct {
	sink   Sink
	queue  chan *Event
	config QueuedSinkConfig
	logger *zap.Logger

	droppedEvents   atomic.Int64
	processedEvents atomic.Int64
	failedEvents    atomic.Int64

	consecutiveFails atomic.Int32
	circuitOpen      atomic.Bool
	lastResetAttempt atomic.Int64 // Unix timestamp

	wg     sync.WaitGroup
	closed atomic.Bool
}

// NewQueuedSink creates a new QueuedSink wrapper around an existing sink.
func NewQueuedSink(sink Sink, cfg QueuedSinkConfig, logger *zap.Logger) *QueuedSink {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 10000
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.CircuitBreakerThreshold <= 0 {
		cfg.CircuitBreakerThreshold = 5
	}
	if cfg.CircuitBreakerResetTime <= 0 {
		cfg.CircuitBreakerResetTime = 30 * time.Second
	}

	qs := &QueuedSink{
		sink:   sink,
		queue:  make(chan *Event, cfg.QueueSize),
		config: cfg,
		logger: logger.Named("queued-sink").With(zap.String("sink", sink.Name())),
	}

	for i := 0; i < cfg.WorkerCount; i++ {
		qs.wg.Add(1)
		go qs.processQueue(i)
	}

	qs.logger.Info("queued event sink started",
		zap.Int("queue_size", cfg.QueueSize),
		zap.Int("workers", cfg.WorkerCount),
		zap.Duration("write_timeout", cfg.WriteTimeout))

	return qs
}

// Write enqueues an event for async processing (non-blocking).
func (qs *QueuedSink) Write(_ context.Context, event *Event) error {
	if qs.closed.Load() {
		return fmt.Errorf("queued sink %s is closed", qs.sink.Name())
	}

	if qs.circuitOpen.Load() {
		lastReset := qs.lastResetAttempt.Load()
		now := time.Now().Unix()
		if now-lastReset >= int64(qs.config.CircuitBreakerResetTime.Seconds()) {
			if qs.lastResetAttempt.CompareAndSwap(lastReset, now) {
				qs.logger.Info("attempting to close circuit breaker")
				qs.circuitOpen.Store(false)
				qs.consecutiveFails.Store(0)
			}
		} else {
			qs.droppedEvents.Add(1)
			metrics.DeliveryEventsDropped.WithLabelValues(qs.sink.Name(), "circuit_open").Inc()
			return nil
		}
	}

	select {
	case qs.queue <- event:
		return nil
	default:
		qs.droppedEvents.Add(1)
		metrics.DeliveryEventsDropped.WithLabelValues(qs.sink.Name(), "queue_full").Inc()
		qs.logger.Warn("event queue full, dropping delivery event",
			zap.String("job_id", event.JobID),
			zap.String("status", event.Status))
		return nil
	}
}

// processQueue is the worker goroutine that drains events from the queue.
func (qs *QueuedSink) processQueue(workerID int) {
	defer qs.wg.Done()

	for event := range qs.queue {
		ctx, cancel := context.WithTimeout(context.Background(), qs.config.WriteTimeout)
		err := qs.sink.Write(ctx, event)
		cancel()

		if err != nil {
			qs.failedEvents.Add(1)
			fails := qs.consecutiveFails.Add(1)

			qs.logger.Error("failed to write delivery event",
				zap.Int("worker", workerID),
				zap.String("job_id", event.JobID),
				zap.String("error", err.Error()),
				zap.Int32("consecutive_fails", fails))

			if int(fails) >= qs.config.CircuitBreakerThreshold {
				if qs.circuitOpen.CompareAndSwap(false, true) {
					qs.lastResetAttempt.Store(time.Now().Unix())
					qs.logger.Warn("circuit breaker opened for event sink",
						zap.Int32("consecutive_fails", fails))
				}
			}
			continue
		}

		qs.processedEvents.Add(1)
		qs.consecutiveFails.Store(0)
		metrics.DeliveryEventsPublished.WithLabelValues(qs.sink.Name()).Inc()
	}
}

// Stats returns the processed, failed and dropped event counts.
func (qs *QueuedSink) Stats() (processed, failed, dropped int64) {
	return qs.processedEvents.Load(), qs.failedEvents.Load(), qs.droppedEvents.Load()
}

// Close drains the queue and shuts the sink down. Events already enqueued
// are flushed; new writes are rejected.
func (qs *QueuedSink) Close() error {
	if qs.closed.Swap(true) {
		return nil
	}

	close(qs.queue)
	qs.wg.Wait()

	return qs.sink.Close()
}

// Name returns the underlying sink's name.
func (qs *QueuedSink) Name() string {
	return qs.sink.Name()
}

// NewFromConfig builds the event pipeline for the given broker list. With no
// brokers configured the stream is disabled and (nil, nil) is returned; the
// delivery worker treats a nil sink as "don't publish".
func NewFromConfig(brokers []string, topic string, logger *zap.Logger) (Sink, error) {
	if len(brokers) == 0 {
		return nil, nil
	}
	kafkaSink, err := NewKafkaSink(KafkaSinkConfig{Brokers: brokers, Topic: topic}, logger)
	if err != nil {
		return nil, err
	}
	return NewQueuedSink(kafkaSink, QueuedSinkConfig{}, logger), nil
}
