// Package queue provides the bounded-concurrency admission gate for
// browser-driven extraction tasks. Everything that touches the shared
// headless browser is funneled through one Queue, so the concurrency
// ceiling is the only serialization the browser manager needs.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/clipvault/extractor/internal/metrics"
)

// ErrTimeout is returned when a task's deadline expires, whether it was
// still waiting for admission or already running.
var ErrTimeout = errors.New("extraction task timed out")

// TaskFunc is the unit of work submitted to the queue. The context carries
// the task deadline; the function owns its own teardown (closing its
// browser context) regardless of how the deadline lands.
type TaskFunc func(ctx context.Context) error

// Queue admits tasks FIFO up to a fixed concurrency ceiling.
type Queue struct {
	sem            chan struct{}
	defaultTimeout time.Duration
	pending        atomic.Int64
	inFlight       atomic.Int64
	logger         *zap.Logger
}

// New creates a Queue. Concurrency is clamped to at least 1.
func New(concurrency int, defaultTimeout time.Duration, logger *zap.Logger) *Queue {
	if concurrency < 1 {
		concurrency = 1
	}
	if defaultTimeout <= 0 {
		defaultTimeout = 45 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		sem:            make(chan struct{}, concurrency),
		defaultTimeout: defaultTimeout,
		logger:         logger,
	}
}

// Submit runs fn under the queue's default per-task timeout.
func (q *Queue) Submit(ctx context.Context, name string, fn TaskFunc) error {
	return q.SubmitWithTimeout(ctx, name, q.defaultTimeout, fn)
}

// SubmitWithTimeout admits fn and blocks until it completes or the timeout
// expires. The timeout clock starts at submission, so time spent waiting
// for a slot counts against it. On expiry the submitter gets ErrTimeout;
// the task itself is left to observe its context deadline and unwind --
// the queue never force-kills in-flight browser work.
func (q *Queue) SubmitWithTimeout(ctx context.Context, name string, timeout time.Duration, fn TaskFunc) error {
	if timeout <= 0 {
		timeout = q.defaultTimeout
	}
	admitted := time.Now()
	deadline := admitted.Add(timeout)

	metrics.SetQueueDepth(q.pending.Add(1))
	select {
	case q.sem <- struct{}{}:
	case <-time.After(timeout):
		metrics.SetQueueDepth(q.pending.Add(-1))
		metrics.ObserveQueueTimeout()
		q.logger.Warn("task timed out awaiting admission",
			zap.String("task", name),
			zap.Duration("timeout", timeout),
		)
		return fmt.Errorf("task %s: %w", name, ErrTimeout)
	case <-ctx.Done():
		metrics.SetQueueDepth(q.pending.Add(-1))
		return fmt.Errorf("task %s: submit canceled: %w", name, ctx.Err())
	}
	metrics.SetQueueDepth(q.pending.Add(-1))
	metrics.SetQueueInFlight(q.inFlight.Add(1))

	// The task context is detached from the submitter's cancellation but
	// keeps its values and inherits the task deadline, so an abandoned
	// submitter cannot interrupt a browser task mid-teardown.
	taskCtx, cancel := context.WithDeadline(context.WithoutCancel(ctx), deadline)

	done := make(chan error, 1)
	go func() {
		start := time.Now()
		defer func() {
			cancel()
			metrics.ObserveTask(name, time.Since(start))
			metrics.SetQueueInFlight(q.inFlight.Add(-1))
			<-q.sem
		}()
		done <- fn(taskCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("task %s: %w", name, err)
		}
		return nil
	case <-time.After(time.Until(deadline)):
		metrics.ObserveQueueTimeout()
		q.logger.Warn("task result abandoned after timeout",
			zap.String("task", name),
			zap.Duration("timeout", timeout),
		)
		return fmt.Errorf("task %s: %w", name, ErrTimeout)
	}
}

// Pending is the number of tasks waiting for a slot.
func (q *Queue) Pending() int64 {
	return q.pending.Load()
}

// InFlight is the number of tasks currently holding a slot.
func (q *Queue) InFlight() int64 {
	return q.inFlight.Load()
}

// Quiet reports whether no task is waiting or running. The browser manager
// only closes or recycles the browser while the queue is quiet.
func (q *Queue) Quiet() bool {
	return q.pending.Load() == 0 && q.inFlight.Load() == 0
}
