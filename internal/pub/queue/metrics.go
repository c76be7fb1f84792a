package queue

import (
	"context"
	"errors"
	"time"

	"pubq/internal/pub"
	"pubq/internal/pub/metrics"
)

// MetricsQueue wraps a pub.Queue with metrics collection
type MetricsQueue struct {
	queue    pub.Queue
	name     string
	registry *metrics.Registry
}

// NewMetricsQueue creates a new instrumented queue
func NewMetricsQueue(queue pub.Queue, name string, registry *metrics.Registry) pub.Queue {
	return &MetricsQueue{
		queue:    queue,
		name:     name,
		registry: registry,
	}
}

// Submit implements pub.Queue.Submit with metrics collection. The job is
// wrapped so its wait time, run time and outcome are recorded on the worker.
func (q *MetricsQueue) Submit(ctx context.Context, job pub.Job) error {
	wrapped := job
	if job != nil {
		submitted := time.Now()
		wrapped = func() {
			start := time.Now()
			q.registry.UpdateQueueDepth(q.name, q.queue.Len())

			panicked := true
			defer func() {
				q.registry.RecordJobExecution(q.name, start.Sub(submitted), time.Since(start), panicked)
			}()

			job()
			panicked = false
		}
	}

	err := q.queue.Submit(ctx, wrapped)

	q.registry.RecordSubmit(q.name, submitStatus(err))
	q.registry.UpdateQueueDepth(q.name, q.queue.Len())

	return err
}

// Len implements pub.Queue.Len
func (q *MetricsQueue) Len() int {
	return q.queue.Len()
}

// Close implements pub.Queue.Close and zeroes the depth gauge once drained
func (q *MetricsQueue) Close(ctx context.Context) error {
	err := q.queue.Close(ctx)
	q.registry.UpdateQueueDepth(q.name, q.queue.Len())
	return err
}

func submitStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, pub.ErrQueueClosed):
		return "closed"
	case errors.Is(err, pub.ErrQueueFull):
		return "full"
	default:
		return "error"
	}
}
