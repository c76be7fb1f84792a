package queue

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pubq/internal/pub"
	"pubq/internal/pub/tracing"
)

// TracedQueue wraps a pub.Queue with distributed tracing
// Layer order: TracedQueue -> MetricsQueue -> Queue (real thing)
type TracedQueue struct {
	queue  pub.Queue
	name   string
	tracer *tracing.Tracer
}

// NewTracedQueue creates a new traced queue that wraps a metrics queue
func NewTracedQueue(queue pub.Queue, name string, tracer *tracing.Tracer) pub.Queue {
	return &TracedQueue{
		queue:  queue,
		name:   name,
		tracer: tracer,
	}
}

// Submit implements pub.Queue.Submit with distributed tracing. The execution
// span is started on the worker as a child of the submit span.
func (q *TracedQueue) Submit(ctx context.Context, job pub.Job) error {
	ctx, span := q.tracer.StartSpan(ctx, "queue.submit", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()

	span.SetAttributes(q.tracer.QueueAttributes(q.name)...)

	wrapped := job
	if job != nil {
		parent := trace.ContextWithSpanContext(context.Background(), span.SpanContext())
		submitted := time.Now()
		wrapped = func() {
			execCtx, exec := q.tracer.StartSpan(parent, "queue.execute", trace.WithSpanKind(trace.SpanKindConsumer))
			exec.SetAttributes(q.tracer.JobAttributes(q.name, time.Since(submitted))...)

			// a panic passes through untouched; the queue recovers it
			completed := false
			defer func() {
				if !completed {
					q.tracer.RecordError(execCtx, fmt.Errorf("%w on queue %s", pub.ErrJobPanicked, q.name))
				} else {
					exec.SetStatus(codes.Ok, "")
				}
				exec.End()
			}()

			job()
			completed = true
		}
	}

	err := q.queue.Submit(ctx, wrapped)

	if err != nil {
		q.tracer.RecordError(ctx, err)
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.SetAttributes(q.tracer.ErrorAttributes(err)...)

	return err
}

// Len implements pub.Queue.Len
func (q *TracedQueue) Len() int {
	return q.queue.Len()
}

// Close implements pub.Queue.Close with distributed tracing
func (q *TracedQueue) Close(ctx context.Context) error {
	ctx, span := q.tracer.StartSpan(ctx, "queue.close")
	defer span.End()

	span.SetAttributes(q.tracer.QueueAttributes(q.name)...)

	err := q.queue.Close(ctx)

	if err != nil {
		q.tracer.RecordError(ctx, err)
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.SetAttributes(q.tracer.ErrorAttributes(err)...)

	return err
}
