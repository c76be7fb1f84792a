package dispatcher

import (
	"context"

	"go.opentelemetry.io/otel/codes"

	"pubq/internal/pub"
	"pubq/internal/pub/tracing"
)

// TracedDispatcher wraps a pub.Dispatcher with distributed tracing
// Layer order: TracedDispatcher -> MetricsDispatcher -> Dispatcher (real thing)
type TracedDispatcher[E comparable] struct {
	dispatcher pub.Dispatcher[E]
	tracer     *tracing.Tracer
}

// NewTracedDispatcher creates a new traced dispatcher that wraps a metrics dispatcher
func NewTracedDispatcher[E comparable](dispatcher pub.Dispatcher[E], tracer *tracing.Tracer) pub.Dispatcher[E] {
	return &TracedDispatcher[E]{
		dispatcher: dispatcher,
		tracer:     tracer,
	}
}

// Subscribe implements pub.Dispatcher.Subscribe
func (d *TracedDispatcher[E]) Subscribe(event E, subscriber pub.Subscriber[E]) {
	d.dispatcher.Subscribe(event, subscriber)
}

// Notify implements pub.Dispatcher.Notify with distributed tracing. Spans of
// the submitted jobs become children of the notify span when the queue is
// traced too.
func (d *TracedDispatcher[E]) Notify(ctx context.Context, event E) error {
	ctx, span := d.tracer.StartSpan(ctx, "dispatcher.notify")
	defer span.End()

	span.SetAttributes(d.tracer.EventAttributes(label(event), d.dispatcher.Subscribers(event))...)

	err := d.dispatcher.Notify(ctx, event)

	if err != nil {
		d.tracer.RecordError(ctx, err)
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.SetAttributes(d.tracer.ErrorAttributes(err)...)

	return err
}

// Subscribers implements pub.Dispatcher.Subscribers
func (d *TracedDispatcher[E]) Subscribers(event E) int {
	return d.dispatcher.Subscribers(event)
}
