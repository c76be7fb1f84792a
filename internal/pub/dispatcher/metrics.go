package dispatcher

import (
	"context"
	"fmt"
	"time"

	"pubq/internal/pub"
	"pubq/internal/pub/metrics"
)

// MetricsDispatcher wraps a pub.Dispatcher with metrics collection
type MetricsDispatcher[E comparable] struct {
	dispatcher pub.Dispatcher[E]
	registry   *metrics.Registry
}

// NewMetricsDispatcher creates a new instrumented dispatcher
func NewMetricsDispatcher[E comparable](dispatcher pub.Dispatcher[E], registry *metrics.Registry) pub.Dispatcher[E] {
	return &MetricsDispatcher[E]{
		dispatcher: dispatcher,
		registry:   registry,
	}
}

// Subscribe implements pub.Dispatcher.Subscribe with metrics collection
func (d *MetricsDispatcher[E]) Subscribe(event E, subscriber pub.Subscriber[E]) {
	d.dispatcher.Subscribe(event, subscriber)

	d.registry.RecordSubscribe(label(event), d.dispatcher.Subscribers(event))
}

// Notify implements pub.Dispatcher.Notify with metrics collection
func (d *MetricsDispatcher[E]) Notify(ctx context.Context, event E) error {
	start := time.Now()
	fanout := d.dispatcher.Subscribers(event)

	err := d.dispatcher.Notify(ctx, event)
	duration := time.Since(start)

	d.registry.RecordNotify(label(event), fanout, duration, err)

	return err
}

// Subscribers implements pub.Dispatcher.Subscribers
func (d *MetricsDispatcher[E]) Subscribers(event E) int {
	return d.dispatcher.Subscribers(event)
}

func label[E comparable](event E) string {
	if s, ok := any(event).(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprint(event)
}
