// Package dispatcher fans published events out to their subscribers, one
// queue job per subscriber.
package dispatcher

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"pubq/internal/pub"
	"pubq/internal/validator"
)

// Dispatcher is the concrete implementation of pub.Dispatcher. Subscriptions
// are append-only and safe to add while events are being published.
type Dispatcher[E comparable] struct {
	queue  pub.Queue
	logger *zap.Logger

	mu            sync.RWMutex
	subscriptions map[E][]pub.Subscriber[E]
}

var _ pub.Dispatcher[string] = (*Dispatcher[string])(nil)

// New creates a Dispatcher that submits subscriber jobs to queue.
func New[E comparable](queue pub.Queue, logger *zap.Logger) (*Dispatcher[E], error) {
	d := Dispatcher[E]{
		queue:         queue,
		logger:        logger,
		subscriptions: make(map[E][]pub.Subscriber[E]),
	}

	if err := validator.Validate("dispatcher", d.queue, d.logger); err != nil {
		return nil, fmt.Errorf("failed to validate dispatcher deps: %w", err)
	}
	d.logger = logger.Named("dispatcher")

	return &d, nil
}

// Subscribe implements pub.Dispatcher.Subscribe. It panics on a nil
// subscriber, the same way registering a nil http.Handler does.
func (d *Dispatcher[E]) Subscribe(event E, subscriber pub.Subscriber[E]) {
	if subscriber == nil {
		panic("dispatcher: nil subscriber")
	}

	d.mu.Lock()
	d.subscriptions[event] = append(d.subscriptions[event], subscriber)
	n := len(d.subscriptions[event])
	d.mu.Unlock()

	d.logger.Debug("subscriber registered", zap.Any("event", event), zap.Int("subscribers", n))
}

// Notify implements pub.Dispatcher.Notify. Subscribers registered while
// Notify runs are not part of this fan-out. On a submit error the jobs
// already submitted still run; the rest are not submitted.
func (d *Dispatcher[E]) Notify(ctx context.Context, event E) error {
	d.mu.RLock()
	subs := slices.Clone(d.subscriptions[event])
	d.mu.RUnlock()

	if len(subs) == 0 {
		d.logger.Debug("no subscribers for event", zap.Any("event", event))
		return nil
	}

	for i, sub := range subs {
		sub := sub
		if err := d.queue.Submit(ctx, func() { sub.Invoke(event) }); err != nil {
			d.logger.Error("failed to submit subscriber job",
				zap.Any("event", event),
				zap.Int("submitted", i),
				zap.Int("subscribers", len(subs)),
				zap.Error(err),
			)
			return fmt.Errorf("failed to submit subscriber %d of %d for event %v: %w", i+1, len(subs), event, err)
		}
	}

	d.logger.Debug("event dispatched", zap.Any("event", event), zap.Int("subscribers", len(subs)))

	return nil
}

// Subscribers implements pub.Dispatcher.Subscribers
func (d *Dispatcher[E]) Subscribers(event E) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscriptions[event])
}
