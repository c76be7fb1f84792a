package pub

import "context"

// Subscriber reacts to a published event. Subscribers run on a queue worker,
// never on the goroutine that published the event.
type Subscriber[E comparable] interface {
	Invoke(event E)
}

// SubscriberFunc adapts an ordinary function to the Subscriber interface.
type SubscriberFunc[E comparable] func(event E)

// Invoke calls f(event).
func (f SubscriberFunc[E]) Invoke(event E) {
	f(event)
}

// Dispatcher defines the interface for registering subscribers and fanning
// events out to them.
type Dispatcher[E comparable] interface {
	// Subscribe appends a subscriber to the list for event. The same
	// subscriber may be registered more than once and is then invoked once
	// per registration. Subscriptions cannot be removed.
	Subscribe(event E, subscriber Subscriber[E])

	// Notify submits one job per registered subscriber, in registration
	// order, and returns once they are all submitted. An event without
	// subscribers is not an error.
	Notify(ctx context.Context, event E) error

	// Subscribers returns the number of registrations for event.
	Subscribers(event E) int
}
