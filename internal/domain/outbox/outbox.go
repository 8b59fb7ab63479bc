// Package outbox defines how domain events leave the component that raised them.
package outbox

import "context"

// Event is any domain event; the name doubles as the subscription key.
type Event interface {
	EventName() string
}

// Handler processes one delivered event. Errors are logged by the bus, never retried.
type Handler func(ctx context.Context, e Event) error

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type Subscriber interface {
	Subscribe(eventName string, h Handler)
}

// Bus is both ends of the in-process event stream.
type Bus interface {
	Publisher
	Subscriber
}
