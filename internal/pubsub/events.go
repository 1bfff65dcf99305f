// Package pubsub provides a generic publish/subscribe event system.
package pubsub

import (
	"context"
	"time"
)

// EventType represents the type of event being published.
type EventType string

const (
	// ResolvedEvent is published when a carrier id is found in the durable store.
	ResolvedEvent EventType = "resolved"
	// CreatedEvent is published when backfill produced a carrier record.
	CreatedEvent EventType = "created"
	// UnresolvedEvent is published when a term is left without a carrier.
	UnresolvedEvent EventType = "unresolved"
	// InvalidatedEvent is published when cached ids are evicted.
	InvalidatedEvent EventType = "invalidated"
)

// Event represents a published event with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher allows publishing events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}
