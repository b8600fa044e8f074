// Package eventbus provides event-driven communication infrastructure for
// the journey engine.
package eventbus

import (
	"context"

	"github.com/dukex/drip/pkg/events"
)

type Event interface {
	GetType() events.EventType
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}

// InboundHandler processes one foreign message from another bounded context.
type InboundHandler func(ctx context.Context, msg *events.InboundMessage) error

// InboundEventBus consumes the foreign-event topic. Multiple handlers may be
// registered for one event type (a delivery open both resolves gates and can
// start event-triggered journeys). Unrecognized types are acked and ignored.
type InboundEventBus interface {
	Handle(eventType string, handler InboundHandler) error
	Subscribe(ctx context.Context) error
	Close() error
}
