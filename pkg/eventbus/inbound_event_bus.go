package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/drip/pkg/events"
)

// WatermillInboundEventBus consumes the foreign-event topic and dispatches
// by the envelope's type discriminator. Messages with unknown types or
// unparseable envelopes are acked and dropped: the surrounding contexts
// publish far more than this engine cares about, and none of it may stall
// the consumer group.
type WatermillInboundEventBus struct {
	subscriber    message.Subscriber
	subscriptions map[string][]InboundHandler
	logger        *slog.Logger
}

func NewWatermillInboundEventBus(sub message.Subscriber, logger *slog.Logger) InboundEventBus {
	return &WatermillInboundEventBus{
		subscriber:    sub,
		subscriptions: make(map[string][]InboundHandler),
		logger:        logger.With("module", "inbound_event_bus"),
	}
}

func (eb *WatermillInboundEventBus) Handle(eventType string, handler InboundHandler) error {
	eb.subscriptions[eventType] = append(eb.subscriptions[eventType], handler)

	return nil
}

func (eb *WatermillInboundEventBus) Subscribe(ctx context.Context) error {
	messages, err := eb.subscriber.Subscribe(ctx, events.InboundTopic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			inbound := &events.InboundMessage{}

			if err := json.Unmarshal(msg.Payload, inbound); err != nil {
				eb.logger.Warn("Dropping unparseable inbound message", "message_id", msg.UUID, "error", err)
				msg.Ack()

				continue
			}

			handlers, exists := eb.subscriptions[inbound.Type]
			if !exists {
				msg.Ack()

				continue
			}

			failed := false

			for _, handler := range handlers {
				if err := handler(ctx, inbound); err != nil {
					eb.logger.Error("Inbound handler failed",
						"event_type", inbound.Type,
						"message_id", inbound.Metadata.ID,
						"error", err)

					failed = true
				}
			}

			if failed {
				msg.Nack()

				continue
			}

			msg.Ack()
		}
	}()

	return nil
}

func (eb *WatermillInboundEventBus) Close() error {
	return eb.subscriber.Close()
}
