// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/dukex/drip/pkg/channels/gochannel"
	"github.com/dukex/drip/pkg/channels/kafka"
	"github.com/dukex/drip/pkg/eventbus"
)

// NewEventBus creates the engine event bus for the given provider.
func NewEventBus(provider, serviceName string, logger *slog.Logger) eventbus.EventBus {
	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), serviceName)
		if err != nil {
			panic(fmt.Errorf("failed to create Kafka pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	case "gochannel":
		pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			panic(fmt.Errorf("failed to create GoChannel pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	default:
		panic("Unsupported event bus provider: " + provider)
	}
}

// NewInboundEventBus creates the consumer for foreign domain events.
func NewInboundEventBus(provider, serviceName string, logger *slog.Logger) eventbus.InboundEventBus {
	switch provider {
	case "kafka":
		_, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), serviceName+"-inbound")
		if err != nil {
			panic(fmt.Errorf("failed to create Kafka subscriber: %w", err))
		}

		return eventbus.NewWatermillInboundEventBus(sub, logger)
	case "gochannel":
		_, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			panic(fmt.Errorf("failed to create GoChannel subscriber: %w", err))
		}

		return eventbus.NewWatermillInboundEventBus(sub, logger)
	default:
		panic("Unsupported event bus provider: " + provider)
	}
}
