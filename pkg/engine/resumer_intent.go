package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/drip/pkg/eventbus"
	"github.com/dukex/drip/pkg/events"
	"github.com/dukex/drip/pkg/models"
	"github.com/dukex/drip/pkg/persistence"
)

// IntentTriggerResumer starts journeys from intent signals of sufficient
// strength.
type IntentTriggerResumer struct {
	persistence persistence.Persistence
	starter     *Starter
	logger      *slog.Logger
}

func NewIntentTriggerResumer(p persistence.Persistence, starter *Starter, logger *slog.Logger) *IntentTriggerResumer {
	return &IntentTriggerResumer{
		persistence: p,
		starter:     starter,
		logger:      logger.With("module", "intent_trigger_resumer"),
	}
}

func (r *IntentTriggerResumer) Register(bus eventbus.InboundEventBus) error {
	return bus.Handle(events.InboundIntentSignal, r.HandleInbound)
}

func (r *IntentTriggerResumer) HandleInbound(ctx context.Context, msg *events.InboundMessage) error {
	var data events.IntentSignalData
	if err := msg.DecodeData(&data); err != nil {
		r.logger.WarnContext(ctx, "Dropping malformed intent event", "error", err)

		return nil
	}

	organizationID := organizationIDOf(msg)
	if organizationID == "" {
		return nil
	}

	matches, err := r.persistence.Journeys().FindTriggerConfigs(ctx, organizationID, models.TriggerTypeIntent)
	if err != nil {
		return fmt.Errorf("failed to find trigger configs: %w", err)
	}

	for _, match := range matches {
		if match.Trigger.SignalType != data.SignalType {
			continue
		}

		if data.Strength < match.Trigger.MinStrength {
			continue
		}

		_, err := r.starter.StartExecution(ctx, match.JourneyID, data.ContactID, string(models.TriggerTypeIntent), data.Contact)
		if err != nil {
			return fmt.Errorf("failed to start execution for journey %s: %w", match.JourneyID, err)
		}
	}

	return nil
}
