package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/drip/pkg/acl"
	"github.com/dukex/drip/pkg/eventbus"
	"github.com/dukex/drip/pkg/events"
	"github.com/dukex/drip/pkg/models"
	"github.com/dukex/drip/pkg/persistence"
)

// EventTriggerResumer starts journeys from named domain events. Each inbound
// message is translated through the anti-corruption layer, matched against
// the organization's event-triggered journeys, and handed to the starter.
type EventTriggerResumer struct {
	persistence persistence.Persistence
	starter     *Starter
	logger      *slog.Logger
}

func NewEventTriggerResumer(p persistence.Persistence, starter *Starter, logger *slog.Logger) *EventTriggerResumer {
	return &EventTriggerResumer{
		persistence: p,
		starter:     starter,
		logger:      logger.With("module", "event_trigger_resumer"),
	}
}

// Register subscribes the resumer to the inbound event types that map to
// engine trigger events.
func (r *EventTriggerResumer) Register(bus eventbus.InboundEventBus) error {
	for _, eventType := range []string{
		events.InboundContactCreated,
		events.InboundContactUpdated,
		events.InboundContactTagged,
		events.InboundFormSubmitted,
		events.InboundMessageOpened,
	} {
		if err := bus.Handle(eventType, r.HandleInbound); err != nil {
			return fmt.Errorf("failed to register handler for %s: %w", eventType, err)
		}
	}

	return nil
}

func (r *EventTriggerResumer) HandleInbound(ctx context.Context, msg *events.InboundMessage) error {
	input, err := acl.TranslateCRMEvent(msg)
	if err != nil {
		// Malformed payloads are logged and dropped; redelivery cannot fix
		// them.
		r.logger.WarnContext(ctx, "Dropping malformed inbound event", "event_type", msg.Type, "error", err)

		return nil
	}

	if input == nil || input.TriggerType != models.TriggerTypeEvent {
		return nil
	}

	organizationID := organizationIDOf(msg)
	if organizationID == "" {
		r.logger.WarnContext(ctx, "Dropping inbound event without tenant context", "event_type", msg.Type)

		return nil
	}

	matches, err := r.persistence.Journeys().FindTriggerConfigs(ctx, organizationID, models.TriggerTypeEvent)
	if err != nil {
		return fmt.Errorf("failed to find trigger configs: %w", err)
	}

	for _, match := range matches {
		if match.Trigger.EventType != input.EventType {
			continue
		}

		if !filtersMatch(match.Trigger.Filters, input.Filters) {
			continue
		}

		_, err := r.starter.StartExecution(ctx, match.JourneyID, input.ContactID, string(models.TriggerTypeEvent), input.ContactData)
		if err != nil {
			return fmt.Errorf("failed to start execution for journey %s: %w", match.JourneyID, err)
		}
	}

	return nil
}

// filtersMatch checks that every filter the trigger configures is present in
// the event with a loosely equal value. Triggers without filters match any
// event of their type.
func filtersMatch(triggerFilters, eventFilters map[string]any) bool {
	for key, expected := range triggerFilters {
		actual, ok := eventFilters[key]
		if !ok {
			return false
		}

		if fmt.Sprintf("%v", actual) != fmt.Sprintf("%v", expected) {
			return false
		}
	}

	return true
}

// organizationIDOf prefers the envelope's tenant context and falls back to
// the payload's organization field.
func organizationIDOf(msg *events.InboundMessage) string {
	if msg.Metadata.TenantContext.OrganizationID != "" {
		return msg.Metadata.TenantContext.OrganizationID
	}

	var data struct {
		OrganizationID string `json:"organizationId"`
	}

	if err := msg.DecodeData(&data); err != nil {
		return ""
	}

	return data.OrganizationID
}
