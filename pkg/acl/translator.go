// Package acl is the anti-corruption layer bridging foreign event
// vocabularies (CRM, content, delivery) into the engine's own trigger input
// model. The translation table is closed: event types outside it yield nil,
// never an error, so one unrecognized producer cannot halt a batch.
package acl

import (
	"fmt"

	"github.com/dukex/drip/pkg/events"
	"github.com/dukex/drip/pkg/models"
)

// TranslateCRMEvent maps a foreign message to a JourneyTriggerInput. It
// returns (nil, nil) for event types the engine does not start journeys
// from; callers drop those silently. A recognized type with a malformed
// payload is a boundary validation error.
func TranslateCRMEvent(msg *events.InboundMessage) (*models.JourneyTriggerInput, error) {
	switch msg.Type {
	case events.InboundContactCreated:
		return translateContactEvent(msg, "contact.created")
	case events.InboundContactUpdated:
		return translateContactEvent(msg, "contact.updated")
	case events.InboundContactTagged:
		var data events.ContactTaggedData
		if err := msg.DecodeData(&data); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", msg.Type, err)
		}

		return &models.JourneyTriggerInput{
			TriggerType: models.TriggerTypeEvent,
			EventType:   "contact.tagged",
			ContactID:   data.ContactID,
			Filters:     map[string]any{"tagId": data.TagID},
			ContactData: data.Contact,
		}, nil
	case events.InboundFormSubmitted:
		var data events.FormSubmittedData
		if err := msg.DecodeData(&data); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", msg.Type, err)
		}

		return &models.JourneyTriggerInput{
			TriggerType: models.TriggerTypeEvent,
			EventType:   "form.submitted",
			ContactID:   data.ContactID,
			Filters:     map[string]any{"formId": data.FormID},
			ContactData: data.Contact,
		}, nil
	case events.InboundMessageOpened:
		var data events.MessageEngagementData
		if err := msg.DecodeData(&data); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", msg.Type, err)
		}

		return &models.JourneyTriggerInput{
			TriggerType: models.TriggerTypeEvent,
			EventType:   "message.opened",
			ContactID:   data.ContactID,
			Filters:     map[string]any{"messageId": data.MessageID},
		}, nil
	case events.InboundSegmentChanged:
		var data events.SegmentChangedData
		if err := msg.DecodeData(&data); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", msg.Type, err)
		}

		return &models.JourneyTriggerInput{
			TriggerType: models.TriggerTypeSegment,
			ContactID:   data.ContactID,
			SegmentID:   data.SegmentID,
			Filters:     map[string]any{"action": data.Action},
			ContactData: data.Contact,
		}, nil
	case events.InboundLeadScoreChanged:
		var data events.LeadScoreChangedData
		if err := msg.DecodeData(&data); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", msg.Type, err)
		}

		return &models.JourneyTriggerInput{
			TriggerType: models.TriggerTypeScore,
			ContactID:   data.ContactID,
			Filters: map[string]any{
				"previousScore": data.PreviousScore,
				"newScore":      data.NewScore,
			},
			ContactData: data.Contact,
		}, nil
	case events.InboundIntentSignal:
		var data events.IntentSignalData
		if err := msg.DecodeData(&data); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", msg.Type, err)
		}

		return &models.JourneyTriggerInput{
			TriggerType: models.TriggerTypeIntent,
			ContactID:   data.ContactID,
			Filters: map[string]any{
				"signalType": data.SignalType,
				"strength":   data.Strength,
			},
			ContactData: data.Contact,
		}, nil
	default:
		// Delivery outcomes other than opens only resolve gates, and
		// everything else is another context's business.
		return nil, nil
	}
}

func translateContactEvent(msg *events.InboundMessage, eventType string) (*models.JourneyTriggerInput, error) {
	var data events.ContactEventData
	if err := msg.DecodeData(&data); err != nil {
		return nil, fmt.Errorf("malformed %s payload: %w", msg.Type, err)
	}

	return &models.JourneyTriggerInput{
		TriggerType: models.TriggerTypeEvent,
		EventType:   eventType,
		ContactID:   data.ContactID,
		ContactData: data.Contact,
	}, nil
}
