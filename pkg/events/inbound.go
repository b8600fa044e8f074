package events

import (
	"encoding/json"
	"errors"
)

// Foreign event type discriminators recognized by the engine. Anything else
// on the inbound topic is acked and ignored.
const (
	InboundContactCreated   = "crm.ContactCreated"
	InboundContactUpdated   = "crm.ContactUpdated"
	InboundContactTagged    = "crm.ContactTagged"
	InboundLeadScoreChanged = "crm.LeadScoreChanged"
	InboundIntentSignal     = "crm.IntentSignalDetected"
	InboundSegmentChanged   = "crm.SegmentMembershipChanged"
	InboundFormSubmitted    = "content.FormSubmitted"
	InboundMessageDelivered = "delivery.MessageDelivered"
	InboundMessageOpened    = "delivery.MessageOpened"
	InboundMessageClicked   = "delivery.MessageClicked"
	InboundMessageBounced   = "delivery.MessageBounced"
)

// InboundMessage is the envelope foreign bounded contexts publish. The data
// payload keeps the producers' camelCase field naming; only the recognized
// type strings couple the engine to them.
type InboundMessage struct {
	Type     string          `json:"type"`
	Data     json.RawMessage `json:"data"`
	Metadata InboundMetadata `json:"metadata"`
}

type InboundMetadata struct {
	ID            string        `json:"id"`
	Timestamp     string        `json:"timestamp"`
	CorrelationID string        `json:"correlationId"`
	TenantContext TenantContext `json:"tenantContext"`
}

type TenantContext struct {
	OrganizationID string `json:"organizationId"`
}

// DecodeData unmarshals the payload into the given typed struct.
func (m *InboundMessage) DecodeData(v any) error {
	if len(m.Data) == 0 {
		return errors.New("inbound message has no data payload")
	}

	return json.Unmarshal(m.Data, v)
}

// Typed payloads for the recognized foreign events.

type ContactEventData struct {
	OrganizationID string         `json:"organizationId"`
	ContactID      string         `json:"contactId"`
	Contact        map[string]any `json:"contact,omitempty"`
}

type ContactTaggedData struct {
	OrganizationID string         `json:"organizationId"`
	ContactID      string         `json:"contactId"`
	TagID          string         `json:"tagId"`
	Contact        map[string]any `json:"contact,omitempty"`
}

type FormSubmittedData struct {
	OrganizationID string         `json:"organizationId"`
	ContactID      string         `json:"contactId"`
	FormID         string         `json:"formId"`
	Contact        map[string]any `json:"contact,omitempty"`
}

type LeadScoreChangedData struct {
	OrganizationID string         `json:"organizationId"`
	ContactID      string         `json:"contactId"`
	PreviousScore  float64        `json:"previousScore"`
	NewScore       float64        `json:"newScore"`
	Contact        map[string]any `json:"contact,omitempty"`
}

type IntentSignalData struct {
	OrganizationID string         `json:"organizationId"`
	ContactID      string         `json:"contactId"`
	SignalType     string         `json:"signalType"`
	Strength       float64        `json:"strength"`
	Contact        map[string]any `json:"contact,omitempty"`
}

// Segment membership actions.
const (
	SegmentActionEntered = "entered"
	SegmentActionExited  = "exited"
)

type SegmentChangedData struct {
	OrganizationID string         `json:"organizationId"`
	ContactID      string         `json:"contactId"`
	SegmentID      string         `json:"segmentId"`
	Action         string         `json:"action"`
	Contact        map[string]any `json:"contact,omitempty"`
}

// MessageEngagementData is the payload of delivery outcome events. When the
// original send was issued on behalf of a journey step, the delivery
// pipeline echoes the journey execution id back; without it the event is
// unrelated to any gate.
type MessageEngagementData struct {
	OrganizationID     string `json:"organizationId"`
	ContactID          string `json:"contactId"`
	MessageID          string `json:"messageId"`
	JourneyExecutionID string `json:"journeyExecutionId,omitempty"`
}
