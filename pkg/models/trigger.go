package models

// TriggerType classifies the condition that starts a new execution.
type TriggerType string

const (
	TriggerTypeEvent   TriggerType = "event"           // named domain event (via the ACL)
	TriggerTypeSegment TriggerType = "segment"         // contact entered a segment
	TriggerTypeScore   TriggerType = "score_threshold" // lead score crossed a threshold
	TriggerTypeIntent  TriggerType = "intent_signal"   // intent signal of sufficient strength
)

// Score threshold directions.
const (
	ScoreDirectionUp   = "up"
	ScoreDirectionDown = "down"
)

// TriggerConfig is a configured entry condition attached to a journey. Only
// the fields relevant to its Type are set.
type TriggerConfig struct {
	ID   string      `json:"id"`
	Type TriggerType `json:"type" validate:"required"`

	// Type == event
	EventType string `json:"event_type,omitempty"`

	// Type == segment
	SegmentID string `json:"segment_id,omitempty"`

	// Type == score_threshold
	Threshold float64 `json:"threshold,omitempty"`
	Direction string  `json:"direction,omitempty"`

	// Type == intent_signal
	SignalType  string  `json:"signal_type,omitempty"`
	MinStrength float64 `json:"min_strength,omitempty"`

	Filters map[string]any `json:"filters,omitempty"`
}

// JourneyTriggerInput is the engine's own trigger vocabulary, produced by the
// anti-corruption layer from foreign domain events.
type JourneyTriggerInput struct {
	TriggerType TriggerType    `json:"trigger_type"`
	EventType   string         `json:"event_type,omitempty"`
	ContactID   string         `json:"contact_id,omitempty"`
	SegmentID   string         `json:"segment_id,omitempty"`
	Filters     map[string]any `json:"filters,omitempty"`

	// ContactData is the contact attribute snapshot carried by the foreign
	// event, captured onto new executions for condition evaluation.
	ContactData map[string]any `json:"contact_data,omitempty"`
}

// TriggerConfigMatch pairs a trigger config with the journey that owns it,
// as returned by the persistence trigger lookup.
type TriggerConfigMatch struct {
	JourneyID      string         `json:"journey_id"`
	OrganizationID string         `json:"organization_id"`
	Trigger        *TriggerConfig `json:"trigger"`
}
