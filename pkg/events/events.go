// Package events defines the engine's event vocabulary: the closed set of
// events it publishes and the inbound foreign messages it consumes.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Kafka topics.
const Topic = "drip.journey.events"        // Engine lifecycle and step events
const InboundTopic = "drip.inbound.events" // Foreign domain events from other bounded contexts

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ExecutionStartedEvent   EventType = "journey.execution.started"
	StepExecutedEvent       EventType = "journey.step.executed"
	ExecutionCompletedEvent EventType = "journey.execution.completed"
	ExecutionFailedEvent    EventType = "journey.execution.failed"
	ExecutionCancelledEvent EventType = "journey.execution.cancelled"
	StepResumeEvent         EventType = "journey.step.resume"
)

// Reasons carried by StepResume events.
const (
	ResumeReasonDelayElapsed = "delay_elapsed"
	ResumeReasonGateResolved = "gate_resolved"
)

type BaseEvent struct {
	ID             string         `json:"id"`
	Type           EventType      `json:"type"`
	Timestamp      time.Time      `json:"timestamp"`
	JourneyID      string         `json:"journey_id"`
	OrganizationID string         `json:"organization_id"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, journeyID, organizationID string) BaseEvent {
	return BaseEvent{
		ID:             uuid.New().String(),
		Type:           eventType,
		Timestamp:      time.Now().UTC(),
		JourneyID:      journeyID,
		OrganizationID: organizationID,
		Metadata:       make(map[string]any),
	}
}

// ExecutionStarted is published best-effort after a new execution is
// persisted. Losing it leaves the execution parked; it is never retried by
// the engine itself.
type ExecutionStarted struct {
	BaseEvent

	ExecutionID      string `json:"execution_id"`
	JourneyVersionID string `json:"journey_version_id"`
	ContactID        string `json:"contact_id"`
	TriggerType      string `json:"trigger_type"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

// StepExecuted is published for each action step, carrying the identifiers
// downstream consumers (delivery pipeline, analytics) need.
type StepExecuted struct {
	BaseEvent

	ExecutionID  string         `json:"execution_id"`
	StepID       string         `json:"step_id"`
	ContactID    string         `json:"contact_id"`
	ActionKind   string         `json:"action_kind"`
	ActionParams map[string]any `json:"action_params,omitempty"`
}

func (e StepExecuted) GetType() EventType {
	return StepExecutedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	ContactID   string `json:"contact_id"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	ContactID   string `json:"contact_id"`
	Error       string `json:"error"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type ExecutionCancelled struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	ContactID   string `json:"contact_id"`
	Reason      string `json:"reason,omitempty"`
	CancelledBy string `json:"cancelled_by,omitempty"`
}

func (e ExecutionCancelled) GetType() EventType {
	return ExecutionCancelledEvent
}

// StepResume requests that an execution advance into the given steps. It is
// published when a delay elapses or a gate resolves.
type StepResume struct {
	BaseEvent

	ExecutionID string   `json:"execution_id"`
	StepIDs     []string `json:"step_ids"`
	Reason      string   `json:"reason"`
}

func (e StepResume) GetType() EventType {
	return StepResumeEvent
}
