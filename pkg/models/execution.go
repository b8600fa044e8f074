package models

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionStatus represents the lifecycle state of a journey execution.
// Active is the only non-terminal state.
type ExecutionStatus string

const (
	ExecutionStatusActive    ExecutionStatus = "active"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCanceled  ExecutionStatus = "canceled"
)

// JourneyExecution tracks one contact's run through one journey version.
// It is created by a trigger or resumer and mutated only through the
// transition methods below or an explicit operator cancel.
type JourneyExecution struct {
	ID               string          `json:"id"`
	JourneyID        string          `json:"journey_id"         validate:"required"`
	JourneyVersionID string          `json:"journey_version_id" validate:"required"`
	OrganizationID   string          `json:"organization_id"    validate:"required"`
	ContactID        string          `json:"contact_id"         validate:"required"`
	Status           ExecutionStatus `json:"status"`
	ContactSnapshot  map[string]any  `json:"contact_snapshot,omitempty"`
	CurrentStepID    string          `json:"current_step_id,omitempty"`
	FailureReason    string          `json:"failure_reason,omitempty"`
	StartedAt        time.Time       `json:"started_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
}

// NewJourneyExecution starts a new active execution pinned to the given
// version. The contact snapshot is captured once at start and used for all
// condition evaluation during the run, including after multi-day delays.
func NewJourneyExecution(journey *Journey, version *JourneyVersion, contactID string, contactSnapshot map[string]any) *JourneyExecution {
	return &JourneyExecution{
		ID:               uuid.New().String(),
		JourneyID:        journey.ID,
		JourneyVersionID: version.ID,
		OrganizationID:   journey.OrganizationID,
		ContactID:        contactID,
		Status:           ExecutionStatusActive,
		ContactSnapshot:  contactSnapshot,
		StartedAt:        time.Now().UTC(),
	}
}

// Validate checks the execution's structural invariants.
func (e *JourneyExecution) Validate() error {
	return validate.Struct(e)
}

// IsActive reports whether the execution can still advance.
func (e *JourneyExecution) IsActive() bool {
	return e.Status == ExecutionStatusActive
}

// MoveToStep records the step the execution currently sits on. Settable only
// while active.
func (e *JourneyExecution) MoveToStep(stepID string) error {
	if e.Status != ExecutionStatusActive {
		return &InvalidTransitionError{Entity: "execution", Op: "move to step", Status: string(e.Status)}
	}

	e.CurrentStepID = stepID

	return nil
}

// Complete finishes the execution. Terminal; further transitions are rejected.
func (e *JourneyExecution) Complete() error {
	if e.Status != ExecutionStatusActive {
		return &InvalidTransitionError{Entity: "execution", Op: "complete", Status: string(e.Status)}
	}

	now := time.Now().UTC()
	e.Status = ExecutionStatusCompleted
	e.CompletedAt = &now

	return nil
}

// Fail marks the execution failed with a reason. Terminal.
func (e *JourneyExecution) Fail(reason string) error {
	if e.Status != ExecutionStatusActive {
		return &InvalidTransitionError{Entity: "execution", Op: "fail", Status: string(e.Status)}
	}

	now := time.Now().UTC()
	e.Status = ExecutionStatusFailed
	e.FailureReason = reason
	e.CompletedAt = &now

	return nil
}

// Cancel stops the execution on operator request. Terminal.
func (e *JourneyExecution) Cancel() error {
	if e.Status != ExecutionStatusActive {
		return &InvalidTransitionError{Entity: "execution", Op: "cancel", Status: string(e.Status)}
	}

	now := time.Now().UTC()
	e.Status = ExecutionStatusCanceled
	e.CompletedAt = &now

	return nil
}

// ExecutionSummary is the slice of execution history the entry guard needs.
type ExecutionSummary struct {
	Status      ExecutionStatus `json:"status"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}
