package models

import (
	"time"

	"github.com/google/uuid"
)

// StepExecutionStatus represents the state of one attempt at one step.
type StepExecutionStatus string

const (
	StepExecutionStatusPending   StepExecutionStatus = "pending"
	StepExecutionStatusRunning   StepExecutionStatus = "running"
	StepExecutionStatusCompleted StepExecutionStatus = "completed"
	StepExecutionStatusFailed    StepExecutionStatus = "failed"
	StepExecutionStatusSkipped   StepExecutionStatus = "skipped"
)

// StepExecution is a per-attempt record of one step within one execution.
// Re-entry into a step creates a new row rather than overwriting, preserving
// an audit trail of every attempt.
//
// Legal transitions: pending->running, running->completed, running->failed,
// pending->skipped. Anything else is rejected.
type StepExecution struct {
	ID             string              `json:"id"`
	ExecutionID    string              `json:"execution_id"    validate:"required"`
	StepID         string              `json:"step_id"         validate:"required"`
	OrganizationID string              `json:"organization_id" validate:"required"`
	Status         StepExecutionStatus `json:"status"`
	Result         map[string]any      `json:"result,omitempty"`
	Error          string              `json:"error,omitempty"`
	StartedAt      *time.Time          `json:"started_at,omitempty"`
	CompletedAt    *time.Time          `json:"completed_at,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
}

// NewStepExecution records a pending attempt at a step.
func NewStepExecution(executionID, stepID, organizationID string) *StepExecution {
	return &StepExecution{
		ID:             uuid.New().String(),
		ExecutionID:    executionID,
		StepID:         stepID,
		OrganizationID: organizationID,
		Status:         StepExecutionStatusPending,
		CreatedAt:      time.Now().UTC(),
	}
}

// Validate checks the step execution's structural invariants.
func (s *StepExecution) Validate() error {
	return validate.Struct(s)
}

// Start moves the attempt from pending to running.
func (s *StepExecution) Start() error {
	if s.Status != StepExecutionStatusPending {
		return &InvalidTransitionError{Entity: "step_execution", Op: "start", Status: string(s.Status)}
	}

	now := time.Now().UTC()
	s.Status = StepExecutionStatusRunning
	s.StartedAt = &now

	return nil
}

// Complete finishes a running attempt with its result.
func (s *StepExecution) Complete(result map[string]any) error {
	if s.Status != StepExecutionStatusRunning {
		return &InvalidTransitionError{Entity: "step_execution", Op: "complete", Status: string(s.Status)}
	}

	now := time.Now().UTC()
	s.Status = StepExecutionStatusCompleted
	s.Result = result
	s.CompletedAt = &now

	return nil
}

// Fail finishes a running attempt with an error.
func (s *StepExecution) Fail(errMessage string) error {
	if s.Status != StepExecutionStatusRunning {
		return &InvalidTransitionError{Entity: "step_execution", Op: "fail", Status: string(s.Status)}
	}

	now := time.Now().UTC()
	s.Status = StepExecutionStatusFailed
	s.Error = errMessage
	s.CompletedAt = &now

	return nil
}

// Skip discards a pending attempt without running it.
func (s *StepExecution) Skip() error {
	if s.Status != StepExecutionStatusPending {
		return &InvalidTransitionError{Entity: "step_execution", Op: "skip", Status: string(s.Status)}
	}

	now := time.Now().UTC()
	s.Status = StepExecutionStatusSkipped
	s.CompletedAt = &now

	return nil
}
