// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrJourneyNotFound indicates a journey was not found by the given identifier.
	ErrJourneyNotFound = errors.New("journey not found")

	// ErrVersionNotFound indicates a journey version was not found by the given identifier.
	ErrVersionNotFound = errors.New("journey version not found")

	// ErrNoPublishedVersion indicates a journey has never been published.
	ErrNoPublishedVersion = errors.New("journey has no published version")

	// ErrExecutionNotFound indicates an execution was not found by the given identifier.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrDuplicateActiveExecution indicates the contact already has an active
	// execution in the journey. Raised by the unique constraint that closes
	// the check-then-create race under concurrent duplicate trigger events.
	ErrDuplicateActiveExecution = errors.New("contact already has an active execution in this journey")

	// ErrDuplicateVersionNumber indicates two versions of one journey
	// collided on a version number.
	ErrDuplicateVersionNumber = errors.New("journey version number already exists")
)

// JourneyError wraps journey-related errors with operation context.
type JourneyError struct {
	Op        string // Operation being performed (e.g. "GetByID", "Save")
	JourneyID string
	Err       error
}

func (e *JourneyError) Error() string {
	return fmt.Sprintf("%s operation failed for journey %s: %v", e.Op, e.JourneyID, e.Err)
}

func (e *JourneyError) Unwrap() error {
	return e.Err
}

func (e *JourneyError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewJourneyError creates a new journey error with context.
func NewJourneyError(op, journeyID string, err error) *JourneyError {
	return &JourneyError{Op: op, JourneyID: journeyID, Err: err}
}

// ExecutionError wraps execution-related errors with operation context.
type ExecutionError struct {
	Op          string
	ExecutionID string
	Err         error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s operation failed for execution %s: %v", e.Op, e.ExecutionID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func (e *ExecutionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewExecutionError creates a new execution error with context.
func NewExecutionError(op, executionID string, err error) *ExecutionError {
	return &ExecutionError{Op: op, ExecutionID: executionID, Err: err}
}

// IsJourneyNotFound checks if an error indicates a journey was not found.
func IsJourneyNotFound(err error) bool {
	return errors.Is(err, ErrJourneyNotFound)
}

// IsExecutionNotFound checks if an error indicates an execution was not found.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsDuplicateActiveExecution checks if an error indicates the active-execution
// uniqueness constraint fired.
func IsDuplicateActiveExecution(err error) bool {
	return errors.Is(err, ErrDuplicateActiveExecution)
}
