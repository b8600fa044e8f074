// Package models defines the core domain models for the journey execution engine.
package models

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// JourneyStatus represents the lifecycle state of a journey.
type JourneyStatus string

const (
	JourneyStatusDraft    JourneyStatus = "draft"    // Editable, not executable
	JourneyStatusActive   JourneyStatus = "active"   // Published, accepting executions
	JourneyStatusPaused   JourneyStatus = "paused"   // Temporarily not accepting executions
	JourneyStatusArchived JourneyStatus = "archived" // Retired, terminal
)

// Journey is the aggregate root for a reusable automation definition.
// The Definition field holds the editable draft graph; running executions
// never read it directly, they pin to an immutable JourneyVersion snapshot
// created on publish.
type Journey struct {
	ID             string           `json:"id"`
	OrganizationID string           `json:"organization_id" validate:"required"`
	Name           string           `json:"name"            validate:"required,min=1"`
	Description    string           `json:"description"`
	Status         JourneyStatus    `json:"status"          validate:"required"`
	Triggers       []*TriggerConfig `json:"triggers"`
	Definition     *Definition      `json:"definition"`
	Settings       JourneySettings  `json:"settings"`
	CreatedBy      string           `json:"created_by"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// NewJourney creates a draft journey, validating required fields eagerly.
func NewJourney(organizationID, name, description, createdBy string) (*Journey, error) {
	now := time.Now().UTC()

	journey := &Journey{
		OrganizationID: organizationID,
		Name:           name,
		Description:    description,
		Status:         JourneyStatusDraft,
		Settings:       JourneySettings{ReEntry: ReEntryPolicy{Type: ReEntryAlways}},
		CreatedBy:      createdBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := journey.Validate(); err != nil {
		return nil, err
	}

	return journey, nil
}

// Validate checks the journey's structural invariants.
func (j *Journey) Validate() error {
	return validate.Struct(j)
}

// Update changes the mutable fields. A nil pointer leaves the field untouched.
// An explicitly empty name is rejected.
func (j *Journey) Update(name, description *string) error {
	if name != nil {
		if *name == "" {
			return errors.New("journey name cannot be empty")
		}

		j.Name = *name
	}

	if description != nil {
		j.Description = *description
	}

	j.UpdatedAt = time.Now().UTC()

	return nil
}

// Publish moves the journey from draft to active. It requires at least one
// trigger and at least one step; the version snapshot itself is created by
// the lifecycle service.
func (j *Journey) Publish() error {
	if j.Status != JourneyStatusDraft {
		return &InvalidTransitionError{Entity: "journey", Op: "publish", Status: string(j.Status)}
	}

	if len(j.Triggers) == 0 {
		return errors.New("cannot publish journey with no triggers")
	}

	if j.Definition == nil || len(j.Definition.Steps) == 0 {
		return errors.New("cannot publish journey with no steps")
	}

	j.Status = JourneyStatusActive
	j.UpdatedAt = time.Now().UTC()

	return nil
}

// Pause suspends an active journey.
func (j *Journey) Pause() error {
	if j.Status != JourneyStatusActive {
		return &InvalidTransitionError{Entity: "journey", Op: "pause", Status: string(j.Status)}
	}

	j.Status = JourneyStatusPaused
	j.UpdatedAt = time.Now().UTC()

	return nil
}

// Resume reactivates a paused journey.
func (j *Journey) Resume() error {
	if j.Status != JourneyStatusPaused {
		return &InvalidTransitionError{Entity: "journey", Op: "resume", Status: string(j.Status)}
	}

	j.Status = JourneyStatusActive
	j.UpdatedAt = time.Now().UTC()

	return nil
}

// Archive retires an active or paused journey. In-flight executions are not
// cancelled; see the stale-execution sweep for how parked runs are surfaced.
func (j *Journey) Archive() error {
	if j.Status != JourneyStatusActive && j.Status != JourneyStatusPaused {
		return &InvalidTransitionError{Entity: "journey", Op: "archive", Status: string(j.Status)}
	}

	j.Status = JourneyStatusArchived
	j.UpdatedAt = time.Now().UTC()

	return nil
}
