// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"github.com/google/uuid"

	"github.com/dukex/drip/pkg/models"
)

// CreateTestJourney creates an active journey with one event trigger and a
// minimal trigger -> action -> exit graph. Overrides mutate the defaults.
func CreateTestJourney(overrides ...func(*models.Journey)) *models.Journey {
	journey := &models.Journey{
		ID:             uuid.New().String(),
		OrganizationID: uuid.New().String(),
		Name:           "Test Journey",
		Description:    "journey used in tests",
		Status:         models.JourneyStatusActive,
		Triggers: []*models.TriggerConfig{
			{
				ID:        uuid.New().String(),
				Type:      models.TriggerTypeEvent,
				EventType: "contact.created",
			},
		},
		Definition: CreateTestDefinition(),
		Settings:   models.JourneySettings{ReEntry: models.ReEntryPolicy{Type: models.ReEntryAlways}},
		CreatedBy:  "test-user",
	}

	for _, override := range overrides {
		override(journey)
	}

	return journey
}

// WithSettings replaces the journey's entry settings.
func WithSettings(settings models.JourneySettings) func(*models.Journey) {
	return func(j *models.Journey) {
		j.Settings = settings
	}
}

// WithStatus sets the journey status.
func WithStatus(status models.JourneyStatus) func(*models.Journey) {
	return func(j *models.Journey) {
		j.Status = status
	}
}

// WithTriggers replaces the journey's trigger configs.
func WithTriggers(triggers ...*models.TriggerConfig) func(*models.Journey) {
	return func(j *models.Journey) {
		j.Triggers = triggers
	}
}

// WithDefinition replaces the journey's step graph.
func WithDefinition(definition *models.Definition) func(*models.Journey) {
	return func(j *models.Journey) {
		j.Definition = definition
	}
}

// CreateTestDefinition builds a trigger -> action -> exit graph.
func CreateTestDefinition() *models.Definition {
	return &models.Definition{
		Steps: []*models.Step{
			{ID: "start", Type: models.StepTypeTrigger},
			{ID: "send-email", Type: models.StepTypeAction, Config: models.StepConfig{
				Action: &models.ActionConfig{Kind: "send_email", TemplateID: "welcome"},
			}},
			{ID: "done", Type: models.StepTypeExit},
		},
		Connections: []*models.Connection{
			{FromStepID: "start", ToStepID: "send-email"},
			{FromStepID: "send-email", ToStepID: "done"},
		},
	}
}

// CreateTestVersion snapshots the journey's definition as version 1.
func CreateTestVersion(journey *models.Journey) *models.JourneyVersion {
	return models.NewJourneyVersion(journey, 1)
}

// CreateTestExecution starts an execution of the journey pinned to the given
// version.
func CreateTestExecution(journey *models.Journey, version *models.JourneyVersion, overrides ...func(*models.JourneyExecution)) *models.JourneyExecution {
	execution := models.NewJourneyExecution(journey, version, uuid.New().String(), map[string]any{"plan": "pro", "age": float64(21)})

	for _, override := range overrides {
		override(execution)
	}

	return execution
}
