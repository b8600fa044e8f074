// Package persistence defines the storage ports the journey engine depends
// on. All I/O in the engine flows through these interfaces.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/drip/pkg/models"
)

type Persistence interface {
	Journeys() JourneyRepository
	Versions() VersionRepository
	Executions() ExecutionRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

type JourneyRepository interface {
	GetByID(ctx context.Context, id string) (*models.Journey, error)
	ListByOrganization(ctx context.Context, organizationID string) ([]*models.Journey, error)
	Save(ctx context.Context, journey *models.Journey) error
	Delete(ctx context.Context, id string) error

	// FindTriggerConfigs returns the trigger configs of the given type across
	// the organization's active journeys, paired with their owning journey.
	FindTriggerConfigs(ctx context.Context, organizationID string, triggerType models.TriggerType) ([]*models.TriggerConfigMatch, error)
}

type VersionRepository interface {
	GetByID(ctx context.Context, id string) (*models.JourneyVersion, error)
	Save(ctx context.Context, version *models.JourneyVersion) error

	// CurrentPublished returns the journey's latest published version, or
	// ErrNoPublishedVersion when the journey has never been published.
	CurrentPublished(ctx context.Context, journeyID string) (*models.JourneyVersion, error)

	// NextVersionNumber computes max+1 over the journey's existing versions.
	NextVersionNumber(ctx context.Context, journeyID string) (int, error)
}

type ExecutionRepository interface {
	GetByID(ctx context.Context, id string) (*models.JourneyExecution, error)
	Save(ctx context.Context, execution *models.JourneyExecution) error

	// FindActiveForContact returns the contact's active execution in the
	// journey, or nil when there is none.
	FindActiveForContact(ctx context.Context, journeyID, contactID string) (*models.JourneyExecution, error)

	// FindStale returns active executions started before the cutoff,
	// typically parked on a gate that never resolved.
	FindStale(ctx context.Context, olderThan time.Time) ([]*models.JourneyExecution, error)

	// HistoryForContact returns the contact's execution history in the
	// journey, most recent first, as entry-guard input.
	HistoryForContact(ctx context.Context, journeyID, contactID string) ([]models.ExecutionSummary, error)

	SaveStepExecution(ctx context.Context, stepExecution *models.StepExecution) error

	// PendingStepExecution returns the most recent pending attempt at the
	// step within the execution, or nil when there is none.
	PendingStepExecution(ctx context.Context, executionID, stepID string) (*models.StepExecution, error)

	// StepExecutions returns the execution's full per-attempt audit trail in
	// creation order.
	StepExecutions(ctx context.Context, executionID string) ([]*models.StepExecution, error)
}
