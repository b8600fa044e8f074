package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/drip/pkg/eventbus"
	"github.com/dukex/drip/pkg/events"
	"github.com/dukex/drip/pkg/models"
	"github.com/dukex/drip/pkg/persistence"
)

// Lifecycle manages journey definitions: creation, editing, publishing, and
// the status transitions. Publishing snapshots the draft definition into an
// immutable version so in-flight executions are never affected by later
// edits.
type Lifecycle struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
}

func NewLifecycle(p persistence.Persistence, publisher eventbus.EventPublisher, logger *slog.Logger) *Lifecycle {
	return &Lifecycle{
		persistence: p,
		publisher:   publisher,
		logger:      logger.With("module", "lifecycle"),
	}
}

// Create creates a draft journey.
func (l *Lifecycle) Create(ctx context.Context, organizationID, name, description, createdBy string) (*models.Journey, error) {
	journey, err := models.NewJourney(organizationID, name, description, createdBy)
	if err != nil {
		return nil, fmt.Errorf("invalid journey: %w", err)
	}

	if err := l.persistence.Journeys().Save(ctx, journey); err != nil {
		return nil, fmt.Errorf("failed to save journey: %w", err)
	}

	l.logger.InfoContext(ctx, "Journey created", "journey_id", journey.ID, "organization_id", organizationID)

	return journey, nil
}

// Update edits the journey's metadata, triggers, and draft definition. The
// definition is validated structurally but may be incomplete while drafting;
// publish enforces completeness.
func (l *Lifecycle) Update(ctx context.Context, journeyID string, name, description *string, triggers []*models.TriggerConfig, definition *models.Definition) (*models.Journey, error) {
	journey, err := l.persistence.Journeys().GetByID(ctx, journeyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load journey: %w", err)
	}

	if err := journey.Update(name, description); err != nil {
		return nil, err
	}

	if triggers != nil {
		journey.Triggers = triggers
	}

	if definition != nil {
		if err := models.ValidateDefinition(definition); err != nil {
			return nil, fmt.Errorf("invalid definition: %w", err)
		}

		journey.Definition = definition
	}

	if err := l.persistence.Journeys().Save(ctx, journey); err != nil {
		return nil, fmt.Errorf("failed to save journey: %w", err)
	}

	return journey, nil
}

// Publish validates the draft definition, activates the journey, and
// snapshots the definition as the next numbered version.
func (l *Lifecycle) Publish(ctx context.Context, journeyID string) (*models.JourneyVersion, error) {
	journey, err := l.persistence.Journeys().GetByID(ctx, journeyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load journey: %w", err)
	}

	if err := models.ValidateDefinition(journey.Definition); err != nil {
		return nil, fmt.Errorf("invalid definition: %w", err)
	}

	if err := journey.Publish(); err != nil {
		return nil, err
	}

	versionNumber, err := l.persistence.Versions().NextVersionNumber(ctx, journeyID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute version number: %w", err)
	}

	version := models.NewJourneyVersion(journey, versionNumber)

	if err := l.persistence.Versions().Save(ctx, version); err != nil {
		return nil, fmt.Errorf("failed to save version: %w", err)
	}

	if err := l.persistence.Journeys().Save(ctx, journey); err != nil {
		return nil, fmt.Errorf("failed to save journey: %w", err)
	}

	l.logger.InfoContext(ctx, "Journey published",
		"journey_id", journeyID, "version_id", version.ID, "version_number", versionNumber)

	return version, nil
}

// Pause suspends an active journey. Executions already running continue;
// only new entries stop.
func (l *Lifecycle) Pause(ctx context.Context, journeyID string) error {
	return l.transition(ctx, journeyID, "paused", (*models.Journey).Pause)
}

// Resume reactivates a paused journey.
func (l *Lifecycle) Resume(ctx context.Context, journeyID string) error {
	return l.transition(ctx, journeyID, "resumed", (*models.Journey).Resume)
}

// Archive retires a journey. In-flight executions keep running against their
// pinned versions; the stale sweep surfaces any that park forever.
func (l *Lifecycle) Archive(ctx context.Context, journeyID string) error {
	return l.transition(ctx, journeyID, "archived", (*models.Journey).Archive)
}

func (l *Lifecycle) transition(ctx context.Context, journeyID, verb string, apply func(*models.Journey) error) error {
	journey, err := l.persistence.Journeys().GetByID(ctx, journeyID)
	if err != nil {
		return fmt.Errorf("failed to load journey: %w", err)
	}

	if err := apply(journey); err != nil {
		return err
	}

	if err := l.persistence.Journeys().Save(ctx, journey); err != nil {
		return fmt.Errorf("failed to save journey: %w", err)
	}

	l.logger.InfoContext(ctx, "Journey "+verb, "journey_id", journeyID)

	return nil
}

// CancelExecution stops an active execution on operator request.
func (l *Lifecycle) CancelExecution(ctx context.Context, executionID, reason, cancelledBy string) error {
	execution, err := l.persistence.Executions().GetByID(ctx, executionID)
	if err != nil {
		return fmt.Errorf("failed to load execution: %w", err)
	}

	if err := execution.Cancel(); err != nil {
		return err
	}

	if err := l.persistence.Executions().Save(ctx, execution); err != nil {
		return fmt.Errorf("failed to save execution: %w", err)
	}

	cancelledEvent := events.ExecutionCancelled{
		BaseEvent:   events.NewBaseEvent(events.ExecutionCancelledEvent, execution.JourneyID, execution.OrganizationID),
		ExecutionID: execution.ID,
		ContactID:   execution.ContactID,
		Reason:      reason,
		CancelledBy: cancelledBy,
	}

	if err := l.publisher.Publish(ctx, execution.ID, cancelledEvent); err != nil {
		l.logger.WarnContext(ctx, "Failed to publish execution cancelled event",
			"execution_id", executionID, "error", err)
	}

	l.logger.InfoContext(ctx, "Execution cancelled", "execution_id", executionID, "cancelled_by", cancelledBy)

	return nil
}
