package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/drip/pkg/eventbus"
	"github.com/dukex/drip/pkg/events"
	"github.com/dukex/drip/pkg/models"
	"github.com/dukex/drip/pkg/persistence"
)

// Starter decides whether a trigger match becomes a new execution and
// creates it when it does. It never advances the execution itself: the
// started event fans back through the bus so any engine instance can pick
// the run up.
type Starter struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	guard       *EntryGuard
	logger      *slog.Logger
}

func NewStarter(p persistence.Persistence, publisher eventbus.EventPublisher, guard *EntryGuard, logger *slog.Logger) *Starter {
	return &Starter{
		persistence: p,
		publisher:   publisher,
		guard:       guard,
		logger:      logger.With("module", "starter"),
	}
}

// StartExecution creates a new execution for the contact in the journey,
// unless the journey is not active or an entry guard blocks it. A blocked
// entry is not an error; it returns nil and no execution.
func (s *Starter) StartExecution(ctx context.Context, journeyID, contactID, triggerType string, contactSnapshot map[string]any) (*models.JourneyExecution, error) {
	journey, err := s.persistence.Journeys().GetByID(ctx, journeyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load journey: %w", err)
	}

	if journey.Status != models.JourneyStatusActive {
		s.logger.InfoContext(ctx, "Skipping trigger for non-active journey",
			"journey_id", journeyID, "status", journey.Status)

		return nil, nil
	}

	active, err := s.persistence.Executions().FindActiveForContact(ctx, journeyID, contactID)
	if err != nil {
		return nil, fmt.Errorf("failed to check active execution: %w", err)
	}

	history, err := s.persistence.Executions().HistoryForContact(ctx, journeyID, contactID)
	if err != nil {
		return nil, fmt.Errorf("failed to load execution history: %w", err)
	}

	decision := s.guard.Evaluate(journey.Settings, active != nil, history)
	if !decision.Allowed {
		s.logger.InfoContext(ctx, "Entry blocked",
			"journey_id", journeyID, "contact_id", contactID, "reason", decision.Reason)

		return nil, nil
	}

	version, err := s.persistence.Versions().CurrentPublished(ctx, journeyID)
	if err != nil {
		if errors.Is(err, persistence.ErrNoPublishedVersion) {
			// Returning the error would nack and redeliver an event the
			// journey can never act on; skip until a version is published.
			s.logger.WarnContext(ctx, "Skipping trigger for journey without published version",
				"journey_id", journeyID)

			return nil, nil
		}

		return nil, fmt.Errorf("failed to load published version: %w", err)
	}

	execution := models.NewJourneyExecution(journey, version, contactID, contactSnapshot)

	err = s.persistence.Executions().Save(ctx, execution)
	if err != nil {
		if persistence.IsDuplicateActiveExecution(err) {
			// Lost the race against a concurrent duplicate trigger; the
			// winner's execution is the real one.
			s.logger.InfoContext(ctx, "Concurrent duplicate entry suppressed",
				"journey_id", journeyID, "contact_id", contactID)

			return nil, nil
		}

		return nil, fmt.Errorf("failed to save execution: %w", err)
	}

	startedEvent := events.ExecutionStarted{
		BaseEvent:        events.NewBaseEvent(events.ExecutionStartedEvent, journeyID, journey.OrganizationID),
		ExecutionID:      execution.ID,
		JourneyVersionID: version.ID,
		ContactID:        contactID,
		TriggerType:      triggerType,
	}

	if err := s.publisher.Publish(ctx, execution.ID, startedEvent); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish execution started event",
			"execution_id", execution.ID, "error", err)
	}

	s.logger.InfoContext(ctx, "Execution started",
		"execution_id", execution.ID,
		"journey_id", journeyID,
		"contact_id", contactID,
		"version_number", version.VersionNumber,
		"trigger_type", triggerType)

	return execution, nil
}
