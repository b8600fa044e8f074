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

// ScoreTriggerResumer starts journeys when a lead score crosses a configured
// threshold. Only a crossing fires: the previous score must sit on the other
// side of the threshold, so repeated updates past it do not re-trigger.
type ScoreTriggerResumer struct {
	persistence persistence.Persistence
	starter     *Starter
	logger      *slog.Logger
}

func NewScoreTriggerResumer(p persistence.Persistence, starter *Starter, logger *slog.Logger) *ScoreTriggerResumer {
	return &ScoreTriggerResumer{
		persistence: p,
		starter:     starter,
		logger:      logger.With("module", "score_trigger_resumer"),
	}
}

func (r *ScoreTriggerResumer) Register(bus eventbus.InboundEventBus) error {
	return bus.Handle(events.InboundLeadScoreChanged, r.HandleInbound)
}

func (r *ScoreTriggerResumer) HandleInbound(ctx context.Context, msg *events.InboundMessage) error {
	var data events.LeadScoreChangedData
	if err := msg.DecodeData(&data); err != nil {
		r.logger.WarnContext(ctx, "Dropping malformed score event", "error", err)

		return nil
	}

	organizationID := organizationIDOf(msg)
	if organizationID == "" {
		return nil
	}

	matches, err := r.persistence.Journeys().FindTriggerConfigs(ctx, organizationID, models.TriggerTypeScore)
	if err != nil {
		return fmt.Errorf("failed to find trigger configs: %w", err)
	}

	for _, match := range matches {
		if !scoreCrossed(match.Trigger, data.PreviousScore, data.NewScore) {
			continue
		}

		_, err := r.starter.StartExecution(ctx, match.JourneyID, data.ContactID, string(models.TriggerTypeScore), data.Contact)
		if err != nil {
			return fmt.Errorf("failed to start execution for journey %s: %w", match.JourneyID, err)
		}
	}

	return nil
}

func scoreCrossed(trigger *models.TriggerConfig, previous, current float64) bool {
	switch trigger.Direction {
	case models.ScoreDirectionDown:
		return previous > trigger.Threshold && current <= trigger.Threshold
	default:
		// Up is the default direction.
		return previous < trigger.Threshold && current >= trigger.Threshold
	}
}
