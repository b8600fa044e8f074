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

// SegmentTriggerResumer starts journeys when a contact enters a segment.
// Exits never start anything; segment-exit automation belongs to the
// segmentation context.
type SegmentTriggerResumer struct {
	persistence persistence.Persistence
	starter     *Starter
	logger      *slog.Logger
}

func NewSegmentTriggerResumer(p persistence.Persistence, starter *Starter, logger *slog.Logger) *SegmentTriggerResumer {
	return &SegmentTriggerResumer{
		persistence: p,
		starter:     starter,
		logger:      logger.With("module", "segment_trigger_resumer"),
	}
}

func (r *SegmentTriggerResumer) Register(bus eventbus.InboundEventBus) error {
	return bus.Handle(events.InboundSegmentChanged, r.HandleInbound)
}

func (r *SegmentTriggerResumer) HandleInbound(ctx context.Context, msg *events.InboundMessage) error {
	var data events.SegmentChangedData
	if err := msg.DecodeData(&data); err != nil {
		r.logger.WarnContext(ctx, "Dropping malformed segment event", "error", err)

		return nil
	}

	if data.Action != events.SegmentActionEntered {
		return nil
	}

	organizationID := organizationIDOf(msg)
	if organizationID == "" {
		return nil
	}

	matches, err := r.persistence.Journeys().FindTriggerConfigs(ctx, organizationID, models.TriggerTypeSegment)
	if err != nil {
		return fmt.Errorf("failed to find trigger configs: %w", err)
	}

	for _, match := range matches {
		if match.Trigger.SegmentID != data.SegmentID {
			continue
		}

		_, err := r.starter.StartExecution(ctx, match.JourneyID, data.ContactID, string(models.TriggerTypeSegment), data.Contact)
		if err != nil {
			return fmt.Errorf("failed to start execution for journey %s: %w", match.JourneyID, err)
		}
	}

	return nil
}
