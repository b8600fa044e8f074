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

// gateConditions maps delivery outcome events to the gate condition they
// satisfy. The table is closed; other delivery events resolve nothing.
var gateConditions = map[string]models.GateCondition{
	events.InboundMessageDelivered: models.GateDelivered,
	events.InboundMessageOpened:    models.GateOpened,
	events.InboundMessageClicked:   models.GateClicked,
	events.InboundMessageBounced:   models.GateBounced,
}

// GateResumer resolves executions parked on gated action steps when the
// matching delivery outcome arrives. An event whose outcome does not match
// the gate's condition is a no-op: the execution keeps waiting.
type GateResumer struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
}

func NewGateResumer(p persistence.Persistence, publisher eventbus.EventPublisher, logger *slog.Logger) *GateResumer {
	return &GateResumer{
		persistence: p,
		publisher:   publisher,
		logger:      logger.With("module", "gate_resumer"),
	}
}

func (r *GateResumer) Register(bus eventbus.InboundEventBus) error {
	for eventType := range gateConditions {
		if err := bus.Handle(eventType, r.HandleInbound); err != nil {
			return fmt.Errorf("failed to register handler for %s: %w", eventType, err)
		}
	}

	return nil
}

func (r *GateResumer) HandleInbound(ctx context.Context, msg *events.InboundMessage) error {
	condition, ok := gateConditions[msg.Type]
	if !ok {
		return nil
	}

	var data events.MessageEngagementData
	if err := msg.DecodeData(&data); err != nil {
		r.logger.WarnContext(ctx, "Dropping malformed delivery event", "event_type", msg.Type, "error", err)

		return nil
	}

	if data.JourneyExecutionID == "" {
		// Delivery outcome for a message no journey sent.
		return nil
	}

	execution, err := r.persistence.Executions().GetByID(ctx, data.JourneyExecutionID)
	if err != nil {
		if persistence.IsExecutionNotFound(err) {
			r.logger.WarnContext(ctx, "Delivery event references unknown execution",
				"execution_id", data.JourneyExecutionID)

			return nil
		}

		return fmt.Errorf("failed to load execution: %w", err)
	}

	if !execution.IsActive() {
		return nil
	}

	version, err := r.persistence.Versions().GetByID(ctx, execution.JourneyVersionID)
	if err != nil {
		return fmt.Errorf("failed to load journey version: %w", err)
	}

	step := version.Definition.StepByID(execution.CurrentStepID)
	if step == nil || step.Type != models.StepTypeAction || step.Config.Action == nil {
		return nil
	}

	if step.Config.Action.WaitFor != condition {
		// Outcome the gate is not waiting on, e.g. a delivery receipt while
		// waiting for an open.
		return nil
	}

	pending, err := r.persistence.Executions().PendingStepExecution(ctx, execution.ID, step.ID)
	if err != nil {
		return fmt.Errorf("failed to load pending step execution: %w", err)
	}

	if pending == nil {
		// Gate already resolved by an earlier duplicate event.
		return nil
	}

	if err := pending.Start(); err != nil {
		return err
	}

	if err := pending.Complete(map[string]any{"gate_condition": string(condition), "message_id": data.MessageID}); err != nil {
		return err
	}

	if err := r.persistence.Executions().SaveStepExecution(ctx, pending); err != nil {
		return fmt.Errorf("failed to save step execution: %w", err)
	}

	nextStepIDs := make([]string, 0)
	for _, conn := range version.Definition.OutgoingConnections(step.ID) {
		nextStepIDs = append(nextStepIDs, conn.ToStepID)
	}

	resumeEvent := events.StepResume{
		BaseEvent:   events.NewBaseEvent(events.StepResumeEvent, execution.JourneyID, execution.OrganizationID),
		ExecutionID: execution.ID,
		StepIDs:     nextStepIDs,
		Reason:      events.ResumeReasonGateResolved,
	}

	if err := r.publisher.Publish(ctx, execution.ID, resumeEvent); err != nil {
		r.logger.WarnContext(ctx, "Failed to publish step resume event",
			"execution_id", execution.ID, "error", err)
	}

	r.logger.InfoContext(ctx, "Gate resolved",
		"execution_id", execution.ID, "step_id", step.ID, "condition", condition)

	return nil
}
