package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dukex/drip/pkg/delayqueue"
	"github.com/dukex/drip/pkg/eventbus"
	"github.com/dukex/drip/pkg/events"
	"github.com/dukex/drip/pkg/models"
	"github.com/dukex/drip/pkg/persistence"
	trc "github.com/dukex/drip/pkg/tracer"
)

// DelayScheduler schedules a resumption for after a delay elapses.
type DelayScheduler interface {
	ScheduleResumption(ctx context.Context, resumption delayqueue.DueResumption, resumeAt time.Time) error
}

// Runner advances executions through their journey version's step graph.
// Step state is persisted before events are published: losing an event leaves
// an execution parked, which the stale sweep surfaces, while losing state
// would corrupt the run.
type Runner struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	executor    *StepExecutor
	delays      DelayScheduler
	tracer      trace.Tracer
	logger      *slog.Logger
}

func NewRunner(
	persistence persistence.Persistence,
	publisher eventbus.EventPublisher,
	executor *StepExecutor,
	delays DelayScheduler,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		persistence: persistence,
		publisher:   publisher,
		executor:    executor,
		delays:      delays,
		tracer:      otel.Tracer("drip-runner"),
		logger:      logger.With("module", "runner"),
	}
}

// Advance walks the execution forward from the given steps until every path
// has parked, delayed, dead-ended, or reached an exit. Steps are processed
// breadth-first so parallel branches interleave fairly.
func (r *Runner) Advance(ctx context.Context, executionID string, stepIDs []string) error {
	ctx, span := trc.StartSpan(ctx, r.tracer, "execution.advance",
		attribute.String(trc.ExecutionIDKey, executionID))
	defer span.End()

	execution, err := r.persistence.Executions().GetByID(ctx, executionID)
	if err != nil {
		return fmt.Errorf("failed to load execution: %w", err)
	}

	if !execution.IsActive() {
		r.logger.InfoContext(ctx, "Ignoring advance for non-active execution",
			"execution_id", executionID, "status", execution.Status)

		return nil
	}

	version, err := r.persistence.Versions().GetByID(ctx, execution.JourneyVersionID)
	if err != nil {
		return fmt.Errorf("failed to load journey version: %w", err)
	}

	queue := append([]string{}, stepIDs...)

	for len(queue) > 0 {
		stepID := queue[0]
		queue = queue[1:]

		step := version.Definition.StepByID(stepID)
		if step == nil {
			return r.failExecution(ctx, execution, fmt.Sprintf("step %s not found in version %s", stepID, version.ID))
		}

		done, next, err := r.runStep(ctx, version, execution, step)
		if err != nil {
			return err
		}

		if done {
			return nil
		}

		queue = append(queue, next...)
	}

	return nil
}

// runStep executes one step with its audit record and side effects. It
// returns done=true when the execution reached a terminal state and the
// steps to enqueue otherwise.
func (r *Runner) runStep(ctx context.Context, version *models.JourneyVersion, execution *models.JourneyExecution, step *models.Step) (bool, []string, error) {
	ctx, span := trc.StartSpan(ctx, r.tracer, "step.run",
		attribute.String(trc.StepIDKey, step.ID),
		attribute.String(trc.ContactIDKey, execution.ContactID))
	defer span.End()

	if err := execution.MoveToStep(step.ID); err != nil {
		return false, nil, err
	}

	stepExecution := models.NewStepExecution(execution.ID, step.ID, execution.OrganizationID)

	result, execErr := r.executor.ExecuteStep(version, execution, step)
	if execErr != nil {
		if err := stepExecution.Start(); err != nil {
			return false, nil, err
		}

		if err := stepExecution.Fail(execErr.Error()); err != nil {
			return false, nil, err
		}

		if err := r.persistence.Executions().SaveStepExecution(ctx, stepExecution); err != nil {
			return false, nil, fmt.Errorf("failed to save step execution: %w", err)
		}

		return true, nil, r.failExecution(ctx, execution, execErr.Error())
	}

	if result.Parked {
		// Gated step: the pending record is the parking marker the gate
		// resumer looks up when the matching delivery event arrives.
		if err := r.persistence.Executions().SaveStepExecution(ctx, stepExecution); err != nil {
			return false, nil, fmt.Errorf("failed to save step execution: %w", err)
		}

		if err := r.persistence.Executions().Save(ctx, execution); err != nil {
			return false, nil, fmt.Errorf("failed to save execution: %w", err)
		}

		r.publishAll(ctx, execution.ID, result.Events)
		r.logger.InfoContext(ctx, "Execution parked on gated step",
			"execution_id", execution.ID, "step_id", step.ID)

		return false, nil, nil
	}

	if err := stepExecution.Start(); err != nil {
		return false, nil, err
	}

	if err := stepExecution.Complete(map[string]any{"next_step_ids": result.NextStepIDs}); err != nil {
		return false, nil, err
	}

	if err := r.persistence.Executions().SaveStepExecution(ctx, stepExecution); err != nil {
		return false, nil, fmt.Errorf("failed to save step execution: %w", err)
	}

	if result.Completed {
		if err := execution.Complete(); err != nil {
			return false, nil, err
		}

		if err := r.persistence.Executions().Save(ctx, execution); err != nil {
			return false, nil, fmt.Errorf("failed to save execution: %w", err)
		}

		r.publishAll(ctx, execution.ID, result.Events)
		r.publishAll(ctx, execution.ID, []eventbus.Event{events.ExecutionCompleted{
			BaseEvent:   events.NewBaseEvent(events.ExecutionCompletedEvent, execution.JourneyID, execution.OrganizationID),
			ExecutionID: execution.ID,
			ContactID:   execution.ContactID,
		}})

		r.logger.InfoContext(ctx, "Execution completed", "execution_id", execution.ID)

		return true, nil, nil
	}

	if err := r.persistence.Executions().Save(ctx, execution); err != nil {
		return false, nil, fmt.Errorf("failed to save execution: %w", err)
	}

	r.publishAll(ctx, execution.ID, result.Events)

	if result.Delay > 0 {
		for _, nextStepID := range result.NextStepIDs {
			resumption := delayqueue.DueResumption{
				ExecutionID:    execution.ID,
				StepID:         nextStepID,
				OrganizationID: execution.OrganizationID,
				JourneyID:      execution.JourneyID,
			}

			if err := r.delays.ScheduleResumption(ctx, resumption, time.Now().UTC().Add(result.Delay)); err != nil {
				return false, nil, fmt.Errorf("failed to schedule delayed resumption: %w", err)
			}
		}

		r.logger.InfoContext(ctx, "Execution delayed",
			"execution_id", execution.ID, "step_id", step.ID, "delay", result.Delay)

		return false, nil, nil
	}

	if len(result.NextStepIDs) == 0 {
		// Dead end: the execution stays active so a later resume can still
		// move it. The stale sweep reports runs stuck here too long.
		r.logger.InfoContext(ctx, "Execution path dead-ended",
			"execution_id", execution.ID, "step_id", step.ID)
	}

	return false, result.NextStepIDs, nil
}

func (r *Runner) failExecution(ctx context.Context, execution *models.JourneyExecution, reason string) error {
	if err := execution.Fail(reason); err != nil {
		return err
	}

	if err := r.persistence.Executions().Save(ctx, execution); err != nil {
		return fmt.Errorf("failed to save failed execution: %w", err)
	}

	r.publishAll(ctx, execution.ID, []eventbus.Event{events.ExecutionFailed{
		BaseEvent:   events.NewBaseEvent(events.ExecutionFailedEvent, execution.JourneyID, execution.OrganizationID),
		ExecutionID: execution.ID,
		ContactID:   execution.ContactID,
		Error:       reason,
	}})

	r.logger.ErrorContext(ctx, "Execution failed", "execution_id", execution.ID, "reason", reason)

	return nil
}

// publishAll publishes best-effort: a lost event parks the execution rather
// than corrupting persisted state, so failures are logged and swallowed.
func (r *Runner) publishAll(ctx context.Context, key string, toPublish []eventbus.Event) {
	for _, event := range toPublish {
		if err := r.publisher.Publish(ctx, key, event); err != nil {
			r.logger.WarnContext(ctx, "Failed to publish event",
				"event_type", event.GetType(), "key", key, "error", err)
		}
	}
}
