package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/drip/pkg/eventbus"
	"github.com/dukex/drip/pkg/events"
	"github.com/dukex/drip/pkg/models"
)

// StepResult is the outcome of executing one step: the steps to advance
// into, the events to publish, and an optional delay before advancing.
//
// An empty NextStepIDs with no delay means the path dead-ends; the execution
// stays active and waits for an external resume or the stale sweep.
type StepResult struct {
	NextStepIDs []string
	Events      []eventbus.Event
	Delay       time.Duration
	Completed   bool
	Parked      bool
}

// StepExecutor executes a single step of a journey version against an
// execution, without persisting or publishing anything itself. The runner
// owns those side effects.
type StepExecutor struct {
	splits *SplitEvaluator
	logger *slog.Logger
}

func NewStepExecutor(splits *SplitEvaluator, logger *slog.Logger) *StepExecutor {
	return &StepExecutor{
		splits: splits,
		logger: logger.With("module", "step_executor"),
	}
}

// ExecuteStep runs one step and decides where the execution goes next.
func (x *StepExecutor) ExecuteStep(version *models.JourneyVersion, execution *models.JourneyExecution, step *models.Step) (*StepResult, error) {
	switch step.Type {
	case models.StepTypeTrigger:
		// Entry markers do no work; pass through to all outgoing steps.
		return &StepResult{NextStepIDs: x.nextSteps(version, step.ID, "")}, nil

	case models.StepTypeAction:
		return x.executeAction(version, execution, step)

	case models.StepTypeDelay:
		return x.executeDelay(version, step)

	case models.StepTypeSplit:
		return x.executeSplit(version, step)

	case models.StepTypeCondition:
		return x.executeCondition(version, execution, step)

	case models.StepTypeExit:
		return &StepResult{Completed: true}, nil

	default:
		// Unknown step types are a no-op dead end, not a failure; the
		// execution stays active for the stale sweep to surface.
		x.logger.Warn("Ignoring unknown step type", "step_id", step.ID, "step_type", step.Type)

		return &StepResult{}, nil
	}
}

func (x *StepExecutor) executeAction(version *models.JourneyVersion, execution *models.JourneyExecution, step *models.Step) (*StepResult, error) {
	config := step.Config.Action
	if config == nil {
		return nil, fmt.Errorf("action step %s has no action config", step.ID)
	}

	stepEvent := events.StepExecuted{
		BaseEvent:    events.NewBaseEvent(events.StepExecutedEvent, execution.JourneyID, execution.OrganizationID),
		ExecutionID:  execution.ID,
		StepID:       step.ID,
		ContactID:    execution.ContactID,
		ActionKind:   config.Kind,
		ActionParams: config.Params,
	}

	result := &StepResult{Events: []eventbus.Event{stepEvent}}

	if config.WaitFor != "" {
		// Gated action: the execution parks here until a delivery event
		// matching WaitFor arrives.
		result.Parked = true

		return result, nil
	}

	result.NextStepIDs = x.nextSteps(version, step.ID, "")

	return result, nil
}

func (x *StepExecutor) executeDelay(version *models.JourneyVersion, step *models.Step) (*StepResult, error) {
	config := step.Config.Delay
	if config == nil {
		return nil, fmt.Errorf("delay step %s has no delay config", step.ID)
	}

	return &StepResult{
		NextStepIDs: x.nextSteps(version, step.ID, ""),
		Delay:       config.Interval(),
	}, nil
}

func (x *StepExecutor) executeSplit(version *models.JourneyVersion, step *models.Step) (*StepResult, error) {
	if step.Config.Split == nil {
		// No branch config: fan out over every outgoing connection.
		return &StepResult{NextStepIDs: x.nextSteps(version, step.ID, "")}, nil
	}

	label, err := x.splits.EvaluateRandomSplit(step.Config.Split)
	if err != nil {
		return nil, fmt.Errorf("split step %s: %w", step.ID, err)
	}

	next := x.nextSteps(version, step.ID, label)
	if len(next) == 0 {
		return nil, fmt.Errorf("split step %s has no connection for branch %q", step.ID, label)
	}

	return &StepResult{NextStepIDs: next}, nil
}

func (x *StepExecutor) executeCondition(version *models.JourneyVersion, execution *models.JourneyExecution, step *models.Step) (*StepResult, error) {
	config := step.Config.Condition
	if config == nil {
		return nil, fmt.Errorf("condition step %s has no condition config", step.ID)
	}

	label := x.splits.EvaluateCondition(config, execution.ContactSnapshot)

	// A condition branch with no connection is a legal dead end, unlike a
	// split branch.
	return &StepResult{NextStepIDs: x.nextSteps(version, step.ID, label)}, nil
}

// nextSteps resolves the outgoing connections of a step, filtered by branch
// label when one is given.
func (x *StepExecutor) nextSteps(version *models.JourneyVersion, stepID, label string) []string {
	next := make([]string, 0)

	for _, conn := range version.Definition.OutgoingConnections(stepID) {
		if label != "" && conn.Label != label {
			continue
		}

		next = append(next, conn.ToStepID)
	}

	return next
}
