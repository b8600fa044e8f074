package engine

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dukex/drip/pkg/delayqueue"
	"github.com/dukex/drip/pkg/mocks"
	"github.com/dukex/drip/pkg/models"
	"github.com/dukex/drip/pkg/testutil"
)

type runnerFixture struct {
	persistence *mocks.MockPersistence
	bus         *mocks.MockEventBus
	delays      *mocks.MockDelayScheduler
	runner      *Runner
}

func newRunnerFixture(execution *models.JourneyExecution, version *models.JourneyVersion) *runnerFixture {
	p := mocks.NewMockPersistence()
	bus := &mocks.MockEventBus{}
	delays := &mocks.MockDelayScheduler{}

	p.ExecutionRepo.On("GetByID", mock.Anything, execution.ID).Return(execution, nil)
	p.VersionRepo.On("GetByID", mock.Anything, version.ID).Return(version, nil)
	p.ExecutionRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
	p.ExecutionRepo.On("SaveStepExecution", mock.Anything, mock.Anything).Return(nil)
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	return &runnerFixture{
		persistence: p,
		bus:         bus,
		delays:      delays,
		runner:      NewRunner(p, bus, newTestExecutor(), delays, slog.Default()),
	}
}

func TestAdvance_RunsThroughToCompletion(t *testing.T) {
	journey := testutil.CreateTestJourney()
	version := testutil.CreateTestVersion(journey)
	execution := executionFor(journey, version)

	f := newRunnerFixture(execution, version)

	err := f.runner.Advance(context.Background(), execution.ID, []string{"start"})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.NotNil(t, execution.CompletedAt)
	assert.Equal(t, "done", execution.CurrentStepID)

	f.bus.AssertCalled(t, "Publish", mock.Anything, execution.ID, mock.AnythingOfType("events.StepExecuted"))
	f.bus.AssertCalled(t, "Publish", mock.Anything, execution.ID, mock.AnythingOfType("events.ExecutionCompleted"))
	f.persistence.ExecutionRepo.AssertNumberOfCalls(t, "SaveStepExecution", 3)
}

func TestAdvance_IgnoresNonActiveExecution(t *testing.T) {
	journey := testutil.CreateTestJourney()
	version := testutil.CreateTestVersion(journey)
	execution := executionFor(journey, version)
	require.NoError(t, execution.Cancel())

	f := newRunnerFixture(execution, version)

	err := f.runner.Advance(context.Background(), execution.ID, []string{"start"})
	require.NoError(t, err)

	f.persistence.VersionRepo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	f.persistence.ExecutionRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestAdvance_SchedulesDelayedResumption(t *testing.T) {
	journey := testutil.CreateTestJourney(testutil.WithDefinition(&models.Definition{
		Steps: []*models.Step{
			{ID: "start", Type: models.StepTypeTrigger},
			{ID: "wait", Type: models.StepTypeDelay, Config: models.StepConfig{
				Delay: &models.DelayConfig{Duration: 2, Unit: "hours"},
			}},
			{ID: "done", Type: models.StepTypeExit},
		},
		Connections: []*models.Connection{
			{FromStepID: "start", ToStepID: "wait"},
			{FromStepID: "wait", ToStepID: "done"},
		},
	}))
	version := testutil.CreateTestVersion(journey)
	execution := executionFor(journey, version)

	f := newRunnerFixture(execution, version)
	f.delays.On("ScheduleResumption", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	err := f.runner.Advance(context.Background(), execution.ID, []string{"start"})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusActive, execution.Status)
	assert.Equal(t, "wait", execution.CurrentStepID)

	f.delays.AssertCalled(t, "ScheduleResumption", mock.Anything, delayqueue.DueResumption{
		ExecutionID:    execution.ID,
		StepID:         "done",
		OrganizationID: execution.OrganizationID,
		JourneyID:      execution.JourneyID,
	}, mock.Anything)
	f.bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.AnythingOfType("events.ExecutionCompleted"))
}

func TestAdvance_ParksOnGatedAction(t *testing.T) {
	journey := testutil.CreateTestJourney(testutil.WithDefinition(&models.Definition{
		Steps: []*models.Step{
			{ID: "email", Type: models.StepTypeAction, Config: models.StepConfig{
				Action: &models.ActionConfig{Kind: "send_email", WaitFor: models.GateOpened},
			}},
			{ID: "done", Type: models.StepTypeExit},
		},
		Connections: []*models.Connection{{FromStepID: "email", ToStepID: "done"}},
	}))
	version := testutil.CreateTestVersion(journey)
	execution := executionFor(journey, version)

	f := newRunnerFixture(execution, version)

	err := f.runner.Advance(context.Background(), execution.ID, []string{"email"})
	require.NoError(t, err)

	// Still active and parked on the gated step; the pending step execution
	// row is the marker the gate resumer resolves later.
	assert.Equal(t, models.ExecutionStatusActive, execution.Status)
	assert.Equal(t, "email", execution.CurrentStepID)

	f.persistence.ExecutionRepo.AssertNumberOfCalls(t, "SaveStepExecution", 1)
	f.bus.AssertCalled(t, "Publish", mock.Anything, execution.ID, mock.AnythingOfType("events.StepExecuted"))
	f.delays.AssertNotCalled(t, "ScheduleResumption", mock.Anything, mock.Anything, mock.Anything)
}

func TestAdvance_MissingStepFailsExecution(t *testing.T) {
	journey := testutil.CreateTestJourney()
	version := testutil.CreateTestVersion(journey)
	execution := executionFor(journey, version)

	f := newRunnerFixture(execution, version)

	err := f.runner.Advance(context.Background(), execution.ID, []string{"ghost"})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Contains(t, execution.FailureReason, "ghost")

	f.bus.AssertCalled(t, "Publish", mock.Anything, execution.ID, mock.AnythingOfType("events.ExecutionFailed"))
}

func TestAdvance_StepErrorFailsExecution(t *testing.T) {
	journey := testutil.CreateTestJourney(testutil.WithDefinition(&models.Definition{
		Steps: []*models.Step{
			{ID: "split", Type: models.StepTypeSplit, Config: models.StepConfig{
				Split: &models.SplitConfig{Branches: []models.SplitBranch{{Label: "orphan", Percentage: 100}}},
			}},
		},
	}))
	version := testutil.CreateTestVersion(journey)
	execution := executionFor(journey, version)

	f := newRunnerFixture(execution, version)

	err := f.runner.Advance(context.Background(), execution.ID, []string{"split"})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Contains(t, execution.FailureReason, "no connection for branch")

	// The failed step still gets its audit record.
	f.persistence.ExecutionRepo.AssertNumberOfCalls(t, "SaveStepExecution", 1)
	f.bus.AssertCalled(t, "Publish", mock.Anything, execution.ID, mock.AnythingOfType("events.ExecutionFailed"))
}

func TestAdvance_DeadEndLeavesExecutionActive(t *testing.T) {
	journey := testutil.CreateTestJourney(testutil.WithDefinition(&models.Definition{
		Steps: []*models.Step{
			{ID: "check", Type: models.StepTypeCondition, Config: models.StepConfig{
				Condition: &models.ConditionConfig{Field: "plan", Operator: "eq", Value: "free"},
			}},
			{ID: "upsell", Type: models.StepTypeExit},
		},
		Connections: []*models.Connection{
			{FromStepID: "check", ToStepID: "upsell", Label: models.BranchYes},
		},
	}))
	version := testutil.CreateTestVersion(journey)
	execution := executionFor(journey, version)

	f := newRunnerFixture(execution, version)

	err := f.runner.Advance(context.Background(), execution.ID, []string{"check"})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusActive, execution.Status)
	assert.Equal(t, "check", execution.CurrentStepID)
	f.bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.AnythingOfType("events.ExecutionCompleted"))
}

func TestAdvance_PublishFailureDoesNotCorruptState(t *testing.T) {
	journey := testutil.CreateTestJourney()
	version := testutil.CreateTestVersion(journey)
	execution := executionFor(journey, version)

	p := mocks.NewMockPersistence()
	bus := &mocks.MockEventBus{}
	p.ExecutionRepo.On("GetByID", mock.Anything, execution.ID).Return(execution, nil)
	p.VersionRepo.On("GetByID", mock.Anything, version.ID).Return(version, nil)
	p.ExecutionRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
	p.ExecutionRepo.On("SaveStepExecution", mock.Anything, mock.Anything).Return(nil)
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(assert.AnError)

	runner := NewRunner(p, bus, newTestExecutor(), &mocks.MockDelayScheduler{}, slog.Default())

	err := runner.Advance(context.Background(), execution.ID, []string{"start"})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
}
