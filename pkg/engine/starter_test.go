package engine

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dukex/drip/pkg/mocks"
	"github.com/dukex/drip/pkg/models"
	"github.com/dukex/drip/pkg/persistence"
	"github.com/dukex/drip/pkg/testutil"
)

func newTestStarter(p *mocks.MockPersistence, bus *mocks.MockEventBus) *Starter {
	return NewStarter(p, bus, NewEntryGuard(), slog.Default())
}

func TestStartExecution_CreatesAndPublishes(t *testing.T) {
	journey := testutil.CreateTestJourney()
	version := testutil.CreateTestVersion(journey)

	p := mocks.NewMockPersistence()
	bus := &mocks.MockEventBus{}

	p.JourneyRepo.On("GetByID", mock.Anything, journey.ID).Return(journey, nil)
	p.ExecutionRepo.On("FindActiveForContact", mock.Anything, journey.ID, "contact-1").Return(nil, nil)
	p.ExecutionRepo.On("HistoryForContact", mock.Anything, journey.ID, "contact-1").Return([]models.ExecutionSummary{}, nil)
	p.VersionRepo.On("CurrentPublished", mock.Anything, journey.ID).Return(version, nil)
	p.ExecutionRepo.On("Save", mock.Anything, mock.AnythingOfType("*models.JourneyExecution")).Return(nil)
	bus.On("Publish", mock.Anything, mock.Anything, mock.AnythingOfType("events.ExecutionStarted")).Return(nil)

	starter := newTestStarter(p, bus)

	execution, err := starter.StartExecution(context.Background(), journey.ID, "contact-1", "event", map[string]any{"plan": "pro"})
	require.NoError(t, err)
	require.NotNil(t, execution)

	assert.Equal(t, models.ExecutionStatusActive, execution.Status)
	assert.Equal(t, version.ID, execution.JourneyVersionID)
	assert.Equal(t, "pro", execution.ContactSnapshot["plan"])

	bus.AssertCalled(t, "Publish", mock.Anything, execution.ID, mock.AnythingOfType("events.ExecutionStarted"))
}

func TestStartExecution_SkipsNonActiveJourney(t *testing.T) {
	journey := testutil.CreateTestJourney(testutil.WithStatus(models.JourneyStatusPaused))

	p := mocks.NewMockPersistence()
	bus := &mocks.MockEventBus{}
	p.JourneyRepo.On("GetByID", mock.Anything, journey.ID).Return(journey, nil)

	starter := newTestStarter(p, bus)

	execution, err := starter.StartExecution(context.Background(), journey.ID, "contact-1", "event", nil)
	require.NoError(t, err)
	assert.Nil(t, execution)

	p.ExecutionRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestStartExecution_SkipsWhenContactAlreadyActive(t *testing.T) {
	journey := testutil.CreateTestJourney()
	version := testutil.CreateTestVersion(journey)
	active := testutil.CreateTestExecution(journey, version)

	p := mocks.NewMockPersistence()
	bus := &mocks.MockEventBus{}
	p.JourneyRepo.On("GetByID", mock.Anything, journey.ID).Return(journey, nil)
	p.ExecutionRepo.On("FindActiveForContact", mock.Anything, journey.ID, active.ContactID).Return(active, nil)
	p.ExecutionRepo.On("HistoryForContact", mock.Anything, journey.ID, active.ContactID).Return([]models.ExecutionSummary{}, nil)

	starter := newTestStarter(p, bus)

	execution, err := starter.StartExecution(context.Background(), journey.ID, active.ContactID, "event", nil)
	require.NoError(t, err)
	assert.Nil(t, execution)

	p.ExecutionRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestStartExecution_BlockedByReEntryPolicy(t *testing.T) {
	journey := testutil.CreateTestJourney(testutil.WithSettings(models.JourneySettings{
		ReEntry: models.ReEntryPolicy{Type: models.ReEntryOnce},
	}))

	p := mocks.NewMockPersistence()
	bus := &mocks.MockEventBus{}
	p.JourneyRepo.On("GetByID", mock.Anything, journey.ID).Return(journey, nil)
	p.ExecutionRepo.On("FindActiveForContact", mock.Anything, journey.ID, "contact-1").Return(nil, nil)
	p.ExecutionRepo.On("HistoryForContact", mock.Anything, journey.ID, "contact-1").
		Return([]models.ExecutionSummary{{Status: models.ExecutionStatusCompleted}}, nil)

	starter := newTestStarter(p, bus)

	execution, err := starter.StartExecution(context.Background(), journey.ID, "contact-1", "event", nil)
	require.NoError(t, err)
	assert.Nil(t, execution)
}

func TestStartExecution_SuppressesConcurrentDuplicate(t *testing.T) {
	journey := testutil.CreateTestJourney()
	version := testutil.CreateTestVersion(journey)

	p := mocks.NewMockPersistence()
	bus := &mocks.MockEventBus{}
	p.JourneyRepo.On("GetByID", mock.Anything, journey.ID).Return(journey, nil)
	p.ExecutionRepo.On("FindActiveForContact", mock.Anything, journey.ID, "contact-1").Return(nil, nil)
	p.ExecutionRepo.On("HistoryForContact", mock.Anything, journey.ID, "contact-1").Return([]models.ExecutionSummary{}, nil)
	p.VersionRepo.On("CurrentPublished", mock.Anything, journey.ID).Return(version, nil)
	p.ExecutionRepo.On("Save", mock.Anything, mock.Anything).
		Return(persistence.NewExecutionError("Save", "x", persistence.ErrDuplicateActiveExecution))

	starter := newTestStarter(p, bus)

	execution, err := starter.StartExecution(context.Background(), journey.ID, "contact-1", "event", nil)
	require.NoError(t, err)
	assert.Nil(t, execution)

	bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestStartExecution_SkipsJourneyWithoutPublishedVersion(t *testing.T) {
	journey := testutil.CreateTestJourney()

	p := mocks.NewMockPersistence()
	bus := &mocks.MockEventBus{}
	p.JourneyRepo.On("GetByID", mock.Anything, journey.ID).Return(journey, nil)
	p.ExecutionRepo.On("FindActiveForContact", mock.Anything, journey.ID, "contact-1").Return(nil, nil)
	p.ExecutionRepo.On("HistoryForContact", mock.Anything, journey.ID, "contact-1").Return([]models.ExecutionSummary{}, nil)
	p.VersionRepo.On("CurrentPublished", mock.Anything, journey.ID).Return(nil, persistence.ErrNoPublishedVersion)

	starter := newTestStarter(p, bus)

	// An error here would nack the inbound event and redeliver it forever.
	execution, err := starter.StartExecution(context.Background(), journey.ID, "contact-1", "event", nil)
	require.NoError(t, err)
	assert.Nil(t, execution)

	p.ExecutionRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestStartExecution_PublishFailureDoesNotFailStart(t *testing.T) {
	journey := testutil.CreateTestJourney()
	version := testutil.CreateTestVersion(journey)

	p := mocks.NewMockPersistence()
	bus := &mocks.MockEventBus{}
	p.JourneyRepo.On("GetByID", mock.Anything, journey.ID).Return(journey, nil)
	p.ExecutionRepo.On("FindActiveForContact", mock.Anything, journey.ID, "contact-1").Return(nil, nil)
	p.ExecutionRepo.On("HistoryForContact", mock.Anything, journey.ID, "contact-1").Return([]models.ExecutionSummary{}, nil)
	p.VersionRepo.On("CurrentPublished", mock.Anything, journey.ID).Return(version, nil)
	p.ExecutionRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(assert.AnError)

	starter := newTestStarter(p, bus)

	execution, err := starter.StartExecution(context.Background(), journey.ID, "contact-1", "event", nil)
	require.NoError(t, err)
	require.NotNil(t, execution)
}
