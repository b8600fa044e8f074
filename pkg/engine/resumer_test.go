package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dukex/drip/pkg/events"
	"github.com/dukex/drip/pkg/mocks"
	"github.com/dukex/drip/pkg/models"
	"github.com/dukex/drip/pkg/persistence"
	"github.com/dukex/drip/pkg/testutil"
)

func inbound(t *testing.T, eventType, organizationID string, payload any) *events.InboundMessage {
	t.Helper()

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	return &events.InboundMessage{
		Type: eventType,
		Data: data,
		Metadata: events.InboundMetadata{
			TenantContext: events.TenantContext{OrganizationID: organizationID},
		},
	}
}

type resumerFixture struct {
	persistence *mocks.MockPersistence
	bus         *mocks.MockEventBus
	starter     *Starter
}

// newResumerFixture wires a starter whose persistence accepts any new
// execution for the journey.
func newResumerFixture(journey *models.Journey, version *models.JourneyVersion) *resumerFixture {
	p := mocks.NewMockPersistence()
	bus := &mocks.MockEventBus{}

	p.JourneyRepo.On("GetByID", mock.Anything, journey.ID).Return(journey, nil)
	p.ExecutionRepo.On("FindActiveForContact", mock.Anything, journey.ID, mock.Anything).Return(nil, nil)
	p.ExecutionRepo.On("HistoryForContact", mock.Anything, journey.ID, mock.Anything).Return([]models.ExecutionSummary{}, nil)
	p.VersionRepo.On("CurrentPublished", mock.Anything, journey.ID).Return(version, nil)
	p.ExecutionRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	return &resumerFixture{
		persistence: p,
		bus:         bus,
		starter:     NewStarter(p, bus, NewEntryGuard(), slog.Default()),
	}
}

func (f *resumerFixture) expectTriggerConfigs(organizationID string, triggerType models.TriggerType, matches ...*models.TriggerConfigMatch) {
	f.persistence.JourneyRepo.On("FindTriggerConfigs", mock.Anything, organizationID, triggerType).Return(matches, nil)
}

func TestEventTriggerResumer_StartsMatchingJourney(t *testing.T) {
	journey := testutil.CreateTestJourney()
	version := testutil.CreateTestVersion(journey)

	f := newResumerFixture(journey, version)
	f.expectTriggerConfigs(journey.OrganizationID, models.TriggerTypeEvent, &models.TriggerConfigMatch{
		JourneyID:      journey.ID,
		OrganizationID: journey.OrganizationID,
		Trigger:        journey.Triggers[0],
	})

	resumer := NewEventTriggerResumer(f.persistence, f.starter, slog.Default())

	msg := inbound(t, events.InboundContactCreated, journey.OrganizationID, events.ContactEventData{
		OrganizationID: journey.OrganizationID,
		ContactID:      "contact-1",
		Contact:        map[string]any{"plan": "pro"},
	})

	require.NoError(t, resumer.HandleInbound(context.Background(), msg))

	f.persistence.ExecutionRepo.AssertCalled(t, "Save", mock.Anything, mock.MatchedBy(func(e *models.JourneyExecution) bool {
		return e.ContactID == "contact-1" && e.ContactSnapshot["plan"] == "pro"
	}))
}

func TestEventTriggerResumer_EventTypeMismatchSkips(t *testing.T) {
	journey := testutil.CreateTestJourney(testutil.WithTriggers(&models.TriggerConfig{
		ID:        "t1",
		Type:      models.TriggerTypeEvent,
		EventType: "form.submitted",
	}))
	version := testutil.CreateTestVersion(journey)

	f := newResumerFixture(journey, version)
	f.expectTriggerConfigs(journey.OrganizationID, models.TriggerTypeEvent, &models.TriggerConfigMatch{
		JourneyID: journey.ID,
		Trigger:   journey.Triggers[0],
	})

	resumer := NewEventTriggerResumer(f.persistence, f.starter, slog.Default())

	msg := inbound(t, events.InboundContactCreated, journey.OrganizationID, events.ContactEventData{
		ContactID: "contact-1",
	})

	require.NoError(t, resumer.HandleInbound(context.Background(), msg))
	f.persistence.ExecutionRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestEventTriggerResumer_FilterMismatchSkips(t *testing.T) {
	journey := testutil.CreateTestJourney(testutil.WithTriggers(&models.TriggerConfig{
		ID:        "t1",
		Type:      models.TriggerTypeEvent,
		EventType: "contact.tagged",
		Filters:   map[string]any{"tagId": "vip"},
	}))
	version := testutil.CreateTestVersion(journey)

	f := newResumerFixture(journey, version)
	f.expectTriggerConfigs(journey.OrganizationID, models.TriggerTypeEvent, &models.TriggerConfigMatch{
		JourneyID: journey.ID,
		Trigger:   journey.Triggers[0],
	})

	resumer := NewEventTriggerResumer(f.persistence, f.starter, slog.Default())

	msg := inbound(t, events.InboundContactTagged, journey.OrganizationID, events.ContactTaggedData{
		ContactID: "contact-1",
		TagID:     "newsletter",
	})

	require.NoError(t, resumer.HandleInbound(context.Background(), msg))
	f.persistence.ExecutionRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)

	// Same trigger, matching tag.
	matching := inbound(t, events.InboundContactTagged, journey.OrganizationID, events.ContactTaggedData{
		ContactID: "contact-1",
		TagID:     "vip",
	})

	require.NoError(t, resumer.HandleInbound(context.Background(), matching))
	f.persistence.ExecutionRepo.AssertCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestEventTriggerResumer_UnrecognizedTypeDropped(t *testing.T) {
	p := mocks.NewMockPersistence()
	bus := &mocks.MockEventBus{}
	starter := NewStarter(p, bus, NewEntryGuard(), slog.Default())
	resumer := NewEventTriggerResumer(p, starter, slog.Default())

	msg := inbound(t, events.InboundMessageClicked, "org-1", events.MessageEngagementData{ContactID: "contact-1"})

	require.NoError(t, resumer.HandleInbound(context.Background(), msg))
	p.JourneyRepo.AssertNotCalled(t, "FindTriggerConfigs", mock.Anything, mock.Anything, mock.Anything)
}

func TestEventTriggerResumer_MalformedPayloadDropped(t *testing.T) {
	p := mocks.NewMockPersistence()
	bus := &mocks.MockEventBus{}
	starter := NewStarter(p, bus, NewEntryGuard(), slog.Default())
	resumer := NewEventTriggerResumer(p, starter, slog.Default())

	msg := &events.InboundMessage{
		Type: events.InboundContactCreated,
		Data: json.RawMessage(`{"contactId": 42}`),
	}

	require.NoError(t, resumer.HandleInbound(context.Background(), msg))
	p.JourneyRepo.AssertNotCalled(t, "FindTriggerConfigs", mock.Anything, mock.Anything, mock.Anything)
}

func TestEventTriggerResumer_MissingTenantContextDropped(t *testing.T) {
	p := mocks.NewMockPersistence()
	bus := &mocks.MockEventBus{}
	starter := NewStarter(p, bus, NewEntryGuard(), slog.Default())
	resumer := NewEventTriggerResumer(p, starter, slog.Default())

	msg := inbound(t, events.InboundContactCreated, "", events.ContactEventData{ContactID: "contact-1"})

	require.NoError(t, resumer.HandleInbound(context.Background(), msg))
	p.JourneyRepo.AssertNotCalled(t, "FindTriggerConfigs", mock.Anything, mock.Anything, mock.Anything)
}

func TestScoreCrossed(t *testing.T) {
	up := &models.TriggerConfig{Type: models.TriggerTypeScore, Threshold: 50, Direction: models.ScoreDirectionUp}
	down := &models.TriggerConfig{Type: models.TriggerTypeScore, Threshold: 50, Direction: models.ScoreDirectionDown}

	tests := []struct {
		name     string
		trigger  *models.TriggerConfig
		previous float64
		current  float64
		want     bool
	}{
		{"up crossing", up, 40, 60, true},
		{"up landing exactly on threshold", up, 40, 50, true},
		{"up already above", up, 60, 70, false},
		{"up moving down", up, 60, 40, false},
		{"down crossing", down, 60, 40, true},
		{"down landing exactly on threshold", down, 60, 50, true},
		{"down already below", down, 40, 30, false},
		{"direction defaults to up", &models.TriggerConfig{Threshold: 50}, 40, 60, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scoreCrossed(tt.trigger, tt.previous, tt.current))
		})
	}
}

func TestScoreTriggerResumer_StartsOnCrossing(t *testing.T) {
	journey := testutil.CreateTestJourney(testutil.WithTriggers(&models.TriggerConfig{
		ID:        "t1",
		Type:      models.TriggerTypeScore,
		Threshold: 50,
		Direction: models.ScoreDirectionUp,
	}))
	version := testutil.CreateTestVersion(journey)

	f := newResumerFixture(journey, version)
	f.expectTriggerConfigs(journey.OrganizationID, models.TriggerTypeScore, &models.TriggerConfigMatch{
		JourneyID: journey.ID,
		Trigger:   journey.Triggers[0],
	})

	resumer := NewScoreTriggerResumer(f.persistence, f.starter, slog.Default())

	msg := inbound(t, events.InboundLeadScoreChanged, journey.OrganizationID, events.LeadScoreChangedData{
		ContactID:     "contact-1",
		PreviousScore: 45,
		NewScore:      72,
	})

	require.NoError(t, resumer.HandleInbound(context.Background(), msg))
	f.persistence.ExecutionRepo.AssertCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestScoreTriggerResumer_IgnoresUpdatesOnSameSide(t *testing.T) {
	journey := testutil.CreateTestJourney(testutil.WithTriggers(&models.TriggerConfig{
		ID:        "t1",
		Type:      models.TriggerTypeScore,
		Threshold: 50,
		Direction: models.ScoreDirectionUp,
	}))
	version := testutil.CreateTestVersion(journey)

	f := newResumerFixture(journey, version)
	f.expectTriggerConfigs(journey.OrganizationID, models.TriggerTypeScore, &models.TriggerConfigMatch{
		JourneyID: journey.ID,
		Trigger:   journey.Triggers[0],
	})

	resumer := NewScoreTriggerResumer(f.persistence, f.starter, slog.Default())

	// Already past the threshold before the update.
	msg := inbound(t, events.InboundLeadScoreChanged, journey.OrganizationID, events.LeadScoreChangedData{
		ContactID:     "contact-1",
		PreviousScore: 60,
		NewScore:      80,
	})

	require.NoError(t, resumer.HandleInbound(context.Background(), msg))
	f.persistence.ExecutionRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestSegmentTriggerResumer_StartsOnEntry(t *testing.T) {
	journey := testutil.CreateTestJourney(testutil.WithTriggers(&models.TriggerConfig{
		ID:        "t1",
		Type:      models.TriggerTypeSegment,
		SegmentID: "seg-1",
	}))
	version := testutil.CreateTestVersion(journey)

	f := newResumerFixture(journey, version)
	f.expectTriggerConfigs(journey.OrganizationID, models.TriggerTypeSegment, &models.TriggerConfigMatch{
		JourneyID: journey.ID,
		Trigger:   journey.Triggers[0],
	})

	resumer := NewSegmentTriggerResumer(f.persistence, f.starter, slog.Default())

	msg := inbound(t, events.InboundSegmentChanged, journey.OrganizationID, events.SegmentChangedData{
		ContactID: "contact-1",
		SegmentID: "seg-1",
		Action:    events.SegmentActionEntered,
	})

	require.NoError(t, resumer.HandleInbound(context.Background(), msg))
	f.persistence.ExecutionRepo.AssertCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestSegmentTriggerResumer_ExitNeverStarts(t *testing.T) {
	p := mocks.NewMockPersistence()
	bus := &mocks.MockEventBus{}
	starter := NewStarter(p, bus, NewEntryGuard(), slog.Default())
	resumer := NewSegmentTriggerResumer(p, starter, slog.Default())

	msg := inbound(t, events.InboundSegmentChanged, "org-1", events.SegmentChangedData{
		ContactID: "contact-1",
		SegmentID: "seg-1",
		Action:    events.SegmentActionExited,
	})

	require.NoError(t, resumer.HandleInbound(context.Background(), msg))
	p.JourneyRepo.AssertNotCalled(t, "FindTriggerConfigs", mock.Anything, mock.Anything, mock.Anything)
}

func TestIntentTriggerResumer_StrengthThreshold(t *testing.T) {
	journey := testutil.CreateTestJourney(testutil.WithTriggers(&models.TriggerConfig{
		ID:          "t1",
		Type:        models.TriggerTypeIntent,
		SignalType:  "pricing_page_visit",
		MinStrength: 0.7,
	}))
	version := testutil.CreateTestVersion(journey)

	f := newResumerFixture(journey, version)
	f.expectTriggerConfigs(journey.OrganizationID, models.TriggerTypeIntent, &models.TriggerConfigMatch{
		JourneyID: journey.ID,
		Trigger:   journey.Triggers[0],
	})

	resumer := NewIntentTriggerResumer(f.persistence, f.starter, slog.Default())

	weak := inbound(t, events.InboundIntentSignal, journey.OrganizationID, events.IntentSignalData{
		ContactID:  "contact-1",
		SignalType: "pricing_page_visit",
		Strength:   0.5,
	})

	require.NoError(t, resumer.HandleInbound(context.Background(), weak))
	f.persistence.ExecutionRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)

	// Strength exactly at the minimum fires.
	exact := inbound(t, events.InboundIntentSignal, journey.OrganizationID, events.IntentSignalData{
		ContactID:  "contact-1",
		SignalType: "pricing_page_visit",
		Strength:   0.7,
	})

	require.NoError(t, resumer.HandleInbound(context.Background(), exact))
	f.persistence.ExecutionRepo.AssertCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestIntentTriggerResumer_SignalTypeMismatchSkips(t *testing.T) {
	journey := testutil.CreateTestJourney(testutil.WithTriggers(&models.TriggerConfig{
		ID:          "t1",
		Type:        models.TriggerTypeIntent,
		SignalType:  "pricing_page_visit",
		MinStrength: 0.5,
	}))
	version := testutil.CreateTestVersion(journey)

	f := newResumerFixture(journey, version)
	f.expectTriggerConfigs(journey.OrganizationID, models.TriggerTypeIntent, &models.TriggerConfigMatch{
		JourneyID: journey.ID,
		Trigger:   journey.Triggers[0],
	})

	resumer := NewIntentTriggerResumer(f.persistence, f.starter, slog.Default())

	msg := inbound(t, events.InboundIntentSignal, journey.OrganizationID, events.IntentSignalData{
		ContactID:  "contact-1",
		SignalType: "docs_visit",
		Strength:   0.9,
	})

	require.NoError(t, resumer.HandleInbound(context.Background(), msg))
	f.persistence.ExecutionRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func gatedJourney() *models.Journey {
	return testutil.CreateTestJourney(testutil.WithDefinition(&models.Definition{
		Steps: []*models.Step{
			{ID: "email", Type: models.StepTypeAction, Config: models.StepConfig{
				Action: &models.ActionConfig{Kind: "send_email", WaitFor: models.GateOpened},
			}},
			{ID: "followup", Type: models.StepTypeAction, Config: models.StepConfig{
				Action: &models.ActionConfig{Kind: "send_email"},
			}},
		},
		Connections: []*models.Connection{{FromStepID: "email", ToStepID: "followup"}},
	}))
}

func TestGateResumer_ResolvesParkedExecution(t *testing.T) {
	journey := gatedJourney()
	version := testutil.CreateTestVersion(journey)
	execution := testutil.CreateTestExecution(journey, version)
	require.NoError(t, execution.MoveToStep("email"))

	pending := models.NewStepExecution(execution.ID, "email", execution.OrganizationID)

	p := mocks.NewMockPersistence()
	bus := &mocks.MockEventBus{}
	p.ExecutionRepo.On("GetByID", mock.Anything, execution.ID).Return(execution, nil)
	p.VersionRepo.On("GetByID", mock.Anything, version.ID).Return(version, nil)
	p.ExecutionRepo.On("PendingStepExecution", mock.Anything, execution.ID, "email").Return(pending, nil)
	p.ExecutionRepo.On("SaveStepExecution", mock.Anything, pending).Return(nil)
	bus.On("Publish", mock.Anything, execution.ID, mock.Anything).Return(nil)

	resumer := NewGateResumer(p, bus, slog.Default())

	msg := inbound(t, events.InboundMessageOpened, execution.OrganizationID, events.MessageEngagementData{
		ContactID:          execution.ContactID,
		MessageID:          "msg-1",
		JourneyExecutionID: execution.ID,
	})

	require.NoError(t, resumer.HandleInbound(context.Background(), msg))

	assert.Equal(t, models.StepExecutionStatusCompleted, pending.Status)

	bus.AssertCalled(t, "Publish", mock.Anything, execution.ID, mock.MatchedBy(func(e events.StepResume) bool {
		return e.ExecutionID == execution.ID &&
			e.Reason == events.ResumeReasonGateResolved &&
			len(e.StepIDs) == 1 && e.StepIDs[0] == "followup"
	}))
}

func TestGateResumer_WrongOutcomeKeepsWaiting(t *testing.T) {
	journey := gatedJourney()
	version := testutil.CreateTestVersion(journey)
	execution := testutil.CreateTestExecution(journey, version)
	require.NoError(t, execution.MoveToStep("email"))

	p := mocks.NewMockPersistence()
	bus := &mocks.MockEventBus{}
	p.ExecutionRepo.On("GetByID", mock.Anything, execution.ID).Return(execution, nil)
	p.VersionRepo.On("GetByID", mock.Anything, version.ID).Return(version, nil)

	resumer := NewGateResumer(p, bus, slog.Default())

	// Gate waits for an open; a delivery receipt must not resolve it.
	msg := inbound(t, events.InboundMessageDelivered, execution.OrganizationID, events.MessageEngagementData{
		ContactID:          execution.ContactID,
		MessageID:          "msg-1",
		JourneyExecutionID: execution.ID,
	})

	require.NoError(t, resumer.HandleInbound(context.Background(), msg))
	p.ExecutionRepo.AssertNotCalled(t, "PendingStepExecution", mock.Anything, mock.Anything, mock.Anything)
	bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestGateResumer_DuplicateEventIsNoOp(t *testing.T) {
	journey := gatedJourney()
	version := testutil.CreateTestVersion(journey)
	execution := testutil.CreateTestExecution(journey, version)
	require.NoError(t, execution.MoveToStep("email"))

	p := mocks.NewMockPersistence()
	bus := &mocks.MockEventBus{}
	p.ExecutionRepo.On("GetByID", mock.Anything, execution.ID).Return(execution, nil)
	p.VersionRepo.On("GetByID", mock.Anything, version.ID).Return(version, nil)
	p.ExecutionRepo.On("PendingStepExecution", mock.Anything, execution.ID, "email").Return(nil, nil)

	resumer := NewGateResumer(p, bus, slog.Default())

	msg := inbound(t, events.InboundMessageOpened, execution.OrganizationID, events.MessageEngagementData{
		JourneyExecutionID: execution.ID,
		MessageID:          "msg-1",
	})

	require.NoError(t, resumer.HandleInbound(context.Background(), msg))
	p.ExecutionRepo.AssertNotCalled(t, "SaveStepExecution", mock.Anything, mock.Anything)
	bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestGateResumer_IgnoresNonJourneyMessages(t *testing.T) {
	p := mocks.NewMockPersistence()
	bus := &mocks.MockEventBus{}
	resumer := NewGateResumer(p, bus, slog.Default())

	msg := inbound(t, events.InboundMessageOpened, "org-1", events.MessageEngagementData{
		ContactID: "contact-1",
		MessageID: "msg-1",
	})

	require.NoError(t, resumer.HandleInbound(context.Background(), msg))
	p.ExecutionRepo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestGateResumer_UnknownExecutionDropped(t *testing.T) {
	p := mocks.NewMockPersistence()
	bus := &mocks.MockEventBus{}
	p.ExecutionRepo.On("GetByID", mock.Anything, "ghost").
		Return(nil, persistence.NewExecutionError("GetByID", "ghost", persistence.ErrExecutionNotFound))

	resumer := NewGateResumer(p, bus, slog.Default())

	msg := inbound(t, events.InboundMessageOpened, "org-1", events.MessageEngagementData{
		JourneyExecutionID: "ghost",
		MessageID:          "msg-1",
	})

	require.NoError(t, resumer.HandleInbound(context.Background(), msg))
	bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}
