package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func publishableJourney(t *testing.T) *Journey {
	t.Helper()

	journey, err := NewJourney("org-1", "Welcome Series", "onboarding drip", "user-1")
	require.NoError(t, err)

	journey.Triggers = []*TriggerConfig{{ID: "t-1", Type: TriggerTypeEvent, EventType: "contact.created"}}
	journey.Definition = &Definition{
		Steps: []*Step{
			{ID: "start", Type: StepTypeTrigger},
			{ID: "done", Type: StepTypeExit},
		},
		Connections: []*Connection{{FromStepID: "start", ToStepID: "done"}},
	}

	return journey
}

func TestNewJourney_StartsAsDraft(t *testing.T) {
	journey, err := NewJourney("org-1", "Welcome Series", "", "user-1")
	require.NoError(t, err)

	assert.Equal(t, JourneyStatusDraft, journey.Status)
	assert.Equal(t, ReEntryAlways, journey.Settings.ReEntry.Type)
}

func TestNewJourney_RequiresName(t *testing.T) {
	_, err := NewJourney("org-1", "", "", "user-1")
	assert.Error(t, err)
}

func TestNewJourney_RequiresOrganization(t *testing.T) {
	_, err := NewJourney("", "Welcome Series", "", "user-1")
	assert.Error(t, err)
}

func TestJourney_Update_NilPointersLeaveFieldsUntouched(t *testing.T) {
	journey := publishableJourney(t)

	err := journey.Update(nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "Welcome Series", journey.Name)
	assert.Equal(t, "onboarding drip", journey.Description)
}

func TestJourney_Update_RejectsEmptyName(t *testing.T) {
	journey := publishableJourney(t)

	empty := ""
	err := journey.Update(&empty, nil)
	assert.Error(t, err)
	assert.Equal(t, "Welcome Series", journey.Name)
}

func TestJourney_Publish(t *testing.T) {
	journey := publishableJourney(t)

	err := journey.Publish()
	require.NoError(t, err)
	assert.Equal(t, JourneyStatusActive, journey.Status)
}

func TestJourney_Publish_RequiresTrigger(t *testing.T) {
	journey := publishableJourney(t)
	journey.Triggers = nil

	err := journey.Publish()
	assert.Error(t, err)
	assert.Equal(t, JourneyStatusDraft, journey.Status)
}

func TestJourney_Publish_RequiresSteps(t *testing.T) {
	journey := publishableJourney(t)
	journey.Definition = &Definition{}

	err := journey.Publish()
	assert.Error(t, err)
}

func TestJourney_Publish_OnlyFromDraft(t *testing.T) {
	journey := publishableJourney(t)
	require.NoError(t, journey.Publish())

	err := journey.Publish()

	var transitionErr *InvalidTransitionError

	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, "publish", transitionErr.Op)
}

func TestJourney_PauseAndResume(t *testing.T) {
	journey := publishableJourney(t)
	require.NoError(t, journey.Publish())

	require.NoError(t, journey.Pause())
	assert.Equal(t, JourneyStatusPaused, journey.Status)

	require.NoError(t, journey.Resume())
	assert.Equal(t, JourneyStatusActive, journey.Status)
}

func TestJourney_Pause_OnlyFromActive(t *testing.T) {
	journey := publishableJourney(t)

	err := journey.Pause()
	assert.Error(t, err)
}

func TestJourney_Archive_FromActiveOrPaused(t *testing.T) {
	active := publishableJourney(t)
	require.NoError(t, active.Publish())
	require.NoError(t, active.Archive())
	assert.Equal(t, JourneyStatusArchived, active.Status)

	paused := publishableJourney(t)
	require.NoError(t, paused.Publish())
	require.NoError(t, paused.Pause())
	require.NoError(t, paused.Archive())
	assert.Equal(t, JourneyStatusArchived, paused.Status)
}

func TestJourney_Archive_IsTerminal(t *testing.T) {
	journey := publishableJourney(t)
	require.NoError(t, journey.Publish())
	require.NoError(t, journey.Archive())

	assert.Error(t, journey.Resume())
	assert.Error(t, journey.Pause())
	assert.Error(t, journey.Archive())
}
