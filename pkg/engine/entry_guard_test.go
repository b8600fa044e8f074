package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dukex/drip/pkg/models"
)

func fixedGuard(now time.Time) *EntryGuard {
	return &EntryGuard{now: func() time.Time { return now }}
}

func completedAt(completed time.Time) models.ExecutionSummary {
	return models.ExecutionSummary{
		Status:      models.ExecutionStatusCompleted,
		StartedAt:   completed.Add(-time.Hour),
		CompletedAt: &completed,
	}
}

func TestEntryGuard_AllowsFreshContact(t *testing.T) {
	guard := NewEntryGuard()
	settings := models.JourneySettings{ReEntry: models.ReEntryPolicy{Type: models.ReEntryAlways}}

	decision := guard.Evaluate(settings, false, nil)
	assert.True(t, decision.Allowed)
	assert.Empty(t, decision.Reason)
}

func TestEntryGuard_ActiveExecutionBlocks(t *testing.T) {
	guard := NewEntryGuard()
	settings := models.JourneySettings{ReEntry: models.ReEntryPolicy{Type: models.ReEntryAlways}}

	decision := guard.Evaluate(settings, true, nil)
	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reason, "active execution")
}

func TestEntryGuard_ActiveExecutionOutranksOtherGuards(t *testing.T) {
	now := time.Now().UTC()
	guard := fixedGuard(now)
	settings := models.JourneySettings{
		ReEntry:      models.ReEntryPolicy{Type: models.ReEntryOnce},
		FrequencyCap: &models.FrequencyCap{MaxCount: 1, WindowDays: 30},
	}
	history := []models.ExecutionSummary{completedAt(now.Add(-time.Hour))}

	// All three guards would block; the active-execution reason wins.
	decision := guard.Evaluate(settings, true, history)
	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reason, "active execution")
}

func TestEntryGuard_OnceBlocksAnyHistory(t *testing.T) {
	now := time.Now().UTC()
	guard := fixedGuard(now)
	settings := models.JourneySettings{ReEntry: models.ReEntryPolicy{Type: models.ReEntryOnce}}

	decision := guard.Evaluate(settings, false, []models.ExecutionSummary{completedAt(now.AddDate(-1, 0, 0))})
	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reason, "once only")
}

func TestEntryGuard_OnceAllowsFirstEntry(t *testing.T) {
	guard := NewEntryGuard()
	settings := models.JourneySettings{ReEntry: models.ReEntryPolicy{Type: models.ReEntryOnce}}

	decision := guard.Evaluate(settings, false, nil)
	assert.True(t, decision.Allowed)
}

func TestEntryGuard_CooldownBlocksRecentCompletion(t *testing.T) {
	now := time.Now().UTC()
	guard := fixedGuard(now)
	settings := models.JourneySettings{ReEntry: models.ReEntryPolicy{Type: models.ReEntryCooldown, CooldownDays: 7}}

	decision := guard.Evaluate(settings, false, []models.ExecutionSummary{completedAt(now.AddDate(0, 0, -3))})
	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reason, "7-day cooldown")
}

func TestEntryGuard_CooldownAllowsAfterWindow(t *testing.T) {
	now := time.Now().UTC()
	guard := fixedGuard(now)
	settings := models.JourneySettings{ReEntry: models.ReEntryPolicy{Type: models.ReEntryCooldown, CooldownDays: 7}}

	decision := guard.Evaluate(settings, false, []models.ExecutionSummary{completedAt(now.AddDate(0, 0, -8))})
	assert.True(t, decision.Allowed)
}

func TestEntryGuard_CooldownBoundaryExactlyServedAllows(t *testing.T) {
	now := time.Now().UTC()
	guard := fixedGuard(now)
	settings := models.JourneySettings{ReEntry: models.ReEntryPolicy{Type: models.ReEntryCooldown, CooldownDays: 7}}

	boundary := now.Add(-7 * 24 * time.Hour)
	decision := guard.Evaluate(settings, false, []models.ExecutionSummary{completedAt(boundary)})
	assert.True(t, decision.Allowed)
}

func TestEntryGuard_CooldownIgnoresNeverCompletedRuns(t *testing.T) {
	now := time.Now().UTC()
	guard := fixedGuard(now)
	settings := models.JourneySettings{ReEntry: models.ReEntryPolicy{Type: models.ReEntryCooldown, CooldownDays: 7}}

	history := []models.ExecutionSummary{{
		Status:    models.ExecutionStatusCanceled,
		StartedAt: now.Add(-time.Hour),
	}}

	decision := guard.Evaluate(settings, false, history)
	assert.True(t, decision.Allowed)
}

func TestEntryGuard_FrequencyCapBlocks(t *testing.T) {
	now := time.Now().UTC()
	guard := fixedGuard(now)
	settings := models.JourneySettings{
		ReEntry:      models.ReEntryPolicy{Type: models.ReEntryAlways},
		FrequencyCap: &models.FrequencyCap{MaxCount: 2, WindowDays: 30},
	}

	history := []models.ExecutionSummary{
		completedAt(now.AddDate(0, 0, -5)),
		completedAt(now.AddDate(0, 0, -10)),
	}

	decision := guard.Evaluate(settings, false, history)
	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reason, "Frequency cap reached")
}

func TestEntryGuard_FrequencyCapIgnoresEntriesOutsideWindow(t *testing.T) {
	now := time.Now().UTC()
	guard := fixedGuard(now)
	settings := models.JourneySettings{
		ReEntry:      models.ReEntryPolicy{Type: models.ReEntryAlways},
		FrequencyCap: &models.FrequencyCap{MaxCount: 2, WindowDays: 30},
	}

	history := []models.ExecutionSummary{
		completedAt(now.AddDate(0, 0, -5)),
		completedAt(now.AddDate(0, 0, -45)),
		completedAt(now.AddDate(0, 0, -60)),
	}

	decision := guard.Evaluate(settings, false, history)
	assert.True(t, decision.Allowed)
}

func TestEntryGuard_ReEntryCheckedBeforeFrequencyCap(t *testing.T) {
	now := time.Now().UTC()
	guard := fixedGuard(now)
	settings := models.JourneySettings{
		ReEntry:      models.ReEntryPolicy{Type: models.ReEntryOnce},
		FrequencyCap: &models.FrequencyCap{MaxCount: 1, WindowDays: 30},
	}

	decision := guard.Evaluate(settings, false, []models.ExecutionSummary{completedAt(now.AddDate(0, 0, -2))})
	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reason, "once only")
}
