package engine

import (
	"fmt"
	"time"

	"github.com/dukex/drip/pkg/models"
)

// EntryDecision is the outcome of evaluating the entry guards for a contact.
// When Allowed is false, Reason explains which guard blocked entry.
type EntryDecision struct {
	Allowed bool
	Reason  string
}

// EntryGuard decides whether a contact may start a new execution of a
// journey, based on the contact's execution history and the journey's
// re-entry and frequency settings.
//
// Guards are checked in a fixed order: an existing active execution blocks
// first, then the re-entry policy, then the frequency cap.
type EntryGuard struct {
	now func() time.Time
}

func NewEntryGuard() *EntryGuard {
	return &EntryGuard{now: func() time.Time { return time.Now().UTC() }}
}

// Evaluate applies the journey's entry guards against the contact's history.
// The history must be ordered most recent first; hasActive reports whether
// the contact currently has an active execution in this journey.
func (g *EntryGuard) Evaluate(settings models.JourneySettings, hasActive bool, history []models.ExecutionSummary) EntryDecision {
	if hasActive {
		return EntryDecision{Allowed: false, Reason: "contact already has an active execution in this journey"}
	}

	if decision := g.checkReEntry(settings.ReEntry, history); !decision.Allowed {
		return decision
	}

	if decision := g.checkFrequencyCap(settings.FrequencyCap, history); !decision.Allowed {
		return decision
	}

	return EntryDecision{Allowed: true}
}

func (g *EntryGuard) checkReEntry(policy models.ReEntryPolicy, history []models.ExecutionSummary) EntryDecision {
	switch policy.Type {
	case models.ReEntryOnce:
		if len(history) > 0 {
			return EntryDecision{Allowed: false, Reason: "journey allows entry once only"}
		}
	case models.ReEntryCooldown:
		cooldown := time.Duration(policy.CooldownDays) * 24 * time.Hour
		cutoff := g.now().Add(-cooldown)

		for _, summary := range history {
			if summary.CompletedAt == nil {
				continue
			}

			// A completion exactly at the boundary has served the full
			// cooldown and does not block.
			if summary.CompletedAt.After(cutoff) {
				return EntryDecision{
					Allowed: false,
					Reason:  fmt.Sprintf("contact is within the %d-day cooldown window", policy.CooldownDays),
				}
			}
		}
	case models.ReEntryAlways:
	}

	return EntryDecision{Allowed: true}
}

func (g *EntryGuard) checkFrequencyCap(frequencyCap *models.FrequencyCap, history []models.ExecutionSummary) EntryDecision {
	if frequencyCap == nil || frequencyCap.MaxCount <= 0 {
		return EntryDecision{Allowed: true}
	}

	window := time.Duration(frequencyCap.WindowDays) * 24 * time.Hour
	cutoff := g.now().Add(-window)

	count := 0

	for _, summary := range history {
		if !summary.StartedAt.Before(cutoff) {
			count++
		}
	}

	if count >= frequencyCap.MaxCount {
		return EntryDecision{
			Allowed: false,
			Reason:  fmt.Sprintf("Frequency cap reached: %d entries in %d days", frequencyCap.MaxCount, frequencyCap.WindowDays),
		}
	}

	return EntryDecision{Allowed: true}
}
