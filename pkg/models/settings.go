package models

// ReEntryType controls whether a contact may run a journey more than once.
type ReEntryType string

const (
	ReEntryAlways   ReEntryType = "always"
	ReEntryOnce     ReEntryType = "once"
	ReEntryCooldown ReEntryType = "cooldown"
)

// ReEntryPolicy configures re-entry for a journey. CooldownDays applies only
// when Type is cooldown.
type ReEntryPolicy struct {
	Type         ReEntryType `json:"type"`
	CooldownDays int         `json:"cooldown_days,omitempty"`
}

// FrequencyCap limits how many executions a contact may start within a
// rolling window, independent of the re-entry policy.
type FrequencyCap struct {
	MaxCount   int `json:"max_count"`
	WindowDays int `json:"window_days"`
}

// JourneySettings are the entry-guard inputs configured per journey.
type JourneySettings struct {
	ReEntry      ReEntryPolicy `json:"re_entry"`
	FrequencyCap *FrequencyCap `json:"frequency_cap,omitempty"`
}
