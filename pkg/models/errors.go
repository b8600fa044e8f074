package models

import "fmt"

// InvalidTransitionError reports an illegal state-machine transition. It
// names the attempted operation and the status that rejected it, so callers
// and audit logs can see exactly what was refused.
type InvalidTransitionError struct {
	Entity string // "journey", "execution", "step_execution"
	Op     string // attempted transition, e.g. "complete"
	Status string // current status at the time of the call
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s %s: current status is %q", e.Op, e.Entity, e.Status)
}
