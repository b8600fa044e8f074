package models

import (
	"time"

	"github.com/google/uuid"
)

// StepType identifies the behavior of a step in the journey graph.
type StepType string

const (
	StepTypeTrigger   StepType = "trigger"
	StepTypeAction    StepType = "action"
	StepTypeDelay     StepType = "delay"
	StepTypeSplit     StepType = "split_random"
	StepTypeCondition StepType = "condition"
	StepTypeExit      StepType = "exit"
)

// Condition branch labels.
const (
	BranchYes = "yes"
	BranchNo  = "no"
)

// Step is a node in a journey's step graph.
type Step struct {
	ID        string     `json:"id"   validate:"required"`
	Type      StepType   `json:"type" validate:"required"`
	Config    StepConfig `json:"config"`
	PositionX int        `json:"position_x"`
	PositionY int        `json:"position_y"`
}

// Connection is a labeled edge between two steps. The label distinguishes
// branches ("yes"/"no", or a split branch name) and is empty for plain edges.
type Connection struct {
	FromStepID string `json:"from_step_id" validate:"required"`
	ToStepID   string `json:"to_step_id"   validate:"required"`
	Label      string `json:"label,omitempty"`
}

// StepConfig is the per-type configuration variant. Exactly one of the
// pointers is set, matching the step's type.
type StepConfig struct {
	Action    *ActionConfig    `json:"action,omitempty"`
	Delay     *DelayConfig     `json:"delay,omitempty"`
	Split     *SplitConfig     `json:"split,omitempty"`
	Condition *ConditionConfig `json:"condition,omitempty"`
}

// ActionConfig configures an action step. When WaitFor is set the step acts
// as a gate: the execution parks on it until a delivery event matching the
// gate condition arrives.
type ActionConfig struct {
	Kind       string         `json:"kind" validate:"required"`
	TemplateID string         `json:"template_id,omitempty"`
	Params     map[string]any `json:"params,omitempty"`
	WaitFor    GateCondition  `json:"wait_for,omitempty"`
}

// GateCondition names the delivery outcome a gated step waits on.
type GateCondition string

const (
	GateDelivered GateCondition = "delivered"
	GateOpened    GateCondition = "opened"
	GateClicked   GateCondition = "clicked"
	GateBounced   GateCondition = "bounced"
)

// DelayConfig configures a delay step as duration x unit.
type DelayConfig struct {
	Duration int    `json:"duration"`
	Unit     string `json:"unit"`
}

// Interval converts the configured duration to a time.Duration. An unmapped
// unit contributes zero.
func (c DelayConfig) Interval() time.Duration {
	switch c.Unit {
	case "minutes":
		return time.Duration(c.Duration) * time.Minute
	case "hours":
		return time.Duration(c.Duration) * time.Hour
	case "days":
		return time.Duration(c.Duration) * 24 * time.Hour
	default:
		return 0
	}
}

// SplitConfig configures a weighted-random split step.
type SplitConfig struct {
	Branches []SplitBranch `json:"branches"`
}

// SplitBranch is one labeled branch of a random split. Percentages need not
// sum to 100; only relative weight matters.
type SplitBranch struct {
	Label      string  `json:"label"`
	Percentage float64 `json:"percentage"`
}

// ConditionConfig configures a condition step evaluated against the
// contact data snapshot.
type ConditionConfig struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// Definition is the step graph of a journey: steps plus labeled connections.
type Definition struct {
	Steps       []*Step       `json:"steps"`
	Connections []*Connection `json:"connections"`
}

// StepByID returns the step with the given id, or nil.
func (d *Definition) StepByID(stepID string) *Step {
	for _, step := range d.Steps {
		if step.ID == stepID {
			return step
		}
	}

	return nil
}

// OutgoingConnections returns all connections leaving the given step.
func (d *Definition) OutgoingConnections(stepID string) []*Connection {
	connections := make([]*Connection, 0)

	for _, conn := range d.Connections {
		if conn.FromStepID == stepID {
			connections = append(connections, conn)
		}
	}

	return connections
}

// TriggerSteps returns the entry-marker steps of the graph.
func (d *Definition) TriggerSteps() []*Step {
	steps := make([]*Step, 0)

	for _, step := range d.Steps {
		if step.Type == StepTypeTrigger {
			steps = append(steps, step)
		}
	}

	return steps
}

// DeepCopy clones the definition so a version snapshot is unaffected by
// later draft edits.
func (d *Definition) DeepCopy() *Definition {
	if d == nil {
		return nil
	}

	clone := &Definition{
		Steps:       make([]*Step, len(d.Steps)),
		Connections: make([]*Connection, len(d.Connections)),
	}

	for i, step := range d.Steps {
		stepCopy := *step
		stepCopy.Config = step.Config.deepCopy()
		clone.Steps[i] = &stepCopy
	}

	for i, conn := range d.Connections {
		connCopy := *conn
		clone.Connections[i] = &connCopy
	}

	return clone
}

func (c StepConfig) deepCopy() StepConfig {
	clone := StepConfig{}

	if c.Action != nil {
		action := *c.Action
		action.Params = copyMap(c.Action.Params)
		clone.Action = &action
	}

	if c.Delay != nil {
		delay := *c.Delay
		clone.Delay = &delay
	}

	if c.Split != nil {
		split := SplitConfig{Branches: make([]SplitBranch, len(c.Split.Branches))}
		copy(split.Branches, c.Split.Branches)
		clone.Split = &split
	}

	if c.Condition != nil {
		condition := *c.Condition
		clone.Condition = &condition
	}

	return clone
}

func copyMap(original map[string]any) map[string]any {
	if original == nil {
		return nil
	}

	result := make(map[string]any, len(original))
	for k, v := range original {
		result[k] = v
	}

	return result
}

// JourneyVersion is an immutable snapshot of a journey's step graph, created
// on publish. Running executions pin to one version so in-flight runs are
// unaffected by later edits. Never mutated after creation.
type JourneyVersion struct {
	ID             string     `json:"id"`
	JourneyID      string     `json:"journey_id"      validate:"required"`
	OrganizationID string     `json:"organization_id" validate:"required"`
	VersionNumber  int        `json:"version_number"  validate:"required,min=1"`
	Definition     Definition `json:"definition"`
	PublishedAt    time.Time  `json:"published_at"`
	CreatedAt      time.Time  `json:"created_at"`
}

// NewJourneyVersion snapshots the journey's draft definition under the given
// version number. Version numbers are assigned by the persistence layer as
// max+1 per journey.
func NewJourneyVersion(journey *Journey, versionNumber int) *JourneyVersion {
	now := time.Now().UTC()

	return &JourneyVersion{
		ID:             uuid.New().String(),
		JourneyID:      journey.ID,
		OrganizationID: journey.OrganizationID,
		VersionNumber:  versionNumber,
		Definition:     *journey.Definition.DeepCopy(),
		PublishedAt:    now,
		CreatedAt:      now,
	}
}

// Validate checks the version's structural invariants.
func (v *JourneyVersion) Validate() error {
	return validate.Struct(v)
}
