package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Per-type JSON schemas for step configs. Validated at the system boundary
// when a definition is accepted or published; transition code assumes the
// shapes already hold.
var stepConfigSchemas = map[StepType]map[string]any{
	StepTypeAction: {
		"type":     "object",
		"required": []any{"action"},
		"properties": map[string]any{
			"action": map[string]any{
				"type":     "object",
				"required": []any{"kind"},
				"properties": map[string]any{
					"kind":        map[string]any{"type": "string", "minLength": 1},
					"template_id": map[string]any{"type": "string"},
					"params":      map[string]any{"type": "object"},
					"wait_for": map[string]any{
						"type": "string",
						"enum": []any{"delivered", "opened", "clicked", "bounced"},
					},
				},
			},
		},
	},
	StepTypeDelay: {
		"type":     "object",
		"required": []any{"delay"},
		"properties": map[string]any{
			"delay": map[string]any{
				"type":     "object",
				"required": []any{"duration", "unit"},
				"properties": map[string]any{
					"duration": map[string]any{"type": "integer", "minimum": 0},
					"unit":     map[string]any{"type": "string"},
				},
			},
		},
	},
	StepTypeSplit: {
		"type": "object",
		"properties": map[string]any{
			"split": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"branches": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type":     "object",
							"required": []any{"label", "percentage"},
							"properties": map[string]any{
								"label":      map[string]any{"type": "string", "minLength": 1},
								"percentage": map[string]any{"type": "number", "minimum": 0},
							},
						},
					},
				},
			},
		},
	},
	StepTypeCondition: {
		"type":     "object",
		"required": []any{"condition"},
		"properties": map[string]any{
			"condition": map[string]any{
				"type":     "object",
				"required": []any{"field", "operator"},
				"properties": map[string]any{
					"field":    map[string]any{"type": "string", "minLength": 1},
					"operator": map[string]any{"type": "string", "minLength": 1},
				},
			},
		},
	},
}

// ValidateDefinition checks a step graph before it can be published:
// non-empty ids, connections referencing existing steps, and per-type config
// shapes. Unknown step types are accepted here; the executor treats them as
// no-ops at run time.
func ValidateDefinition(def *Definition) error {
	if def == nil {
		return errors.New("definition is required")
	}

	stepIDs := make(map[string]bool, len(def.Steps))

	for _, step := range def.Steps {
		if step.ID == "" {
			return errors.New("found step with empty ID")
		}

		if step.Type == "" {
			return fmt.Errorf("step %s has no type specified", step.ID)
		}

		if stepIDs[step.ID] {
			return fmt.Errorf("duplicate step ID: %s", step.ID)
		}

		stepIDs[step.ID] = true

		if err := validateStepConfig(step); err != nil {
			return err
		}
	}

	for _, conn := range def.Connections {
		if !stepIDs[conn.FromStepID] {
			return fmt.Errorf("connection references non-existent source step: %s", conn.FromStepID)
		}

		if !stepIDs[conn.ToStepID] {
			return fmt.Errorf("connection references non-existent target step: %s", conn.ToStepID)
		}
	}

	return nil
}

func validateStepConfig(step *Step) error {
	schema, exists := stepConfigSchemas[step.Type]
	if !exists {
		return nil
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	configLoader := gojsonschema.NewGoLoader(step.Config)

	result, err := gojsonschema.Validate(schemaLoader, configLoader)
	if err != nil {
		return fmt.Errorf("failed to validate config for step %s: %w", step.ID, err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, resultError := range result.Errors() {
			messages = append(messages, resultError.String())
		}

		return fmt.Errorf("invalid config for step %s: %s", step.ID, strings.Join(messages, "; "))
	}

	return nil
}
