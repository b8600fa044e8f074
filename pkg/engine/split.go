package engine

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/dukex/drip/pkg/models"
)

// ErrNoBranches is returned when a random split has no branches configured.
var ErrNoBranches = errors.New("split has no branches configured")

// SplitEvaluator picks branches for split and condition steps. The random
// draw is injectable so tests can pin outcomes.
type SplitEvaluator struct {
	randFloat func() float64
}

func NewSplitEvaluator() *SplitEvaluator {
	return &SplitEvaluator{randFloat: rand.Float64}
}

// EvaluateRandomSplit draws a branch label weighted by branch percentages.
// Percentages need not sum to 100; only relative weight matters. The last
// branch absorbs any floating point remainder.
func (s *SplitEvaluator) EvaluateRandomSplit(config *models.SplitConfig) (string, error) {
	if config == nil || len(config.Branches) == 0 {
		return "", ErrNoBranches
	}

	total := 0.0
	for _, branch := range config.Branches {
		total += branch.Percentage
	}

	if total <= 0 {
		return "", fmt.Errorf("split branch weights sum to %v", total)
	}

	draw := s.randFloat() * total

	cumulative := 0.0
	for _, branch := range config.Branches {
		cumulative += branch.Percentage
		if draw < cumulative {
			return branch.Label, nil
		}
	}

	return config.Branches[len(config.Branches)-1].Label, nil
}

// EvaluateCondition evaluates a condition against the contact snapshot and
// returns the matched branch label ("yes"/"no"). Type mismatches fail closed
// to "no". A missing field only matches is_not_set; every other operator
// treats it as a non-match.
func (s *SplitEvaluator) EvaluateCondition(config *models.ConditionConfig, contactData map[string]any) string {
	if config == nil {
		return models.BranchNo
	}

	value, found := lookupField(contactData, config.Field)

	if conditionMatches(config.Operator, value, found, config.Value) {
		return models.BranchYes
	}

	return models.BranchNo
}

// lookupField resolves a dot path ("profile.plan") in the snapshot.
func lookupField(data map[string]any, field string) (any, bool) {
	if field == "" {
		return nil, false
	}

	parts := strings.Split(field, ".")
	current := any(data)

	for _, part := range parts {
		asMap, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = asMap[part]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// conditionMatches dispatches on the operator. The set-ness operators see
// whether the field resolved at all; the rest treat a missing field as a
// non-match.
func conditionMatches(operator string, actual any, found bool, expected any) bool {
	switch operator {
	case "is_set":
		return found && actual != nil
	case "is_not_set":
		return !found || actual == nil
	}

	if !found {
		return false
	}

	switch operator {
	case "eq":
		return compareNumbers(actual, expected, func(a, b float64) bool { return a == b })
	case "neq":
		return compareNumbers(actual, expected, func(a, b float64) bool { return a != b })
	case "gt":
		return compareNumbers(actual, expected, func(a, b float64) bool { return a > b })
	case "gte":
		return compareNumbers(actual, expected, func(a, b float64) bool { return a >= b })
	case "lt":
		return compareNumbers(actual, expected, func(a, b float64) bool { return a < b })
	case "lte":
		return compareNumbers(actual, expected, func(a, b float64) bool { return a <= b })
	case "contains":
		return compareStrings(actual, expected, strings.Contains)
	case "not_contains":
		actualStr, actualOK := actual.(string)
		expectedStr, expectedOK := expected.(string)

		return actualOK && expectedOK && !strings.Contains(actualStr, expectedStr)
	case "starts_with":
		return compareStrings(actual, expected, strings.HasPrefix)
	case "ends_with":
		return compareStrings(actual, expected, strings.HasSuffix)
	case "in":
		return valueInList(actual, expected)
	case "not_in":
		if _, ok := expected.([]any); !ok {
			return false
		}

		return !valueInList(actual, expected)
	default:
		return false
	}
}

// compareNumbers applies cmp when both operands are numbers. Any non-number
// operand fails closed, strings are never coerced.
func compareNumbers(actual, expected any, cmp func(a, b float64) bool) bool {
	actualNum, actualOK := toFloat(actual)
	expectedNum, expectedOK := toFloat(expected)

	return actualOK && expectedOK && cmp(actualNum, expectedNum)
}

func compareStrings(actual, expected any, cmp func(s, substr string) bool) bool {
	actualStr, actualOK := actual.(string)
	expectedStr, expectedOK := expected.(string)

	return actualOK && expectedOK && cmp(actualStr, expectedStr)
}

func valueInList(actual, expected any) bool {
	list, ok := expected.([]any)
	if !ok {
		return false
	}

	for _, item := range list {
		if fmt.Sprintf("%v", actual) == fmt.Sprintf("%v", item) {
			return true
		}
	}

	return false
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
