package engine

import (
	"fmt"
	"log/slog"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"farmalert/internal/domain"
	"farmalert/internal/fieldpath"
)

// Evaluator checks single conditions against the evaluation data context.
// Params: logger for fail-closed operator warnings.
// Returns: stateless condition evaluation behavior.
type Evaluator struct {
	logger *slog.Logger
}

// NewEvaluator creates a condition evaluator.
// Params: logger (nil falls back to the default slog logger).
// Returns: initialized evaluator.
func NewEvaluator(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{logger: logger}
}

// Evaluate resolves the condition field and applies its operator.
// Missing intermediate keys never error; the resolved value is simply
// undefined. Unknown operators evaluate to false (fail-closed).
// Params: condition and data context.
// Returns: match outcome; error only for malformed operator input such as
// an invalid regex pattern.
func (e *Evaluator) Evaluate(condition domain.Condition, data map[string]any) (bool, error) {
	resolved, found := fieldpath.Resolve(data, condition.Field)

	switch condition.Operator {
	case domain.OperatorEq:
		return equalStrict(resolved, condition.Value), nil
	case domain.OperatorNeq:
		return !equalStrict(resolved, condition.Value), nil
	case domain.OperatorGt, domain.OperatorGte, domain.OperatorLt, domain.OperatorLte:
		return compareNumeric(condition.Operator, resolved, condition.Value), nil
	case domain.OperatorIncludes:
		return includesMatch(resolved, condition.Value), nil
	case domain.OperatorContains:
		return strings.Contains(fieldpath.Format(resolved), fieldpath.Format(condition.Value)), nil
	case domain.OperatorRegex:
		return regexMatch(resolved, condition.Value)
	case domain.OperatorBetween:
		return betweenMatch(resolved, condition.Value), nil
	case domain.OperatorExists:
		return found && resolved != nil, nil
	case domain.OperatorEmpty:
		return emptyMatch(resolved, found), nil
	default:
		e.logger.Warn("unknown condition operator", "operator", string(condition.Operator), "field", condition.Field)
		return false, nil
	}
}

// equalStrict compares values without cross-type coercion. Numeric types
// are normalized to float64 first so 3 and 3.0 compare equal.
// Params: resolved context value and condition value.
// Returns: strict equality outcome.
func equalStrict(left, right any) bool {
	leftNum, leftOK := numericValue(left)
	rightNum, rightOK := numericValue(right)
	if leftOK && rightOK {
		return leftNum == rightNum
	}
	if leftOK != rightOK {
		return false
	}
	return reflect.DeepEqual(left, right)
}

// compareNumeric applies one ordering operator with permissive coercion.
// Params: operator, resolved value, and condition value.
// Returns: false when either side does not coerce to a number.
func compareNumeric(operator domain.Operator, left, right any) bool {
	leftNum, leftOK := coerceNumber(left)
	rightNum, rightOK := coerceNumber(right)
	if !leftOK || !rightOK {
		return false
	}
	switch operator {
	case domain.OperatorGt:
		return leftNum > rightNum
	case domain.OperatorGte:
		return leftNum >= rightNum
	case domain.OperatorLt:
		return leftNum < rightNum
	case domain.OperatorLte:
		return leftNum <= rightNum
	default:
		return false
	}
}

// includesMatch tests sequence membership, or a case-insensitive
// substring when the resolved value is not a sequence.
// Params: resolved value and condition value.
// Returns: membership/substring outcome.
func includesMatch(resolved, value any) bool {
	if sequence, ok := resolved.([]any); ok {
		for _, element := range sequence {
			if equalStrict(element, value) {
				return true
			}
		}
		return false
	}
	haystack := strings.ToLower(fieldpath.Format(resolved))
	needle := strings.ToLower(fieldpath.Format(value))
	return strings.Contains(haystack, needle)
}

// regexMatch applies a case-insensitive pattern to the stringified value.
// Params: resolved value and pattern source.
// Returns: match outcome, or compile error for an invalid pattern.
func regexMatch(resolved, value any) (bool, error) {
	pattern, err := regexp.Compile("(?i)" + fieldpath.Format(value))
	if err != nil {
		return false, fmt.Errorf("compile condition regex: %w", err)
	}
	return pattern.MatchString(fieldpath.Format(resolved)), nil
}

// betweenMatch tests inclusive numeric range membership. A malformed
// range value coerces to no-match, never to an error.
// Params: resolved value and {min,max} condition value.
// Returns: range membership outcome.
func betweenMatch(resolved, value any) bool {
	bounds, ok := value.(map[string]any)
	if !ok {
		return false
	}
	number, numberOK := coerceNumber(resolved)
	min, minOK := coerceNumber(bounds["min"])
	max, maxOK := coerceNumber(bounds["max"])
	if !numberOK || !minOK || !maxOK {
		return false
	}
	return number >= min && number <= max
}

// emptyMatch tests falsy values and zero-length sequences.
// Params: resolved value and resolution flag.
// Returns: true for undefined, nil, false, zero, "", and empty sequences.
func emptyMatch(resolved any, found bool) bool {
	if !found || resolved == nil {
		return true
	}
	switch typed := resolved.(type) {
	case bool:
		return !typed
	case string:
		return typed == ""
	case []any:
		return len(typed) == 0
	default:
		if number, ok := numericValue(resolved); ok {
			return number == 0
		}
		return false
	}
}

// numericValue normalizes actual numeric types to float64.
// Params: candidate value.
// Returns: normalized number and true only for numeric types.
func numericValue(value any) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case uint:
		return float64(typed), true
	case uint64:
		return float64(typed), true
	default:
		return 0, false
	}
}

// coerceNumber applies the permissive numeric parse used by ordering
// operators: numeric types pass through, numeric strings parse, booleans
// map to 0/1, everything else is NaN (reported as not-ok).
// Params: candidate value.
// Returns: coerced number and coercion success flag.
func coerceNumber(value any) (float64, bool) {
	if number, ok := numericValue(value); ok {
		return number, true
	}
	switch typed := value.(type) {
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	case bool:
		if typed {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
