package engine

import (
	"log/slog"
	"testing"

	"farmalert/internal/domain"
)

func testEvaluator() *Evaluator {
	return NewEvaluator(slog.Default())
}

func mustEvaluate(t *testing.T, condition domain.Condition, data map[string]any) bool {
	t.Helper()
	result, err := testEvaluator().Evaluate(condition, data)
	if err != nil {
		t.Fatalf("unexpected evaluate error: %v", err)
	}
	return result
}

func TestEvaluateBetweenInclusive(t *testing.T) {
	t.Parallel()

	condition := domain.Condition{
		Field:    "item.quantity",
		Operator: domain.OperatorBetween,
		Value:    map[string]any{"min": float64(10), "max": float64(20)},
	}
	for _, tc := range []struct {
		quantity float64
		want     bool
	}{
		{10, true},
		{15, true},
		{20, true},
		{9, false},
		{21, false},
	} {
		data := map[string]any{"item": map[string]any{"quantity": tc.quantity}}
		if got := mustEvaluate(t, condition, data); got != tc.want {
			t.Fatalf("between(%v) = %v, want %v", tc.quantity, got, tc.want)
		}
	}
}

func TestEvaluateIncludesSequenceMembership(t *testing.T) {
	t.Parallel()

	data := map[string]any{"animal": map[string]any{"tags": []any{"a", "b"}}}
	condition := domain.Condition{Field: "animal.tags", Operator: domain.OperatorIncludes, Value: "b"}
	if !mustEvaluate(t, condition, data) {
		t.Fatalf("expected sequence membership match")
	}
	condition.Value = "c"
	if mustEvaluate(t, condition, data) {
		t.Fatalf("expected sequence membership miss")
	}
}

func TestIncludesCaseInsensitiveContainsCaseSensitive(t *testing.T) {
	t.Parallel()

	data := map[string]any{"note": map[string]any{"text": "Hello"}}

	includes := domain.Condition{Field: "note.text", Operator: domain.OperatorIncludes, Value: "hello"}
	if !mustEvaluate(t, includes, data) {
		t.Fatalf("includes must be case-insensitive on strings")
	}

	contains := domain.Condition{Field: "note.text", Operator: domain.OperatorContains, Value: "hello"}
	if mustEvaluate(t, contains, data) {
		t.Fatalf("contains must stay case-sensitive")
	}
	contains.Value = "Hell"
	if !mustEvaluate(t, contains, data) {
		t.Fatalf("expected case-sensitive substring match")
	}
}

func TestEvaluateNumericComparisonCoercion(t *testing.T) {
	t.Parallel()

	data := map[string]any{"item": map[string]any{"quantity": "3", "name": "Feed"}}

	lte := domain.Condition{Field: "item.quantity", Operator: domain.OperatorLte, Value: float64(5)}
	if !mustEvaluate(t, lte, data) {
		t.Fatalf("numeric string must coerce for ordering operators")
	}

	gt := domain.Condition{Field: "item.name", Operator: domain.OperatorGt, Value: float64(5)}
	if mustEvaluate(t, gt, data) {
		t.Fatalf("non-numeric coercion must compare false")
	}
}

func TestEvaluateEqStrict(t *testing.T) {
	t.Parallel()

	data := map[string]any{"item": map[string]any{"quantity": float64(3)}}

	eq := domain.Condition{Field: "item.quantity", Operator: domain.OperatorEq, Value: float64(3)}
	if !mustEvaluate(t, eq, data) {
		t.Fatalf("expected numeric equality")
	}

	eqString := domain.Condition{Field: "item.quantity", Operator: domain.OperatorEq, Value: "3"}
	if mustEvaluate(t, eqString, data) {
		t.Fatalf("eq must not coerce across types")
	}

	neq := domain.Condition{Field: "item.quantity", Operator: domain.OperatorNeq, Value: "3"}
	if !mustEvaluate(t, neq, data) {
		t.Fatalf("expected strict inequality")
	}
}

func TestEvaluateRegexCaseInsensitive(t *testing.T) {
	t.Parallel()

	data := map[string]any{"weather": map[string]any{"summary": "Heavy RAIN expected"}}
	condition := domain.Condition{Field: "weather.summary", Operator: domain.OperatorRegex, Value: "rain"}
	if !mustEvaluate(t, condition, data) {
		t.Fatalf("expected case-insensitive regex match")
	}
}

func TestEvaluateRegexInvalidPatternErrors(t *testing.T) {
	t.Parallel()

	data := map[string]any{"weather": map[string]any{"summary": "clear"}}
	condition := domain.Condition{Field: "weather.summary", Operator: domain.OperatorRegex, Value: "("}
	if _, err := testEvaluator().Evaluate(condition, data); err == nil {
		t.Fatalf("expected compile error for invalid pattern")
	}
}

func TestEvaluateExistsAndEmpty(t *testing.T) {
	t.Parallel()

	data := map[string]any{
		"animal": map[string]any{
			"name": "Bessie",
			"tags": []any{},
			"age":  float64(0),
		},
	}

	exists := domain.Condition{Field: "animal.name", Operator: domain.OperatorExists}
	if !mustEvaluate(t, exists, data) {
		t.Fatalf("expected exists on present field")
	}
	exists.Field = "animal.owner"
	if mustEvaluate(t, exists, data) {
		t.Fatalf("expected exists false on missing field")
	}

	for _, field := range []string{"animal.tags", "animal.age", "animal.owner"} {
		empty := domain.Condition{Field: field, Operator: domain.OperatorEmpty}
		if !mustEvaluate(t, empty, data) {
			t.Fatalf("expected empty true for %s", field)
		}
	}
	notEmpty := domain.Condition{Field: "animal.name", Operator: domain.OperatorEmpty}
	if mustEvaluate(t, notEmpty, data) {
		t.Fatalf("expected empty false for non-empty string")
	}
}

func TestEvaluateMissingIntermediateNeverErrors(t *testing.T) {
	t.Parallel()

	condition := domain.Condition{Field: "a.b.c", Operator: domain.OperatorEq, Value: float64(1)}
	result, err := testEvaluator().Evaluate(condition, map[string]any{"a": map[string]any{}})
	if err != nil {
		t.Fatalf("missing data must not error: %v", err)
	}
	if result {
		t.Fatalf("missing data must not match eq")
	}
}

func TestEvaluateUnknownOperatorFailsClosed(t *testing.T) {
	t.Parallel()

	data := map[string]any{"item": map[string]any{"quantity": float64(3)}}
	condition := domain.Condition{Field: "item.quantity", Operator: "approximately", Value: float64(3)}
	result, err := testEvaluator().Evaluate(condition, data)
	if err != nil {
		t.Fatalf("unknown operator must not error: %v", err)
	}
	if result {
		t.Fatalf("unknown operator must evaluate to false")
	}
}
