package fieldpath

import "testing"

func TestResolveNestedPath(t *testing.T) {
	t.Parallel()

	data := map[string]any{
		"animal": map[string]any{
			"vitals": map[string]any{"temp": 39.5},
		},
	}
	value, ok := Resolve(data, "animal.vitals.temp")
	if !ok {
		t.Fatalf("expected path to resolve")
	}
	if value != 39.5 {
		t.Fatalf("unexpected value: %v", value)
	}
}

func TestResolveMissingIntermediate(t *testing.T) {
	t.Parallel()

	data := map[string]any{"animal": map[string]any{"id": "a1"}}
	if _, ok := Resolve(data, "animal.vitals.temp"); ok {
		t.Fatalf("expected missing intermediate to short-circuit")
	}
	if _, ok := Resolve(data, "animal.id.deeper"); ok {
		t.Fatalf("expected scalar intermediate to short-circuit")
	}
}

func TestFormatNumbers(t *testing.T) {
	t.Parallel()

	if got := Format(float64(3)); got != "3" {
		t.Fatalf("expected compact float format, got %q", got)
	}
	if got := Format(2.5); got != "2.5" {
		t.Fatalf("unexpected float format: %q", got)
	}
	if got := Format(true); got != "true" {
		t.Fatalf("unexpected bool format: %q", got)
	}
	if got := Format([]any{"a", "b"}); got != `["a","b"]` {
		t.Fatalf("unexpected sequence format: %q", got)
	}
}
