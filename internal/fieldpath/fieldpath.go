// Package fieldpath resolves dot-separated paths inside the evaluation
// data context supplied by the host application.
package fieldpath

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Resolve walks a nested map by dot-separated path segments.
// Params: data context and path like "animal.weight".
// Returns: resolved value and true, or nil and false when any
// intermediate segment is missing or not a map.
func Resolve(data map[string]any, path string) (any, bool) {
	if data == nil || strings.TrimSpace(path) == "" {
		return nil, false
	}

	var current any = data
	for _, segment := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		value, exists := node[segment]
		if !exists {
			return nil, false
		}
		current = value
	}
	return current, true
}

// Format renders one resolved value for message interpolation and
// substring operators.
// Params: resolved context value.
// Returns: compact string form; numbers without trailing zeros.
func Format(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case bool:
		return strconv.FormatBool(typed)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32)
	case int:
		return strconv.Itoa(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	case json.Number:
		return typed.String()
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}
