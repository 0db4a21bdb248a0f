// Package templatefmt renders rule message templates. Placeholders use
// {dot.path} syntax resolved against the evaluation data context;
// unresolved placeholders are replaced with "?" instead of failing.
package templatefmt

import (
	"fmt"
	"regexp"
	"time"

	"farmalert/internal/fieldpath"
)

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z0-9_]+(?:\.[A-Za-z0-9_]+)*)\}`)

// Interpolate substitutes {field.path} placeholders from the data context.
// Params: template body and evaluation data context.
// Returns: rendered message; unresolved placeholders become "?".
func Interpolate(template string, data map[string]any) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		path := match[1 : len(match)-1]
		value, ok := fieldpath.Resolve(data, path)
		if !ok || value == nil {
			return "?"
		}
		return fieldpath.Format(value)
	})
}

// ReferencedPaths lists the distinct placeholder paths in a template.
// Params: template body.
// Returns: paths in first-appearance order.
func ReferencedPaths(template string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(template, -1)
	seen := make(map[string]struct{}, len(matches))
	paths := make([]string, 0, len(matches))
	for _, match := range matches {
		if _, dup := seen[match[1]]; dup {
			continue
		}
		seen[match[1]] = struct{}{}
		paths = append(paths, match[1])
	}
	return paths
}

// FormatDuration renders a duration in compact human form with one
// decimal of precision.
// Params: duration value.
// Returns: formatted duration string.
func FormatDuration(duration time.Duration) string {
	if duration < 0 {
		duration = -duration
	}
	seconds := duration.Seconds()
	switch {
	case seconds >= 3600:
		return fmt.Sprintf("%.1fh", seconds/3600)
	case seconds >= 60:
		return fmt.Sprintf("%.1fm", seconds/60)
	default:
		return fmt.Sprintf("%.1fs", seconds)
	}
}
