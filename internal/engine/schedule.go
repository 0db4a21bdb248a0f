package engine

import (
	"strconv"
	"strings"
	"time"

	"farmalert/internal/domain"
)

// Scheduler gates rule evaluation on trigger type and throttle window.
// Params: none; rules carry their own schedule and throttle state.
// Returns: per-tick eligibility decisions.
type Scheduler struct{}

// ShouldEvaluate reports whether a rule is eligible on this tick.
// Immediate rules are always eligible; scheduled rules only when the
// cron expression matches the current time.
// Params: rule and current evaluation time.
// Returns: eligibility flag.
func (Scheduler) ShouldEvaluate(rule domain.Rule, now time.Time) bool {
	if rule.Trigger == domain.TriggerScheduled {
		return CronMatches(rule.Schedule, now)
	}
	return true
}

// IsThrottled reports whether the rule's throttle window is still open.
// Throttle state persists across restarts because LastTriggered is
// serialized with the rule.
// Params: rule and current evaluation time.
// Returns: true when the rule must be skipped.
func (Scheduler) IsThrottled(rule domain.Rule, now time.Time) bool {
	if rule.ThrottleMs <= 0 || rule.LastTriggered == nil {
		return false
	}
	return now.Sub(*rule.LastTriggered) < rule.Throttle()
}

// CronMatches evaluates the five-field cron subset against a timestamp.
//
// Fields are "minute hour dayOfMonth month dayOfWeek". Each field is
// either "*" or a single integer. The month field is written 1-based by
// rule authors but compared against the 0-based calendar month, so "1"
// matches February; stored rules rely on this and it must not change
// without a migration. Ranges, lists, and steps are not supported: a
// field like "*/5" fails the integer parse and never matches.
// Params: schedule expression and current time.
// Returns: true when every field matches.
func CronMatches(expr string, now time.Time) bool {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return false
	}
	return cronFieldMatches(fields[0], now.Minute()) &&
		cronFieldMatches(fields[1], now.Hour()) &&
		cronFieldMatches(fields[2], now.Day()) &&
		cronFieldMatches(fields[3], int(now.Month())-1) &&
		cronFieldMatches(fields[4], int(now.Weekday()))
}

// cronFieldMatches tests one cron field against one time component.
// Params: field text and actual component value.
// Returns: true for "*" or an exact integer match.
func cronFieldMatches(field string, actual int) bool {
	if field == "*" {
		return true
	}
	value, err := strconv.Atoi(field)
	if err != nil {
		return false
	}
	return value == actual
}
