package domain

import (
	"fmt"
	"strings"
	"time"
)

// DefaultThrottleMs is the minimum gap between triggers of one rule
// when the author does not set an explicit throttle (one hour).
const DefaultThrottleMs = 3_600_000

// TriggerType selects when a rule becomes eligible for evaluation.
// Params: constants "immediate" or "scheduled".
// Returns: normalized trigger kind used by the scheduler.
type TriggerType string

const (
	// TriggerImmediate marks rules eligible on every evaluation tick.
	TriggerImmediate TriggerType = "immediate"
	// TriggerScheduled marks rules gated by a cron-subset schedule.
	TriggerScheduled TriggerType = "scheduled"
)

// Priority ranks alerts and notifications for the host UI.
// Params: constants low/medium/high/critical.
// Returns: ordered severity value.
type Priority string

const (
	// PriorityLow marks informational alerts.
	PriorityLow Priority = "low"
	// PriorityMedium marks default-severity alerts.
	PriorityMedium Priority = "medium"
	// PriorityHigh marks alerts that need prompt attention.
	PriorityHigh Priority = "high"
	// PriorityCritical marks alerts that must interrupt the user.
	PriorityCritical Priority = "critical"
)

// Category groups rules by the domain area they watch.
// Params: free enum over farm domain areas.
// Returns: category tag carried onto produced alerts.
type Category string

const (
	// CategoryHealth covers animal health rules.
	CategoryHealth Category = "health"
	// CategoryBreeding covers breeding cycle rules.
	CategoryBreeding Category = "breeding"
	// CategoryFeeding covers feeding schedule rules.
	CategoryFeeding Category = "feeding"
	// CategoryInventory covers stock level rules.
	CategoryInventory Category = "inventory"
	// CategoryFinancial covers finance threshold rules.
	CategoryFinancial Category = "financial"
	// CategoryMaintenance covers equipment maintenance rules.
	CategoryMaintenance Category = "maintenance"
	// CategoryWeather covers weather condition rules.
	CategoryWeather Category = "weather"
	// CategoryCustom covers user-defined rules outside fixed areas.
	CategoryCustom Category = "custom"
)

// Channel identifies one alert delivery transport.
// Params: constants app/email/sms/push/webhook.
// Returns: normalized channel key for the dispatcher.
type Channel string

const (
	// ChannelApp delivers into the in-app notification log (always durable).
	ChannelApp Channel = "app"
	// ChannelEmail delivers via the email stub.
	ChannelEmail Channel = "email"
	// ChannelSMS delivers via the SMS stub.
	ChannelSMS Channel = "sms"
	// ChannelPush delivers via the push transport.
	ChannelPush Channel = "push"
	// ChannelWebhook delivers via HTTP webhook.
	ChannelWebhook Channel = "webhook"
)

// Operator is one condition comparison kind.
// Params: closed operator set; unknown values evaluate to false.
// Returns: operator tag stored on conditions.
type Operator string

const (
	// OperatorEq tests strict equality.
	OperatorEq Operator = "eq"
	// OperatorNeq tests strict inequality.
	OperatorNeq Operator = "neq"
	// OperatorGt tests numeric greater-than.
	OperatorGt Operator = "gt"
	// OperatorGte tests numeric greater-or-equal.
	OperatorGte Operator = "gte"
	// OperatorLt tests numeric less-than.
	OperatorLt Operator = "lt"
	// OperatorLte tests numeric less-or-equal.
	OperatorLte Operator = "lte"
	// OperatorIncludes tests sequence membership or case-insensitive substring.
	OperatorIncludes Operator = "includes"
	// OperatorContains tests case-sensitive substring.
	OperatorContains Operator = "contains"
	// OperatorRegex tests case-insensitive pattern match.
	OperatorRegex Operator = "regex"
	// OperatorBetween tests inclusive numeric range membership.
	OperatorBetween Operator = "between"
	// OperatorExists tests that the field resolves to a non-null value.
	OperatorExists Operator = "exists"
	// OperatorEmpty tests falsy values and zero-length sequences.
	OperatorEmpty Operator = "empty"
)

// Condition is one field/operator/value test, AND-combined with siblings.
// Params: dot-separated field path, operator, and operator-dependent value.
// Returns: smallest evaluable rule unit.
type Condition struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value,omitempty"`
}

// Rule is one user-authored condition set with an action/message template.
// Params: identity, trigger gating, conditions, delivery routing, and
// throttle bookkeeping written back by the engine.
// Returns: persisted rule definition.
type Rule struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Enabled       bool        `json:"enabled"`
	Trigger       TriggerType `json:"trigger"`
	Schedule      string      `json:"schedule,omitempty"`
	Priority      Priority    `json:"priority"`
	Category      Category    `json:"category"`
	Conditions    []Condition `json:"conditions"`
	Action        string      `json:"action"`
	Channels      []Channel   `json:"channels"`
	Message       string      `json:"message"`
	ThrottleMs    int64       `json:"throttle_ms"`
	LastTriggered *time.Time  `json:"last_triggered,omitempty"`
	TriggerCount  int         `json:"trigger_count"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Throttle returns the throttle window as a duration.
// Params: none.
// Returns: zero when the rule has no throttle.
func (r Rule) Throttle() time.Duration {
	if r.ThrottleMs <= 0 {
		return 0
	}
	return time.Duration(r.ThrottleMs) * time.Millisecond
}

// RuleSpec carries caller-supplied fields for rule creation.
// Params: everything the author controls; identity and counters are
// engine-assigned.
// Returns: input shape for RuleStore.Add.
type RuleSpec struct {
	Name       string      `json:"name"`
	Enabled    *bool       `json:"enabled,omitempty"`
	Trigger    TriggerType `json:"trigger,omitempty"`
	Schedule   string      `json:"schedule,omitempty"`
	Priority   Priority    `json:"priority,omitempty"`
	Category   Category    `json:"category,omitempty"`
	Conditions []Condition `json:"conditions"`
	Action     string      `json:"action"`
	Channels   []Channel   `json:"channels,omitempty"`
	Message    string      `json:"message"`
	ThrottleMs *int64      `json:"throttle_ms,omitempty"`
}

// RulePatch carries optional replacement fields for rule updates.
// Params: nil pointers keep the existing value.
// Returns: merge input for RuleStore.Update.
type RulePatch struct {
	Name       *string      `json:"name,omitempty"`
	Enabled    *bool        `json:"enabled,omitempty"`
	Trigger    *TriggerType `json:"trigger,omitempty"`
	Schedule   *string      `json:"schedule,omitempty"`
	Priority   *Priority    `json:"priority,omitempty"`
	Category   *Category    `json:"category,omitempty"`
	Conditions []Condition  `json:"conditions,omitempty"`
	Action     *string      `json:"action,omitempty"`
	Channels   []Channel    `json:"channels,omitempty"`
	Message    *string      `json:"message,omitempty"`
	ThrottleMs *int64       `json:"throttle_ms,omitempty"`
}

// ValidationError reports a rule spec field that failed validation.
// Params: offending field and human-readable reason.
// Returns: synchronous creation/update error.
type ValidationError struct {
	Field  string
	Reason string
}

// Error returns the field-qualified validation message.
// Params: none.
// Returns: string representation.
func (e ValidationError) Error() string {
	return fmt.Sprintf("rule validation: %s: %s", e.Field, e.Reason)
}

// Validate checks required spec fields before rule creation.
// Params: none.
// Returns: ValidationError for the first missing/invalid field.
func (s RuleSpec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ValidationError{Field: "name", Reason: "is required"}
	}
	if len(s.Conditions) == 0 {
		return ValidationError{Field: "conditions", Reason: "must not be empty"}
	}
	for i, condition := range s.Conditions {
		if strings.TrimSpace(condition.Field) == "" {
			return ValidationError{Field: fmt.Sprintf("conditions[%d].field", i), Reason: "is required"}
		}
		if strings.TrimSpace(string(condition.Operator)) == "" {
			return ValidationError{Field: fmt.Sprintf("conditions[%d].operator", i), Reason: "is required"}
		}
	}
	if strings.TrimSpace(s.Action) == "" {
		return ValidationError{Field: "action", Reason: "is required"}
	}
	if strings.TrimSpace(s.Message) == "" {
		return ValidationError{Field: "message", Reason: "is required"}
	}
	if s.Trigger == TriggerScheduled && strings.TrimSpace(s.Schedule) == "" {
		return ValidationError{Field: "schedule", Reason: "is required for scheduled trigger"}
	}
	return nil
}
