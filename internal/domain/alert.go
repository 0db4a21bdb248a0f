package domain

import "time"

// AlertStatusNew is the status stamped on every freshly produced alert.
const AlertStatusNew = "new"

// Alert is the ephemeral artifact produced when a rule matches on a tick.
// Params: rule identity, interpolated messages, routing, and the resolved
// context values the conditions referenced.
// Returns: engine output consumed by the notification log and dispatcher.
type Alert struct {
	ID              string         `json:"id"`
	RuleID          string         `json:"rule_id"`
	RuleName        string         `json:"rule_name"`
	Priority        Priority       `json:"priority"`
	Category        Category       `json:"category"`
	Message         string         `json:"message"`
	DetailedMessage string         `json:"detailed_message"`
	Channels        []Channel      `json:"channels"`
	Timestamp       time.Time      `json:"timestamp"`
	Status          string         `json:"status"`
	Dismissed       bool           `json:"dismissed"`
	Context         map[string]any `json:"context,omitempty"`
}

// EvaluationRecord is one history entry from a batch evaluation.
// Params: rule identity, outcome flag, produced alert id or error text.
// Returns: ring buffer entry kept by the engine.
type EvaluationRecord struct {
	RuleID    string    `json:"rule_id"`
	Timestamp time.Time `json:"timestamp"`
	Triggered bool      `json:"triggered"`
	AlertID   string    `json:"alert_id,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// ConditionResult is one per-condition outcome from diagnostic evaluation.
// Params: the condition, the resolved field value, and the pass flag.
// Returns: breakdown entry for EvaluateOne.
type ConditionResult struct {
	Condition Condition `json:"condition"`
	Resolved  any       `json:"resolved,omitempty"`
	Passed    bool      `json:"passed"`
}

// RuleDiagnostics is the non-mutating result of evaluating one rule.
// Params: overall outcome and per-condition breakdown.
// Returns: test-mode evaluation report.
type RuleDiagnostics struct {
	RuleID        string            `json:"rule_id"`
	ConditionsMet bool              `json:"conditions_met"`
	Breakdown     []ConditionResult `json:"breakdown"`
}

// EngineStatistics aggregates rule and history counters.
// Params: totals over the store plus a recent history slice.
// Returns: snapshot for the host UI.
type EngineStatistics struct {
	TotalRules        int                `json:"total_rules"`
	EnabledRules      int                `json:"enabled_rules"`
	TotalTriggerCount int                `json:"total_trigger_count"`
	RecentHistory     []EvaluationRecord `json:"recent_history"`
}
