package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"farmalert/internal/domain"
	"farmalert/internal/fieldpath"
	"farmalert/internal/rules"
	"farmalert/internal/templatefmt"

	"github.com/google/uuid"
)

// historyLimit caps the evaluation history ring buffer.
const historyLimit = 1000

// Engine composes the rule store, condition evaluator, and scheduler
// into the per-tick evaluation entry point.
// Params: rule store, evaluator, scheduler, and history ring.
// Returns: batch alert production with per-rule error isolation.
type Engine struct {
	mu        sync.Mutex
	store     *rules.Store
	evaluator *Evaluator
	scheduler Scheduler
	logger    *slog.Logger
	history   []domain.EvaluationRecord
}

// New creates an engine over one rule store.
// Each engine instance is independent; tests run several concurrently.
// Params: rule store and logger.
// Returns: initialized engine.
func New(store *rules.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:     store,
		evaluator: NewEvaluator(logger),
		logger:    logger,
		history:   make([]domain.EvaluationRecord, 0, 64),
	}
}

// AddRule validates and installs one rule.
// Params: context and rule spec.
// Returns: created rule, nil on duplicate name, or ValidationError.
func (e *Engine) AddRule(ctx context.Context, spec domain.RuleSpec) (*domain.Rule, error) {
	return e.store.Add(ctx, spec)
}

// UpdateRule merges a patch over an existing rule.
// Params: context, rule id, and patch.
// Returns: updated rule or ErrRuleNotFound.
func (e *Engine) UpdateRule(ctx context.Context, id string, patch domain.RulePatch) (domain.Rule, error) {
	return e.store.Update(ctx, id, patch)
}

// DeleteRule removes one rule by id.
// Params: context and rule id.
// Returns: false when the id is unknown.
func (e *Engine) DeleteRule(ctx context.Context, id string) bool {
	return e.store.Delete(ctx, id)
}

// SetRuleEnabled flips one rule's enabled flag.
// Params: context, rule id, and target state.
// Returns: updated rule or ErrRuleNotFound.
func (e *Engine) SetRuleEnabled(ctx context.Context, id string, enabled bool) (domain.Rule, error) {
	return e.store.SetEnabled(ctx, id, enabled)
}

// ToggleRule is a convenience alias over SetRuleEnabled.
// Params: context, rule id, and target state.
// Returns: updated rule or ErrRuleNotFound.
func (e *Engine) ToggleRule(ctx context.Context, id string, enabled bool) (domain.Rule, error) {
	return e.store.SetEnabled(ctx, id, enabled)
}

// Rules returns rule copies in creation order.
// Params: none.
// Returns: detached rule slice from the store.
func (e *Engine) Rules() []domain.Rule {
	return e.store.List()
}

// EvaluateAll runs one evaluation batch over all enabled rules.
//
// Per rule: skip when the scheduler gates it out or the throttle window
// is open; AND-evaluate all conditions; on match emit an alert, stamp
// LastTriggered, and record history. An error or panic inside one rule's
// evaluation is recorded as a triggered:false history entry and never
// aborts the batch. All rule mutations are persisted once at the end.
// Params: context, evaluation data context, and batch time.
// Returns: alerts produced this tick.
func (e *Engine) EvaluateAll(ctx context.Context, data map[string]any, now time.Time) []domain.Alert {
	alerts := make([]domain.Alert, 0)
	triggered := false

	for _, rule := range e.store.List() {
		if !rule.Enabled {
			continue
		}
		if !e.scheduler.ShouldEvaluate(rule, now) {
			continue
		}
		if e.scheduler.IsThrottled(rule, now) {
			continue
		}

		matched, err := e.evaluateConditions(rule, data)
		if err != nil {
			e.logger.Warn("rule evaluation failed", "rule", rule.Name, "error", err.Error())
			e.appendHistory(domain.EvaluationRecord{
				RuleID:    rule.ID,
				Timestamp: now,
				Triggered: false,
				Error:     err.Error(),
			})
			continue
		}
		if !matched {
			continue
		}

		alert := e.buildAlert(rule, data, now)
		e.store.RecordTrigger(rule.ID, now)
		triggered = true
		e.appendHistory(domain.EvaluationRecord{
			RuleID:    rule.ID,
			Timestamp: now,
			Triggered: true,
			AlertID:   alert.ID,
		})
		alerts = append(alerts, alert)
	}

	if triggered {
		if err := e.store.Flush(ctx); err != nil {
			// In-memory throttle state stays authoritative for the session.
			e.logger.Error("rule batch persistence failed", "error", err.Error())
		}
	}
	return alerts
}

// EvaluateOne runs one rule in diagnostic mode without mutating throttle
// state or history.
// Params: rule id and evaluation data context.
// Returns: per-condition breakdown or ErrRuleNotFound.
func (e *Engine) EvaluateOne(id string, data map[string]any) (domain.RuleDiagnostics, error) {
	rule, ok := e.store.Get(id)
	if !ok {
		return domain.RuleDiagnostics{}, fmt.Errorf("%w: %s", rules.ErrRuleNotFound, id)
	}

	diagnostics := domain.RuleDiagnostics{
		RuleID:        rule.ID,
		ConditionsMet: true,
		Breakdown:     make([]domain.ConditionResult, 0, len(rule.Conditions)),
	}
	for _, condition := range rule.Conditions {
		resolved, _ := fieldpath.Resolve(data, condition.Field)
		passed, err := e.evaluator.Evaluate(condition, data)
		if err != nil {
			passed = false
		}
		if !passed {
			diagnostics.ConditionsMet = false
		}
		diagnostics.Breakdown = append(diagnostics.Breakdown, domain.ConditionResult{
			Condition: condition,
			Resolved:  resolved,
			Passed:    passed,
		})
	}
	return diagnostics, nil
}

// History returns the most recent evaluation records, newest last.
// Params: limit (0 or negative returns everything retained).
// Returns: detached history slice.
func (e *Engine) History(limit int) []domain.EvaluationRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := 0
	if limit > 0 && len(e.history) > limit {
		start = len(e.history) - limit
	}
	out := make([]domain.EvaluationRecord, len(e.history)-start)
	copy(out, e.history[start:])
	return out
}

// Statistics aggregates rule counters and a recent history slice.
// Params: none.
// Returns: snapshot for the host UI.
func (e *Engine) Statistics() domain.EngineStatistics {
	stats := domain.EngineStatistics{}
	for _, rule := range e.store.List() {
		stats.TotalRules++
		if rule.Enabled {
			stats.EnabledRules++
		}
		stats.TotalTriggerCount += rule.TriggerCount
	}
	stats.RecentHistory = e.History(20)
	return stats
}

// evaluateConditions AND-combines all rule conditions with panic recovery.
// Params: rule and evaluation data context.
// Returns: combined outcome; panics surface as evaluation errors.
func (e *Engine) evaluateConditions(rule domain.Rule, data map[string]any) (matched bool, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			matched = false
			err = fmt.Errorf("condition evaluation panic: %v", recovered)
		}
	}()

	for _, condition := range rule.Conditions {
		passed, evalErr := e.evaluator.Evaluate(condition, data)
		if evalErr != nil {
			return false, evalErr
		}
		if !passed {
			return false, nil
		}
	}
	return true, nil
}

// buildAlert assembles the alert artifact for one matched rule.
// The context map carries only the fields the rule's conditions reference.
// Params: matched rule, data context, and batch time.
// Returns: alert ready for the notification log and dispatcher.
func (e *Engine) buildAlert(rule domain.Rule, data map[string]any, now time.Time) domain.Alert {
	message := templatefmt.Interpolate(rule.Message, data)

	context := make(map[string]any, len(rule.Conditions))
	for _, condition := range rule.Conditions {
		if value, ok := fieldpath.Resolve(data, condition.Field); ok {
			context[condition.Field] = value
		}
	}

	return domain.Alert{
		ID:              uuid.NewString(),
		RuleID:          rule.ID,
		RuleName:        rule.Name,
		Priority:        rule.Priority,
		Category:        rule.Category,
		Message:         message,
		DetailedMessage: fmt.Sprintf("%s (rule %q, category %s)", message, rule.Name, rule.Category),
		Channels:        append([]domain.Channel(nil), rule.Channels...),
		Timestamp:       now,
		Status:          domain.AlertStatusNew,
		Context:         context,
	}
}

// appendHistory records one evaluation outcome in the bounded ring.
// Params: history record.
// Returns: oldest entries dropped past the cap.
func (e *Engine) appendHistory(record domain.EvaluationRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = append(e.history, record)
	if overflow := len(e.history) - historyLimit; overflow > 0 {
		e.history = e.history[overflow:]
	}
}
