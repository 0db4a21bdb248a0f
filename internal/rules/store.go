// Package rules owns the rule definition collection and its persistence
// round-trips. The backing slice is never exposed by reference; external
// installer code goes through Add/Update/Delete/List only.
package rules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"farmalert/internal/clock"
	"farmalert/internal/domain"
	"farmalert/internal/state"

	"github.com/google/uuid"
)

// ErrRuleNotFound indicates an update/delete against an unknown rule id.
var ErrRuleNotFound = errors.New("rule not found")

// Store owns rule definitions and their mutation.
// Params: persistence adapter, clock, and logger.
// Returns: encapsulated rule collection with load/flush round-trips.
type Store struct {
	mu      sync.RWMutex
	persist state.Store
	clock   clock.Clock
	logger  *slog.Logger
	rules   []domain.Rule
}

// New creates an empty rule store.
// Params: persistence adapter, clock, and logger.
// Returns: initialized store; call Load to read persisted rules.
func New(persist state.Store, clk clock.Clock, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		persist: persist,
		clock:   clk,
		logger:  logger,
		rules:   make([]domain.Rule, 0),
	}
}

// Load reads the persisted rule list into memory.
// An absent key is a fresh install, not an error.
// Params: context for the persistence read.
// Returns: decode/read error.
func (s *Store) Load(ctx context.Context) error {
	raw, err := s.persist.Get(ctx, state.KeyRules)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load rules: %w", err)
	}

	var loaded []domain.Rule
	if err := json.Unmarshal(raw, &loaded); err != nil {
		return fmt.Errorf("decode rules: %w", err)
	}

	s.mu.Lock()
	s.rules = loaded
	s.mu.Unlock()
	return nil
}

// Add validates and creates one rule from a caller spec.
// A duplicate name is a defined no-op returning (nil, nil) so that rule
// bundle installers can re-run idempotently.
// Params: context and rule spec.
// Returns: created rule copy, nil on duplicate name, or ValidationError.
func (s *Store) Add(ctx context.Context, spec domain.RuleSpec) (*domain.Rule, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	rule := buildRule(spec, now)

	s.mu.Lock()
	for _, existing := range s.rules {
		if existing.Name == spec.Name {
			s.mu.Unlock()
			return nil, nil
		}
	}
	s.rules = append(s.rules, rule)
	s.persistLocked(ctx)
	s.mu.Unlock()

	out := cloneRule(rule)
	return &out, nil
}

// Update merges a patch over an existing rule.
// Params: context, rule id, and patch with optional replacement fields.
// Returns: updated rule copy, ErrRuleNotFound, or ValidationError.
func (s *Store) Update(ctx context.Context, id string, patch domain.RulePatch) (domain.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	position := s.positionLocked(id)
	if position < 0 {
		return domain.Rule{}, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}

	if patch.Name != nil {
		for i, existing := range s.rules {
			if i != position && existing.Name == *patch.Name {
				return domain.Rule{}, domain.ValidationError{Field: "name", Reason: "is already in use"}
			}
		}
	}
	if patch.Conditions != nil && len(patch.Conditions) == 0 {
		return domain.Rule{}, domain.ValidationError{Field: "conditions", Reason: "must not be empty"}
	}

	rule := s.rules[position]
	applyPatch(&rule, patch)
	rule.UpdatedAt = s.clock.Now()
	s.rules[position] = rule
	s.persistLocked(ctx)
	return cloneRule(rule), nil
}

// Delete removes one rule by id.
// Params: context and rule id.
// Returns: false when the id is unknown.
func (s *Store) Delete(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	position := s.positionLocked(id)
	if position < 0 {
		return false
	}
	s.rules = append(s.rules[:position], s.rules[position+1:]...)
	s.persistLocked(ctx)
	return true
}

// SetEnabled flips one rule's enabled flag through the patch path.
// Params: context, rule id, and target state.
// Returns: updated rule or ErrRuleNotFound.
func (s *Store) SetEnabled(ctx context.Context, id string, enabled bool) (domain.Rule, error) {
	return s.Update(ctx, id, domain.RulePatch{Enabled: &enabled})
}

// Get returns a copy of one rule by id.
// Params: rule id.
// Returns: rule copy and existence flag.
func (s *Store) Get(id string) (domain.Rule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	position := s.positionLocked(id)
	if position < 0 {
		return domain.Rule{}, false
	}
	return cloneRule(s.rules[position]), true
}

// List returns rule copies in creation order.
// Params: none.
// Returns: detached rule slice.
func (s *Store) List() []domain.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Rule, 0, len(s.rules))
	for _, rule := range s.rules {
		out = append(out, cloneRule(rule))
	}
	return out
}

// Len returns the current rule count.
// Params: none.
// Returns: number of stored rules.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rules)
}

// RecordTrigger writes the engine-derived throttle state for one rule.
// The caller persists the whole batch later via Flush.
// Params: rule id and trigger time.
// Returns: in-memory update only.
func (s *Store) RecordTrigger(id string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	position := s.positionLocked(id)
	if position < 0 {
		return
	}
	triggered := at
	s.rules[position].LastTriggered = &triggered
	s.rules[position].TriggerCount++
}

// Flush persists the whole rule list in one write.
// Params: context for the persistence write.
// Returns: write error; in-memory state stays authoritative regardless.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.RLock()
	raw, err := json.Marshal(s.rules)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}
	if err := s.persist.Put(ctx, state.KeyRules, raw); err != nil {
		return fmt.Errorf("persist rules: %w", err)
	}
	return nil
}

// persistLocked writes the rule list while holding the write lock.
// Persistence failures are logged and swallowed: losing durability is
// preferred over failing the mutation.
// Params: context for the persistence write.
// Returns: side effect only.
func (s *Store) persistLocked(ctx context.Context) {
	raw, err := json.Marshal(s.rules)
	if err != nil {
		s.logger.Error("encode rules failed", "error", err.Error())
		return
	}
	if err := s.persist.Put(ctx, state.KeyRules, raw); err != nil {
		s.logger.Error("persist rules failed", "error", err.Error())
	}
}

func (s *Store) positionLocked(id string) int {
	for i, rule := range s.rules {
		if rule.ID == id {
			return i
		}
	}
	return -1
}

// buildRule fills engine-assigned fields and defaults for a new rule.
// Params: validated spec and creation time.
// Returns: complete rule value.
func buildRule(spec domain.RuleSpec, now time.Time) domain.Rule {
	rule := domain.Rule{
		ID:         uuid.NewString(),
		Name:       spec.Name,
		Enabled:    true,
		Trigger:    spec.Trigger,
		Schedule:   spec.Schedule,
		Priority:   spec.Priority,
		Category:   spec.Category,
		Conditions: append([]domain.Condition(nil), spec.Conditions...),
		Action:     spec.Action,
		Channels:   append([]domain.Channel(nil), spec.Channels...),
		Message:    spec.Message,
		ThrottleMs: domain.DefaultThrottleMs,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if spec.Enabled != nil {
		rule.Enabled = *spec.Enabled
	}
	if rule.Trigger == "" {
		rule.Trigger = domain.TriggerImmediate
	}
	if rule.Priority == "" {
		rule.Priority = domain.PriorityMedium
	}
	if rule.Category == "" {
		rule.Category = domain.CategoryCustom
	}
	if len(rule.Channels) == 0 {
		rule.Channels = []domain.Channel{domain.ChannelApp}
	}
	if spec.ThrottleMs != nil {
		rule.ThrottleMs = *spec.ThrottleMs
	}
	return rule
}

// applyPatch merges non-nil patch fields over the rule, preserving id
// and creation time.
// Params: mutable rule pointer and patch.
// Returns: rule mutated in place.
func applyPatch(rule *domain.Rule, patch domain.RulePatch) {
	if patch.Name != nil {
		rule.Name = *patch.Name
	}
	if patch.Enabled != nil {
		rule.Enabled = *patch.Enabled
	}
	if patch.Trigger != nil {
		rule.Trigger = *patch.Trigger
	}
	if patch.Schedule != nil {
		rule.Schedule = *patch.Schedule
	}
	if patch.Priority != nil {
		rule.Priority = *patch.Priority
	}
	if patch.Category != nil {
		rule.Category = *patch.Category
	}
	if patch.Conditions != nil {
		rule.Conditions = append([]domain.Condition(nil), patch.Conditions...)
	}
	if patch.Action != nil {
		rule.Action = *patch.Action
	}
	if patch.Channels != nil {
		rule.Channels = append([]domain.Channel(nil), patch.Channels...)
	}
	if patch.Message != nil {
		rule.Message = *patch.Message
	}
	if patch.ThrottleMs != nil {
		rule.ThrottleMs = *patch.ThrottleMs
	}
}

// cloneRule duplicates mutable slices and pointers from one rule.
// Params: source rule.
// Returns: detached rule copy.
func cloneRule(rule domain.Rule) domain.Rule {
	out := rule
	out.Conditions = append([]domain.Condition(nil), rule.Conditions...)
	out.Channels = append([]domain.Channel(nil), rule.Channels...)
	if rule.LastTriggered != nil {
		triggered := *rule.LastTriggered
		out.LastTriggered = &triggered
	}
	return out
}
