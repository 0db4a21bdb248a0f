package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"farmalert/internal/clock"
	"farmalert/internal/config"
	"farmalert/internal/domain"
	"farmalert/internal/engine"
	"farmalert/internal/notify"
	"farmalert/internal/notifylog"
	"farmalert/internal/offline"
	"farmalert/internal/reminder"
	"farmalert/internal/rules"
	"farmalert/internal/state"
)

// Manager composes the alert subsystem around one data context. It
// owns the evaluation pipeline: snapshot in, engine pass, notification
// log write, external dispatch, UI events out.
// Params: engine, notification log, reminders, offline queue, and
// connectivity watcher over one persistence adapter.
// Returns: application facade for drivers and ingest.
type Manager struct {
	mu          sync.RWMutex
	cfg         config.Config
	logger      *slog.Logger
	clock       clock.Clock
	engine      *engine.Engine
	rules       *rules.Store
	log         *notifylog.Log
	reminders   *reminder.Tracker
	queue       *offline.Queue
	watcher     *offline.Watcher
	dispatcher  *notify.Dispatcher
	events      *Events
	dataContext map[string]any
}

// Bundle seeds a fresh install with starter rules and reminders.
// Params: rule specs and reminder specs.
// Returns: install payload for InstallBundle.
type Bundle struct {
	Rules     []domain.RuleSpec
	Reminders []reminder.Spec
}

// NewManager wires the subsystem components over one persistence
// adapter. New notifications flow into the event hub, and a restored
// connection flushes the offline queue.
// Params: config, logger, persistence adapter, dispatcher, clock, and
// optional notification log collaborators.
// Returns: initialized manager; call Load before the first tick.
func NewManager(cfg config.Config, logger *slog.Logger, persist state.Store, dispatcher *notify.Dispatcher, clk clock.Clock, logOpts ...notifylog.Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	ruleStore := rules.New(persist, clk, logger)
	manager := &Manager{
		cfg:        cfg,
		logger:     logger,
		clock:      clk,
		engine:     engine.New(ruleStore, logger),
		rules:      ruleStore,
		log:        notifylog.New(persist, clk, logger, logOpts...),
		reminders:  reminder.New(persist, clk, logger),
		queue:      offline.NewQueue(persist, clk, nil, logger),
		watcher:    offline.NewWatcher(persist, logger),
		dispatcher: dispatcher,
		events:     NewEvents(clk),
	}

	manager.log.Subscribe(manager.events.Emit)
	manager.watcher.Register(func(online bool) {
		if !online {
			return
		}
		if manager.queue.Len() == 0 {
			return
		}
		result := manager.queue.Flush(context.Background())
		logger.Info("offline queue flushed on reconnect",
			"synced", result.Synced, "dropped", result.Dropped, "remaining", result.Remaining)
	})
	return manager
}

// Load reads all persisted subsystem state.
// Params: context for persistence reads.
// Returns: first load error.
func (m *Manager) Load(ctx context.Context) error {
	if err := m.rules.Load(ctx); err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	if err := m.log.Load(ctx); err != nil {
		return fmt.Errorf("load notification log: %w", err)
	}
	if err := m.reminders.Load(ctx); err != nil {
		return fmt.Errorf("load reminders: %w", err)
	}
	if err := m.queue.Load(ctx); err != nil {
		return fmt.Errorf("load offline queue: %w", err)
	}
	if err := m.watcher.Load(ctx); err != nil {
		return fmt.Errorf("load connectivity flag: %w", err)
	}
	return nil
}

// Apply replaces the data context with one ingested snapshot.
// Params: decoded snapshot object.
// Returns: always nil; satisfies the ingest sink interface.
func (m *Manager) Apply(snapshot map[string]any) error {
	m.UpdateContext(snapshot)
	return nil
}

// UpdateContext replaces the data context evaluated on the next tick.
// Params: full data context snapshot.
// Returns: side effect only.
func (m *Manager) UpdateContext(snapshot map[string]any) {
	m.mu.Lock()
	m.dataContext = snapshot
	m.mu.Unlock()
	m.logger.Debug("data context updated", "keys", len(snapshot))
}

// EvaluateTick runs one evaluation pass over the current data context.
// Each triggered alert is recorded in the notification log first and
// then dispatched to its external channels best-effort.
// Params: context for persistence writes and dispatch.
// Returns: triggered alerts.
func (m *Manager) EvaluateTick(ctx context.Context) []domain.Alert {
	m.mu.RLock()
	data := m.dataContext
	m.mu.RUnlock()
	if len(data) == 0 {
		m.logger.Debug("evaluation skipped, no data context yet")
		return nil
	}

	alerts := m.engine.EvaluateAll(ctx, data, m.clock.Now())
	for _, alert := range alerts {
		m.log.Record(ctx, alert.RuleName, notifylog.RecordOptions{
			Body:     alert.Message,
			Type:     domain.NotificationTypeForCategory(alert.Category),
			Priority: alert.Priority,
			Data: map[string]any{
				"alert_id": alert.ID,
				"rule_id":  alert.RuleID,
			},
		})
		if m.dispatcher != nil {
			m.dispatcher.Dispatch(ctx, alert)
		}
	}
	return alerts
}

// RefreshUnread recomputes the unread badge count.
// Params: none.
// Returns: current unread count.
func (m *Manager) RefreshUnread() int {
	return m.log.UnreadCount()
}

// SetConnectivity records one connectivity report.
// Params: context and the reported state.
// Returns: side effect only.
func (m *Manager) SetConnectivity(ctx context.Context, online bool) {
	m.watcher.Set(ctx, online)
}

// InstallBundle seeds starter rules and reminders. Rules whose name
// already exists are skipped by the duplicate-name rule; reminders are
// registered as-is on every call.
// Params: context and install payload.
// Returns: first rule validation error.
func (m *Manager) InstallBundle(ctx context.Context, bundle Bundle) error {
	for _, spec := range bundle.Rules {
		if _, err := m.engine.AddRule(ctx, spec); err != nil {
			return fmt.Errorf("install rule %q: %w", spec.Name, err)
		}
	}
	for _, spec := range bundle.Reminders {
		m.reminders.Schedule(ctx, spec)
	}
	return nil
}

// Engine exposes the rule engine.
func (m *Manager) Engine() *engine.Engine { return m.engine }

// Notifications exposes the notification log.
func (m *Manager) Notifications() *notifylog.Log { return m.log }

// Reminders exposes the reminder tracker.
func (m *Manager) Reminders() *reminder.Tracker { return m.reminders }

// Queue exposes the offline operation queue.
func (m *Manager) Queue() *offline.Queue { return m.queue }

// Connectivity exposes the connectivity watcher.
func (m *Manager) Connectivity() *offline.Watcher { return m.watcher }

// Events exposes the UI event hub.
func (m *Manager) Events() *Events { return m.events }
