// Package notifylog keeps the durable, size-bounded history of delivered
// notifications. The log write is unconditional and synchronous with
// alert evaluation; native and sound delivery are best-effort extras
// that can never fail a recorded alert.
package notifylog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"farmalert/internal/clock"
	"farmalert/internal/domain"
	"farmalert/internal/state"

	"github.com/google/uuid"
)

// maxEntries bounds the persisted log; the oldest entries are silently
// dropped on insert. UIs depend on index 0 being the newest entry.
const maxEntries = 100

// NativeNotifier attempts platform-native delivery of one notification.
// Params: permission probe and delivery call.
// Returns: optional delivery transport injected by the host.
type NativeNotifier interface {
	Granted() bool
	Notify(ctx context.Context, notification domain.Notification) error
}

// SoundPlayer plays the alert sound when the audio output is running.
// Params: output state probe and playback call.
// Returns: optional audio transport injected by the host.
type SoundPlayer interface {
	Running() bool
	Play(ctx context.Context) error
}

// RecordOptions carries the optional fields of one log entry.
// Params: body, type, priority, and opaque data map.
// Returns: insert options for Record.
type RecordOptions struct {
	Body     string
	Type     domain.NotificationType
	Priority domain.Priority
	Data     map[string]any
}

// Filter narrows List output.
// Params: optional type and unread-only flags.
// Returns: list filter; nil matches everything.
type Filter struct {
	Type       domain.NotificationType
	UnreadOnly bool
}

// Log is the bounded notification history with read-state tracking.
// Params: persistence adapter, clock, optional delivery transports,
// and new-notification subscribers.
// Returns: durable alert record for the host UI.
type Log struct {
	mu          sync.Mutex
	persist     state.Store
	clock       clock.Clock
	logger      *slog.Logger
	entries     []domain.Notification
	settings    domain.NotificationSettings
	native      NativeNotifier
	sound       SoundPlayer
	subscribers []func(domain.Notification)
}

// Option configures optional log collaborators.
type Option func(*Log)

// WithNative injects the platform notification transport.
// Params: native notifier implementation.
// Returns: log option.
func WithNative(native NativeNotifier) Option {
	return func(l *Log) { l.native = native }
}

// WithSound injects the alert sound transport.
// Params: sound player implementation.
// Returns: log option.
func WithSound(sound SoundPlayer) Option {
	return func(l *Log) { l.sound = sound }
}

// New creates an empty notification log.
// Params: persistence adapter, clock, logger, and options.
// Returns: initialized log; call Load to read persisted entries.
func New(persist state.Store, clk clock.Clock, logger *slog.Logger, opts ...Option) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	log := &Log{
		persist: persist,
		clock:   clk,
		logger:  logger,
		entries: make([]domain.Notification, 0, maxEntries),
	}
	for _, opt := range opts {
		opt(log)
	}
	return log
}

// Load reads persisted entries and settings into memory.
// Params: context for persistence reads.
// Returns: decode/read error; absent keys are a fresh install.
func (l *Log) Load(ctx context.Context) error {
	raw, err := l.persist.Get(ctx, state.KeyNotifications)
	if err != nil && !errors.Is(err, state.ErrNotFound) {
		return fmt.Errorf("load notifications: %w", err)
	}
	if err == nil {
		var entries []domain.Notification
		if err := json.Unmarshal(raw, &entries); err != nil {
			return fmt.Errorf("decode notifications: %w", err)
		}
		if len(entries) > maxEntries {
			entries = entries[:maxEntries]
		}
		l.mu.Lock()
		l.entries = entries
		l.mu.Unlock()
	}

	rawSettings, err := l.persist.Get(ctx, state.KeySettings)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load notification settings: %w", err)
	}
	var settings domain.NotificationSettings
	if err := json.Unmarshal(rawSettings, &settings); err != nil {
		return fmt.Errorf("decode notification settings: %w", err)
	}
	l.mu.Lock()
	l.settings = settings
	l.mu.Unlock()
	return nil
}

// Subscribe registers a callback fired once per inserted notification.
// Params: subscriber callback.
// Returns: callback invoked with a detached notification copy.
func (l *Log) Subscribe(fn func(domain.Notification)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subscribers = append(l.subscribers, fn)
}

// Record appends one notification at the head of the log.
//
// The in-app log entry is the durable record: it is written and
// persisted before any delivery attempt. Native delivery runs only when
// permission is granted; sound only when the setting is on and the
// audio output is running. Failures of either are logged and swallowed.
// Params: context, title, and optional fields.
// Returns: the recorded notification.
func (l *Log) Record(ctx context.Context, title string, opts RecordOptions) domain.Notification {
	notification := domain.Notification{
		ID:        uuid.NewString(),
		Title:     title,
		Body:      opts.Body,
		Type:      opts.Type,
		Priority:  opts.Priority,
		Timestamp: l.clock.Now(),
		Data:      opts.Data,
	}
	if notification.Type == "" {
		notification.Type = domain.NotificationGeneral
	}
	if notification.Priority == "" {
		notification.Priority = domain.PriorityMedium
	}

	l.mu.Lock()
	l.entries = append([]domain.Notification{notification}, l.entries...)
	if len(l.entries) > maxEntries {
		l.entries = l.entries[:maxEntries]
	}
	l.persistLocked(ctx)
	settings := l.settings
	subscribers := append([]func(domain.Notification){}, l.subscribers...)
	l.mu.Unlock()

	for _, subscriber := range subscribers {
		subscriber(notification)
	}

	if l.native != nil && settings.NativeEnabled && l.native.Granted() {
		if err := l.native.Notify(ctx, notification); err != nil {
			l.logger.Warn("native notification failed", "id", notification.ID, "error", err.Error())
		}
	}
	if l.sound != nil && settings.SoundEnabled && l.sound.Running() {
		if err := l.sound.Play(ctx); err != nil {
			l.logger.Warn("alert sound failed", "error", err.Error())
		}
	}

	return notification
}

// List returns log entries newest-first, optionally filtered.
// Params: optional filter.
// Returns: detached notification slice.
func (l *Log) List(filter *Filter) []domain.Notification {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Notification, 0, len(l.entries))
	for _, entry := range l.entries {
		if filter != nil {
			if filter.Type != "" && entry.Type != filter.Type {
				continue
			}
			if filter.UnreadOnly && entry.Read {
				continue
			}
		}
		out = append(out, entry)
	}
	return out
}

// UnreadCount returns the number of unread entries.
// Params: none.
// Returns: unread count.
func (l *Log) UnreadCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	count := 0
	for _, entry := range l.entries {
		if !entry.Read {
			count++
		}
	}
	return count
}

// MarkRead marks one entry as read.
// Params: context and notification id.
// Returns: false when the id is unknown.
func (l *Log) MarkRead(ctx context.Context, id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.entries {
		if l.entries[i].ID == id {
			if !l.entries[i].Read {
				l.entries[i].Read = true
				l.persistLocked(ctx)
			}
			return true
		}
	}
	return false
}

// MarkAllRead marks every entry as read.
// Params: context for the persistence write.
// Returns: side effect only.
func (l *Log) MarkAllRead(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	changed := false
	for i := range l.entries {
		if !l.entries[i].Read {
			l.entries[i].Read = true
			changed = true
		}
	}
	if changed {
		l.persistLocked(ctx)
	}
}

// Delete removes one entry.
// Params: context and notification id.
// Returns: false when the id is unknown.
func (l *Log) Delete(ctx context.Context, id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.entries {
		if l.entries[i].ID == id {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			l.persistLocked(ctx)
			return true
		}
	}
	return false
}

// Clear removes all entries.
// Params: context for the persistence write.
// Returns: side effect only.
func (l *Log) Clear(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = l.entries[:0]
	l.persistLocked(ctx)
}

// Settings returns the current notification settings.
// Params: none.
// Returns: settings copy.
func (l *Log) Settings() domain.NotificationSettings {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.settings
}

// SetSettings replaces and persists the notification settings.
// Params: context and new settings.
// Returns: persistence error; in-memory settings apply regardless.
func (l *Log) SetSettings(ctx context.Context, settings domain.NotificationSettings) error {
	l.mu.Lock()
	l.settings = settings
	l.mu.Unlock()

	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode notification settings: %w", err)
	}
	if err := l.persist.Put(ctx, state.KeySettings, raw); err != nil {
		return fmt.Errorf("persist notification settings: %w", err)
	}
	return nil
}

// persistLocked writes the entry list while holding the lock.
// Failures are logged and swallowed; the in-memory log stays
// authoritative for the session.
// Params: context for the persistence write.
// Returns: side effect only.
func (l *Log) persistLocked(ctx context.Context) {
	raw, err := json.Marshal(l.entries)
	if err != nil {
		l.logger.Error("encode notifications failed", "error", err.Error())
		return
	}
	if err := l.persist.Put(ctx, state.KeyNotifications, raw); err != nil {
		l.logger.Error("persist notifications failed", "error", err.Error())
	}
}
