// Package reminder tracks dated reminders and classifies them as
// upcoming or overdue against the current clock. Scheduling is
// append-only: the caller may register the same reminder content
// repeatedly and each registration is kept.
package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"farmalert/internal/clock"
	"farmalert/internal/domain"
	"farmalert/internal/state"

	"github.com/google/uuid"
)

// Tracker is the persistent reminder collection.
// Params: persistence adapter, clock, and logger.
// Returns: reminder store with due-date classification.
type Tracker struct {
	mu        sync.Mutex
	persist   state.Store
	clock     clock.Clock
	logger    *slog.Logger
	reminders []domain.Reminder
}

// Spec carries the caller-supplied fields of a new reminder.
// Params: type, title, body, due date, entity link, and priority.
// Returns: input for Schedule.
type Spec struct {
	Type       domain.NotificationType
	Title      string
	Body       string
	DueDate    time.Time
	EntityID   string
	EntityType string
	Priority   domain.Priority
}

// New creates an empty tracker.
// Params: persistence adapter, clock, and logger.
// Returns: initialized tracker; call Load to read persisted reminders.
func New(persist state.Store, clk clock.Clock, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{persist: persist, clock: clk, logger: logger}
}

// Load reads persisted reminders into memory.
// Params: context for the persistence read.
// Returns: decode/read error; an absent key is a fresh install.
func (t *Tracker) Load(ctx context.Context) error {
	raw, err := t.persist.Get(ctx, state.KeyReminders)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load reminders: %w", err)
	}
	var reminders []domain.Reminder
	if err := json.Unmarshal(raw, &reminders); err != nil {
		return fmt.Errorf("decode reminders: %w", err)
	}
	t.mu.Lock()
	t.reminders = reminders
	t.mu.Unlock()
	return nil
}

// Schedule registers one reminder. Duplicates are not collapsed: two
// calls with identical content produce two reminders.
// Params: context and reminder fields.
// Returns: the stored reminder with its assigned id.
func (t *Tracker) Schedule(ctx context.Context, spec Spec) domain.Reminder {
	reminder := domain.Reminder{
		ID:         uuid.NewString(),
		Type:       spec.Type,
		Title:      spec.Title,
		Body:       spec.Body,
		DueDate:    spec.DueDate,
		EntityID:   spec.EntityID,
		EntityType: spec.EntityType,
		Priority:   spec.Priority,
	}
	if reminder.Priority == "" {
		reminder.Priority = domain.PriorityMedium
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.reminders = append(t.reminders, reminder)
	t.persistLocked(ctx)
	return reminder
}

// List returns every reminder sorted by due date ascending.
// Params: none.
// Returns: detached reminder slice.
func (t *Tracker) List() []domain.Reminder {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := append([]domain.Reminder(nil), t.reminders...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out
}

// Upcoming returns non-dismissed reminders due now or later.
// Params: none.
// Returns: reminders sorted by due date ascending.
func (t *Tracker) Upcoming() []domain.Reminder {
	now := t.clock.Now()
	return t.filter(func(r domain.Reminder) bool {
		return !r.Dismissed && !r.Overdue(now)
	})
}

// Overdue returns non-dismissed reminders whose due date has passed.
// Params: none.
// Returns: reminders sorted by due date ascending.
func (t *Tracker) Overdue() []domain.Reminder {
	now := t.clock.Now()
	return t.filter(func(r domain.Reminder) bool {
		return !r.Dismissed && r.Overdue(now)
	})
}

// ForEntity returns reminders linked to one entity.
// Params: entity type and id.
// Returns: reminders sorted by due date ascending.
func (t *Tracker) ForEntity(entityType, entityID string) []domain.Reminder {
	return t.filter(func(r domain.Reminder) bool {
		return r.EntityType == entityType && r.EntityID == entityID
	})
}

// Dismiss hides one reminder from the upcoming and overdue views. The
// reminder stays in the collection.
// Params: context and reminder id.
// Returns: false when the id is unknown.
func (t *Tracker) Dismiss(ctx context.Context, id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.reminders {
		if t.reminders[i].ID == id {
			if !t.reminders[i].Dismissed {
				t.reminders[i].Dismissed = true
				t.persistLocked(ctx)
			}
			return true
		}
	}
	return false
}

// Delete removes one reminder.
// Params: context and reminder id.
// Returns: false when the id is unknown.
func (t *Tracker) Delete(ctx context.Context, id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.reminders {
		if t.reminders[i].ID == id {
			t.reminders = append(t.reminders[:i], t.reminders[i+1:]...)
			t.persistLocked(ctx)
			return true
		}
	}
	return false
}

// Len returns the number of stored reminders, dismissed included.
// Params: none.
// Returns: reminder count.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.reminders)
}

func (t *Tracker) filter(keep func(domain.Reminder) bool) []domain.Reminder {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.Reminder, 0, len(t.reminders))
	for _, reminder := range t.reminders {
		if keep(reminder) {
			out = append(out, reminder)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out
}

// persistLocked writes the collection while holding the lock. Failures
// are logged and swallowed; the in-memory collection stays
// authoritative for the session.
// Params: context for the persistence write.
// Returns: side effect only.
func (t *Tracker) persistLocked(ctx context.Context) {
	raw, err := json.Marshal(t.reminders)
	if err != nil {
		t.logger.Error("encode reminders failed", "error", err.Error())
		return
	}
	if err := t.persist.Put(ctx, state.KeyReminders, raw); err != nil {
		t.logger.Error("persist reminders failed", "error", err.Error())
	}
}
