package reminder

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"farmalert/internal/clock"
	"farmalert/internal/domain"
	"farmalert/internal/state"
)

var trackerNow = time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)

func testTracker(t *testing.T) (*Tracker, *state.MemoryStore) {
	t.Helper()
	persist := state.NewMemoryStore()
	tracker := New(persist, clock.Func(func() time.Time { return trackerNow }), slog.Default())
	return tracker, persist
}

func TestUpcomingAndOverdueSplitOnDueDate(t *testing.T) {
	t.Parallel()

	tracker, _ := testTracker(t)
	ctx := context.Background()

	tracker.Schedule(ctx, Spec{Title: "vaccinate", DueDate: trackerNow.Add(24 * time.Hour)})
	tracker.Schedule(ctx, Spec{Title: "worming", DueDate: trackerNow.Add(-time.Hour)})
	tracker.Schedule(ctx, Spec{Title: "due right now", DueDate: trackerNow})

	upcoming := tracker.Upcoming()
	if len(upcoming) != 2 {
		t.Fatalf("expected 2 upcoming, got %d", len(upcoming))
	}
	if upcoming[0].Title != "due right now" {
		t.Fatalf("a reminder due exactly now is upcoming, got %q first", upcoming[0].Title)
	}

	overdue := tracker.Overdue()
	if len(overdue) != 1 || overdue[0].Title != "worming" {
		t.Fatalf("unexpected overdue set: %+v", overdue)
	}
}

func TestScheduleDoesNotCollapseDuplicates(t *testing.T) {
	t.Parallel()

	tracker, _ := testTracker(t)
	ctx := context.Background()
	spec := Spec{Title: "same reminder", DueDate: trackerNow.Add(time.Hour)}

	first := tracker.Schedule(ctx, spec)
	second := tracker.Schedule(ctx, spec)
	if first.ID == second.ID {
		t.Fatalf("each registration must get its own id")
	}
	if tracker.Len() != 2 {
		t.Fatalf("expected both registrations kept, got %d", tracker.Len())
	}
}

func TestScheduleKeepsNotificationType(t *testing.T) {
	t.Parallel()

	tracker, _ := testTracker(t)
	ctx := context.Background()
	scheduled := tracker.Schedule(ctx, Spec{
		Type:    domain.NotificationHealth,
		Title:   "vet visit",
		DueDate: trackerNow.Add(time.Hour),
	})

	if scheduled.Type != domain.NotificationHealth {
		t.Fatalf("expected health reminder, got %q", scheduled.Type)
	}
	if scheduled.Priority != domain.PriorityMedium {
		t.Fatalf("expected default priority, got %q", scheduled.Priority)
	}
}

func TestDismissHidesWithoutDeleting(t *testing.T) {
	t.Parallel()

	tracker, _ := testTracker(t)
	ctx := context.Background()
	overdue := tracker.Schedule(ctx, Spec{Title: "old", DueDate: trackerNow.Add(-time.Hour)})

	if !tracker.Dismiss(ctx, overdue.ID) {
		t.Fatalf("expected dismiss to find the reminder")
	}
	if got := len(tracker.Overdue()); got != 0 {
		t.Fatalf("dismissed reminders must leave the overdue view, got %d", got)
	}
	if tracker.Len() != 1 {
		t.Fatalf("dismiss must not delete, got %d reminders", tracker.Len())
	}
	if tracker.Dismiss(ctx, "missing") {
		t.Fatalf("unknown id must report false")
	}
}

func TestForEntity(t *testing.T) {
	t.Parallel()

	tracker, _ := testTracker(t)
	ctx := context.Background()
	tracker.Schedule(ctx, Spec{Title: "check hoof", DueDate: trackerNow, EntityType: "animal", EntityID: "a1"})
	tracker.Schedule(ctx, Spec{Title: "restock", DueDate: trackerNow, EntityType: "item", EntityID: "i1"})

	linked := tracker.ForEntity("animal", "a1")
	if len(linked) != 1 || linked[0].Title != "check hoof" {
		t.Fatalf("unexpected entity reminders: %+v", linked)
	}
}

func TestListSortedByDueDate(t *testing.T) {
	t.Parallel()

	tracker, _ := testTracker(t)
	ctx := context.Background()
	tracker.Schedule(ctx, Spec{Title: "later", DueDate: trackerNow.Add(48 * time.Hour)})
	tracker.Schedule(ctx, Spec{Title: "sooner", DueDate: trackerNow.Add(time.Hour)})

	listed := tracker.List()
	if listed[0].Title != "sooner" || listed[1].Title != "later" {
		t.Fatalf("expected due-date ordering, got %+v", listed)
	}
}

func TestDeleteAndReload(t *testing.T) {
	t.Parallel()

	tracker, persist := testTracker(t)
	ctx := context.Background()
	kept := tracker.Schedule(ctx, Spec{Title: "kept", DueDate: trackerNow.Add(time.Hour)})
	dropped := tracker.Schedule(ctx, Spec{Title: "dropped", DueDate: trackerNow.Add(time.Hour)})

	if !tracker.Delete(ctx, dropped.ID) {
		t.Fatalf("expected delete to succeed")
	}

	reloaded := New(persist, clock.RealClock{}, slog.Default())
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	listed := reloaded.List()
	if len(listed) != 1 || listed[0].ID != kept.ID {
		t.Fatalf("reloaded collection mismatch: %+v", listed)
	}
}

func TestLoadMissingKeyIsFreshInstall(t *testing.T) {
	t.Parallel()

	tracker, _ := testTracker(t)
	if err := tracker.Load(context.Background()); err != nil {
		t.Fatalf("missing key must not error: %v", err)
	}
}
