package notifylog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"farmalert/internal/clock"
	"farmalert/internal/domain"
	"farmalert/internal/state"
)

type fakeNative struct {
	granted   bool
	delivered []domain.Notification
	err       error
}

func (f *fakeNative) Granted() bool { return f.granted }

func (f *fakeNative) Notify(_ context.Context, n domain.Notification) error {
	f.delivered = append(f.delivered, n)
	return f.err
}

type fakeSound struct {
	running bool
	played  int
	err     error
}

func (f *fakeSound) Running() bool { return f.running }

func (f *fakeSound) Play(context.Context) error {
	f.played++
	return f.err
}

func testLog(t *testing.T, opts ...Option) (*Log, *state.MemoryStore) {
	t.Helper()
	persist := state.NewMemoryStore()
	log := New(persist, clock.Func(func() time.Time {
		return time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)
	}), slog.Default(), opts...)
	return log, persist
}

func TestRecordCapsAtOneHundredNewestFirst(t *testing.T) {
	t.Parallel()

	log, _ := testLog(t)
	ctx := context.Background()
	for i := 0; i < 101; i++ {
		log.Record(ctx, fmt.Sprintf("alert %d", i), RecordOptions{})
	}

	entries := log.List(nil)
	if len(entries) != 100 {
		t.Fatalf("expected log capped at 100, got %d", len(entries))
	}
	if entries[0].Title != "alert 100" {
		t.Fatalf("expected newest entry first, got %q", entries[0].Title)
	}
	for _, entry := range entries {
		if entry.Title == "alert 0" {
			t.Fatalf("oldest entry must be dropped")
		}
	}
}

func TestRecordAssignsDefaults(t *testing.T) {
	t.Parallel()

	log, _ := testLog(t)
	recorded := log.Record(context.Background(), "Water low", RecordOptions{})
	if recorded.ID == "" {
		t.Fatalf("expected generated id")
	}
	if recorded.Type != domain.NotificationGeneral {
		t.Fatalf("expected general type default, got %q", recorded.Type)
	}
	if recorded.Priority != domain.PriorityMedium {
		t.Fatalf("expected medium priority default, got %q", recorded.Priority)
	}
	if recorded.Read {
		t.Fatalf("new entries must be unread")
	}
}

func TestUnreadCountAndMarkRead(t *testing.T) {
	t.Parallel()

	log, _ := testLog(t)
	ctx := context.Background()
	first := log.Record(ctx, "one", RecordOptions{})
	log.Record(ctx, "two", RecordOptions{})

	if got := log.UnreadCount(); got != 2 {
		t.Fatalf("expected 2 unread, got %d", got)
	}
	if !log.MarkRead(ctx, first.ID) {
		t.Fatalf("expected mark read to find the entry")
	}
	if got := log.UnreadCount(); got != 1 {
		t.Fatalf("expected 1 unread after mark, got %d", got)
	}
	if log.MarkRead(ctx, "missing") {
		t.Fatalf("unknown id must report false")
	}

	log.MarkAllRead(ctx)
	if got := log.UnreadCount(); got != 0 {
		t.Fatalf("expected 0 unread after mark all, got %d", got)
	}
}

func TestListFilters(t *testing.T) {
	t.Parallel()

	log, _ := testLog(t)
	ctx := context.Background()
	health := log.Record(ctx, "fever", RecordOptions{Type: domain.NotificationHealth})
	log.Record(ctx, "restock", RecordOptions{Type: domain.NotificationInventory})
	log.MarkRead(ctx, health.ID)

	byType := log.List(&Filter{Type: domain.NotificationHealth})
	if len(byType) != 1 || byType[0].ID != health.ID {
		t.Fatalf("unexpected type filter result: %+v", byType)
	}

	unread := log.List(&Filter{UnreadOnly: true})
	if len(unread) != 1 || unread[0].Title != "restock" {
		t.Fatalf("unexpected unread filter result: %+v", unread)
	}
}

func TestNativeDeliveryGatedBySettingsAndPermission(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	native := &fakeNative{granted: true}
	log, _ := testLog(t, WithNative(native))
	log.Record(ctx, "setting off", RecordOptions{})
	if len(native.delivered) != 0 {
		t.Fatalf("native delivery must respect the disabled setting")
	}

	if err := log.SetSettings(ctx, domain.NotificationSettings{NativeEnabled: true}); err != nil {
		t.Fatalf("set settings failed: %v", err)
	}
	log.Record(ctx, "setting on", RecordOptions{})
	if len(native.delivered) != 1 {
		t.Fatalf("expected one native delivery, got %d", len(native.delivered))
	}

	native.granted = false
	log.Record(ctx, "permission revoked", RecordOptions{})
	if len(native.delivered) != 1 {
		t.Fatalf("native delivery must respect revoked permission")
	}
}

func TestDeliveryFailuresNeverLoseTheLogEntry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	native := &fakeNative{granted: true, err: errors.New("bridge down")}
	sound := &fakeSound{running: true, err: errors.New("no output")}
	log, _ := testLog(t, WithNative(native), WithSound(sound))
	if err := log.SetSettings(ctx, domain.NotificationSettings{NativeEnabled: true, SoundEnabled: true}); err != nil {
		t.Fatalf("set settings failed: %v", err)
	}

	log.Record(ctx, "still recorded", RecordOptions{})
	if got := len(log.List(nil)); got != 1 {
		t.Fatalf("log entry must survive delivery failures, got %d entries", got)
	}
	if sound.played != 1 {
		t.Fatalf("expected one sound attempt, got %d", sound.played)
	}
}

func TestSoundSkippedWhenOutputNotRunning(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sound := &fakeSound{running: false}
	log, _ := testLog(t, WithSound(sound))
	if err := log.SetSettings(ctx, domain.NotificationSettings{SoundEnabled: true}); err != nil {
		t.Fatalf("set settings failed: %v", err)
	}

	log.Record(ctx, "quiet", RecordOptions{})
	if sound.played != 0 {
		t.Fatalf("sound must not play while the output is stopped")
	}
}

func TestSubscribeReceivesEachInsert(t *testing.T) {
	t.Parallel()

	log, _ := testLog(t)
	var seen []string
	log.Subscribe(func(n domain.Notification) { seen = append(seen, n.Title) })

	ctx := context.Background()
	log.Record(ctx, "first", RecordOptions{})
	log.Record(ctx, "second", RecordOptions{})
	if len(seen) != 2 || seen[0] != "first" || seen[1] != "second" {
		t.Fatalf("unexpected subscriber deliveries: %v", seen)
	}
}

func TestDeleteAndClear(t *testing.T) {
	t.Parallel()

	log, _ := testLog(t)
	ctx := context.Background()
	first := log.Record(ctx, "one", RecordOptions{})
	log.Record(ctx, "two", RecordOptions{})

	if !log.Delete(ctx, first.ID) {
		t.Fatalf("expected delete to succeed")
	}
	if log.Delete(ctx, first.ID) {
		t.Fatalf("expected second delete to report not found")
	}
	log.Clear(ctx)
	if got := len(log.List(nil)); got != 0 {
		t.Fatalf("expected empty log after clear, got %d", got)
	}
}

func TestLoadRoundTripsEntriesAndSettings(t *testing.T) {
	t.Parallel()

	log, persist := testLog(t)
	ctx := context.Background()
	recorded := log.Record(ctx, "persisted", RecordOptions{Type: domain.NotificationTask})
	if err := log.SetSettings(ctx, domain.NotificationSettings{SoundEnabled: true}); err != nil {
		t.Fatalf("set settings failed: %v", err)
	}

	reloaded := New(persist, clock.RealClock{}, slog.Default())
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	entries := reloaded.List(nil)
	if len(entries) != 1 || entries[0].ID != recorded.ID {
		t.Fatalf("entries did not survive reload: %+v", entries)
	}
	if settings := reloaded.Settings(); !settings.SoundEnabled || settings.NativeEnabled {
		t.Fatalf("settings did not survive reload: %+v", settings)
	}
}

func TestLoadMissingKeysIsFreshInstall(t *testing.T) {
	t.Parallel()

	log, _ := testLog(t)
	if err := log.Load(context.Background()); err != nil {
		t.Fatalf("missing keys must not error: %v", err)
	}
}
