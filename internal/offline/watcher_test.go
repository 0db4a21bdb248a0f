package offline

import (
	"context"
	"log/slog"
	"testing"

	"farmalert/internal/state"
)

func TestRegisterReportsCurrentStateImmediately(t *testing.T) {
	t.Parallel()

	watcher := NewWatcher(state.NewMemoryStore(), slog.Default())

	var seen []bool
	watcher.Register(func(online bool) { seen = append(seen, online) })
	if len(seen) != 1 || !seen[0] {
		t.Fatalf("listener must receive the current state on registration, got %v", seen)
	}

	watcher.Set(context.Background(), false)
	late := make([]bool, 0, 1)
	watcher.Register(func(online bool) { late = append(late, online) })
	if len(late) != 1 || late[0] {
		t.Fatalf("late registrant must see the offline state, got %v", late)
	}
}

func TestSetFiresOnlyOnTransitions(t *testing.T) {
	t.Parallel()

	watcher := NewWatcher(state.NewMemoryStore(), slog.Default())
	ctx := context.Background()

	var seen []bool
	watcher.Register(func(online bool) { seen = append(seen, online) })

	watcher.Set(ctx, true) // already online
	watcher.Set(ctx, false)
	watcher.Set(ctx, false) // repeated report
	watcher.Set(ctx, true)

	want := []bool{true, false, true}
	if len(seen) != len(want) {
		t.Fatalf("expected %d deliveries, got %v", len(want), seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("unexpected transition sequence: %v", seen)
		}
	}
}

func TestOfflineFlagSurvivesReload(t *testing.T) {
	t.Parallel()

	persist := state.NewMemoryStore()
	ctx := context.Background()

	watcher := NewWatcher(persist, slog.Default())
	watcher.Set(ctx, false)

	restarted := NewWatcher(persist, slog.Default())
	if err := restarted.Load(ctx); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if restarted.Online() {
		t.Fatalf("offline flag must survive restart")
	}
}

func TestLoadMissingFlagDefaultsOnline(t *testing.T) {
	t.Parallel()

	watcher := NewWatcher(state.NewMemoryStore(), slog.Default())
	if err := watcher.Load(context.Background()); err != nil {
		t.Fatalf("missing flag must not error: %v", err)
	}
	if !watcher.Online() {
		t.Fatalf("fresh installs start online")
	}
}
