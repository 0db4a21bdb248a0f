package state

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Get(ctx, KeyRules); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.Put(ctx, KeyRules, []byte(`[]`)); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	value, err := store.Get(ctx, KeyRules)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(value) != `[]` {
		t.Fatalf("unexpected value %q", value)
	}

	if err := store.Delete(ctx, KeyRules); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := store.Get(ctx, KeyRules); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.Put(ctx, KeySettings, []byte(`{"sound_enabled":true}`)); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	value, err := store.Get(ctx, KeySettings)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	value[0] = 'X'

	again, err := store.Get(ctx, KeySettings)
	if err != nil {
		t.Fatalf("second get failed: %v", err)
	}
	if again[0] != '{' {
		t.Fatalf("stored value was mutated through returned slice")
	}
}

func TestMemoryStoreKeysSorted(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.Put(ctx, KeyReminders, []byte(`[]`))
	_ = store.Put(ctx, KeyNotifications, []byte(`[]`))

	keys, err := store.Keys(ctx)
	if err != nil {
		t.Fatalf("keys failed: %v", err)
	}
	if len(keys) != 2 || keys[0] != KeyNotifications || keys[1] != KeyReminders {
		t.Fatalf("unexpected key order: %v", keys)
	}
}
