package state

import (
	"context"
	"errors"
)

// ErrNotFound indicates an absent persistence key.
var ErrNotFound = errors.New("not found")

// Persistence key names for this subsystem. Values are opaque JSON blobs
// consumed only by farmalert; the prefix keeps them clear of unrelated
// domain data in a shared bucket.
const (
	// KeyRules holds the serialized rule definition list.
	KeyRules = "farmalert.rules"
	// KeyNotifications holds the bounded notification log.
	KeyNotifications = "farmalert.notifications"
	// KeyReminders holds the reminder list.
	KeyReminders = "farmalert.reminders"
	// KeyOfflineQueue holds the pending offline operations.
	KeyOfflineQueue = "farmalert.offline.queue"
	// KeyOfflineFlag holds the last observed connectivity flag.
	KeyOfflineFlag = "farmalert.offline.flag"
	// KeySettings holds per-user notification settings.
	KeySettings = "farmalert.settings"
)

// Store is the opaque get/set-by-key persistence adapter.
// Params: whole-value reads and overwrites of single keys.
// Returns: backend persistence behavior; callers serialize writers.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Close() error
}
