package domain

import "time"

// NotificationType classifies persisted log entries.
// Params: constants treatment/breeding/task/inventory/health/general.
// Returns: entry type used by log filters.
type NotificationType string

const (
	// NotificationTreatment marks treatment reminders and alerts.
	NotificationTreatment NotificationType = "treatment"
	// NotificationBreeding marks breeding cycle entries.
	NotificationBreeding NotificationType = "breeding"
	// NotificationTask marks task entries.
	NotificationTask NotificationType = "task"
	// NotificationInventory marks stock entries.
	NotificationInventory NotificationType = "inventory"
	// NotificationHealth marks health entries.
	NotificationHealth NotificationType = "health"
	// NotificationGeneral marks everything else.
	NotificationGeneral NotificationType = "general"
)

// Notification is one persisted, user-facing log entry.
// Params: identity, display fields, read state, and an opaque data map.
// Returns: durable record of a delivered alert or reminder.
type Notification struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	Type      NotificationType `json:"type"`
	Priority  Priority         `json:"priority"`
	Timestamp time.Time        `json:"timestamp"`
	Read      bool             `json:"read"`
	Data      map[string]any   `json:"data,omitempty"`
}

// NotificationSettings holds per-user delivery preferences.
// Params: native delivery permission and sound flag.
// Returns: settings blob persisted under its own key.
type NotificationSettings struct {
	NativeEnabled bool `json:"native_enabled"`
	SoundEnabled  bool `json:"sound_enabled"`
}

// NotificationTypeForCategory maps a rule category onto a log entry type.
// Params: alert category.
// Returns: closest notification type, general when unmapped.
func NotificationTypeForCategory(category Category) NotificationType {
	switch category {
	case CategoryHealth:
		return NotificationHealth
	case CategoryBreeding:
		return NotificationBreeding
	case CategoryInventory:
		return NotificationInventory
	default:
		return NotificationGeneral
	}
}
