package domain

import "time"

// Reminder is one due-date-tracked item independent of rule evaluation.
// Params: identity, due date, and the domain entity it points at.
// Returns: tracker record classified as upcoming or overdue by due date.
type Reminder struct {
	ID         string           `json:"id"`
	Type       NotificationType `json:"type"`
	Title      string           `json:"title"`
	Body       string           `json:"body"`
	DueDate    time.Time        `json:"due_date"`
	EntityID   string           `json:"entity_id,omitempty"`
	EntityType string           `json:"entity_type,omitempty"`
	Priority   Priority         `json:"priority"`
	Dismissed  bool             `json:"dismissed"`
}

// Overdue reports whether the reminder's due date has passed.
// Params: current time.
// Returns: true when due date is strictly before now.
func (r Reminder) Overdue(now time.Time) bool {
	return r.DueDate.Before(now)
}
