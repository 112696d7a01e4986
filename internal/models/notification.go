package models

import "time"

// NotificationKind categorises notifications for client rendering.
type NotificationKind string

const (
	NotificationKindEventCompleted  NotificationKind = "EVENT_COMPLETED"
	NotificationKindNewRegistration NotificationKind = "NEW_REGISTRATION"
	NotificationKindGeneral         NotificationKind = "GENERAL"
)

// Notification belongs to exactly one user; only that user may mark it read.
type Notification struct {
	ID        string           `db:"id" json:"id"`
	UserID    string           `db:"user_id" json:"user_id"`
	Title     string           `db:"title" json:"title"`
	Body      string           `db:"body" json:"body"`
	Kind      NotificationKind `db:"kind" json:"kind"`
	EventID   *string          `db:"event_id" json:"event_id,omitempty"`
	Read      bool             `db:"read" json:"read"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// NotificationFilter captures listing criteria for a user's notifications.
type NotificationFilter struct {
	UnreadOnly bool
	Page       int
	PageSize   int
}
