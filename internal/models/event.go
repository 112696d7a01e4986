package models

import "time"

// EventStatus is the derived temporal phase of an event.
type EventStatus string

const (
	EventStatusUpcoming  EventStatus = "UPCOMING"
	EventStatusOngoing   EventStatus = "ONGOING"
	EventStatusCompleted EventStatus = "COMPLETED"
)

// ClassifyEventStatus derives the lifecycle status from the schedule and
// current time. Stored status is a cached projection of this function.
func ClassifyEventStatus(start, end, now time.Time) EventStatus {
	switch {
	case now.Before(start):
		return EventStatusUpcoming
	case now.After(end):
		return EventStatusCompleted
	default:
		return EventStatusOngoing
	}
}

// Event represents an event record.
type Event struct {
	ID          string      `db:"id" json:"id"`
	Title       string      `db:"title" json:"title"`
	Description string      `db:"description" json:"description"`
	Category    string      `db:"category" json:"category"`
	Location    string      `db:"location" json:"location"`
	StartTime   time.Time   `db:"start_time" json:"start_time"`
	EndTime     time.Time   `db:"end_time" json:"end_time"`
	Timezone    string      `db:"timezone" json:"timezone"`
	Capacity    int         `db:"capacity" json:"capacity"`
	Price       float64     `db:"price" json:"price"`
	PosterURL   *string     `db:"poster_url" json:"poster_url,omitempty"`
	OrganizerID string      `db:"organizer_id" json:"organizer_id"`
	Status      EventStatus `db:"status" json:"status"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}

// DerivedStatus returns the time-derived status for the event's schedule.
func (e *Event) DerivedStatus(now time.Time) EventStatus {
	return ClassifyEventStatus(e.StartTime, e.EndTime, now)
}

// EventDetail extends Event with organizer and attendance context.
type EventDetail struct {
	Event
	OrganizerName    string `db:"organizer_name" json:"organizer_name"`
	OrganizerEmail   string `db:"organizer_email" json:"organizer_email"`
	RegisteredCount  int    `db:"registered_count" json:"registered_count"`
	CheckedInCount   int    `db:"checked_in_count" json:"checked_in_count"`
}

// EventFilter captures filtering criteria for listing events.
type EventFilter struct {
	Category    string
	Status      EventStatus
	OrganizerID string
	Search      string
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}

// EventTransitions reports the outcome of a lifecycle batch transition.
type EventTransitions struct {
	StartedEvents   []Event `json:"started_events"`
	CompletedEvents []Event `json:"completed_events"`
}
