package models

import "time"

// Feedback holds one rating and optional comment per user and event.
type Feedback struct {
	ID        string    `db:"id" json:"id"`
	EventID   string    `db:"event_id" json:"event_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Rating    int       `db:"rating" json:"rating"`
	Comment   string    `db:"comment" json:"comment"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PendingFeedbackItem describes one completed, attended event still awaiting
// the caller's feedback within the solicitation window.
type PendingFeedbackItem struct {
	EventID       string    `db:"event_id" json:"event_id"`
	EventTitle    string    `db:"event_title" json:"event_title"`
	CompletedAt   time.Time `db:"completed_at" json:"completed_at"`
	OrganizerName string    `db:"organizer_name" json:"organizer_name"`
	FeedbackShown bool      `db:"feedback_shown" json:"feedback_shown"`
}

// FeedbackSummary aggregates ratings for an event.
type FeedbackSummary struct {
	EventID       string  `db:"event_id" json:"event_id"`
	AverageRating float64 `db:"average_rating" json:"average_rating"`
	ResponseCount int     `db:"response_count" json:"response_count"`
}
