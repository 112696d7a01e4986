package models

import "time"

// RegistrationStatus enumerates registration states.
type RegistrationStatus string

const (
	RegistrationStatusConfirmed RegistrationStatus = "CONFIRMED"
	RegistrationStatusCancelled RegistrationStatus = "CANCELLED"
)

// Registration links a user to an event and carries the QR redemption token.
// checked_in, feedback_shown and feedback_given are monotonic: once set they
// are never reset through the API.
type Registration struct {
	ID            string             `db:"id" json:"id"`
	EventID       string             `db:"event_id" json:"event_id"`
	UserID        string             `db:"user_id" json:"user_id"`
	QRCode        string             `db:"qr_code" json:"qr_code"`
	Status        RegistrationStatus `db:"status" json:"status"`
	CheckedIn     bool               `db:"checked_in" json:"checked_in"`
	CheckedInAt   *time.Time         `db:"checked_in_at" json:"checked_in_at,omitempty"`
	FeedbackShown bool               `db:"feedback_shown" json:"feedback_shown"`
	FeedbackGiven bool               `db:"feedback_given" json:"feedback_given"`
	CreatedAt     time.Time          `db:"created_at" json:"created_at"`
}

// RegistrationDetail extends Registration with attendee context.
type RegistrationDetail struct {
	Registration
	AttendeeName  string `db:"attendee_name" json:"attendee_name"`
	AttendeeEmail string `db:"attendee_email" json:"attendee_email"`
	EventTitle    string `db:"event_title" json:"event_title"`
}

// CheckInResult wraps the registration affected by a check-in attempt.
type CheckInResult struct {
	Registration RegistrationDetail `json:"registration"`
	Message      string             `json:"message"`
	AlreadyDone  bool               `json:"already_checked_in"`
}
