package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campuslife/campus-events-api/internal/models"
)

// FeedbackRepository handles persistence of event feedback.
type FeedbackRepository struct {
	db *sqlx.DB
}

// NewFeedbackRepository constructs the repository.
func NewFeedbackRepository(db *sqlx.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// ListPending returns events the user attended that completed within the
// solicitation window and still lack feedback, newest first, capped at limit.
func (r *FeedbackRepository) ListPending(ctx context.Context, userID string, windowStart, now time.Time, limit int) ([]models.PendingFeedbackItem, error) {
	if limit <= 0 {
		limit = 3
	}
	const query = `SELECT e.id AS event_id, e.title AS event_title, e.end_time AS completed_at,
        u.full_name AS organizer_name, r.feedback_shown
        FROM registrations r
        JOIN events e ON e.id = r.event_id
        JOIN users u ON u.id = e.organizer_id
        WHERE r.user_id = $1
          AND r.checked_in = TRUE
          AND r.feedback_given = FALSE
          AND e.status = $2
          AND e.end_time >= $3
          AND e.end_time <= $4
        ORDER BY e.end_time DESC
        LIMIT $5`
	var items []models.PendingFeedbackItem
	if err := r.db.SelectContext(ctx, &items, query, userID, models.EventStatusCompleted, windowStart, now, limit); err != nil {
		return nil, fmt.Errorf("list pending feedback: %w", err)
	}
	return items, nil
}

// Submit inserts the feedback row and flips the registration's
// feedback_given flag by primary key inside one transaction, so partial
// application is impossible. The (event_id, user_id) unique index on
// feedback rejects duplicate submissions.
func (r *FeedbackRepository) Submit(ctx context.Context, fb *models.Feedback, registrationID string) error {
	if fb.ID == "" {
		fb.ID = uuid.NewString()
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin feedback tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insertQuery = `INSERT INTO feedback (id, event_id, user_id, rating, comment, created_at)
        VALUES (:id, :event_id, :user_id, :rating, :comment, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insertQuery, fb); err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("insert feedback: %w", err)
	}

	const updateQuery = `UPDATE registrations SET feedback_given = TRUE WHERE id = $1`
	if _, err := tx.ExecContext(ctx, updateQuery, registrationID); err != nil {
		return fmt.Errorf("mark feedback given: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit feedback tx: %w", err)
	}
	return nil
}

// FindByEventAndUser returns the feedback row for a (event, user) pair.
func (r *FeedbackRepository) FindByEventAndUser(ctx context.Context, eventID, userID string) (*models.Feedback, error) {
	const query = `SELECT id, event_id, user_id, rating, comment, created_at FROM feedback WHERE event_id = $1 AND user_id = $2 LIMIT 1`
	var fb models.Feedback
	if err := r.db.GetContext(ctx, &fb, query, eventID, userID); err != nil {
		return nil, err
	}
	return &fb, nil
}

// SummaryByEvent aggregates ratings for one event.
func (r *FeedbackRepository) SummaryByEvent(ctx context.Context, eventID string) (*models.FeedbackSummary, error) {
	const query = `SELECT $1::text AS event_id, COALESCE(AVG(rating), 0) AS average_rating, COUNT(*) AS response_count FROM feedback WHERE event_id = $1`
	var summary models.FeedbackSummary
	if err := r.db.GetContext(ctx, &summary, query, eventID); err != nil {
		if err == sql.ErrNoRows {
			return &models.FeedbackSummary{EventID: eventID}, nil
		}
		return nil, fmt.Errorf("feedback summary: %w", err)
	}
	return &summary, nil
}

// ListByEvent returns all feedback rows for an event, newest first.
func (r *FeedbackRepository) ListByEvent(ctx context.Context, eventID string) ([]models.Feedback, error) {
	const query = `SELECT id, event_id, user_id, rating, comment, created_at FROM feedback WHERE event_id = $1 ORDER BY created_at DESC`
	var rows []models.Feedback
	if err := r.db.SelectContext(ctx, &rows, query, eventID); err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	return rows, nil
}
