package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campuslife/campus-events-api/internal/models"
)

// RegistrationRepository handles persistence of event registrations.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

const registrationColumns = `r.id, r.event_id, r.user_id, r.qr_code, r.status, r.checked_in, r.checked_in_at, r.feedback_shown, r.feedback_given, r.created_at`

// IsUniqueViolation reports whether the error is a Postgres unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// Create persists a new registration. The (event_id, user_id) unique index
// rejects duplicate registrations at the store level.
func (r *RegistrationRepository) Create(ctx context.Context, reg *models.Registration) error {
	if reg.ID == "" {
		reg.ID = uuid.NewString()
	}
	if reg.QRCode == "" {
		reg.QRCode = uuid.NewString()
	}
	if reg.Status == "" {
		reg.Status = models.RegistrationStatusConfirmed
	}
	if reg.CreatedAt.IsZero() {
		reg.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO registrations (id, event_id, user_id, qr_code, status, checked_in, checked_in_at, feedback_shown, feedback_given, created_at)
        VALUES (:id, :event_id, :user_id, :qr_code, :status, :checked_in, :checked_in_at, :feedback_shown, :feedback_given, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, reg); err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("create registration: %w", err)
	}
	return nil
}

// FindByID returns a registration by identifier.
func (r *RegistrationRepository) FindByID(ctx context.Context, id string) (*models.Registration, error) {
	query := fmt.Sprintf(`SELECT %s FROM registrations r WHERE r.id = $1`, registrationColumns)
	var reg models.Registration
	if err := r.db.GetContext(ctx, &reg, query, id); err != nil {
		return nil, err
	}
	return &reg, nil
}

// FindByEventAndUser returns the registration for a (event, user) pair.
func (r *RegistrationRepository) FindByEventAndUser(ctx context.Context, eventID, userID string) (*models.Registration, error) {
	query := fmt.Sprintf(`SELECT %s FROM registrations r WHERE r.event_id = $1 AND r.user_id = $2 LIMIT 1`, registrationColumns)
	var reg models.Registration
	if err := r.db.GetContext(ctx, &reg, query, eventID, userID); err != nil {
		return nil, err
	}
	return &reg, nil
}

// FindByEventAndToken resolves a QR redemption token scoped to one event.
// A token valid for a different event is a miss, indistinguishable from a
// forged token.
func (r *RegistrationRepository) FindByEventAndToken(ctx context.Context, eventID, qrCode string) (*models.RegistrationDetail, error) {
	query := fmt.Sprintf(`SELECT %s, u.full_name AS attendee_name, u.email AS attendee_email, e.title AS event_title
        FROM registrations r
        LEFT JOIN users u ON u.id = r.user_id
        LEFT JOIN events e ON e.id = r.event_id
        WHERE r.event_id = $1 AND r.qr_code = $2 LIMIT 1`, registrationColumns)
	var detail models.RegistrationDetail
	if err := r.db.GetContext(ctx, &detail, query, eventID, qrCode); err != nil {
		return nil, err
	}
	return &detail, nil
}

// CheckIn stamps the registration as checked in only when it is not already.
// The conditional write keeps concurrent duplicate scans idempotent and
// guarantees checked_in_at is set exactly once.
func (r *RegistrationRepository) CheckIn(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `UPDATE registrations SET checked_in = TRUE, checked_in_at = $2 WHERE id = $1 AND checked_in = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("check in registration: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check in registration: %w", err)
	}
	return affected > 0, nil
}

// MarkFeedbackShown records that the feedback prompt was presented. The flag
// is monotonic; re-marking is a no-op.
func (r *RegistrationRepository) MarkFeedbackShown(ctx context.Context, eventID, userID string) error {
	const query = `UPDATE registrations SET feedback_shown = TRUE WHERE event_id = $1 AND user_id = $2 AND feedback_shown = FALSE`
	if _, err := r.db.ExecContext(ctx, query, eventID, userID); err != nil {
		return fmt.Errorf("mark feedback shown: %w", err)
	}
	return nil
}

// ListAttendees returns registrations for an event with attendee context.
func (r *RegistrationRepository) ListAttendees(ctx context.Context, eventID string) ([]models.RegistrationDetail, error) {
	query := fmt.Sprintf(`SELECT %s, u.full_name AS attendee_name, u.email AS attendee_email, e.title AS event_title
        FROM registrations r
        LEFT JOIN users u ON u.id = r.user_id
        LEFT JOIN events e ON e.id = r.event_id
        WHERE r.event_id = $1 AND r.status = $2
        ORDER BY u.full_name ASC`, registrationColumns)
	var attendees []models.RegistrationDetail
	if err := r.db.SelectContext(ctx, &attendees, query, eventID, models.RegistrationStatusConfirmed); err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	return attendees, nil
}

// ListByUser returns a user's registrations ordered by most recent.
func (r *RegistrationRepository) ListByUser(ctx context.Context, userID string) ([]models.RegistrationDetail, error) {
	query := fmt.Sprintf(`SELECT %s, u.full_name AS attendee_name, u.email AS attendee_email, e.title AS event_title
        FROM registrations r
        LEFT JOIN users u ON u.id = r.user_id
        LEFT JOIN events e ON e.id = r.event_id
        WHERE r.user_id = $1
        ORDER BY r.created_at DESC`, registrationColumns)
	var registrations []models.RegistrationDetail
	if err := r.db.SelectContext(ctx, &registrations, query, userID); err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return registrations, nil
}
