package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campuslife/campus-events-api/internal/models"
)

// EventRepository handles persistence of events.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs the repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `e.id, e.title, e.description, e.category, e.location, e.start_time, e.end_time, e.timezone, e.capacity, e.price, e.poster_url, e.organizer_id, e.status, e.created_at, e.updated_at`

// List returns events filtered by the provided criteria.
func (r *EventRepository) List(ctx context.Context, filter models.EventFilter) ([]models.EventDetail, int, error) {
	base := `FROM events e
LEFT JOIN users u ON u.id = e.organizer_id`
	var conditions []string
	var args []interface{}

	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("e.category = $%d", len(args)+1))
		args = append(args, filter.Category)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.OrganizerID != "" {
		conditions = append(conditions, fmt.Sprintf("e.organizer_id = $%d", len(args)+1))
		args = append(args, filter.OrganizerID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(e.title) LIKE $%d OR LOWER(e.description) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"start_time": "e.start_time",
		"end_time":   "e.end_time",
		"created_at": "e.created_at",
		"title":      "e.title",
		"price":      "e.price",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "start_time"
	}
	orderBy := allowedSorts[sortBy]
	if orderBy == "" {
		orderBy = "e.start_time"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s,
        u.full_name AS organizer_name, u.email AS organizer_email,
        (SELECT COUNT(*) FROM registrations r WHERE r.event_id = e.id AND r.status = 'CONFIRMED') AS registered_count,
        (SELECT COUNT(*) FROM registrations r WHERE r.event_id = e.id AND r.checked_in = TRUE) AS checked_in_count
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, eventColumns, base+clause, orderBy, order, size, offset)

	var events []models.EventDetail
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}
	return events, total, nil
}

// FindByID returns an event by its ID.
func (r *EventRepository) FindByID(ctx context.Context, id string) (*models.Event, error) {
	query := fmt.Sprintf(`SELECT %s FROM events e WHERE e.id = $1`, eventColumns)
	var event models.Event
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		return nil, err
	}
	return &event, nil
}

// FindDetailByID returns an event with organizer and attendance context.
func (r *EventRepository) FindDetailByID(ctx context.Context, id string) (*models.EventDetail, error) {
	query := fmt.Sprintf(`SELECT %s,
        u.full_name AS organizer_name, u.email AS organizer_email,
        (SELECT COUNT(*) FROM registrations r WHERE r.event_id = e.id AND r.status = 'CONFIRMED') AS registered_count,
        (SELECT COUNT(*) FROM registrations r WHERE r.event_id = e.id AND r.checked_in = TRUE) AS checked_in_count
        FROM events e
        LEFT JOIN users u ON u.id = e.organizer_id
        WHERE e.id = $1`, eventColumns)
	var detail models.EventDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Create persists a new event record.
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
	if event.Status == "" {
		event.Status = models.ClassifyEventStatus(event.StartTime, event.EndTime, now)
	}
	const query = `INSERT INTO events (id, title, description, category, location, start_time, end_time, timezone, capacity, price, poster_url, organizer_id, status, created_at, updated_at)
        VALUES (:id, :title, :description, :category, :location, :start_time, :end_time, :timezone, :capacity, :price, :poster_url, :organizer_id, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// Update persists mutable event fields.
func (r *EventRepository) Update(ctx context.Context, event *models.Event) error {
	event.UpdatedAt = time.Now().UTC()
	const query = `UPDATE events SET title = :title, description = :description, category = :category, location = :location, start_time = :start_time, end_time = :end_time, timezone = :timezone, capacity = :capacity, price = :price, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return nil
}

// UpdatePosterURL stores the poster retrieval URL for an event.
func (r *EventRepository) UpdatePosterURL(ctx context.Context, id, url string) error {
	const query = `UPDATE events SET poster_url = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, url, time.Now().UTC()); err != nil {
		return fmt.Errorf("update poster url: %w", err)
	}
	return nil
}

// ListOutOfSync returns events whose stored status disagrees with the
// time-derived status at the provided instant.
func (r *EventRepository) ListOutOfSync(ctx context.Context, now time.Time) ([]models.Event, error) {
	query := fmt.Sprintf(`SELECT %s FROM events e
        WHERE (e.status = $1 AND e.start_time <= $3)
           OR (e.status IN ($1, $2) AND e.end_time < $3)`, eventColumns)
	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, query,
		models.EventStatusUpcoming, models.EventStatusOngoing, now); err != nil {
		return nil, fmt.Errorf("list out-of-sync events: %w", err)
	}
	return events, nil
}

// TransitionStatus updates an event's status only when the stored status
// still matches the expected previous value. Returns false when another
// writer already applied the transition.
func (r *EventRepository) TransitionStatus(ctx context.Context, id string, from, to models.EventStatus) (bool, error) {
	const query = `UPDATE events SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, from, to, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("transition event status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition event status: %w", err)
	}
	return affected > 0, nil
}

// CountConfirmedRegistrations returns the number of confirmed registrations.
func (r *EventRepository) CountConfirmedRegistrations(ctx context.Context, eventID string) (int, error) {
	const query = `SELECT COUNT(*) FROM registrations WHERE event_id = $1 AND status = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, eventID, models.RegistrationStatusConfirmed); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return count, nil
}
