package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/campuslife/campus-events-api/internal/models"
)

func newEventRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func eventRows(id string, status models.EventStatus, start, end time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "title", "description", "category", "location", "start_time", "end_time",
		"timezone", "capacity", "price", "poster_url", "organizer_id", "status", "created_at", "updated_at",
	}).AddRow(id, "Tech Talk", "desc", "SEMINAR", "Hall A", start, end,
		"Asia/Kolkata", 100, 0.0, nil, "org-1", status, start.Add(-24*time.Hour), start.Add(-24*time.Hour))
}

func TestEventRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newEventRepoMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	start := time.Now().Add(time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("FROM events e WHERE e.id = $1")).
		WithArgs("ev-1").
		WillReturnRows(eventRows("ev-1", models.EventStatusUpcoming, start, start.Add(2*time.Hour)))

	event, err := repo.FindByID(context.Background(), "ev-1")
	require.NoError(t, err)
	require.Equal(t, "ev-1", event.ID)
	require.Equal(t, models.EventStatusUpcoming, event.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryListOutOfSync(t *testing.T) {
	db, mock, cleanup := newEventRepoMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	now := time.Now().UTC()
	start := now.Add(-time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE (e.status = $1 AND e.start_time <= $3)")).
		WithArgs(models.EventStatusUpcoming, models.EventStatusOngoing, now).
		WillReturnRows(eventRows("ev-1", models.EventStatusUpcoming, start, start.Add(3*time.Hour)))

	events, err := repo.ListOutOfSync(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "ev-1", events[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryTransitionStatus(t *testing.T) {
	db, mock, cleanup := newEventRepoMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE events SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2")).
		WithArgs("ev-1", models.EventStatusUpcoming, models.EventStatusOngoing, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := repo.TransitionStatus(context.Background(), "ev-1", models.EventStatusUpcoming, models.EventStatusOngoing)
	require.NoError(t, err)
	require.True(t, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryTransitionStatusLostRace(t *testing.T) {
	db, mock, cleanup := newEventRepoMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE events SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2")).
		WithArgs("ev-1", models.EventStatusOngoing, models.EventStatusCompleted, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := repo.TransitionStatus(context.Background(), "ev-1", models.EventStatusOngoing, models.EventStatusCompleted)
	require.NoError(t, err)
	require.False(t, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryCountConfirmedRegistrations(t *testing.T) {
	db, mock, cleanup := newEventRepoMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM registrations WHERE event_id = $1 AND status = $2")).
		WithArgs("ev-1", models.RegistrationStatusConfirmed).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	count, err := repo.CountConfirmedRegistrations(context.Background(), "ev-1")
	require.NoError(t, err)
	require.Equal(t, 42, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
