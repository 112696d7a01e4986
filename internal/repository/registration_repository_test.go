package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/campuslife/campus-events-api/internal/models"
)

func newRegistrationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func registrationDetailRows(id string, checkedIn bool) *sqlmock.Rows {
	var at interface{}
	if checkedIn {
		at = time.Now()
	}
	return sqlmock.NewRows([]string{
		"id", "event_id", "user_id", "qr_code", "status", "checked_in", "checked_in_at",
		"feedback_shown", "feedback_given", "created_at",
		"attendee_name", "attendee_email", "event_title",
	}).AddRow(id, "ev-1", "stu-1", "qr-token", models.RegistrationStatusConfirmed, checkedIn, at,
		false, false, time.Now(), "Asha Verma", "asha@example.edu", "Tech Talk")
}

func TestRegistrationRepositoryFindByEventAndToken(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE r.event_id = $1 AND r.qr_code = $2 LIMIT 1")).
		WithArgs("ev-1", "qr-token").
		WillReturnRows(registrationDetailRows("reg-1", false))

	detail, err := repo.FindByEventAndToken(context.Background(), "ev-1", "qr-token")
	require.NoError(t, err)
	require.Equal(t, "reg-1", detail.ID)
	require.Equal(t, "Asha Verma", detail.AttendeeName)
	require.False(t, detail.CheckedIn)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryFindByEventAndTokenMiss(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE r.event_id = $1 AND r.qr_code = $2 LIMIT 1")).
		WithArgs("ev-2", "qr-token").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByEventAndToken(context.Background(), "ev-2", "qr-token")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryCheckIn(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	at := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE registrations SET checked_in = TRUE, checked_in_at = $2 WHERE id = $1 AND checked_in = FALSE")).
		WithArgs("reg-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := repo.CheckIn(context.Background(), "reg-1", at)
	require.NoError(t, err)
	require.True(t, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryCheckInAlreadyDone(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	at := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE registrations SET checked_in = TRUE, checked_in_at = $2 WHERE id = $1 AND checked_in = FALSE")).
		WithArgs("reg-1", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := repo.CheckIn(context.Background(), "reg-1", at)
	require.NoError(t, err)
	require.False(t, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryMarkFeedbackShown(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE registrations SET feedback_shown = TRUE WHERE event_id = $1 AND user_id = $2 AND feedback_shown = FALSE")).
		WithArgs("ev-1", "stu-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkFeedbackShown(context.Background(), "ev-1", "stu-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
