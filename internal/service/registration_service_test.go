package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campuslife/campus-events-api/internal/models"
	appErrors "github.com/campuslife/campus-events-api/pkg/errors"
)

type mockRegistrationRepo struct {
	registrations map[string]models.RegistrationDetail
	byToken       map[string]string
	created       *models.Registration
	duplicate     bool
	checkInCalls  int
	shownCalls    int
}

func regKey(eventID, qrCode string) string { return eventID + "|" + qrCode }

func (m *mockRegistrationRepo) Create(ctx context.Context, reg *models.Registration) error {
	if m.duplicate {
		return &pq.Error{Code: "23505"}
	}
	if reg.ID == "" {
		reg.ID = "new-reg"
	}
	m.created = reg
	return nil
}

func (m *mockRegistrationRepo) FindByEventAndUser(ctx context.Context, eventID, userID string) (*models.Registration, error) {
	for _, d := range m.registrations {
		if d.EventID == eventID && d.UserID == userID {
			reg := d.Registration
			return &reg, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockRegistrationRepo) FindByEventAndToken(ctx context.Context, eventID, qrCode string) (*models.RegistrationDetail, error) {
	if id, ok := m.byToken[regKey(eventID, qrCode)]; ok {
		if d, ok := m.registrations[id]; ok {
			return &d, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockRegistrationRepo) CheckIn(ctx context.Context, id string, at time.Time) (bool, error) {
	m.checkInCalls++
	d, ok := m.registrations[id]
	if !ok || d.CheckedIn {
		return false, nil
	}
	d.CheckedIn = true
	d.CheckedInAt = &at
	m.registrations[id] = d
	return true, nil
}

func (m *mockRegistrationRepo) MarkFeedbackShown(ctx context.Context, eventID, userID string) error {
	m.shownCalls++
	return nil
}

func (m *mockRegistrationRepo) ListAttendees(ctx context.Context, eventID string) ([]models.RegistrationDetail, error) {
	var out []models.RegistrationDetail
	for _, d := range m.registrations {
		if d.EventID == eventID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockRegistrationRepo) ListByUser(ctx context.Context, userID string) ([]models.RegistrationDetail, error) {
	var out []models.RegistrationDetail
	for _, d := range m.registrations {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	return out, nil
}

type mockRegEventReader struct {
	events   map[string]models.Event
	regCount int
}

func (m *mockRegEventReader) FindByID(ctx context.Context, id string) (*models.Event, error) {
	if e, ok := m.events[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRegEventReader) CountConfirmedRegistrations(ctx context.Context, eventID string) (int, error) {
	return m.regCount, nil
}

type mockRegNotifier struct {
	registrations []string
}

func (m *mockRegNotifier) NewRegistration(event models.Event, attendeeName string) {
	m.registrations = append(m.registrations, event.ID)
}

func studentClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent, FullName: "Sam Student"}
}

func upcomingEvent(id string) models.Event {
	return models.Event{
		ID:        id,
		Title:     "Career Fair",
		Capacity:  100,
		StartTime: time.Now().Add(time.Hour),
		EndTime:   time.Now().Add(3 * time.Hour),
		Status:    models.EventStatusUpcoming,
	}
}

func TestRegistrationServiceRegister(t *testing.T) {
	repo := &mockRegistrationRepo{registrations: map[string]models.RegistrationDetail{}}
	events := &mockRegEventReader{events: map[string]models.Event{"ev-1": upcomingEvent("ev-1")}}
	notifier := &mockRegNotifier{}
	svc := NewRegistrationService(repo, events, notifier, nil, nil, zap.NewNop())

	reg, err := svc.Register(context.Background(), studentClaims(), "ev-1")
	require.NoError(t, err)
	assert.Equal(t, "stu-1", reg.UserID)
	assert.Equal(t, models.RegistrationStatusConfirmed, reg.Status)
	assert.NotEmpty(t, reg.QRCode)
	assert.Contains(t, notifier.registrations, "ev-1")
}

func TestRegistrationServiceRegisterDuplicate(t *testing.T) {
	repo := &mockRegistrationRepo{duplicate: true}
	events := &mockRegEventReader{events: map[string]models.Event{"ev-1": upcomingEvent("ev-1")}}
	svc := NewRegistrationService(repo, events, nil, nil, nil, zap.NewNop())

	_, err := svc.Register(context.Background(), studentClaims(), "ev-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRegistrationServiceRegisterFullEvent(t *testing.T) {
	event := upcomingEvent("ev-1")
	event.Capacity = 2
	events := &mockRegEventReader{events: map[string]models.Event{"ev-1": event}, regCount: 2}
	svc := NewRegistrationService(&mockRegistrationRepo{}, events, nil, nil, nil, zap.NewNop())

	_, err := svc.Register(context.Background(), studentClaims(), "ev-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrEventFull.Code, appErrors.FromError(err).Code)
}

func TestRegistrationServiceRegisterCompletedEvent(t *testing.T) {
	event := upcomingEvent("ev-1")
	event.StartTime = time.Now().Add(-3 * time.Hour)
	event.EndTime = time.Now().Add(-time.Hour)
	events := &mockRegEventReader{events: map[string]models.Event{"ev-1": event}}
	svc := NewRegistrationService(&mockRegistrationRepo{}, events, nil, nil, nil, zap.NewNop())

	_, err := svc.Register(context.Background(), studentClaims(), "ev-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func checkInFixture() (*mockRegistrationRepo, *RegistrationService) {
	repo := &mockRegistrationRepo{
		registrations: map[string]models.RegistrationDetail{
			"reg-1": {
				Registration: models.Registration{
					ID: "reg-1", EventID: "ev-1", UserID: "stu-1", QRCode: "tok-1",
					Status: models.RegistrationStatusConfirmed,
				},
				AttendeeName: "Sam Student",
			},
		},
		byToken: map[string]string{regKey("ev-1", "tok-1"): "reg-1"},
	}
	svc := NewRegistrationService(repo, &mockRegEventReader{}, nil, nil, nil, zap.NewNop())
	return repo, svc
}

func TestRegistrationServiceCheckInForbiddenForStudents(t *testing.T) {
	_, svc := checkInFixture()

	_, err := svc.CheckIn(context.Background(), studentClaims(), "ev-1", "tok-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestRegistrationServiceCheckInSuccess(t *testing.T) {
	repo, svc := checkInFixture()

	result, err := svc.CheckIn(context.Background(), organizerClaims(), "ev-1", "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "Check-in successful", result.Message)
	assert.False(t, result.AlreadyDone)
	assert.True(t, result.Registration.CheckedIn)
	require.NotNil(t, result.Registration.CheckedInAt)
	assert.True(t, repo.registrations["reg-1"].CheckedIn)
}

func TestRegistrationServiceCheckInIdempotent(t *testing.T) {
	repo, svc := checkInFixture()

	first, err := svc.CheckIn(context.Background(), organizerClaims(), "ev-1", "tok-1")
	require.NoError(t, err)
	firstStamp := repo.registrations["reg-1"].CheckedInAt

	second, err := svc.CheckIn(context.Background(), organizerClaims(), "ev-1", "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "Already checked in", second.Message)
	assert.True(t, second.AlreadyDone)
	assert.Equal(t, firstStamp, repo.registrations["reg-1"].CheckedInAt)
	assert.NotEqual(t, first.Message, second.Message)
}

func TestRegistrationServiceCheckInWrongEventToken(t *testing.T) {
	_, svc := checkInFixture()

	_, err := svc.CheckIn(context.Background(), organizerClaims(), "ev-other", "tok-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRegistrationServiceCheckInUnknownToken(t *testing.T) {
	_, svc := checkInFixture()

	_, err := svc.CheckIn(context.Background(), organizerClaims(), "ev-1", "forged")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRegistrationServiceExportAttendeesCSV(t *testing.T) {
	repo, svc := checkInFixture()
	events := &mockRegEventReader{events: map[string]models.Event{"ev-1": upcomingEvent("ev-1")}}
	svc = NewRegistrationService(repo, events, nil, nil, nil, zap.NewNop())

	exported, err := svc.ExportAttendees(context.Background(), organizerClaims(), "ev-1", "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", exported.ContentType)
	assert.Contains(t, string(exported.Content), "Sam Student")
}

func TestRegistrationServiceExportAttendeesUnknownFormat(t *testing.T) {
	repo, svc := checkInFixture()
	events := &mockRegEventReader{events: map[string]models.Event{"ev-1": upcomingEvent("ev-1")}}
	svc = NewRegistrationService(repo, events, nil, nil, nil, zap.NewNop())

	_, err := svc.ExportAttendees(context.Background(), organizerClaims(), "ev-1", "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
