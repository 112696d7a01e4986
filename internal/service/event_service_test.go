package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campuslife/campus-events-api/internal/models"
	appErrors "github.com/campuslife/campus-events-api/pkg/errors"
)

type mockEventRepo struct {
	events      map[string]models.Event
	outOfSync   []models.Event
	transitions map[string]models.EventStatus
	failIDs     map[string]bool
	rejectIDs   map[string]bool
	created     *models.Event
	updated     *models.Event
	posterURL   string
	regCount    int
}

func (m *mockEventRepo) List(ctx context.Context, filter models.EventFilter) ([]models.EventDetail, int, error) {
	var details []models.EventDetail
	for _, e := range m.events {
		details = append(details, models.EventDetail{Event: e})
	}
	return details, len(details), nil
}

func (m *mockEventRepo) FindByID(ctx context.Context, id string) (*models.Event, error) {
	if e, ok := m.events[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEventRepo) FindDetailByID(ctx context.Context, id string) (*models.EventDetail, error) {
	if e, ok := m.events[id]; ok {
		return &models.EventDetail{Event: e}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEventRepo) Create(ctx context.Context, event *models.Event) error {
	if m.events == nil {
		m.events = make(map[string]models.Event)
	}
	if event.ID == "" {
		event.ID = "new-event"
	}
	m.events[event.ID] = *event
	m.created = event
	return nil
}

func (m *mockEventRepo) Update(ctx context.Context, event *models.Event) error {
	m.events[event.ID] = *event
	m.updated = event
	return nil
}

func (m *mockEventRepo) UpdatePosterURL(ctx context.Context, id, url string) error {
	m.posterURL = url
	return nil
}

func (m *mockEventRepo) ListOutOfSync(ctx context.Context, now time.Time) ([]models.Event, error) {
	return m.outOfSync, nil
}

func (m *mockEventRepo) TransitionStatus(ctx context.Context, id string, from, to models.EventStatus) (bool, error) {
	if m.failIDs[id] {
		return false, errors.New("deadlock detected")
	}
	if m.rejectIDs[id] {
		return false, nil
	}
	if m.transitions == nil {
		m.transitions = make(map[string]models.EventStatus)
	}
	m.transitions[id] = to
	return true, nil
}

func (m *mockEventRepo) CountConfirmedRegistrations(ctx context.Context, eventID string) (int, error) {
	return m.regCount, nil
}

type mockPosterStorage struct {
	saved map[string][]byte
}

func (m *mockPosterStorage) Save(filename string, data []byte) (string, error) {
	if m.saved == nil {
		m.saved = make(map[string][]byte)
	}
	m.saved[filename] = data
	return filename, nil
}

type mockPosterSigner struct{}

func (m *mockPosterSigner) Generate(assetID, relPath string) (string, time.Time, error) {
	return "signed-" + assetID, time.Now().Add(time.Hour), nil
}

type mockTransitionNotifier struct {
	completed []models.Event
}

func (m *mockTransitionNotifier) EventCompleted(event models.Event) {
	m.completed = append(m.completed, event)
}

func organizerClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "org-1", Role: models.RoleOrganizer, Email: "org@campus.edu", FullName: "Org Anizer"}
}

func newEventService(repo *mockEventRepo, notifier *mockTransitionNotifier) *EventService {
	svc := NewEventService(repo, &mockPosterStorage{}, &mockPosterSigner{}, nil, notifier, EventUploadPolicy{
		MaxFileSizeBytes: 1024,
		AllowedMIMEs:     []string{"image/png", "image/jpeg"},
	}, validator.New(), zap.NewNop())
	return svc
}

func TestEventServiceCreateRequiresOrganizer(t *testing.T) {
	svc := newEventService(&mockEventRepo{}, nil)
	student := &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent}

	_, err := svc.Create(context.Background(), student, CreateEventRequest{
		Title:     "Tech Talk",
		Category:  "tech",
		StartTime: time.Now().Add(time.Hour),
		EndTime:   time.Now().Add(2 * time.Hour),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestEventServiceCreateRejectsInvertedSchedule(t *testing.T) {
	svc := newEventService(&mockEventRepo{}, nil)

	_, err := svc.Create(context.Background(), organizerClaims(), CreateEventRequest{
		Title:     "Tech Talk",
		Category:  "tech",
		StartTime: time.Now().Add(2 * time.Hour),
		EndTime:   time.Now().Add(time.Hour),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEventServiceCreateDerivesStatus(t *testing.T) {
	repo := &mockEventRepo{}
	svc := newEventService(repo, nil)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	_, err := svc.Create(context.Background(), organizerClaims(), CreateEventRequest{
		Title:     "Hackathon",
		Category:  "tech",
		StartTime: now.Add(-time.Hour),
		EndTime:   now.Add(time.Hour),
	})
	require.NoError(t, err)
	require.NotNil(t, repo.created)
	assert.Equal(t, models.EventStatusOngoing, repo.created.Status)
	assert.Equal(t, "org-1", repo.created.OrganizerID)
}

func TestEventServiceUpdateEnforcesOwnership(t *testing.T) {
	repo := &mockEventRepo{events: map[string]models.Event{
		"ev-1": {ID: "ev-1", OrganizerID: "someone-else", StartTime: time.Now().Add(time.Hour), EndTime: time.Now().Add(2 * time.Hour)},
	}}
	svc := newEventService(repo, nil)

	_, err := svc.Update(context.Background(), organizerClaims(), "ev-1", UpdateEventRequest{
		Title:     "Renamed",
		Category:  "tech",
		StartTime: time.Now().Add(time.Hour),
		EndTime:   time.Now().Add(2 * time.Hour),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestEventServiceUploadPosterValidates(t *testing.T) {
	repo := &mockEventRepo{events: map[string]models.Event{
		"ev-1": {ID: "ev-1", OrganizerID: "org-1"},
	}}
	svc := newEventService(repo, nil)

	_, err := svc.UploadPoster(context.Background(), organizerClaims(), "ev-1", UploadPosterRequest{
		Filename:    "poster.gif",
		ContentType: "image/gif",
		Data:        []byte{1, 2, 3},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.UploadPoster(context.Background(), organizerClaims(), "ev-1", UploadPosterRequest{
		Filename:    "poster.png",
		ContentType: "image/png",
		Data:        make([]byte, 2048),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEventServiceUploadPosterStoresAndSigns(t *testing.T) {
	repo := &mockEventRepo{events: map[string]models.Event{
		"ev-1": {ID: "ev-1", OrganizerID: "org-1"},
	}}
	svc := newEventService(repo, nil)

	url, err := svc.UploadPoster(context.Background(), organizerClaims(), "ev-1", UploadPosterRequest{
		Filename:    "poster.png",
		ContentType: "image/png",
		Data:        []byte{1, 2, 3},
	})
	require.NoError(t, err)
	assert.Equal(t, "/uploads/signed-ev-1", url)
	assert.Equal(t, url, repo.posterURL)
}

func TestEventServiceAutoTransitionApplies(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	repo := &mockEventRepo{outOfSync: []models.Event{
		{ID: "starting", Status: models.EventStatusUpcoming, OrganizerID: "org-1", StartTime: now.Add(-time.Minute), EndTime: now.Add(time.Hour)},
		{ID: "ending", Status: models.EventStatusOngoing, OrganizerID: "org-2", StartTime: now.Add(-3 * time.Hour), EndTime: now.Add(-time.Minute)},
	}}
	notifier := &mockTransitionNotifier{}
	svc := newEventService(repo, notifier)
	svc.now = func() time.Time { return now }

	result, err := svc.AutoTransition(context.Background())
	require.NoError(t, err)
	require.Len(t, result.StartedEvents, 1)
	require.Len(t, result.CompletedEvents, 1)
	assert.Equal(t, "starting", result.StartedEvents[0].ID)
	assert.Equal(t, "ending", result.CompletedEvents[0].ID)
	assert.Equal(t, models.EventStatusOngoing, repo.transitions["starting"])
	assert.Equal(t, models.EventStatusCompleted, repo.transitions["ending"])
	require.Len(t, notifier.completed, 1)
	assert.Equal(t, "ending", notifier.completed[0].ID)
}

func TestEventServiceAutoTransitionIdempotent(t *testing.T) {
	svc := newEventService(&mockEventRepo{}, &mockTransitionNotifier{})

	result, err := svc.AutoTransition(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.StartedEvents)
	assert.Empty(t, result.CompletedEvents)
}

func TestEventServiceAutoTransitionSkipsLostRace(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	repo := &mockEventRepo{
		outOfSync: []models.Event{
			{ID: "raced", Status: models.EventStatusUpcoming, StartTime: now.Add(-time.Minute), EndTime: now.Add(time.Hour)},
		},
		rejectIDs: map[string]bool{"raced": true},
	}
	svc := newEventService(repo, &mockTransitionNotifier{})
	svc.now = func() time.Time { return now }

	result, err := svc.AutoTransition(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.StartedEvents)
	assert.Empty(t, result.CompletedEvents)
}

func TestEventServiceAutoTransitionIsolatesFailures(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	repo := &mockEventRepo{
		outOfSync: []models.Event{
			{ID: "broken", Status: models.EventStatusUpcoming, StartTime: now.Add(-time.Minute), EndTime: now.Add(time.Hour)},
			{ID: "healthy", Status: models.EventStatusOngoing, StartTime: now.Add(-2 * time.Hour), EndTime: now.Add(-time.Minute)},
		},
		failIDs: map[string]bool{"broken": true},
	}
	svc := newEventService(repo, &mockTransitionNotifier{})
	svc.now = func() time.Time { return now }

	result, err := svc.AutoTransition(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.StartedEvents)
	require.Len(t, result.CompletedEvents, 1)
	assert.Equal(t, "healthy", result.CompletedEvents[0].ID)
}

func TestEventServiceAutoTransitionSkipsOngoingForLateUpcoming(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	repo := &mockEventRepo{outOfSync: []models.Event{
		{ID: "missed", Status: models.EventStatusUpcoming, StartTime: now.Add(-3 * time.Hour), EndTime: now.Add(-time.Hour)},
	}}
	notifier := &mockTransitionNotifier{}
	svc := newEventService(repo, notifier)
	svc.now = func() time.Time { return now }

	result, err := svc.AutoTransition(context.Background())
	require.NoError(t, err)
	// An event whose whole window elapsed between ticks both started and
	// completed in one pass.
	require.Len(t, result.StartedEvents, 1)
	require.Len(t, result.CompletedEvents, 1)
	assert.Equal(t, models.EventStatusCompleted, repo.transitions["missed"])
	require.Len(t, notifier.completed, 1)
}
