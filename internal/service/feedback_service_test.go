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

type mockFeedbackRepo struct {
	pending       []models.PendingFeedbackItem
	lastWindow    time.Time
	lastNow       time.Time
	lastLimit     int
	submitted     *models.Feedback
	submittedReg  string
	duplicate     bool
	summaries     map[string]*models.FeedbackSummary
	entriesByList map[string][]models.Feedback
}

func (m *mockFeedbackRepo) ListPending(ctx context.Context, userID string, windowStart, now time.Time, limit int) ([]models.PendingFeedbackItem, error) {
	m.lastWindow = windowStart
	m.lastNow = now
	m.lastLimit = limit
	return m.pending, nil
}

func (m *mockFeedbackRepo) Submit(ctx context.Context, fb *models.Feedback, registrationID string) error {
	if m.duplicate {
		return &pq.Error{Code: "23505"}
	}
	m.submitted = fb
	m.submittedReg = registrationID
	return nil
}

func (m *mockFeedbackRepo) FindByEventAndUser(ctx context.Context, eventID, userID string) (*models.Feedback, error) {
	return nil, sql.ErrNoRows
}

func (m *mockFeedbackRepo) SummaryByEvent(ctx context.Context, eventID string) (*models.FeedbackSummary, error) {
	if s, ok := m.summaries[eventID]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockFeedbackRepo) ListByEvent(ctx context.Context, eventID string) ([]models.Feedback, error) {
	return m.entriesByList[eventID], nil
}

type mockFeedbackRegStore struct {
	registrations map[string]models.Registration
	shown         []string
}

func (m *mockFeedbackRegStore) FindByEventAndUser(ctx context.Context, eventID, userID string) (*models.Registration, error) {
	if r, ok := m.registrations[eventID+"|"+userID]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockFeedbackRegStore) MarkFeedbackShown(ctx context.Context, eventID, userID string) error {
	m.shown = append(m.shown, eventID+"|"+userID)
	return nil
}

type mockFeedbackEventReader struct {
	events map[string]models.Event
}

func (m *mockFeedbackEventReader) FindByID(ctx context.Context, id string) (*models.Event, error) {
	if e, ok := m.events[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func completedEvent(id string) models.Event {
	return models.Event{
		ID:        id,
		Title:     "Alumni Night",
		StartTime: time.Now().Add(-4 * time.Hour),
		EndTime:   time.Now().Add(-2 * time.Hour),
		Status:    models.EventStatusCompleted,
	}
}

func newFeedbackService(repo *mockFeedbackRepo, regs *mockFeedbackRegStore, events *mockFeedbackEventReader) *FeedbackService {
	return NewFeedbackService(repo, regs, events, nil, FeedbackPolicy{WindowDays: 7, MaxPending: 3}, zap.NewNop())
}

func TestFeedbackServicePendingAppliesWindowAndCap(t *testing.T) {
	repo := &mockFeedbackRepo{pending: []models.PendingFeedbackItem{{EventID: "ev-1"}}}
	svc := newFeedbackService(repo, &mockFeedbackRegStore{}, &mockFeedbackEventReader{})
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	items, err := svc.Pending(context.Background(), studentClaims())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 3, repo.lastLimit)
	assert.Equal(t, now.AddDate(0, 0, -7), repo.lastWindow)
	assert.Equal(t, now, repo.lastNow)
}

func TestFeedbackServicePendingEmptyNotNil(t *testing.T) {
	svc := newFeedbackService(&mockFeedbackRepo{}, &mockFeedbackRegStore{}, &mockFeedbackEventReader{})

	items, err := svc.Pending(context.Background(), studentClaims())
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestFeedbackServiceMarkShown(t *testing.T) {
	regs := &mockFeedbackRegStore{}
	svc := newFeedbackService(&mockFeedbackRepo{}, regs, &mockFeedbackEventReader{})

	require.NoError(t, svc.MarkShown(context.Background(), studentClaims(), "ev-1"))
	assert.Equal(t, []string{"ev-1|stu-1"}, regs.shown)
}

func attendedFixture() (*mockFeedbackRepo, *FeedbackService) {
	repo := &mockFeedbackRepo{}
	regs := &mockFeedbackRegStore{registrations: map[string]models.Registration{
		"ev-1|stu-1": {ID: "reg-1", EventID: "ev-1", UserID: "stu-1", CheckedIn: true},
	}}
	events := &mockFeedbackEventReader{events: map[string]models.Event{"ev-1": completedEvent("ev-1")}}
	return repo, newFeedbackService(repo, regs, events)
}

func TestFeedbackServiceSubmit(t *testing.T) {
	repo, svc := attendedFixture()

	fb, err := svc.Submit(context.Background(), studentClaims(), "ev-1", SubmitFeedbackRequest{Rating: 5, Comment: "great"})
	require.NoError(t, err)
	assert.Equal(t, 5, fb.Rating)
	require.NotNil(t, repo.submitted)
	assert.Equal(t, "reg-1", repo.submittedReg)
}

func TestFeedbackServiceSubmitRatingBounds(t *testing.T) {
	_, svc := attendedFixture()

	for _, rating := range []int{0, 6, -1} {
		_, err := svc.Submit(context.Background(), studentClaims(), "ev-1", SubmitFeedbackRequest{Rating: rating})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
}

func TestFeedbackServiceSubmitRequiresCompletedEvent(t *testing.T) {
	repo := &mockFeedbackRepo{}
	regs := &mockFeedbackRegStore{registrations: map[string]models.Registration{
		"ev-1|stu-1": {ID: "reg-1", EventID: "ev-1", UserID: "stu-1", CheckedIn: true},
	}}
	live := completedEvent("ev-1")
	live.EndTime = time.Now().Add(time.Hour)
	events := &mockFeedbackEventReader{events: map[string]models.Event{"ev-1": live}}
	svc := newFeedbackService(repo, regs, events)

	_, err := svc.Submit(context.Background(), studentClaims(), "ev-1", SubmitFeedbackRequest{Rating: 4})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestFeedbackServiceSubmitRequiresAttendance(t *testing.T) {
	repo := &mockFeedbackRepo{}
	regs := &mockFeedbackRegStore{registrations: map[string]models.Registration{
		"ev-1|stu-1": {ID: "reg-1", EventID: "ev-1", UserID: "stu-1", CheckedIn: false},
	}}
	events := &mockFeedbackEventReader{events: map[string]models.Event{"ev-1": completedEvent("ev-1")}}
	svc := newFeedbackService(repo, regs, events)

	_, err := svc.Submit(context.Background(), studentClaims(), "ev-1", SubmitFeedbackRequest{Rating: 4})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestFeedbackServiceSubmitRejectsDuplicate(t *testing.T) {
	regs := &mockFeedbackRegStore{registrations: map[string]models.Registration{
		"ev-1|stu-1": {ID: "reg-1", EventID: "ev-1", UserID: "stu-1", CheckedIn: true, FeedbackGiven: true},
	}}
	events := &mockFeedbackEventReader{events: map[string]models.Event{"ev-1": completedEvent("ev-1")}}
	svc := newFeedbackService(&mockFeedbackRepo{}, regs, events)

	_, err := svc.Submit(context.Background(), studentClaims(), "ev-1", SubmitFeedbackRequest{Rating: 4})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestFeedbackServiceSubmitRejectsRacedDuplicate(t *testing.T) {
	repo := &mockFeedbackRepo{duplicate: true}
	regs := &mockFeedbackRegStore{registrations: map[string]models.Registration{
		"ev-1|stu-1": {ID: "reg-1", EventID: "ev-1", UserID: "stu-1", CheckedIn: true},
	}}
	events := &mockFeedbackEventReader{events: map[string]models.Event{"ev-1": completedEvent("ev-1")}}
	svc := newFeedbackService(repo, regs, events)

	_, err := svc.Submit(context.Background(), studentClaims(), "ev-1", SubmitFeedbackRequest{Rating: 4})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestFeedbackServiceSubmitMissingRegistration(t *testing.T) {
	events := &mockFeedbackEventReader{events: map[string]models.Event{"ev-1": completedEvent("ev-1")}}
	svc := newFeedbackService(&mockFeedbackRepo{}, &mockFeedbackRegStore{}, events)

	_, err := svc.Submit(context.Background(), studentClaims(), "ev-1", SubmitFeedbackRequest{Rating: 4})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestFeedbackServiceSummaryRequiresElevatedRole(t *testing.T) {
	svc := newFeedbackService(&mockFeedbackRepo{}, &mockFeedbackRegStore{}, &mockFeedbackEventReader{})

	_, err := svc.Summary(context.Background(), studentClaims(), "ev-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
