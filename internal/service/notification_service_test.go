package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campuslife/campus-events-api/internal/models"
	appErrors "github.com/campuslife/campus-events-api/pkg/errors"
	"github.com/campuslife/campus-events-api/pkg/jobs"
)

type mockNotificationRepo struct {
	mu            sync.Mutex
	notifications []models.Notification
	readResult    bool
	unread        int
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, *n)
	return nil
}

func (m *mockNotificationRepo) ListByUser(ctx context.Context, userID string, filter models.NotificationFilter) ([]models.Notification, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Notification
	for _, n := range m.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, len(out), nil
}

func (m *mockNotificationRepo) MarkRead(ctx context.Context, id, userID string) (bool, error) {
	return m.readResult, nil
}

func (m *mockNotificationRepo) CountUnread(ctx context.Context, userID string) (int, error) {
	return m.unread, nil
}

func (m *mockNotificationRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.notifications)
}

func TestNotificationServiceEventCompletedDelivers(t *testing.T) {
	repo := &mockNotificationRepo{}
	svc := NewNotificationService(repo, jobs.QueueConfig{Workers: 1}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	svc.EventCompleted(models.Event{ID: "ev-1", Title: "Demo Day", OrganizerID: "org-1"})

	require.Eventually(t, func() bool { return repo.count() == 1 }, time.Second, 10*time.Millisecond)
	items, _, err := svc.List(context.Background(), &models.JWTClaims{UserID: "org-1", Role: models.RoleOrganizer}, models.NotificationFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, models.NotificationKindEventCompleted, items[0].Kind)
	require.NotNil(t, items[0].EventID)
	assert.Equal(t, "ev-1", *items[0].EventID)
}

func TestNotificationServiceMarkReadNotFound(t *testing.T) {
	repo := &mockNotificationRepo{readResult: false}
	svc := NewNotificationService(repo, jobs.QueueConfig{Workers: 1}, zap.NewNop())

	err := svc.MarkRead(context.Background(), &models.JWTClaims{UserID: "u1"}, "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestNotificationServiceRequiresAuth(t *testing.T) {
	svc := NewNotificationService(&mockNotificationRepo{}, jobs.QueueConfig{Workers: 1}, zap.NewNop())

	_, _, err := svc.List(context.Background(), nil, models.NotificationFilter{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
