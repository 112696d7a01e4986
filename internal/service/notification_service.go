package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campuslife/campus-events-api/internal/models"
	appErrors "github.com/campuslife/campus-events-api/pkg/errors"
	"github.com/campuslife/campus-events-api/pkg/jobs"
)

type notificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID string, filter models.NotificationFilter) ([]models.Notification, int, error)
	MarkRead(ctx context.Context, id, userID string) (bool, error)
	CountUnread(ctx context.Context, userID string) (int, error)
}

type notificationJob struct {
	UserID  string
	Kind    models.NotificationKind
	Title   string
	Body    string
	EventID string
}

// NotificationService persists notifications and dispatches lifecycle ones
// through a background queue so request paths never block on delivery.
type NotificationService struct {
	repo   notificationRepository
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationService constructs NotificationService. Call Start before
// enqueueing and Stop on shutdown.
func NewNotificationService(repo notificationRepository, cfg jobs.QueueConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{repo: repo, logger: logger}
	s.queue = jobs.NewQueue("notifications", s.handleJob, cfg)
	return s
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the delivery workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

func (s *NotificationService) handleJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(notificationJob)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}
	n := &models.Notification{
		UserID: payload.UserID,
		Kind:   payload.Kind,
		Title:  payload.Title,
		Body:   payload.Body,
	}
	if payload.EventID != "" {
		n.EventID = &payload.EventID
	}
	return s.repo.Create(ctx, n)
}

func (s *NotificationService) enqueue(payload notificationJob) {
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    string(payload.Kind),
		Payload: payload,
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue notification",
			zap.String("kind", string(payload.Kind)),
			zap.String("user_id", payload.UserID),
			zap.Error(err))
	}
}

// EventCompleted notifies the organizer that their event finished.
func (s *NotificationService) EventCompleted(event models.Event) {
	s.enqueue(notificationJob{
		UserID:  event.OrganizerID,
		Kind:    models.NotificationKindEventCompleted,
		Title:   "Event completed",
		Body:    fmt.Sprintf("%q has ended. Attendance and feedback summaries are now available.", event.Title),
		EventID: event.ID,
	})
}

// NewRegistration notifies the organizer of a fresh registration.
func (s *NotificationService) NewRegistration(event models.Event, attendeeName string) {
	s.enqueue(notificationJob{
		UserID:  event.OrganizerID,
		Kind:    models.NotificationKindNewRegistration,
		Title:   "New registration",
		Body:    fmt.Sprintf("%s registered for %q.", attendeeName, event.Title),
		EventID: event.ID,
	})
}

// List returns the caller's notifications with pagination metadata.
func (s *NotificationService) List(ctx context.Context, claims *models.JWTClaims, filter models.NotificationFilter) ([]models.Notification, *models.Pagination, error) {
	if claims == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	items, total, err := s.repo.ListByUser(ctx, claims.UserID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// MarkRead flags one of the caller's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, claims *models.JWTClaims, id string) error {
	if claims == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	updated, err := s.repo.MarkRead(ctx, id, claims.UserID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	if !updated {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
	}
	return nil
}

// UnreadCount returns the caller's unread notification count.
func (s *NotificationService) UnreadCount(ctx context.Context, claims *models.JWTClaims) (int, error) {
	if claims == nil {
		return 0, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	count, err := s.repo.CountUnread(ctx, claims.UserID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}
	return count, nil
}
