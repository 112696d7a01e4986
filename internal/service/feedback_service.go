package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/campuslife/campus-events-api/internal/models"
	"github.com/campuslife/campus-events-api/internal/repository"
	appErrors "github.com/campuslife/campus-events-api/pkg/errors"
)

type feedbackRepository interface {
	ListPending(ctx context.Context, userID string, windowStart, now time.Time, limit int) ([]models.PendingFeedbackItem, error)
	Submit(ctx context.Context, fb *models.Feedback, registrationID string) error
	FindByEventAndUser(ctx context.Context, eventID, userID string) (*models.Feedback, error)
	SummaryByEvent(ctx context.Context, eventID string) (*models.FeedbackSummary, error)
	ListByEvent(ctx context.Context, eventID string) ([]models.Feedback, error)
}

type feedbackRegistrationStore interface {
	FindByEventAndUser(ctx context.Context, eventID, userID string) (*models.Registration, error)
	MarkFeedbackShown(ctx context.Context, eventID, userID string) error
}

type feedbackEventReader interface {
	FindByID(ctx context.Context, id string) (*models.Event, error)
}

// FeedbackPolicy bounds the pending-feedback prompt.
type FeedbackPolicy struct {
	WindowDays int
	MaxPending int
	CacheTTL   time.Duration
}

// FeedbackService decides who gets asked for feedback and records submissions.
type FeedbackService struct {
	repo          feedbackRepository
	registrations feedbackRegistrationStore
	events        feedbackEventReader
	cache         *CacheService
	policy        FeedbackPolicy
	logger        *zap.Logger
	now           func() time.Time
}

// NewFeedbackService constructs FeedbackService.
func NewFeedbackService(repo feedbackRepository, registrations feedbackRegistrationStore, events feedbackEventReader, cache *CacheService, policy FeedbackPolicy, logger *zap.Logger) *FeedbackService {
	if policy.WindowDays <= 0 {
		policy.WindowDays = 7
	}
	if policy.MaxPending <= 0 {
		policy.MaxPending = 3
	}
	if policy.CacheTTL <= 0 {
		policy.CacheTTL = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedbackService{
		repo:          repo,
		registrations: registrations,
		events:        events,
		cache:         cache,
		policy:        policy,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Pending returns the events still owed feedback by the caller: attended,
// completed within the trailing window, newest first, capped.
func (s *FeedbackService) Pending(ctx context.Context, claims *models.JWTClaims) ([]models.PendingFeedbackItem, error) {
	if claims == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}

	cacheKey := pendingFeedbackCacheKey(claims.UserID)
	if s.cache.Enabled() {
		var cached []models.PendingFeedbackItem
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return cached, nil
		}
	}

	now := s.now()
	windowStart := now.AddDate(0, 0, -s.policy.WindowDays)
	items, err := s.repo.ListPending(ctx, claims.UserID, windowStart, now, s.policy.MaxPending)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending feedback")
	}
	if items == nil {
		items = []models.PendingFeedbackItem{}
	}

	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, cacheKey, items, s.policy.CacheTTL); err != nil {
			s.logger.Warn("failed to cache pending feedback", zap.String("user_id", claims.UserID), zap.Error(err))
		}
	}
	return items, nil
}

// MarkShown records that the feedback prompt was displayed for an event.
// Best effort: a missing registration is not an error, and feedback_given is
// never touched.
func (s *FeedbackService) MarkShown(ctx context.Context, claims *models.JWTClaims, eventID string) error {
	if claims == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	if err := s.registrations.MarkFeedbackShown(ctx, eventID, claims.UserID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark feedback shown")
	}
	return nil
}

// SubmitFeedbackRequest is the feedback submission payload.
type SubmitFeedbackRequest struct {
	Rating  int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

// Submit stores feedback for an attended, completed event. The insert and the
// registration flag update commit in one transaction so the event can never
// reappear in the pending list after a successful submit.
func (s *FeedbackService) Submit(ctx context.Context, claims *models.JWTClaims, eventID string, req SubmitFeedbackRequest) (*models.Feedback, error) {
	if claims == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	if req.Rating < 1 || req.Rating > 5 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rating must be between 1 and 5")
	}

	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if event.DerivedStatus(s.now()) != models.EventStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrValidation, "feedback opens after the event completes")
	}

	reg, err := s.registrations.FindByEventAndUser(ctx, eventID, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no registration for this event")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	if !reg.CheckedIn {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "feedback requires attendance")
	}
	if reg.FeedbackGiven {
		return nil, appErrors.Clone(appErrors.ErrConflict, "feedback already submitted")
	}

	fb := &models.Feedback{
		EventID:   eventID,
		UserID:    claims.UserID,
		Rating:    req.Rating,
		Comment:   req.Comment,
		CreatedAt: s.now(),
	}
	if err := s.repo.Submit(ctx, fb, reg.ID); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "feedback already submitted")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit feedback")
	}

	if s.cache.Enabled() {
		if err := s.cache.Invalidate(ctx, pendingFeedbackCacheKey(claims.UserID)); err != nil {
			s.logger.Warn("failed to invalidate pending feedback cache", zap.String("user_id", claims.UserID), zap.Error(err))
		}
	}
	return fb, nil
}

// Summary returns aggregated ratings for an event. Organizer or admin only.
func (s *FeedbackService) Summary(ctx context.Context, claims *models.JWTClaims, eventID string) (*models.FeedbackSummary, error) {
	if err := requireRole(claims, models.RoleOrganizer, models.RoleAdmin); err != nil {
		return nil, err
	}
	summary, err := s.repo.SummaryByEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.FeedbackSummary{EventID: eventID}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load feedback summary")
	}
	return summary, nil
}

// ListByEvent returns raw feedback entries for an event. Organizer or admin only.
func (s *FeedbackService) ListByEvent(ctx context.Context, claims *models.JWTClaims, eventID string) ([]models.Feedback, error) {
	if err := requireRole(claims, models.RoleOrganizer, models.RoleAdmin); err != nil {
		return nil, err
	}
	entries, err := s.repo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list feedback")
	}
	return entries, nil
}

func pendingFeedbackCacheKey(userID string) string {
	return fmt.Sprintf("feedback:pending:%s", userID)
}
