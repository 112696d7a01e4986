package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campuslife/campus-events-api/internal/models"
	appErrors "github.com/campuslife/campus-events-api/pkg/errors"
)

type eventRepository interface {
	List(ctx context.Context, filter models.EventFilter) ([]models.EventDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Event, error)
	FindDetailByID(ctx context.Context, id string) (*models.EventDetail, error)
	Create(ctx context.Context, event *models.Event) error
	Update(ctx context.Context, event *models.Event) error
	UpdatePosterURL(ctx context.Context, id, url string) error
	ListOutOfSync(ctx context.Context, now time.Time) ([]models.Event, error)
	TransitionStatus(ctx context.Context, id string, from, to models.EventStatus) (bool, error)
}

type posterStorage interface {
	Save(filename string, data []byte) (string, error)
}

type posterSigner interface {
	Generate(assetID, relPath string) (string, time.Time, error)
}

type transitionNotifier interface {
	EventCompleted(event models.Event)
}

// CreateEventRequest describes event creation payload.
type CreateEventRequest struct {
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description"`
	Category    string    `json:"category" validate:"required"`
	Location    string    `json:"location"`
	StartTime   time.Time `json:"start_time" validate:"required"`
	EndTime     time.Time `json:"end_time" validate:"required"`
	Timezone    string    `json:"timezone"`
	Capacity    int       `json:"capacity" validate:"gte=0"`
	Price       float64   `json:"price" validate:"gte=0"`
}

// UpdateEventRequest describes event update payload.
type UpdateEventRequest struct {
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description"`
	Category    string    `json:"category" validate:"required"`
	Location    string    `json:"location"`
	StartTime   time.Time `json:"start_time" validate:"required"`
	EndTime     time.Time `json:"end_time" validate:"required"`
	Timezone    string    `json:"timezone"`
	Capacity    int       `json:"capacity" validate:"gte=0"`
	Price       float64   `json:"price" validate:"gte=0"`
}

// UploadPosterRequest carries the raw poster upload.
type UploadPosterRequest struct {
	Filename    string
	ContentType string
	Data        []byte
}

// EventUploadPolicy constrains poster uploads.
type EventUploadPolicy struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// EventService orchestrates event workflows and lifecycle transitions.
type EventService struct {
	repo      eventRepository
	storage   posterStorage
	signer    posterSigner
	cache     *CacheService
	notifier  transitionNotifier
	policy    EventUploadPolicy
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewEventService constructs EventService.
func NewEventService(repo eventRepository, storage posterStorage, signer posterSigner, cache *CacheService, notifier transitionNotifier, policy EventUploadPolicy, validate *validator.Validate, logger *zap.Logger) *EventService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{
		repo:      repo,
		storage:   storage,
		signer:    signer,
		cache:     cache,
		notifier:  notifier,
		policy:    policy,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns events with pagination metadata.
func (s *EventService) List(ctx context.Context, filter models.EventFilter) ([]models.EventDetail, *models.Pagination, error) {
	events, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return events, pagination, nil
}

// Get returns a single event with organizer context.
func (s *EventService) Get(ctx context.Context, id string) (*models.EventDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	return detail, nil
}

// Create registers a new event owned by the calling organizer.
func (s *EventService) Create(ctx context.Context, claims *models.JWTClaims, req CreateEventRequest) (*models.EventDetail, error) {
	if err := requireRole(claims, models.RoleOrganizer, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}
	if !req.EndTime.After(req.StartTime) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end time must be after start time")
	}
	tz := req.Timezone
	if tz == "" {
		tz = "UTC"
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown timezone")
	}

	event := &models.Event{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Location:    req.Location,
		StartTime:   req.StartTime.UTC(),
		EndTime:     req.EndTime.UTC(),
		Timezone:    tz,
		Capacity:    req.Capacity,
		Price:       req.Price,
		OrganizerID: claims.UserID,
		Status:      models.ClassifyEventStatus(req.StartTime, req.EndTime, s.now()),
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create event")
	}
	s.invalidateListCache(ctx)

	detail, err := s.repo.FindDetailByID(ctx, event.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event detail")
	}
	return detail, nil
}

// Update edits an event. Only the owning organizer or an admin may edit.
func (s *EventService) Update(ctx context.Context, claims *models.JWTClaims, id string, req UpdateEventRequest) (*models.EventDetail, error) {
	if err := requireRole(claims, models.RoleOrganizer, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}
	if !req.EndTime.After(req.StartTime) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end time must be after start time")
	}

	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if err := requireRoleOrSelf(claims, event.OrganizerID, models.RoleAdmin); err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the owning organizer may edit this event")
	}

	event.Title = req.Title
	event.Description = req.Description
	event.Category = req.Category
	event.Location = req.Location
	event.StartTime = req.StartTime.UTC()
	event.EndTime = req.EndTime.UTC()
	if req.Timezone != "" {
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown timezone")
		}
		event.Timezone = req.Timezone
	}
	event.Capacity = req.Capacity
	event.Price = req.Price
	event.Status = models.ClassifyEventStatus(event.StartTime, event.EndTime, s.now())

	if err := s.repo.Update(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update event")
	}
	s.invalidateListCache(ctx)

	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event detail")
	}
	return detail, nil
}

// UploadPoster stores the poster bytes and records a signed retrieval URL.
func (s *EventService) UploadPoster(ctx context.Context, claims *models.JWTClaims, eventID string, req UploadPosterRequest) (string, error) {
	if err := requireRole(claims, models.RoleOrganizer, models.RoleAdmin); err != nil {
		return "", err
	}
	if len(req.Data) == 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "poster file is empty")
	}
	if s.policy.MaxFileSizeBytes > 0 && int64(len(req.Data)) > s.policy.MaxFileSizeBytes {
		return "", appErrors.Clone(appErrors.ErrValidation, "poster file too large")
	}
	if len(s.policy.AllowedMIMEs) > 0 && !containsFold(s.policy.AllowedMIMEs, req.ContentType) {
		return "", appErrors.Clone(appErrors.ErrValidation, "unsupported poster content type")
	}

	event, err := s.repo.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if err := requireRoleOrSelf(claims, event.OrganizerID, models.RoleAdmin); err != nil {
		return "", appErrors.Clone(appErrors.ErrForbidden, "only the owning organizer may upload a poster")
	}

	ext := path.Ext(req.Filename)
	if ext == "" {
		ext = ".png"
	}
	relPath := fmt.Sprintf("posters/%s%s", event.ID, ext)
	if _, err := s.storage.Save(relPath, req.Data); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store poster")
	}

	token, _, err := s.signer.Generate(event.ID, relPath)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign poster url")
	}
	url := "/uploads/" + token
	if err := s.repo.UpdatePosterURL(ctx, event.ID, url); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record poster url")
	}
	return url, nil
}

// AutoTransition reconciles every event whose stored status disagrees with
// the time-derived status. Safe to invoke concurrently and repeatedly; a
// second run with no time elapsed returns empty sets. A failure on one
// record never aborts the rest of the batch.
func (s *EventService) AutoTransition(ctx context.Context) (*models.EventTransitions, error) {
	now := s.now()
	candidates, err := s.repo.ListOutOfSync(ctx, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to scan events")
	}

	result := &models.EventTransitions{
		StartedEvents:   make([]models.Event, 0),
		CompletedEvents: make([]models.Event, 0),
	}
	for _, event := range candidates {
		derived := event.DerivedStatus(now)
		if derived == event.Status {
			continue
		}
		applied, err := s.repo.TransitionStatus(ctx, event.ID, event.Status, derived)
		if err != nil {
			s.logger.Warn("event transition failed",
				zap.String("event_id", event.ID),
				zap.String("from", string(event.Status)),
				zap.String("to", string(derived)),
				zap.Error(err))
			continue
		}
		if !applied {
			// Another concurrent tick already moved this event.
			continue
		}
		prev := event.Status
		event.Status = derived
		switch derived {
		case models.EventStatusOngoing:
			result.StartedEvents = append(result.StartedEvents, event)
		case models.EventStatusCompleted:
			result.CompletedEvents = append(result.CompletedEvents, event)
			if prev == models.EventStatusUpcoming {
				// Skipped straight past ONGOING; it still counts as started.
				result.StartedEvents = append(result.StartedEvents, event)
			}
			if s.notifier != nil {
				s.notifier.EventCompleted(event)
			}
		}
	}

	if len(result.StartedEvents) > 0 || len(result.CompletedEvents) > 0 {
		s.invalidateListCache(ctx)
	}
	return result, nil
}

func (s *EventService) invalidateListCache(ctx context.Context) {
	if s.cache == nil || !s.cache.Enabled() {
		return
	}
	if err := s.cache.Invalidate(ctx, "events:*"); err != nil {
		s.logger.Warn("failed to invalidate event cache", zap.Error(err))
	}
}

func containsFold(list []string, value string) bool {
	for _, item := range list {
		if strings.EqualFold(item, value) {
			return true
		}
	}
	return false
}
