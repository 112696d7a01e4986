package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campuslife/campus-events-api/internal/models"
	"github.com/campuslife/campus-events-api/internal/repository"
	appErrors "github.com/campuslife/campus-events-api/pkg/errors"
	"github.com/campuslife/campus-events-api/pkg/export"
)

type registrationRepository interface {
	Create(ctx context.Context, reg *models.Registration) error
	FindByEventAndUser(ctx context.Context, eventID, userID string) (*models.Registration, error)
	FindByEventAndToken(ctx context.Context, eventID, qrCode string) (*models.RegistrationDetail, error)
	CheckIn(ctx context.Context, id string, at time.Time) (bool, error)
	ListAttendees(ctx context.Context, eventID string) ([]models.RegistrationDetail, error)
	ListByUser(ctx context.Context, userID string) ([]models.RegistrationDetail, error)
}

type registrationEventReader interface {
	FindByID(ctx context.Context, id string) (*models.Event, error)
	CountConfirmedRegistrations(ctx context.Context, eventID string) (int, error)
}

type registrationNotifier interface {
	NewRegistration(event models.Event, attendeeName string)
}

// exportArchive keeps a copy of rendered exports on disk so operators can
// re-download recent ones. Cleanup of old copies happens out of band.
type exportArchive interface {
	Save(filename string, data []byte) (string, error)
}

// ExportedAttendees carries a rendered attendee list.
type ExportedAttendees struct {
	Filename    string
	ContentType string
	Content     []byte
}

// RegistrationService manages registrations and QR check-in.
type RegistrationService struct {
	repo     registrationRepository
	events   registrationEventReader
	notifier registrationNotifier
	archive  exportArchive
	metrics  *MetricsService
	logger   *zap.Logger
	now      func() time.Time
}

// NewRegistrationService constructs RegistrationService.
func NewRegistrationService(repo registrationRepository, events registrationEventReader, notifier registrationNotifier, archive exportArchive, metrics *MetricsService, logger *zap.Logger) *RegistrationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationService{
		repo:     repo,
		events:   events,
		notifier: notifier,
		archive:  archive,
		metrics:  metrics,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a confirmed registration with a fresh QR token.
func (s *RegistrationService) Register(ctx context.Context, claims *models.JWTClaims, eventID string) (*models.Registration, error) {
	if err := requireRole(claims, models.RoleStudent, models.RoleOrganizer, models.RoleAdmin); err != nil {
		return nil, err
	}

	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if event.DerivedStatus(s.now()) == models.EventStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrValidation, "event already completed")
	}
	if event.Capacity > 0 {
		count, err := s.events.CountConfirmedRegistrations(ctx, eventID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count registrations")
		}
		if count >= event.Capacity {
			return nil, appErrors.Clone(appErrors.ErrEventFull, "event has reached capacity")
		}
	}

	reg := &models.Registration{
		EventID:   eventID,
		UserID:    claims.UserID,
		QRCode:    uuid.NewString(),
		Status:    models.RegistrationStatusConfirmed,
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, reg); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "already registered for this event")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create registration")
	}

	if s.notifier != nil {
		s.notifier.NewRegistration(*event, claims.FullName)
	}
	return reg, nil
}

// CheckIn redeems a QR token for the event. Idempotent: a token that was
// already redeemed succeeds with the stored record untouched. The token is
// only looked up within the named event, so a token from another event is
// indistinguishable from a forged one.
func (s *RegistrationService) CheckIn(ctx context.Context, claims *models.JWTClaims, eventID, qrCode string) (*models.CheckInResult, error) {
	if err := requireRole(claims, models.RoleOrganizer, models.RoleAdmin); err != nil {
		return nil, err
	}
	if qrCode == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "qr code is required")
	}

	detail, err := s.repo.FindByEventAndToken(ctx, eventID, qrCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found for this event")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up registration")
	}
	if detail.Status != models.RegistrationStatusConfirmed {
		return nil, appErrors.Clone(appErrors.ErrValidation, "registration is not confirmed")
	}

	if detail.CheckedIn {
		return &models.CheckInResult{
			Registration: *detail,
			Message:      "Already checked in",
			AlreadyDone:  true,
		}, nil
	}

	now := s.now()
	applied, err := s.repo.CheckIn(ctx, detail.ID, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record check-in")
	}
	if !applied {
		// Lost the race to a concurrent scan of the same token; the original
		// stamp stands.
		refreshed, err := s.repo.FindByEventAndToken(ctx, eventID, qrCode)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload registration")
		}
		return &models.CheckInResult{
			Registration: *refreshed,
			Message:      "Already checked in",
			AlreadyDone:  true,
		}, nil
	}

	detail.CheckedIn = true
	detail.CheckedInAt = &now
	if s.metrics != nil {
		s.metrics.RecordCheckIn()
	}
	s.logger.Info("attendee checked in",
		zap.String("event_id", eventID),
		zap.String("registration_id", detail.ID),
		zap.String("scanned_by", claims.UserID))

	return &models.CheckInResult{
		Registration: *detail,
		Message:      "Check-in successful",
		AlreadyDone:  false,
	}, nil
}

// ListAttendees returns the registrations for an event.
func (s *RegistrationService) ListAttendees(ctx context.Context, claims *models.JWTClaims, eventID string) ([]models.RegistrationDetail, error) {
	if err := requireRole(claims, models.RoleOrganizer, models.RoleAdmin); err != nil {
		return nil, err
	}
	attendees, err := s.repo.ListAttendees(ctx, eventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendees")
	}
	return attendees, nil
}

// ListMine returns the caller's registrations.
func (s *RegistrationService) ListMine(ctx context.Context, claims *models.JWTClaims) ([]models.RegistrationDetail, error) {
	if claims == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	regs, err := s.repo.ListByUser(ctx, claims.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list registrations")
	}
	return regs, nil
}

// ExportAttendees renders the attendee list as CSV or PDF.
func (s *RegistrationService) ExportAttendees(ctx context.Context, claims *models.JWTClaims, eventID, format string) (*ExportedAttendees, error) {
	if err := requireRole(claims, models.RoleOrganizer, models.RoleAdmin); err != nil {
		return nil, err
	}

	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	attendees, err := s.repo.ListAttendees(ctx, eventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendees")
	}

	dataset := export.Dataset{
		Headers: []string{"Name", "Email", "Status", "Checked In", "Checked In At"},
		Rows:    make([]map[string]string, 0, len(attendees)),
	}
	for _, a := range attendees {
		checkedIn := "no"
		checkedInAt := ""
		if a.CheckedIn {
			checkedIn = "yes"
			if a.CheckedInAt != nil {
				checkedInAt = a.CheckedInAt.Format(time.RFC3339)
			}
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Name":          a.AttendeeName,
			"Email":         a.AttendeeEmail,
			"Status":        string(a.Status),
			"Checked In":    checkedIn,
			"Checked In At": checkedInAt,
		})
	}

	var result *ExportedAttendees
	switch format {
	case "", "csv":
		content, err := export.NewCSVExporter().Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		result = &ExportedAttendees{
			Filename:    fmt.Sprintf("attendees-%s.csv", eventID),
			ContentType: "text/csv",
			Content:     content,
		}
	case "pdf":
		content, err := export.NewPDFExporter().Render(dataset, fmt.Sprintf("Attendees: %s", event.Title))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		result = &ExportedAttendees{
			Filename:    fmt.Sprintf("attendees-%s.pdf", eventID),
			ContentType: "application/pdf",
			Content:     content,
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}

	if s.archive != nil {
		name := fmt.Sprintf("exports/%d-%s", s.now().Unix(), result.Filename)
		if _, err := s.archive.Save(name, result.Content); err != nil {
			s.logger.Warn("failed to archive export",
				zap.String("event_id", eventID),
				zap.Error(err))
		}
	}
	return result, nil
}
