package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campuslife/campus-events-api/internal/models"
	appErrors "github.com/campuslife/campus-events-api/pkg/errors"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	UpdateRole(ctx context.Context, id string, role models.UserRole) error
	Deactivate(ctx context.Context, id string) error
}

// UpdateProfileRequest describes editable profile fields.
type UpdateProfileRequest struct {
	FullName  string   `json:"full_name" validate:"required,min=2"`
	Bio       string   `json:"bio" validate:"max=2000"`
	Skills    []string `json:"skills" validate:"max=30,dive,min=1,max=60"`
	Interests []string `json:"interests" validate:"max=30,dive,min=1,max=60"`
}

// UpdateRoleRequest carries an admin role change.
type UpdateRoleRequest struct {
	Role models.UserRole `json:"role" validate:"required"`
}

// UserService manages profiles and admin user administration.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs UserService.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// Get returns a user profile. Any authenticated caller may view profiles.
func (s *UserService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.User, error) {
	if claims == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// List returns users matching the filter. Admin only.
func (s *UserService) List(ctx context.Context, claims *models.JWTClaims, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	if err := requireRole(claims, models.RoleAdmin); err != nil {
		return nil, nil, err
	}
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return users, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// UpdateProfile edits a profile. Users edit their own; admins edit anyone.
func (s *UserService) UpdateProfile(ctx context.Context, claims *models.JWTClaims, id string, req UpdateProfileRequest) (*models.User, error) {
	if err := requireRoleOrSelf(claims, id, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	user.FullName = req.FullName
	user.Bio = req.Bio
	user.Skills = req.Skills
	user.Interests = req.Interests
	if err := s.repo.UpdateProfile(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile")
	}
	return user, nil
}

// UpdateRole changes a user's role. Admin only; admins cannot demote
// themselves to avoid locking the last admin out.
func (s *UserService) UpdateRole(ctx context.Context, claims *models.JWTClaims, id string, req UpdateRoleRequest) error {
	if err := requireRole(claims, models.RoleAdmin); err != nil {
		return err
	}
	if !models.ValidRole(req.Role) {
		return appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}
	if claims.UserID == id && req.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrValidation, "cannot change your own admin role")
	}

	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if err := s.repo.UpdateRole(ctx, id, req.Role); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update role")
	}
	s.logger.Info("user role changed",
		zap.String("user_id", id),
		zap.String("role", string(req.Role)),
		zap.String("changed_by", claims.UserID))
	return nil
}

// Deactivate disables a user account. Admin only.
func (s *UserService) Deactivate(ctx context.Context, claims *models.JWTClaims, id string) error {
	if err := requireRole(claims, models.RoleAdmin); err != nil {
		return err
	}
	if claims.UserID == id {
		return appErrors.Clone(appErrors.ErrValidation, "cannot deactivate your own account")
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate user")
	}
	return nil
}
