package service

import (
	"github.com/campuslife/campus-events-api/internal/models"
	appErrors "github.com/campuslife/campus-events-api/pkg/errors"
)

// requireRole is the single authorization check shared by every service
// operation. Caller identity is always passed explicitly; services never
// read it from ambient state.
func requireRole(claims *models.JWTClaims, allowed ...models.UserRole) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	for _, role := range allowed {
		if claims.Role == role {
			return nil
		}
	}
	return appErrors.ErrForbidden
}

// requireRoleOrSelf allows the listed roles, or the user acting on their own
// resource.
func requireRoleOrSelf(claims *models.JWTClaims, ownerID string, allowed ...models.UserRole) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	if ownerID != "" && claims.UserID == ownerID {
		return nil
	}
	return requireRole(claims, allowed...)
}
