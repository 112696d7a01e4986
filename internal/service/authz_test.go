package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuslife/campus-events-api/internal/models"
	appErrors "github.com/campuslife/campus-events-api/pkg/errors"
)

func TestRequireRole(t *testing.T) {
	admin := &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin}

	assert.NoError(t, requireRole(admin, models.RoleAdmin))
	assert.NoError(t, requireRole(admin, models.RoleOrganizer, models.RoleAdmin))

	err := requireRole(admin, models.RoleStudent)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	err = requireRole(nil, models.RoleAdmin)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestRequireRoleOrSelf(t *testing.T) {
	student := &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent}

	assert.NoError(t, requireRoleOrSelf(student, "stu-1", models.RoleAdmin))

	err := requireRoleOrSelf(student, "stu-2", models.RoleAdmin)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	admin := &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin}
	assert.NoError(t, requireRoleOrSelf(admin, "stu-2", models.RoleAdmin))
}
