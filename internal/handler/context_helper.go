package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/campuslife/campus-events-api/internal/middleware"
	"github.com/campuslife/campus-events-api/internal/models"
)

// currentClaims extracts JWT claims stored by the auth middleware. Returns
// nil when the route was reached without authentication.
func currentClaims(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func queryBool(c *gin.Context, key string) bool {
	raw := c.Query(key)
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return value
}
