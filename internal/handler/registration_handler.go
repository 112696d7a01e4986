package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campuslife/campus-events-api/internal/service"
	appErrors "github.com/campuslife/campus-events-api/pkg/errors"
	"github.com/campuslife/campus-events-api/pkg/response"
)

// RegistrationHandler exposes registration and check-in endpoints.
type RegistrationHandler struct {
	registrations *service.RegistrationService
}

// NewRegistrationHandler creates a new handler.
func NewRegistrationHandler(svc *service.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{registrations: svc}
}

// Register godoc
// @Summary Register for event
// @Description Create a registration with a fresh QR token
// @Tags Registrations
// @Produce json
// @Param id path string true "Event ID"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /events/{id}/register [post]
func (h *RegistrationHandler) Register(c *gin.Context) {
	reg, err := h.registrations.Register(c.Request.Context(), currentClaims(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, reg)
}

// CheckIn godoc
// @Summary Check in attendee
// @Description Redeem a QR token for the event; idempotent on repeat scans
// @Tags Registrations
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body map[string]string true "QR code"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /events/{id}/check-in [post]
func (h *RegistrationHandler) CheckIn(c *gin.Context) {
	var payload struct {
		QRCode string `json:"qr_code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "qr code required"))
		return
	}

	result, err := h.registrations.CheckIn(c.Request.Context(), currentClaims(c), c.Param("id"), payload.QRCode)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ListAttendees godoc
// @Summary List attendees
// @Description List registrations for an event
// @Tags Registrations
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /events/{id}/attendees [get]
func (h *RegistrationHandler) ListAttendees(c *gin.Context) {
	attendees, err := h.registrations.ListAttendees(c.Request.Context(), currentClaims(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, attendees, nil)
}

// ListMine godoc
// @Summary My registrations
// @Description List the caller's registrations across events
// @Tags Registrations
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /registrations [get]
func (h *RegistrationHandler) ListMine(c *gin.Context) {
	regs, err := h.registrations.ListMine(c.Request.Context(), currentClaims(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, regs, nil)
}

// ExportAttendees godoc
// @Summary Export attendees
// @Description Download the attendee list as CSV or PDF
// @Tags Registrations
// @Produce octet-stream
// @Param id path string true "Event ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /events/{id}/attendees/export [get]
func (h *RegistrationHandler) ExportAttendees(c *gin.Context) {
	exported, err := h.registrations.ExportAttendees(c.Request.Context(), currentClaims(c), c.Param("id"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exported.Filename))
	c.Data(http.StatusOK, exported.ContentType, exported.Content)
}
