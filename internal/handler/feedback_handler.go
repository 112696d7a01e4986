package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campuslife/campus-events-api/internal/service"
	appErrors "github.com/campuslife/campus-events-api/pkg/errors"
	"github.com/campuslife/campus-events-api/pkg/response"
)

// FeedbackHandler exposes feedback endpoints.
type FeedbackHandler struct {
	feedback *service.FeedbackService
}

// NewFeedbackHandler creates a new handler.
func NewFeedbackHandler(svc *service.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{feedback: svc}
}

// Pending godoc
// @Summary Pending feedback
// @Description Recently completed, attended events still awaiting feedback
// @Tags Feedback
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /feedback/pending [get]
func (h *FeedbackHandler) Pending(c *gin.Context) {
	items, err := h.feedback.Pending(c.Request.Context(), currentClaims(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// MarkShown godoc
// @Summary Mark prompt shown
// @Description Record that the feedback prompt was displayed for an event
// @Tags Feedback
// @Produce json
// @Param id path string true "Event ID"
// @Success 204 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /events/{id}/feedback/shown [post]
func (h *FeedbackHandler) MarkShown(c *gin.Context) {
	if err := h.feedback.MarkShown(c.Request.Context(), currentClaims(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Submit godoc
// @Summary Submit feedback
// @Description Store a rating and optional comment for an attended event
// @Tags Feedback
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body service.SubmitFeedbackRequest true "Feedback payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /events/{id}/feedback [post]
func (h *FeedbackHandler) Submit(c *gin.Context) {
	var req service.SubmitFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid feedback payload"))
		return
	}

	fb, err := h.feedback.Submit(c.Request.Context(), currentClaims(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, fb)
}

// Summary godoc
// @Summary Feedback summary
// @Description Average rating and response count for an event
// @Tags Feedback
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /events/{id}/feedback/summary [get]
func (h *FeedbackHandler) Summary(c *gin.Context) {
	summary, err := h.feedback.Summary(c.Request.Context(), currentClaims(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// ListByEvent godoc
// @Summary Event feedback entries
// @Description Raw feedback entries for an event
// @Tags Feedback
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /events/{id}/feedback [get]
func (h *FeedbackHandler) ListByEvent(c *gin.Context) {
	entries, err := h.feedback.ListByEvent(c.Request.Context(), currentClaims(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
