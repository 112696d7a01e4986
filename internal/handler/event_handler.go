package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campuslife/campus-events-api/internal/middleware"
	"github.com/campuslife/campus-events-api/internal/models"
	"github.com/campuslife/campus-events-api/internal/service"
	appErrors "github.com/campuslife/campus-events-api/pkg/errors"
	"github.com/campuslife/campus-events-api/pkg/response"
)

// EventHandler exposes event endpoints.
type EventHandler struct {
	events *service.EventService
	cache  *service.CacheService
}

// NewEventHandler creates a new handler.
func NewEventHandler(events *service.EventService, cache *service.CacheService) *EventHandler {
	return &EventHandler{events: events, cache: cache}
}

type eventListPayload struct {
	Events     []models.EventDetail `json:"events"`
	Pagination *models.Pagination   `json:"pagination"`
}

// List godoc
// @Summary List events
// @Description List events with optional status, category and search filters
// @Tags Events
// @Produce json
// @Param status query string false "Lifecycle status filter"
// @Param category query string false "Category filter"
// @Param search query string false "Title search"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /events [get]
func (h *EventHandler) List(c *gin.Context) {
	filter := models.EventFilter{
		Category:  c.Query("category"),
		Search:    c.Query("search"),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "page_size", 20),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if status := c.Query("status"); status != "" {
		filter.Status = models.EventStatus(status)
	}
	if organizer := c.Query("organizer_id"); organizer != "" {
		filter.OrganizerID = organizer
	}

	cacheKey := "events:" + c.Request.URL.RawQuery
	if h.cache.Enabled() {
		var cached eventListPayload
		if hit, err := h.cache.Get(c.Request.Context(), cacheKey, &cached); err == nil && hit {
			middleware.SetCacheHit(c, true)
			response.JSON(c, http.StatusOK, cached.Events, cached.Pagination, middleware.ExtractMeta(c))
			return
		}
		middleware.SetCacheHit(c, false)
	}

	events, pagination, err := h.events.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.cache.Enabled() {
		_ = h.cache.Set(c.Request.Context(), cacheKey, eventListPayload{Events: events, Pagination: pagination}, 0)
	}
	response.JSON(c, http.StatusOK, events, pagination, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Event detail
// @Description Fetch one event with organizer and attendance counts
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /events/{id} [get]
func (h *EventHandler) Get(c *gin.Context) {
	detail, err := h.events.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Create godoc
// @Summary Create event
// @Description Create an event owned by the calling organizer
// @Tags Events
// @Accept json
// @Produce json
// @Param payload body service.CreateEventRequest true "Event payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /events [post]
func (h *EventHandler) Create(c *gin.Context) {
	var req service.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid event payload"))
		return
	}

	detail, err := h.events.Create(c.Request.Context(), currentClaims(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// Update godoc
// @Summary Update event
// @Description Edit an event; only the owning organizer or an admin
// @Tags Events
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body service.UpdateEventRequest true "Event payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /events/{id} [put]
func (h *EventHandler) Update(c *gin.Context) {
	var req service.UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid event payload"))
		return
	}

	detail, err := h.events.Update(c.Request.Context(), currentClaims(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// UploadPoster godoc
// @Summary Upload event poster
// @Description Store a poster image and return its signed URL
// @Tags Events
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Event ID"
// @Param poster formData file true "Poster image"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /events/{id}/poster [post]
func (h *EventHandler) UploadPoster(c *gin.Context) {
	fileHeader, err := c.FormFile("poster")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "poster file is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to open poster upload"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read poster upload"))
		return
	}

	url, err := h.events.UploadPoster(c.Request.Context(), currentClaims(c), c.Param("id"), service.UploadPosterRequest{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"poster_url": url}, nil)
}

// Transition godoc
// @Summary Run lifecycle reconciliation
// @Description Apply time-derived status transitions immediately
// @Tags Events
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /events/auto-complete [post]
func (h *EventHandler) Transition(c *gin.Context) {
	if currentClaims(c) == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	started := time.Now()
	transitions, err := h.events.AutoTransition(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := middleware.ExtractMeta(c)
	if meta != nil {
		meta["processing_time_ms"] = time.Since(started).Milliseconds()
	}
	response.JSON(c, http.StatusOK, transitions, nil, meta)
}
