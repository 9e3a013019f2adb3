package events

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/connect-hub/backend/internal/middleware"
	"github.com/connect-hub/backend/internal/models"
	"github.com/connect-hub/backend/pkg/response"
)

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func parseOptionalTime(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := parseTime(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseOptionalID(s *string) (*uuid.UUID, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// CreateRequest is the body for POST /events.
type CreateRequest struct {
	Title            string  `json:"title" binding:"required"`
	Description      string  `json:"description"`
	Location         string  `json:"location"`
	Date             string  `json:"date" binding:"required"`
	ArrivalTime      *string `json:"arrival_time"`
	EstimatedEndTime *string `json:"estimated_end_time"`
	MaxParticipants  *int    `json:"max_participants"`
	OrganizationID   *string `json:"organization_id"`
	SeriesID         *string `json:"series_id"`
}

// SeriesRequest is the body for POST /series.
type SeriesRequest struct {
	Title          string  `json:"title" binding:"required"`
	OrganizationID *string `json:"organization_id"`
	EndTime        *string `json:"end_time"` // "HH:MM" or "HH:MM:SS"
}

// Handler handles event HTTP endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates an events handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// List handles GET /events?include_full=1&next_only=1&upcoming=1.
func (h *Handler) List(c *gin.Context) {
	opts := FeedOptions{
		IncludeFull: flag(c, "include_full"),
		NextOnly:    flag(c, "next_only"),
		Upcoming:    flag(c, "upcoming"),
	}
	items, err := h.svc.Feed(c.Request.Context(), opts)
	if err != nil {
		response.Internal(c, "failed to list events")
		return
	}
	response.OK(c, items)
}

func flag(c *gin.Context, name string) bool {
	switch c.Query(name) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// GetByID handles GET /events/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	item, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, item)
}

// Create handles POST /events (admin or organization event managers).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	date, err := parseTime(req.Date)
	if err != nil {
		response.BadRequest(c, "invalid date")
		return
	}
	arrival, err := parseOptionalTime(req.ArrivalTime)
	if err != nil {
		response.BadRequest(c, "invalid arrival_time")
		return
	}
	end, err := parseOptionalTime(req.EstimatedEndTime)
	if err != nil {
		response.BadRequest(c, "invalid estimated_end_time")
		return
	}
	orgID, err := parseOptionalID(req.OrganizationID)
	if err != nil {
		response.BadRequest(c, "invalid organization_id")
		return
	}
	seriesID, err := parseOptionalID(req.SeriesID)
	if err != nil {
		response.BadRequest(c, "invalid series_id")
		return
	}

	e, err := h.svc.Create(c.Request.Context(), middleware.UserID(c), middleware.Role(c), CreateInput{
		Title:            req.Title,
		Description:      req.Description,
		Location:         req.Location,
		Date:             date,
		ArrivalTime:      arrival,
		EstimatedEndTime: end,
		MaxParticipants:  req.MaxParticipants,
		OrganizationID:   orgID,
		SeriesID:         seriesID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, e)
}

// Delete handles DELETE /events/:id (admin or organization event managers).
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.UserID(c), middleware.Role(c), id); err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, gin.H{"ok": true})
}

// CreateSeries handles POST /series.
func (h *Handler) CreateSeries(c *gin.Context) {
	var req SeriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	orgID, err := parseOptionalID(req.OrganizationID)
	if err != nil {
		response.BadRequest(c, "invalid organization_id")
		return
	}
	var endTime *models.TimeOfDay
	if req.EndTime != nil && *req.EndTime != "" {
		tod, err := models.ParseTimeOfDay(*req.EndTime)
		if err != nil {
			response.BadRequest(c, "invalid end_time")
			return
		}
		endTime = &tod
	}
	series, err := h.svc.CreateSeries(c.Request.Context(), middleware.UserID(c), middleware.Role(c), SeriesInput{
		OrganizationID: orgID,
		Title:          req.Title,
		EndTime:        endTime,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, series)
}

func writeError(c *gin.Context, err error) {
	var invalid *ValidationError
	switch {
	case errors.As(err, &invalid):
		response.Unprocessable(c, err.Error(), gin.H{"field": invalid.Field})
	case errors.Is(err, ErrForbidden):
		response.Forbidden(c, err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrSeriesNotFound):
		response.NotFound(c, err.Error())
	default:
		response.Internal(c, "internal error")
	}
}
