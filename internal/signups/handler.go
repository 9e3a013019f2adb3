package signups

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/connect-hub/backend/internal/events"
	"github.com/connect-hub/backend/internal/middleware"
	"github.com/connect-hub/backend/pkg/response"
)

// ReserveRequest is the body for POST /events/:id/signups.
type ReserveRequest struct {
	UserID *string `json:"user_id"` // optional; defaults to the caller
}

// GroupRequest is the body for POST /events/:id/signups/group.
type GroupRequest struct {
	UserIDs []string `json:"user_ids" binding:"required"`
}

// ReservationResponse is the body returned for a created signup.
type ReservationResponse struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	UserID        uuid.UUID `json:"user_id"`
	EventID       uuid.UUID `json:"event_id"`
	SignedUpBy    uuid.UUID `json:"signed_up_by"`
	SignedUpAt    time.Time `json:"signed_up_at"`
}

// Handler handles signup HTTP endpoints.
type Handler struct {
	svc    *Service
	events *events.Service
}

// NewHandler creates a signups handler. eventsSvc decides who may list an event's signups.
func NewHandler(svc *Service, eventsSvc *events.Service) *Handler {
	return &Handler{svc: svc, events: eventsSvc}
}

func actor(c *gin.Context) Actor {
	return Actor{ID: middleware.UserID(c), Role: middleware.Role(c)}
}

func eventParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return uuid.Nil, false
	}
	return id, true
}

// Reserve handles POST /events/:id/signups.
func (h *Handler) Reserve(c *gin.Context) {
	eventID, ok := eventParam(c)
	if !ok {
		return
	}
	var req ReserveRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request: "+err.Error())
			return
		}
	}
	target := uuid.Nil
	if req.UserID != nil && *req.UserID != "" {
		id, err := uuid.Parse(*req.UserID)
		if err != nil {
			response.BadRequest(c, "invalid user_id")
			return
		}
		target = id
	}

	res, err := h.svc.Reserve(c.Request.Context(), actor(c), target, eventID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, ReservationResponse{
		ReservationID: res.ID,
		UserID:        res.UserID,
		EventID:       res.EventID,
		SignedUpBy:    res.SignedUpBy,
		SignedUpAt:    res.SignedUpAt,
	})
}

// ReserveGroup handles POST /events/:id/signups/group (proxy leaders and admins).
func (h *Handler) ReserveGroup(c *gin.Context) {
	eventID, ok := eventParam(c)
	if !ok {
		return
	}
	var req GroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ids := make([]uuid.UUID, 0, len(req.UserIDs))
	for _, s := range req.UserIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			response.BadRequest(c, "invalid user id: "+s)
			return
		}
		ids = append(ids, id)
	}

	result, err := h.svc.ReserveGroup(c.Request.Context(), actor(c), ids, eventID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, result)
}

// Cancel handles DELETE /events/:id/signups/:userId.
func (h *Handler) Cancel(c *gin.Context) {
	eventID, ok := eventParam(c)
	if !ok {
		return
	}
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	if err := h.svc.Cancel(c.Request.Context(), actor(c), userID, eventID); err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, gin.H{"ok": true})
}

// ListByEvent handles GET /events/:id/signups (admin, proxy leaders or organization access).
func (h *Handler) ListByEvent(c *gin.Context) {
	eventID, ok := eventParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	a := actor(c)
	if !a.Role.CanActOnBehalf() {
		item, err := h.events.Get(ctx, eventID)
		if err != nil {
			writeError(c, err)
			return
		}
		allowed, err := h.events.CanManage(ctx, a.ID, a.Role, &item.Event)
		if err != nil {
			response.Internal(c, "failed to check organization access")
			return
		}
		if !allowed {
			response.Forbidden(c, "not authorized for this event")
			return
		}
	}
	list, err := h.svc.ListByEvent(ctx, eventID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, list)
}

// ListMine handles GET /me/signups.
func (h *Handler) ListMine(c *gin.Context) {
	list, err := h.svc.ListByUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, list)
}

// Availability handles GET /events/:id/availability.
func (h *Handler) Availability(c *gin.Context) {
	eventID, ok := eventParam(c)
	if !ok {
		return
	}
	a, err := h.svc.Availability(c.Request.Context(), eventID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, a)
}

// writeError maps service errors to HTTP statuses.
func writeError(c *gin.Context, err error) {
	var (
		invalid      *InvalidTargetError
		insufficient *InsufficientCapacityError
	)
	switch {
	case errors.Is(err, ErrForbidden):
		response.Forbidden(c, err.Error())
	case errors.As(err, &invalid):
		response.Unprocessable(c, ErrInvalidTarget.Error(), gin.H{"missing": invalid.Missing})
	case errors.Is(err, ErrEmptyGroup):
		response.BadRequest(c, err.Error())
	case errors.As(err, &insufficient):
		response.ConflictWithData(c, err.Error(), gin.H{
			"requested": insufficient.Requested,
			"remaining": insufficient.Remaining,
		})
	case errors.Is(err, ErrAlreadyReserved), errors.Is(err, ErrEventFull), errors.Is(err, ErrAllAlreadyReserved):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrEventNotFound), errors.Is(err, ErrNotFound):
		response.NotFound(c, err.Error())
	default:
		response.Internal(c, "internal error")
	}
}
