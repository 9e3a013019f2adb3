package emaillogs

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/connect-hub/backend/internal/events"
	"github.com/connect-hub/backend/internal/middleware"
	"github.com/connect-hub/backend/pkg/response"
)

// Handler handles email log HTTP endpoints.
type Handler struct {
	store  Store
	events *events.Service
}

// NewHandler creates an email logs handler.
func NewHandler(store Store, eventsSvc *events.Service) *Handler {
	return &Handler{store: store, events: eventsSvc}
}

// ListByEvent handles GET /events/:id/emails (admin or organization access).
func (h *Handler) ListByEvent(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	ctx := c.Request.Context()
	item, err := h.events.Get(ctx, eventID)
	if err != nil {
		if errors.Is(err, events.ErrNotFound) {
			response.NotFound(c, "event not found")
			return
		}
		response.Internal(c, "failed to load event")
		return
	}
	ok, err := h.events.CanManage(ctx, middleware.UserID(c), middleware.Role(c), &item.Event)
	if err != nil {
		response.Internal(c, "failed to check organization access")
		return
	}
	if !ok {
		response.Forbidden(c, "not authorized for this event")
		return
	}
	logs, err := h.store.ListEmailLogsByEvent(ctx, eventID)
	if err != nil {
		response.Internal(c, "failed to load email logs")
		return
	}
	response.OK(c, logs)
}
