package sweep

import (
	"github.com/gin-gonic/gin"

	"github.com/connect-hub/backend/internal/models"
	"github.com/connect-hub/backend/pkg/response"
)

// Handler exposes the sweep to admins.
type Handler struct {
	scheduler *Scheduler
}

// NewHandler creates a sweep handler.
func NewHandler(scheduler *Scheduler) *Handler {
	return &Handler{scheduler: scheduler}
}

// StatusResponse is the body of GET /admin/sweeps.
type StatusResponse struct {
	State   State              `json:"state"`
	Running bool               `json:"scheduler_running"`
	Runs    []*models.SweepRun `json:"runs"`
}

// Run handles POST /admin/sweeps (admin only). The pass runs to completion
// before responding; the run report is returned even when some events failed.
func (h *Handler) Run(c *gin.Context) {
	run := h.scheduler.RunNow(c.Request.Context(), models.SweepTriggerManual)
	if run.Error != "" {
		response.Internal(c, "sweep failed: "+run.Error)
		return
	}
	response.OK(c, run)
}

// Status handles GET /admin/sweeps (admin only).
func (h *Handler) Status(c *gin.Context) {
	response.OK(c, StatusResponse{
		State:   h.scheduler.State(),
		Running: h.scheduler.Running(),
		Runs:    h.scheduler.History(),
	})
}
