package models

import (
	"time"

	"github.com/google/uuid"
)

// SweepTrigger says why a sweep run started.
type SweepTrigger string

const (
	SweepTriggerStartup  SweepTrigger = "startup"
	SweepTriggerSchedule SweepTrigger = "schedule"
	SweepTriggerManual   SweepTrigger = "manual"
)

// SweepEventOutcome is the result of reclaiming one ended event.
type SweepEventOutcome struct {
	EventID uuid.UUID `json:"event_id"`
	Title   string    `json:"title"`
	EndedAt time.Time `json:"ended_at"`
	Removed int       `json:"removed"`
	Error   string    `json:"error,omitempty"`
}

// SweepRun is the report of one expiry sweep pass.
type SweepRun struct {
	ID               uuid.UUID           `json:"id"`
	Trigger          SweepTrigger        `json:"trigger"`
	StartedAt        time.Time           `json:"started_at"`
	FinishedAt       time.Time           `json:"finished_at"`
	EventsScanned    int                 `json:"events_scanned"`
	EventsChecked    int                 `json:"events_checked"`
	EventsReclaimed  int                 `json:"events_reclaimed"`
	UsersDecommitted int                 `json:"users_decommitted"`
	Outcomes         []SweepEventOutcome `json:"outcomes"`
	PerEventErrors   []SweepEventOutcome `json:"per_event_errors"`
	Error            string              `json:"error,omitempty"`
}

// Duration returns how long the run took.
func (r *SweepRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
