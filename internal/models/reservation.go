package models

import (
	"time"

	"github.com/google/uuid"
)

// Reservation is one participant's claim on one event slot.
// SignedUpBy is the actor that created it; it equals UserID for self signups.
type Reservation struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	EventID    uuid.UUID `json:"event_id"`
	SignedUpBy uuid.UUID `json:"signed_up_by"`
	SignedUpAt time.Time `json:"signed_up_at"`
}

// IsProxy reports whether the reservation was created on behalf of someone else.
func (r *Reservation) IsProxy() bool {
	return r.SignedUpBy != r.UserID
}
