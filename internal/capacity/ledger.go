package capacity

import (
	"github.com/google/uuid"

	"github.com/connect-hub/backend/internal/models"
)

// Availability is the capacity projection of one event at one moment.
// It is computed on demand from the live reservation count and never cached.
type Availability struct {
	Taken     int  `json:"taken"`
	Capacity  *int `json:"capacity,omitempty"`
	Available int  `json:"available"`
	Unbounded bool `json:"unbounded"`
	IsFull    bool `json:"is_full"`
}

// Ledger projects availability for e given its current reservation count.
// A missing or non-positive max_participants means the event is unbounded.
func Ledger(e *models.Event, taken int) Availability {
	a := Availability{Taken: taken}
	if e.MaxParticipants == nil || *e.MaxParticipants <= 0 {
		a.Unbounded = true
		return a
	}
	limit := *e.MaxParticipants
	a.Capacity = &limit
	a.Available = limit - taken
	if a.Available < 0 {
		a.Available = 0
	}
	a.IsFull = taken >= limit
	return a
}

// Fits reports whether n more reservations can be admitted.
func (a Availability) Fits(n int) bool {
	return a.Unbounded || n <= a.Available
}

// Publisher receives an event's availability after every change to it.
type Publisher interface {
	PublishCapacity(eventID uuid.UUID, a Availability)
}
