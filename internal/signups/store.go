package signups

import (
	"context"

	"github.com/google/uuid"

	"github.com/connect-hub/backend/internal/models"
)

// Store is the persistence the signup service needs.
type Store interface {
	// LookupUsers returns the known participants among ids, keyed by id.
	LookupUsers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.User, error)
	// WithEvent runs fn while holding the event's lock. Writes made through tx
	// are committed only if fn returns nil. Returns ErrEventNotFound if the event does not exist.
	WithEvent(ctx context.Context, eventID uuid.UUID, fn func(tx EventTx) error) error
	// ListByEvent returns the reservations of an event, oldest first.
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Reservation, error)
	// ListByUser returns the reservations held by a user, oldest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Reservation, error)
}

// EventTx is the view of one locked event and its reservations.
type EventTx interface {
	// Event returns the locked event, with its series when it has one.
	Event() models.Event
	CountReservations(ctx context.Context) (int, error)
	// FindReservation returns ErrNotFound when the user holds no reservation.
	FindReservation(ctx context.Context, userID uuid.UUID) (*models.Reservation, error)
	// ReservedUsers returns the subset of userIDs already holding a reservation.
	ReservedUsers(ctx context.Context, userIDs []uuid.UUID) ([]uuid.UUID, error)
	// InsertReservations inserts all or none; a duplicate yields ErrAlreadyReserved.
	InsertReservations(ctx context.Context, rs []models.Reservation) error
	DeleteReservation(ctx context.Context, id uuid.UUID) error
	// DeleteAllReservations removes every reservation of the event and returns how many.
	DeleteAllReservations(ctx context.Context) (int, error)
}

// Notifier delivers best-effort signup notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}

// Notice describes one participant-facing signup change.
type Notice struct {
	Kind        string
	Event       models.Event
	Participant models.User
	Actor       models.User
}
