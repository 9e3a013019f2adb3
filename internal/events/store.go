package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/connect-hub/backend/internal/models"
)

var (
	// ErrNotFound is returned when the event does not exist.
	ErrNotFound = errors.New("event not found")
	// ErrSeriesNotFound is returned when the referenced series does not exist.
	ErrSeriesNotFound = errors.New("series not found")
	// ErrForbidden is returned when the caller may not manage the event's organization.
	ErrForbidden = errors.New("not authorized for this organization")
	// ErrInvalid is returned for events or series that fail validation.
	ErrInvalid = errors.New("invalid event")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is makes errors.Is(err, ErrInvalid) match.
func (e *ValidationError) Is(target error) bool { return target == ErrInvalid }

// Store is the event persistence the service needs.
type Store interface {
	// ListEvents returns every event with its series, ordered by date.
	ListEvents(ctx context.Context) ([]models.Event, error)
	// GetEvent returns ErrNotFound when the event does not exist.
	GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error)
	// CreateEvent assigns ID, timestamps and, for series members, the occurrence index.
	CreateEvent(ctx context.Context, e *models.Event) error
	// DeleteEvent removes the event and its reservations under the event lock
	// and returns how many reservations went with it.
	DeleteEvent(ctx context.Context, id uuid.UUID) (int, error)
	CreateSeries(ctx context.Context, s *models.EventSeries) error
	// GetSeries returns ErrSeriesNotFound when the series does not exist.
	GetSeries(ctx context.Context, id uuid.UUID) (*models.EventSeries, error)
	// ReservationCounts returns the reservation count per event; events without reservations are absent.
	ReservationCounts(ctx context.Context, eventIDs []uuid.UUID) (map[uuid.UUID]int, error)
}

// OrgAccess answers organization membership questions.
type OrgAccess interface {
	CanManageEvents(ctx context.Context, orgID, userID uuid.UUID) (bool, error)
}
