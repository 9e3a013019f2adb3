package signups

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/connect-hub/backend/internal/events"
)

var (
	// ErrForbidden is returned when the actor may not act on the target.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidTarget is returned when a target user is not a known participant.
	ErrInvalidTarget = errors.New("unknown participant")
	// ErrAlreadyReserved is returned when the user already holds a reservation for the event.
	ErrAlreadyReserved = errors.New("already signed up for this event")
	// ErrEventFull is returned when the event has no remaining slots.
	ErrEventFull = errors.New("event is full")
	// ErrInsufficientCapacity is returned when a group does not fit in the remaining slots.
	ErrInsufficientCapacity = errors.New("not enough slots for the group")
	// ErrAllAlreadyReserved is returned when every member of a group is already signed up.
	ErrAllAlreadyReserved = errors.New("all selected users are already signed up")
	// ErrNotFound is returned when no matching reservation exists.
	ErrNotFound = errors.New("signup not found")
	// ErrEventNotFound is returned when the event does not exist.
	ErrEventNotFound = events.ErrNotFound
	// ErrEmptyGroup is returned when a group signup names nobody.
	ErrEmptyGroup = errors.New("no users selected")
	// ErrStorage marks persistence failures, as opposed to business-rule rejections.
	ErrStorage = errors.New("storage failure")
)

// InvalidTargetError lists the user ids that are not known participants.
type InvalidTargetError struct {
	Missing []uuid.UUID
}

func (e *InvalidTargetError) Error() string {
	ids := make([]string, len(e.Missing))
	for i, id := range e.Missing {
		ids[i] = id.String()
	}
	return fmt.Sprintf("%s: %s", ErrInvalidTarget, strings.Join(ids, ", "))
}

// Is makes errors.Is(err, ErrInvalidTarget) match.
func (e *InvalidTargetError) Is(target error) bool { return target == ErrInvalidTarget }

// InsufficientCapacityError reports how many slots remained when a group was rejected.
type InsufficientCapacityError struct {
	Requested int
	Remaining int
}

func (e *InsufficientCapacityError) Error() string {
	return fmt.Sprintf("only %d spots remaining, %d requested", e.Remaining, e.Requested)
}

// Is makes errors.Is(err, ErrInsufficientCapacity) match.
func (e *InsufficientCapacityError) Is(target error) bool { return target == ErrInsufficientCapacity }

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

// isBusinessErr reports whether err is a rule rejection that must pass through unwrapped.
func isBusinessErr(err error) bool {
	for _, target := range []error{
		ErrForbidden, ErrInvalidTarget, ErrAlreadyReserved, ErrEventFull,
		ErrInsufficientCapacity, ErrAllAlreadyReserved, ErrNotFound, ErrEventNotFound,
		ErrEmptyGroup,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
