package signups

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/connect-hub/backend/internal/capacity"
	"github.com/connect-hub/backend/internal/models"
)

// notifyTimeout bounds how long a signup waits on the notification channel.
const notifyTimeout = 2 * time.Second

// Actor is the authenticated caller.
type Actor struct {
	ID   uuid.UUID
	Role models.Role
}

// GroupResult is the outcome of a successful group signup.
type GroupResult struct {
	CreatedCount    int                  `json:"created_count"`
	Created         []models.Reservation `json:"created"`
	AlreadyReserved []uuid.UUID          `json:"already_reserved"`
	Summary         string               `json:"summary"`
}

// Service admits, rejects and cancels event signups.
type Service struct {
	store     Store
	notifier  Notifier
	publisher capacity.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets the notification channel.
func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

// WithCapacityPublisher sets the live availability feed.
func WithCapacityPublisher(p capacity.Publisher) Option { return func(s *Service) { s.publisher = p } }

// WithClock overrides time.Now for signup timestamps.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService creates a signup service.
func NewService(store Store, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{store: store, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reserve signs targetUserID up for eventID on behalf of actor.
func (s *Service) Reserve(ctx context.Context, actor Actor, targetUserID, eventID uuid.UUID) (*models.Reservation, error) {
	if targetUserID == uuid.Nil {
		targetUserID = actor.ID
	}
	if targetUserID != actor.ID && !actor.Role.CanActOnBehalf() {
		return nil, ErrForbidden
	}

	users, err := s.store.LookupUsers(ctx, uniqueIDs([]uuid.UUID{targetUserID, actor.ID}))
	if err != nil {
		return nil, storageErr("lookup users", err)
	}
	target, ok := users[targetUserID]
	if !ok {
		return nil, &InvalidTargetError{Missing: []uuid.UUID{targetUserID}}
	}

	var (
		res   models.Reservation
		event models.Event
		avail capacity.Availability
	)
	err = s.store.WithEvent(ctx, eventID, func(tx EventTx) error {
		event = tx.Event()
		if _, err := tx.FindReservation(ctx, targetUserID); err == nil {
			return ErrAlreadyReserved
		} else if !errors.Is(err, ErrNotFound) {
			return storageErr("find signup", err)
		}

		taken, err := tx.CountReservations(ctx)
		if err != nil {
			return storageErr("count signups", err)
		}
		if capacity.Ledger(&event, taken).IsFull {
			return ErrEventFull
		}

		res = models.Reservation{
			ID:         uuid.New(),
			UserID:     targetUserID,
			EventID:    eventID,
			SignedUpBy: actor.ID,
			SignedUpAt: s.now().UTC(),
		}
		if err := tx.InsertReservations(ctx, []models.Reservation{res}); err != nil {
			if errors.Is(err, ErrAlreadyReserved) {
				return err
			}
			return storageErr("insert signup", err)
		}
		avail = capacity.Ledger(&event, taken+1)
		return nil
	})
	if err != nil {
		return nil, s.classify("reserve", err)
	}

	s.logger.Info("signup created",
		zap.String("event_id", eventID.String()),
		zap.String("user_id", targetUserID.String()),
		zap.String("signed_up_by", actor.ID.String()),
	)
	s.publish(eventID, avail)
	kind := models.EmailTypeSignupConfirmation
	if res.IsProxy() {
		kind = models.EmailTypeGroupSignup
	}
	s.notify(ctx, Notice{Kind: kind, Event: event, Participant: target, Actor: actorUser(users, actor)})
	return &res, nil
}

// ReserveGroup signs several users up for eventID on behalf of a proxy leader.
// Users already signed up are reported, not rejected. The group is rejected as
// a whole, before any write, if the new members do not fit.
func (s *Service) ReserveGroup(ctx context.Context, actor Actor, targetUserIDs []uuid.UUID, eventID uuid.UUID) (*GroupResult, error) {
	if !actor.Role.CanActOnBehalf() {
		return nil, ErrForbidden
	}
	targets := uniqueIDs(targetUserIDs)
	if len(targets) == 0 {
		return nil, ErrEmptyGroup
	}

	users, err := s.store.LookupUsers(ctx, uniqueIDs(append([]uuid.UUID{actor.ID}, targets...)))
	if err != nil {
		return nil, storageErr("lookup users", err)
	}
	var missing []uuid.UUID
	for _, id := range targets {
		if _, ok := users[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, &InvalidTargetError{Missing: missing}
	}

	result := &GroupResult{AlreadyReserved: []uuid.UUID{}}
	var (
		event models.Event
		avail capacity.Availability
	)
	err = s.store.WithEvent(ctx, eventID, func(tx EventTx) error {
		event = tx.Event()
		taken, err := tx.CountReservations(ctx)
		if err != nil {
			return storageErr("count signups", err)
		}
		reserved, err := tx.ReservedUsers(ctx, targets)
		if err != nil {
			return storageErr("check existing signups", err)
		}
		already := make(map[uuid.UUID]bool, len(reserved))
		for _, id := range reserved {
			already[id] = true
		}
		var fresh []uuid.UUID
		for _, id := range targets {
			if already[id] {
				result.AlreadyReserved = append(result.AlreadyReserved, id)
			} else {
				fresh = append(fresh, id)
			}
		}

		before := capacity.Ledger(&event, taken)
		if !before.Fits(len(fresh)) {
			return &InsufficientCapacityError{Requested: len(fresh), Remaining: before.Available}
		}
		if len(fresh) == 0 {
			return ErrAllAlreadyReserved
		}

		at := s.now().UTC()
		rows := make([]models.Reservation, 0, len(fresh))
		for _, id := range fresh {
			rows = append(rows, models.Reservation{
				ID:         uuid.New(),
				UserID:     id,
				EventID:    eventID,
				SignedUpBy: actor.ID,
				SignedUpAt: at,
			})
		}
		if err := tx.InsertReservations(ctx, rows); err != nil {
			if errors.Is(err, ErrAlreadyReserved) {
				return err
			}
			return storageErr("insert signups", err)
		}
		result.Created = rows
		result.CreatedCount = len(rows)
		avail = capacity.Ledger(&event, taken+len(rows))
		return nil
	})
	if err != nil {
		return nil, s.classify("reserve group", err)
	}

	result.Summary = groupSummary(result.CreatedCount, len(result.AlreadyReserved))
	s.logger.Info("group signup created",
		zap.String("event_id", eventID.String()),
		zap.String("signed_up_by", actor.ID.String()),
		zap.Int("created", result.CreatedCount),
		zap.Int("already_reserved", len(result.AlreadyReserved)),
	)
	s.publish(eventID, avail)
	by := actorUser(users, actor)
	for _, r := range result.Created {
		s.notify(ctx, Notice{Kind: models.EmailTypeGroupSignup, Event: event, Participant: users[r.UserID], Actor: by})
	}
	return result, nil
}

// Cancel removes userID's signup for eventID. Users may cancel their own
// signup; anyone else may cancel only a signup they created.
func (s *Service) Cancel(ctx context.Context, actor Actor, userID, eventID uuid.UUID) error {
	if userID == uuid.Nil {
		userID = actor.ID
	}
	var (
		event models.Event
		avail capacity.Availability
	)
	err := s.store.WithEvent(ctx, eventID, func(tx EventTx) error {
		event = tx.Event()
		res, err := tx.FindReservation(ctx, userID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return err
			}
			return storageErr("find signup", err)
		}
		if actor.ID != userID && res.SignedUpBy != actor.ID {
			return ErrForbidden
		}
		if err := tx.DeleteReservation(ctx, res.ID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return err
			}
			return storageErr("delete signup", err)
		}
		taken, err := tx.CountReservations(ctx)
		if err != nil {
			return storageErr("count signups", err)
		}
		avail = capacity.Ledger(&event, taken)
		return nil
	})
	if err != nil {
		return s.classify("cancel", err)
	}

	s.logger.Info("signup cancelled",
		zap.String("event_id", eventID.String()),
		zap.String("user_id", userID.String()),
		zap.String("cancelled_by", actor.ID.String()),
	)
	s.publish(eventID, avail)
	users, err := s.store.LookupUsers(ctx, []uuid.UUID{userID})
	if err == nil {
		if u, ok := users[userID]; ok {
			s.notify(ctx, Notice{Kind: models.EmailTypeCancellation, Event: event, Participant: u, Actor: models.User{ID: actor.ID, Role: actor.Role}})
		}
	}
	return nil
}

// Reclaim deletes every signup of an event, under the same lock admissions use.
// It returns how many signups were removed; zero means nothing was held.
func (s *Service) Reclaim(ctx context.Context, eventID uuid.UUID) (int, error) {
	var (
		removed int
		avail   capacity.Availability
	)
	err := s.store.WithEvent(ctx, eventID, func(tx EventTx) error {
		event := tx.Event()
		taken, err := tx.CountReservations(ctx)
		if err != nil {
			return storageErr("count signups", err)
		}
		if taken == 0 {
			return nil
		}
		removed, err = tx.DeleteAllReservations(ctx)
		if err != nil {
			return storageErr("delete signups", err)
		}
		avail = capacity.Ledger(&event, taken-removed)
		return nil
	})
	if err != nil {
		return 0, s.classify("reclaim", err)
	}
	if removed > 0 {
		s.publish(eventID, avail)
	}
	return removed, nil
}

// Availability returns the live capacity projection of an event.
func (s *Service) Availability(ctx context.Context, eventID uuid.UUID) (capacity.Availability, error) {
	var a capacity.Availability
	err := s.store.WithEvent(ctx, eventID, func(tx EventTx) error {
		event := tx.Event()
		taken, err := tx.CountReservations(ctx)
		if err != nil {
			return storageErr("count signups", err)
		}
		a = capacity.Ledger(&event, taken)
		return nil
	})
	if err != nil {
		return capacity.Availability{}, s.classify("availability", err)
	}
	return a, nil
}

// ListByEvent returns the signups of an event.
func (s *Service) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Reservation, error) {
	list, err := s.store.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, s.classify("list event signups", err)
	}
	return list, nil
}

// ListByUser returns the signups held by a user.
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Reservation, error) {
	list, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, s.classify("list user signups", err)
	}
	return list, nil
}

// classify passes rule rejections through and marks everything else as a storage failure.
func (s *Service) classify(op string, err error) error {
	if isBusinessErr(err) || errors.Is(err, ErrStorage) {
		return err
	}
	return storageErr(op, err)
}

func (s *Service) publish(eventID uuid.UUID, a capacity.Availability) {
	if s.publisher != nil {
		s.publisher.PublishCapacity(eventID, a)
	}
}

func (s *Service) notify(ctx context.Context, n Notice) {
	if s.notifier == nil || n.Participant.Email == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn("signup notification failed",
			zap.Error(err),
			zap.String("kind", n.Kind),
			zap.String("event_id", n.Event.ID.String()),
			zap.String("user_id", n.Participant.ID.String()),
		)
	}
}

func actorUser(users map[uuid.UUID]models.User, actor Actor) models.User {
	if u, ok := users[actor.ID]; ok {
		return u
	}
	return models.User{ID: actor.ID, Role: actor.Role}
}

func groupSummary(created, already int) string {
	msg := fmt.Sprintf("Signed up %d %s", created, plural(created, "user", "users"))
	if already > 0 {
		msg += fmt.Sprintf("; %d already signed up", already)
	}
	return msg
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
