// Package memstore keeps every store in process memory. It backs
// STORE_DRIVER=memory and the service tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/connect-hub/backend/internal/events"
	"github.com/connect-hub/backend/internal/models"
	"github.com/connect-hub/backend/internal/signups"
)

type membership struct {
	org  uuid.UUID
	user uuid.UUID
}

// Store is an in-memory implementation of the signups, events, organization
// and email log stores.
type Store struct {
	mu        sync.RWMutex
	users     map[uuid.UUID]models.User
	orgs      map[uuid.UUID]models.Organization
	members   map[membership]string
	series    map[uuid.UUID]models.EventSeries
	events    map[uuid.UUID]models.Event
	signups   map[uuid.UUID][]models.Reservation
	emailLogs []*models.EmailLog
	faults    map[uuid.UUID]error

	locks keyedMutex
	now   func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		users:   make(map[uuid.UUID]models.User),
		orgs:    make(map[uuid.UUID]models.Organization),
		members: make(map[membership]string),
		series:  make(map[uuid.UUID]models.EventSeries),
		events:  make(map[uuid.UUID]models.Event),
		signups: make(map[uuid.UUID][]models.Reservation),
		faults:  make(map[uuid.UUID]error),
		now:     time.Now,
	}
}

// AddUser registers a participant profile. A nil ID is assigned.
func (s *Store) AddUser(u models.User) models.User {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now().UTC()
	}
	s.mu.Lock()
	s.users[u.ID] = u
	s.mu.Unlock()
	return u
}

// AddOrganization registers an organization. A nil ID is assigned.
func (s *Store) AddOrganization(o models.Organization) models.Organization {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	now := s.now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now
	s.mu.Lock()
	s.orgs[o.ID] = o
	s.mu.Unlock()
	return o
}

// AddMember gives userID role in orgID.
func (s *Store) AddMember(orgID, userID uuid.UUID, role string) {
	s.mu.Lock()
	s.members[membership{org: orgID, user: userID}] = role
	s.mu.Unlock()
}

// PutEvent stores e as is, replacing any event with the same ID. A nil ID is assigned.
func (s *Store) PutEvent(e models.Event) models.Event {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	s.mu.Lock()
	s.events[e.ID] = e
	s.mu.Unlock()
	return e
}

// FailEvent makes every locked operation on eventID return err. A nil err clears it.
func (s *Store) FailEvent(eventID uuid.UUID, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, eventID)
		return
	}
	s.faults[eventID] = err
}

// CanManageEvents implements events.OrgAccess.
func (s *Store) CanManageEvents(_ context.Context, orgID, userID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.CanManageEvents(s.members[membership{org: orgID, user: userID}]), nil
}

// LookupUsers implements signups.Store.
func (s *Store) LookupUsers(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID]models.User, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

// WithEvent implements signups.Store. fn sees a private copy of the event's
// signups; the copy replaces the stored list only when fn returns nil.
func (s *Store) WithEvent(ctx context.Context, eventID uuid.UUID, fn func(tx signups.EventTx) error) error {
	unlock := s.locks.lock(eventID)
	defer unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	fault := s.faults[eventID]
	e, ok := s.events[eventID]
	if ok {
		e = s.attachSeries(e)
	}
	rows := append([]models.Reservation(nil), s.signups[eventID]...)
	s.mu.RUnlock()
	if fault != nil {
		return fault
	}
	if !ok {
		return events.ErrNotFound
	}

	tx := &eventTx{event: e, rows: rows}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	if _, ok := s.events[eventID]; ok {
		s.signups[eventID] = tx.rows
	}
	s.mu.Unlock()
	return nil
}

// ListByEvent implements signups.Store.
func (s *Store) ListByEvent(_ context.Context, eventID uuid.UUID) ([]models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Reservation(nil), s.signups[eventID]...), nil
}

// ListByUser implements signups.Store.
func (s *Store) ListByUser(_ context.Context, userID uuid.UUID) ([]models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Reservation
	for _, rows := range s.signups {
		for _, r := range rows {
			if r.UserID == userID {
				out = append(out, r)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SignedUpAt.Before(out[j].SignedUpAt) })
	return out, nil
}

// ListEvents implements events.Store.
func (s *Store) ListEvents(_ context.Context) ([]models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]models.Event, 0, len(s.events))
	for _, e := range s.events {
		list = append(list, s.attachSeries(e))
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Date.Before(list[j].Date) })
	return list, nil
}

// GetEvent implements events.Store.
func (s *Store) GetEvent(_ context.Context, id uuid.UUID) (*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return nil, events.ErrNotFound
	}
	e = s.attachSeries(e)
	return &e, nil
}

// CreateEvent implements events.Store.
func (s *Store) CreateEvent(_ context.Context, e *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = uuid.New()
	now := s.now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now
	if e.SeriesID != nil {
		if _, ok := s.series[*e.SeriesID]; !ok {
			return events.ErrSeriesNotFound
		}
		next := 1
		for _, other := range s.events {
			if other.SeriesID != nil && *other.SeriesID == *e.SeriesID && other.OccurrenceIndex != nil && *other.OccurrenceIndex >= next {
				next = *other.OccurrenceIndex + 1
			}
		}
		e.OccurrenceIndex = &next
	}
	stored := *e
	stored.Series = nil
	s.events[e.ID] = stored
	*e = s.attachSeries(stored)
	return nil
}

// DeleteEvent implements events.Store.
func (s *Store) DeleteEvent(_ context.Context, id uuid.UUID) (int, error) {
	unlock := s.locks.lock(id)
	defer unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return 0, events.ErrNotFound
	}
	removed := len(s.signups[id])
	delete(s.events, id)
	delete(s.signups, id)
	return removed, nil
}

// CreateSeries implements events.Store.
func (s *Store) CreateSeries(_ context.Context, series *models.EventSeries) error {
	series.ID = uuid.New()
	series.CreatedAt = s.now().UTC()
	s.mu.Lock()
	s.series[series.ID] = *series
	s.mu.Unlock()
	return nil
}

// GetSeries implements events.Store.
func (s *Store) GetSeries(_ context.Context, id uuid.UUID) (*models.EventSeries, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	series, ok := s.series[id]
	if !ok {
		return nil, events.ErrSeriesNotFound
	}
	return &series, nil
}

// ReservationCounts implements events.Store.
func (s *Store) ReservationCounts(_ context.Context, eventIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[uuid.UUID]int, len(eventIDs))
	for _, id := range eventIDs {
		if n := len(s.signups[id]); n > 0 {
			counts[id] = n
		}
	}
	return counts, nil
}

// attachSeries fills e.Series from the series table. Callers hold s.mu.
func (s *Store) attachSeries(e models.Event) models.Event {
	if e.SeriesID == nil {
		e.Series = nil
		return e
	}
	if series, ok := s.series[*e.SeriesID]; ok {
		e.Series = &series
	}
	return e
}

type eventTx struct {
	event models.Event
	rows  []models.Reservation
}

func (t *eventTx) Event() models.Event { return t.event }

func (t *eventTx) CountReservations(context.Context) (int, error) { return len(t.rows), nil }

func (t *eventTx) FindReservation(_ context.Context, userID uuid.UUID) (*models.Reservation, error) {
	for _, r := range t.rows {
		if r.UserID == userID {
			r := r
			return &r, nil
		}
	}
	return nil, signups.ErrNotFound
}

func (t *eventTx) ReservedUsers(_ context.Context, userIDs []uuid.UUID) ([]uuid.UUID, error) {
	want := make(map[uuid.UUID]bool, len(userIDs))
	for _, id := range userIDs {
		want[id] = true
	}
	var out []uuid.UUID
	for _, r := range t.rows {
		if want[r.UserID] {
			out = append(out, r.UserID)
		}
	}
	return out, nil
}

func (t *eventTx) InsertReservations(_ context.Context, rs []models.Reservation) error {
	held := make(map[uuid.UUID]bool, len(t.rows)+len(rs))
	for _, r := range t.rows {
		held[r.UserID] = true
	}
	for _, r := range rs {
		if held[r.UserID] {
			return signups.ErrAlreadyReserved
		}
		held[r.UserID] = true
	}
	t.rows = append(t.rows, rs...)
	return nil
}

func (t *eventTx) DeleteReservation(_ context.Context, id uuid.UUID) error {
	for i, r := range t.rows {
		if r.ID == id {
			t.rows = append(t.rows[:i:i], t.rows[i+1:]...)
			return nil
		}
	}
	return signups.ErrNotFound
}

func (t *eventTx) DeleteAllReservations(context.Context) (int, error) {
	n := len(t.rows)
	t.rows = nil
	return n, nil
}
