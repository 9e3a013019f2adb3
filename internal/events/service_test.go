package events_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connect-hub/backend/internal/capacity"
	"github.com/connect-hub/backend/internal/events"
	"github.com/connect-hub/backend/internal/memstore"
	"github.com/connect-hub/backend/internal/models"
	"github.com/connect-hub/backend/internal/signups"
)

var now = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

type published struct {
	mu   sync.Mutex
	last map[uuid.UUID]capacity.Availability
}

func (p *published) PublishCapacity(id uuid.UUID, a capacity.Availability) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		p.last = make(map[uuid.UUID]capacity.Availability)
	}
	p.last[id] = a
}

type fixture struct {
	store   *memstore.Store
	svc     *events.Service
	signups *signups.Service
	feed    *published
	admin   models.User
	manager models.User
	member  models.User
	org     models.Organization
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	feed := &published{}
	org := store.AddOrganization(models.Organization{Name: "Harbor shelter", Slug: "harbor"})
	f := &fixture{
		store:   store,
		feed:    feed,
		org:     org,
		admin:   store.AddUser(models.User{Email: "admin@example.org", Role: models.RoleAdmin}),
		manager: store.AddUser(models.User{Email: "manager@example.org"}),
		member:  store.AddUser(models.User{Email: "member@example.org"}),
		signups: signups.NewService(store, nil),
	}
	store.AddMember(org.ID, f.manager.ID, models.OrgRoleEventManager)
	store.AddMember(org.ID, f.member.ID, models.OrgRoleMember)
	f.svc = events.NewService(store, store, nil, nil,
		events.WithClock(func() time.Time { return now }),
		events.WithCapacityPublisher(feed),
	)
	return f
}

func (f *fixture) create(t *testing.T, in events.CreateInput) *models.Event {
	t.Helper()
	if in.OrganizationID == nil {
		in.OrganizationID = &f.org.ID
	}
	e, err := f.svc.Create(context.Background(), f.manager.ID, f.manager.Role, in)
	require.NoError(t, err)
	return e
}

func (f *fixture) signUp(t *testing.T, eventID uuid.UUID, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		u := f.store.AddUser(models.User{Email: uuid.NewString() + "@example.org"})
		_, err := f.signups.Reserve(context.Background(), signups.Actor{ID: u.ID, Role: u.Role}, uuid.Nil, eventID)
		require.NoError(t, err)
	}
}

func limit(n int) *int { return &n }

func TestFeedShowsActiveEventsWithAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ended := f.create(t, events.CreateInput{Title: "Yesterday", Date: now.Add(-26 * time.Hour)})
	open := f.create(t, events.CreateInput{Title: "Open", Date: now.Add(24 * time.Hour), MaxParticipants: limit(3)})
	full := f.create(t, events.CreateInput{Title: "Full", Date: now.Add(30 * time.Hour), MaxParticipants: limit(1)})
	f.signUp(t, open.ID, 1)
	f.signUp(t, full.ID, 1)

	items, err := f.svc.Feed(ctx, events.FeedOptions{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, open.ID, items[0].ID)
	assert.Equal(t, 1, items[0].Availability.Taken)
	assert.Equal(t, 2, items[0].Availability.Available)
	assert.Equal(t, open.Date.Add(events.DefaultDuration), items[0].EndsAt)

	items, err = f.svc.Feed(ctx, events.FeedOptions{IncludeFull: true})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.True(t, items[1].Availability.IsFull)

	got, err := f.svc.Get(ctx, ended.ID)
	require.NoError(t, err)
	assert.Equal(t, "Yesterday", got.Title)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	before := now.Add(-time.Hour)
	tests := []struct {
		name  string
		in    events.CreateInput
		field string
	}{
		{"missing title", events.CreateInput{Title: "  ", Date: now}, "title"},
		{"missing date", events.CreateInput{Title: "x"}, "date"},
		{"end before start", events.CreateInput{Title: "x", Date: now, EstimatedEndTime: &before}, "estimated_end_time"},
		{"zero capacity", events.CreateInput{Title: "x", Date: now, MaxParticipants: limit(0)}, "max_participants"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, f.admin.ID, f.admin.Role, tt.in)
			require.ErrorIs(t, err, events.ErrInvalid)
			var ve *events.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestCreateRequiresOrganizationAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := events.CreateInput{Title: "Pantry shift", Date: now.Add(time.Hour), OrganizationID: &f.org.ID}

	_, err := f.svc.Create(ctx, f.member.ID, f.member.Role, in)
	assert.ErrorIs(t, err, events.ErrForbidden)

	_, err = f.svc.Create(ctx, f.member.ID, f.member.Role, events.CreateInput{Title: "No org", Date: now})
	assert.ErrorIs(t, err, events.ErrForbidden)

	_, err = f.svc.Create(ctx, f.admin.ID, f.admin.Role, events.CreateInput{Title: "No org", Date: now})
	assert.NoError(t, err)

	e, err := f.svc.Create(ctx, f.manager.ID, f.manager.Role, in)
	require.NoError(t, err)
	assert.Equal(t, f.org.ID, *e.OrganizationID)
}

func TestSeriesOccurrencesInheritOrganization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	end, err := models.ParseTimeOfDay("17:00")
	require.NoError(t, err)
	series, err := f.svc.CreateSeries(ctx, f.manager.ID, f.manager.Role, events.SeriesInput{
		OrganizationID: &f.org.ID, Title: "Weekly sort", EndTime: &end,
	})
	require.NoError(t, err)

	var last *models.Event
	for i := 0; i < 2; i++ {
		last, err = f.svc.Create(ctx, f.manager.ID, f.manager.Role, events.CreateInput{
			Title: "Sort", Date: now.Add(time.Duration(i+1) * 24 * time.Hour), SeriesID: &series.ID,
		})
		require.NoError(t, err)
	}
	assert.Equal(t, f.org.ID, *last.OrganizationID)
	assert.Equal(t, 2, *last.OccurrenceIndex)

	item, err := f.svc.Get(ctx, last.ID)
	require.NoError(t, err)
	assert.Equal(t, 17, item.EndsAt.Hour())

	_, err = f.svc.Create(ctx, f.admin.ID, f.admin.Role, events.CreateInput{Title: "x", Date: now, SeriesID: ptr(uuid.New())})
	assert.ErrorIs(t, err, events.ErrSeriesNotFound)

	_, err = f.svc.CreateSeries(ctx, f.member.ID, f.member.Role, events.SeriesInput{OrganizationID: &f.org.ID, Title: "x"})
	assert.ErrorIs(t, err, events.ErrForbidden)
}

func ptr(id uuid.UUID) *uuid.UUID { return &id }

func TestDeleteCascadesAndPublishes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.create(t, events.CreateInput{Title: "Beach day", Date: now.Add(time.Hour), MaxParticipants: limit(5)})
	f.signUp(t, e.ID, 2)

	assert.ErrorIs(t, f.svc.Delete(ctx, f.member.ID, f.member.Role, e.ID), events.ErrForbidden)
	require.NoError(t, f.svc.Delete(ctx, f.manager.ID, f.manager.Role, e.ID))

	_, err := f.svc.Get(ctx, e.ID)
	assert.ErrorIs(t, err, events.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, f.admin.ID, f.admin.Role, e.ID), events.ErrNotFound)

	list, err := f.store.ListByEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	f.feed.mu.Lock()
	defer f.feed.mu.Unlock()
	assert.Equal(t, 5, f.feed.last[e.ID].Available)
}
