package sweep_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connect-hub/backend/internal/events"
	"github.com/connect-hub/backend/internal/memstore"
	"github.com/connect-hub/backend/internal/models"
	"github.com/connect-hub/backend/internal/signups"
	"github.com/connect-hub/backend/internal/sweep"
)

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type env struct {
	store   *memstore.Store
	signups *signups.Service
	sweeper *sweep.Sweeper
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memstore.New()
	svc := signups.NewService(store, nil)
	sw := sweep.NewSweeper(store, svc, events.NewResolver(time.UTC, events.DefaultDuration), nil,
		sweep.WithClock(func() time.Time { return now }))
	return &env{store: store, signups: svc, sweeper: sw}
}

// endedAgo stores an event whose explicit end was d before now, with n signups.
func (e *env) endedAgo(t *testing.T, d time.Duration, n int) models.Event {
	t.Helper()
	end := now.Add(-d)
	ev := e.store.PutEvent(models.Event{Title: "Event " + d.String(), Date: end.Add(-2 * time.Hour), EstimatedEndTime: &end})
	for i := 0; i < n; i++ {
		u := e.store.AddUser(models.User{Email: uuid.NewString() + "@example.org"})
		_, err := e.signups.Reserve(context.Background(), signups.Actor{ID: u.ID, Role: u.Role}, uuid.Nil, ev.ID)
		require.NoError(t, err)
	}
	return ev
}

func (e *env) count(t *testing.T, id uuid.UUID) int {
	t.Helper()
	list, err := e.store.ListByEvent(context.Background(), id)
	require.NoError(t, err)
	return len(list)
}

func TestSweepGracePeriod(t *testing.T) {
	e := newEnv(t)
	recent := e.endedAgo(t, 30*time.Minute, 2)
	old := e.endedAgo(t, 61*time.Minute, 3)

	run := e.sweeper.Run(context.Background(), models.SweepTriggerManual)
	assert.Equal(t, 2, run.EventsScanned)
	assert.Equal(t, 1, run.EventsChecked)
	assert.Equal(t, 1, run.EventsReclaimed)
	assert.Equal(t, 3, run.UsersDecommitted)
	require.Len(t, run.Outcomes, 1)
	assert.Equal(t, old.ID, run.Outcomes[0].EventID)

	assert.Equal(t, 2, e.count(t, recent.ID))
	assert.Equal(t, 0, e.count(t, old.ID))
}

func TestSweepIsIdempotent(t *testing.T) {
	e := newEnv(t)
	e.endedAgo(t, 3*time.Hour, 4)
	e.endedAgo(t, 5*time.Hour, 1)

	first := e.sweeper.Run(context.Background(), models.SweepTriggerManual)
	assert.Equal(t, 2, first.EventsReclaimed)
	assert.Equal(t, 5, first.UsersDecommitted)

	second := e.sweeper.Run(context.Background(), models.SweepTriggerManual)
	assert.Equal(t, 2, second.EventsChecked, "empty ended events are still checked")
	assert.Zero(t, second.EventsReclaimed)
	assert.Zero(t, second.UsersDecommitted)
	assert.Empty(t, second.Outcomes)
}

func TestSweepFailureIsolation(t *testing.T) {
	e := newEnv(t)
	broken := e.endedAgo(t, 2*time.Hour, 2)
	fine := e.endedAgo(t, 4*time.Hour, 2)
	e.store.FailEvent(broken.ID, errors.New("deadlock detected"))

	run := e.sweeper.Run(context.Background(), models.SweepTriggerSchedule)
	assert.Equal(t, 1, run.EventsReclaimed)
	require.Len(t, run.PerEventErrors, 1)
	assert.Equal(t, broken.ID, run.PerEventErrors[0].EventID)
	assert.Contains(t, run.PerEventErrors[0].Error, "deadlock detected")
	assert.Equal(t, 0, e.count(t, fine.ID))

	e.store.FailEvent(broken.ID, nil)
	retry := e.sweeper.Run(context.Background(), models.SweepTriggerSchedule)
	assert.Equal(t, 1, retry.EventsReclaimed)
	assert.Equal(t, 2, retry.UsersDecommitted)
	assert.Empty(t, retry.PerEventErrors)
}

func TestSweepUsesSeriesEndTime(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	end, err := models.ParseTimeOfDay("10:30")
	require.NoError(t, err)
	series := &models.EventSeries{Title: "Morning tutoring", EndTime: &end}
	require.NoError(t, e.store.CreateSeries(ctx, series))

	// Starts 09:00 today; series end 10:30 plus grace is before noon.
	ev := &models.Event{Title: "Tutoring", Date: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC), SeriesID: &series.ID}
	require.NoError(t, e.store.CreateEvent(ctx, ev))
	u := e.store.AddUser(models.User{Email: "kid@example.org"})
	_, err = e.signups.Reserve(ctx, signups.Actor{ID: u.ID, Role: u.Role}, uuid.Nil, ev.ID)
	require.NoError(t, err)

	run := e.sweeper.Run(ctx, models.SweepTriggerManual)
	assert.Equal(t, 1, run.UsersDecommitted)
}

type failingLister struct{}

func (failingLister) ListEvents(context.Context) ([]models.Event, error) {
	return nil, errors.New("connection refused")
}

func TestSweepListFailureIsReported(t *testing.T) {
	sw := sweep.NewSweeper(failingLister{}, nil, nil, nil)
	run := sw.Run(context.Background(), models.SweepTriggerStartup)
	assert.Equal(t, "connection refused", run.Error)
	assert.Equal(t, sweep.StateIdle, sw.State())
}

func TestSweepDoesNotTearConcurrentAdmissions(t *testing.T) {
	e := newEnv(t)
	ev := e.endedAgo(t, 2*time.Hour, 0)
	users := make([]models.User, 20)
	for i := range users {
		users[i] = e.store.AddUser(models.User{Email: uuid.NewString() + "@example.org"})
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
		removed  int
	)
	for _, u := range users {
		wg.Add(1)
		go func(u models.User) {
			defer wg.Done()
			if _, err := e.signups.Reserve(context.Background(), signups.Actor{ID: u.ID, Role: u.Role}, uuid.Nil, ev.ID); err == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}(u)
	}
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run := e.sweeper.Run(context.Background(), models.SweepTriggerManual)
			mu.Lock()
			removed += run.UsersDecommitted
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, admitted, removed+e.count(t, ev.ID))
}
