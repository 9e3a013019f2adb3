// Package sweep reclaims signups from events that have ended.
package sweep

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/connect-hub/backend/internal/events"
	"github.com/connect-hub/backend/internal/models"
)

// State is what the sweeper is doing right now.
type State string

const (
	StateIdle       State = "idle"
	StateScanning   State = "scanning"
	StateReclaiming State = "reclaiming"
)

// EventLister loads every event, with series attached.
type EventLister interface {
	ListEvents(ctx context.Context) ([]models.Event, error)
}

// Reclaimer deletes all signups of one event under its lock and reports how many went.
type Reclaimer interface {
	Reclaim(ctx context.Context, eventID uuid.UUID) (int, error)
}

// Sweeper performs expiry sweep passes. Passes never overlap.
type Sweeper struct {
	events    EventLister
	reclaimer Reclaimer
	resolver  *events.Resolver
	grace     time.Duration
	now       func() time.Time
	logger    *zap.Logger

	runMu sync.Mutex
	mu    sync.RWMutex
	state State
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithGracePeriod overrides events.GracePeriod.
func WithGracePeriod(d time.Duration) Option { return func(s *Sweeper) { s.grace = d } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(s *Sweeper) { s.now = now } }

// NewSweeper creates a sweeper.
func NewSweeper(lister EventLister, reclaimer Reclaimer, resolver *events.Resolver, logger *zap.Logger, opts ...Option) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if resolver == nil {
		resolver = events.NewResolver(time.UTC, events.DefaultDuration)
	}
	s := &Sweeper{
		events:    lister,
		reclaimer: reclaimer,
		resolver:  resolver,
		grace:     events.GracePeriod,
		now:       time.Now,
		logger:    logger,
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state.
func (s *Sweeper) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Sweeper) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Run performs one full pass and returns its report. A failure on one event
// is recorded and the pass moves on. Cancelling ctx does not cut a pass short.
func (s *Sweeper) Run(ctx context.Context, trigger models.SweepTrigger) *models.SweepRun {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	defer s.setState(StateIdle)
	ctx = context.WithoutCancel(ctx)

	run := &models.SweepRun{
		ID:             uuid.New(),
		Trigger:        trigger,
		StartedAt:      s.now().UTC(),
		Outcomes:       []models.SweepEventOutcome{},
		PerEventErrors: []models.SweepEventOutcome{},
	}
	logger := s.logger.With(zap.String("run_id", run.ID.String()), zap.String("trigger", string(trigger)))

	s.setState(StateScanning)
	list, err := s.events.ListEvents(ctx)
	if err != nil {
		run.Error = err.Error()
		run.FinishedAt = s.now().UTC()
		logger.Error("sweep could not load events", zap.Error(err))
		return run
	}
	run.EventsScanned = len(list)

	now := s.now()
	for i := range list {
		e := &list[i]
		end := s.resolver.End(e)
		if !end.Add(s.grace).Before(now) {
			continue
		}
		run.EventsChecked++

		s.setState(StateReclaiming)
		removed, err := s.reclaimer.Reclaim(ctx, e.ID)
		s.setState(StateScanning)

		outcome := models.SweepEventOutcome{EventID: e.ID, Title: e.Title, EndedAt: end.UTC(), Removed: removed}
		switch {
		case errors.Is(err, events.ErrNotFound):
			// deleted since the listing
		case err != nil:
			outcome.Error = err.Error()
			run.PerEventErrors = append(run.PerEventErrors, outcome)
			logger.Error("sweep failed to reclaim event", zap.Error(err), zap.String("event_id", e.ID.String()))
		case removed > 0:
			run.EventsReclaimed++
			run.UsersDecommitted += removed
			run.Outcomes = append(run.Outcomes, outcome)
			logger.Info("sweep reclaimed event",
				zap.String("event_id", e.ID.String()),
				zap.Int("removed", removed),
				zap.Time("ended_at", outcome.EndedAt),
			)
		}
	}

	run.FinishedAt = s.now().UTC()
	logger.Info("sweep finished",
		zap.Int("events_scanned", run.EventsScanned),
		zap.Int("events_checked", run.EventsChecked),
		zap.Int("events_reclaimed", run.EventsReclaimed),
		zap.Int("users_decommitted", run.UsersDecommitted),
		zap.Int("errors", len(run.PerEventErrors)),
		zap.Duration("took", run.Duration()),
	)
	return run
}
