package sweep

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/connect-hub/backend/internal/models"
)

const (
	DefaultInterval     = time.Hour
	DefaultStartupDelay = 10 * time.Second
	// LeaseKey is the Redis key instances race for before a scheduled run.
	LeaseKey = "sweep:lease"
)

// Leaser grants at most one holder a key for ttl.
type Leaser interface {
	TryLease(ctx context.Context, key, holder string, ttl time.Duration) (bool, error)
}

// Archiver stores finished run reports.
type Archiver interface {
	ArchiveSweepRun(ctx context.Context, run *models.SweepRun) error
}

// SchedulerConfig controls timing.
type SchedulerConfig struct {
	Interval     time.Duration
	StartupDelay time.Duration
	// LeaseTTL defaults to Interval minus a minute so the next tick can take it.
	LeaseTTL    time.Duration
	HistorySize int
	// Holder identifies this instance in the lease.
	Holder string
}

// Scheduler owns the background sweep task.
type Scheduler struct {
	sweeper  *Sweeper
	history  *History
	leaser   Leaser
	archiver Archiver
	cfg      SchedulerConfig
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a scheduler. leaser and archiver may be nil.
func NewScheduler(sweeper *Sweeper, leaser Leaser, archiver Archiver, cfg SchedulerConfig, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.StartupDelay < 0 {
		cfg.StartupDelay = 0
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = cfg.Interval - time.Minute
		if cfg.LeaseTTL <= 0 {
			cfg.LeaseTTL = cfg.Interval / 2
		}
	}
	return &Scheduler{
		sweeper:  sweeper,
		history:  NewHistory(cfg.HistorySize),
		leaser:   leaser,
		archiver: archiver,
		cfg:      cfg,
		logger:   logger,
	}
}

// Start launches the loop: one run after the startup delay, then one per interval.
// Calling Start on a running scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
	s.logger.Info("sweep scheduler started",
		zap.Duration("startup_delay", s.cfg.StartupDelay),
		zap.Duration("interval", s.cfg.Interval),
	)
}

// Stop cancels the loop and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("sweep scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	startup := time.NewTimer(s.cfg.StartupDelay)
	defer startup.Stop()
	select {
	case <-ctx.Done():
		return
	case <-startup.C:
	}
	s.scheduled(ctx, models.SweepTriggerStartup)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scheduled(ctx, models.SweepTriggerSchedule)
		}
	}
}

// scheduled runs a pass only if this instance wins the lease.
func (s *Scheduler) scheduled(ctx context.Context, trigger models.SweepTrigger) {
	if s.leaser != nil {
		ok, err := s.leaser.TryLease(ctx, LeaseKey, s.cfg.Holder, s.cfg.LeaseTTL)
		if err != nil {
			s.logger.Warn("sweep lease unavailable, running anyway", zap.Error(err))
		} else if !ok {
			s.logger.Info("sweep skipped, another instance holds the lease", zap.String("trigger", string(trigger)))
			return
		}
	}
	s.RunNow(ctx, trigger)
}

// RunNow performs a pass immediately, records it and archives it.
func (s *Scheduler) RunNow(ctx context.Context, trigger models.SweepTrigger) *models.SweepRun {
	run := s.sweeper.Run(ctx, trigger)
	s.history.Add(run)
	if s.archiver != nil {
		if err := s.archiver.ArchiveSweepRun(context.WithoutCancel(ctx), run); err != nil {
			s.logger.Warn("sweep archive failed", zap.Error(err), zap.String("run_id", run.ID.String()))
		}
	}
	return run
}

// History returns recent runs, newest first.
func (s *Scheduler) History() []*models.SweepRun { return s.history.List() }

// State returns the sweeper's current state.
func (s *Scheduler) State() State { return s.sweeper.State() }

// Running reports whether the background loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}
