package events

import (
	"time"

	"github.com/connect-hub/backend/internal/models"
)

const (
	// DefaultDuration is assumed for events with neither an explicit end nor a series end time.
	DefaultDuration = 2 * time.Hour
	// GracePeriod is how long after its resolved end an event still counts as live.
	GracePeriod = time.Hour
	// FeedCutoff hides events from the upcoming feed this long before they start.
	FeedCutoff = 12 * time.Hour
)

// Strategy names, reported alongside a resolved end.
const (
	StrategyEstimatedEnd = "estimated_end_time"
	StrategySeriesEnd    = "series_end_time"
	StrategyDefault      = "default_duration"
)

// EndStrategy yields an event's end instant, or ok=false when it does not apply.
type EndStrategy struct {
	Name    string
	Resolve func(e *models.Event) (end time.Time, ok bool)
}

// Resolver computes when an event is finished by trying strategies in order.
// It never reads the clock.
type Resolver struct {
	strategies []EndStrategy
	fallback   time.Duration
}

// NewResolver returns the standard chain: explicit estimated end, then the
// series end time combined with the event date in loc, then date plus defaultDuration.
func NewResolver(loc *time.Location, defaultDuration time.Duration) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	if defaultDuration <= 0 {
		defaultDuration = DefaultDuration
	}
	return NewResolverWith(defaultDuration,
		EstimatedEndStrategy(),
		SeriesEndStrategy(loc),
	)
}

// NewResolverWith builds a resolver from custom strategies. A date+fallback
// strategy is always evaluated last, so every event resolves.
func NewResolverWith(fallback time.Duration, strategies ...EndStrategy) *Resolver {
	chain := make([]EndStrategy, 0, len(strategies)+1)
	chain = append(chain, strategies...)
	chain = append(chain, DefaultDurationStrategy(fallback))
	return &Resolver{strategies: chain, fallback: fallback}
}

// EstimatedEndStrategy uses estimated_end_time verbatim.
func EstimatedEndStrategy() EndStrategy {
	return EndStrategy{
		Name: StrategyEstimatedEnd,
		Resolve: func(e *models.Event) (time.Time, bool) {
			if e.EstimatedEndTime == nil {
				return time.Time{}, false
			}
			return *e.EstimatedEndTime, true
		},
	}
}

// SeriesEndStrategy combines the event date with its series end time of day.
// An end time earlier than the start time of day rolls over to the next day.
func SeriesEndStrategy(loc *time.Location) EndStrategy {
	return EndStrategy{
		Name: StrategySeriesEnd,
		Resolve: func(e *models.Event) (time.Time, bool) {
			if e.Series == nil || e.Series.EndTime == nil {
				return time.Time{}, false
			}
			end := e.Series.EndTime.On(e.Date, loc)
			if end.Before(e.Date) {
				end = end.AddDate(0, 0, 1)
			}
			return end, true
		},
	}
}

// DefaultDurationStrategy is date plus d. It always applies.
func DefaultDurationStrategy(d time.Duration) EndStrategy {
	return EndStrategy{
		Name: StrategyDefault,
		Resolve: func(e *models.Event) (time.Time, bool) {
			return e.Date.Add(d), true
		},
	}
}

// End returns the instant e is considered finished.
func (r *Resolver) End(e *models.Event) time.Time {
	end, _ := r.Resolve(e)
	return end
}

// Resolve returns the end instant and the name of the strategy that produced it.
func (r *Resolver) Resolve(e *models.Event) (time.Time, string) {
	for _, s := range r.strategies {
		if end, ok := s.Resolve(e); ok {
			return end, s.Name
		}
	}
	return e.Date.Add(r.fallback), StrategyDefault
}

// HasEnded reports whether e ended more than grace before now.
func (r *Resolver) HasEnded(e *models.Event, now time.Time, grace time.Duration) bool {
	return r.End(e).Add(grace).Before(now)
}
