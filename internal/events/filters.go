package events

import (
	"sort"
	"time"
)

// FeedOptions selects which events the feed shows.
type FeedOptions struct {
	// IncludeFull keeps events with no remaining slots.
	IncludeFull bool
	// NextOnly collapses every series to its earliest remaining occurrence.
	NextOnly bool
	// Upcoming hides events starting within FeedCutoff of now.
	Upcoming bool
}

// Active drops events whose end plus grace has passed.
func Active(items []FeedItem, now time.Time, grace time.Duration) []FeedItem {
	out := items[:0:0]
	for _, it := range items {
		if !it.EndsAt.Add(grace).Before(now) {
			out = append(out, it)
		}
	}
	return out
}

// WithoutFull drops events that have no remaining slots.
func WithoutFull(items []FeedItem) []FeedItem {
	out := items[:0:0]
	for _, it := range items {
		if !it.Availability.IsFull {
			out = append(out, it)
		}
	}
	return out
}

// StartingAfter keeps events that start more than cutoff after now.
func StartingAfter(items []FeedItem, now time.Time, cutoff time.Duration) []FeedItem {
	out := items[:0:0]
	for _, it := range items {
		if now.Before(it.Date.Add(-cutoff)) {
			out = append(out, it)
		}
	}
	return out
}

// NextPerSeries keeps one-time events and the earliest occurrence of each
// series, sorted by date.
func NextPerSeries(items []FeedItem) []FeedItem {
	out := items[:0:0]
	next := make(map[string]int)
	for _, it := range items {
		if it.SeriesID == nil {
			out = append(out, it)
			continue
		}
		key := it.SeriesID.String()
		if i, ok := next[key]; ok {
			if it.Date.Before(out[i].Date) {
				out[i] = it
			}
			continue
		}
		next[key] = len(out)
		out = append(out, it)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// ApplyFeedOptions runs the optional feed filters over already-active items.
func ApplyFeedOptions(items []FeedItem, opts FeedOptions, now time.Time) []FeedItem {
	if !opts.IncludeFull {
		items = WithoutFull(items)
	}
	if opts.Upcoming {
		items = StartingAfter(items, now, FeedCutoff)
	}
	if opts.NextOnly {
		items = NextPerSeries(items)
	}
	return items
}
