package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is a scheduled volunteer activity offered by an organization.
type Event struct {
	ID               uuid.UUID    `json:"id"`
	Title            string       `json:"title"`
	Description      string       `json:"description,omitempty"`
	Location         string       `json:"location,omitempty"`
	Date             time.Time    `json:"date"`
	ArrivalTime      *time.Time   `json:"arrival_time,omitempty"`
	EstimatedEndTime *time.Time   `json:"estimated_end_time,omitempty"`
	MaxParticipants  *int         `json:"max_participants,omitempty"`
	OrganizationID   *uuid.UUID   `json:"organization_id,omitempty"`
	SeriesID         *uuid.UUID   `json:"series_id,omitempty"`
	OccurrenceIndex  *int         `json:"occurrence_index,omitempty"`
	Series           *EventSeries `json:"series,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// EventSeries is a recurring template shared by events.
// EndTime is the fallback end of day for occurrences without an explicit end.
type EventSeries struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
	Title          string     `json:"title"`
	EndTime        *TimeOfDay `json:"end_time,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// TimeOfDay is a wall-clock time without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// ParseTimeOfDay parses "15:04" or "15:04:05".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
		}
	}
	return TimeOfDay{}, fmt.Errorf("invalid time of day %q", s)
}

// TimeOfDayFromDuration converts an offset from midnight (as stored in a SQL time column).
func TimeOfDayFromDuration(d time.Duration) TimeOfDay {
	d = d % (24 * time.Hour)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	return TimeOfDay{Hour: int(h), Minute: int(m), Second: int(d / time.Second)}
}

// SinceMidnight returns the offset of t from midnight.
func (t TimeOfDay) SinceMidnight() time.Duration {
	return time.Duration(t.Hour)*time.Hour + time.Duration(t.Minute)*time.Minute + time.Duration(t.Second)*time.Second
}

// On returns the instant at time-of-day t on date's calendar day in loc.
func (t TimeOfDay) On(date time.Time, loc *time.Location) time.Time {
	d := date.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour, t.Minute, t.Second, 0, loc)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// MarshalJSON encodes t as "HH:MM:SS".
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts "HH:MM" or "HH:MM:SS".
func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
