package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/connect-hub/backend/internal/models"
)

// Columns is the select list read by ScanEvent. Queries alias events as e
// and LEFT JOIN event_series as s.
const Columns = `e.id, e.title, COALESCE(e.description, ''), COALESCE(e.location, ''), e.date,
	e.arrival_time, e.estimated_end_time, e.max_participants, e.organization_id,
	e.series_id, e.occurrence_index, e.created_at, e.updated_at, s.title, s.end_time`

// Repository handles event and series persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an events repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListEvents returns all events, earliest first.
func (r *Repository) ListEvents(ctx context.Context) ([]models.Event, error) {
	const q = `SELECT ` + Columns + `
		FROM events e
		LEFT JOIN event_series s ON s.id = e.series_id
		ORDER BY e.date ASC`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Event
	for rows.Next() {
		e, err := ScanEvent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	return list, rows.Err()
}

// GetEvent returns an event by ID.
func (r *Repository) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	const q = `SELECT ` + Columns + `
		FROM events e
		LEFT JOIN event_series s ON s.id = e.series_id
		WHERE e.id = $1`
	e, err := ScanEvent(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// CreateEvent inserts a new event. Series members get the next occurrence index.
func (r *Repository) CreateEvent(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (id, title, description, location, date, arrival_time, estimated_end_time,
			max_participants, organization_id, series_id, occurrence_index)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9,
			CASE WHEN $9::uuid IS NULL THEN NULL
			ELSE (SELECT COALESCE(MAX(occurrence_index), 0) + 1 FROM events WHERE series_id = $9) END)
		RETURNING id, occurrence_index, created_at, updated_at`
	var occurrence *int32
	err := r.pool.QueryRow(ctx, q, e.Title, e.Description, e.Location, e.Date, e.ArrivalTime, e.EstimatedEndTime,
		e.MaxParticipants, e.OrganizationID, e.SeriesID).
		Scan(&e.ID, &occurrence, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return err
	}
	if occurrence != nil {
		n := int(*occurrence)
		e.OccurrenceIndex = &n
	}
	if e.SeriesID != nil {
		series, err := r.GetSeries(ctx, *e.SeriesID)
		if err != nil {
			return fmt.Errorf("load series: %w", err)
		}
		e.Series = series
	}
	return nil
}

// DeleteEvent locks the event row, counts its signups and deletes it.
// Signups go with it through ON DELETE CASCADE.
func (r *Repository) DeleteEvent(ctx context.Context, id uuid.UUID) (removed int, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var locked uuid.UUID
	if err = tx.QueryRow(ctx, `SELECT id FROM events WHERE id = $1 FOR UPDATE`, id).Scan(&locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	if err = tx.QueryRow(ctx, `SELECT COUNT(*) FROM user_events WHERE event_id = $1`, id).Scan(&removed); err != nil {
		return 0, err
	}
	if _, err = tx.Exec(ctx, `DELETE FROM events WHERE id = $1`, id); err != nil {
		return 0, err
	}
	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return removed, nil
}

// CreateSeries inserts a new series.
func (r *Repository) CreateSeries(ctx context.Context, s *models.EventSeries) error {
	const q = `INSERT INTO event_series (id, organization_id, title, end_time)
		VALUES (gen_random_uuid(), $1, $2, $3)
		RETURNING id, created_at`
	var end pgtype.Time
	if s.EndTime != nil {
		end = pgtype.Time{Microseconds: s.EndTime.SinceMidnight().Microseconds(), Valid: true}
	}
	return r.pool.QueryRow(ctx, q, s.OrganizationID, s.Title, end).Scan(&s.ID, &s.CreatedAt)
}

// GetSeries returns a series by ID.
func (r *Repository) GetSeries(ctx context.Context, id uuid.UUID) (*models.EventSeries, error) {
	const q = `SELECT id, organization_id, title, end_time, created_at FROM event_series WHERE id = $1`
	var (
		s   models.EventSeries
		end pgtype.Time
	)
	err := r.pool.QueryRow(ctx, q, id).Scan(&s.ID, &s.OrganizationID, &s.Title, &end, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSeriesNotFound
		}
		return nil, err
	}
	s.EndTime = timeOfDay(end)
	return &s, nil
}

// ReservationCounts returns the signup count of each listed event that has any.
func (r *Repository) ReservationCounts(ctx context.Context, eventIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int, len(eventIDs))
	if len(eventIDs) == 0 {
		return counts, nil
	}
	const q = `SELECT event_id, COUNT(*) FROM user_events WHERE event_id = ANY($1) GROUP BY event_id`
	rows, err := r.pool.Query(ctx, q, eventIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id uuid.UUID
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

// ScanEvent reads one row of Columns, including the joined series.
func ScanEvent(row pgx.Row) (*models.Event, error) {
	var (
		e           models.Event
		maxPart     *int32
		occurrence  *int32
		seriesTitle *string
		seriesEnd   pgtype.Time
	)
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Location, &e.Date,
		&e.ArrivalTime, &e.EstimatedEndTime, &maxPart, &e.OrganizationID,
		&e.SeriesID, &occurrence, &e.CreatedAt, &e.UpdatedAt, &seriesTitle, &seriesEnd)
	if err != nil {
		return nil, err
	}
	if maxPart != nil {
		n := int(*maxPart)
		e.MaxParticipants = &n
	}
	if occurrence != nil {
		n := int(*occurrence)
		e.OccurrenceIndex = &n
	}
	if e.SeriesID != nil {
		e.Series = &models.EventSeries{ID: *e.SeriesID, OrganizationID: e.OrganizationID, EndTime: timeOfDay(seriesEnd)}
		if seriesTitle != nil {
			e.Series.Title = *seriesTitle
		}
	}
	return &e, nil
}

func timeOfDay(t pgtype.Time) *models.TimeOfDay {
	if !t.Valid {
		return nil
	}
	tod := models.TimeOfDayFromDuration(time.Duration(t.Microseconds) * time.Microsecond)
	return &tod
}
