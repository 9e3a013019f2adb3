package signups

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/connect-hub/backend/internal/events"
	"github.com/connect-hub/backend/internal/models"
)

// pgUniqueViolation is the SQLSTATE for unique constraint violations.
const pgUniqueViolation = "23505"

// Repository is the Postgres Store. Each WithEvent call is one transaction
// that starts by taking a row lock on the event.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a signups repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// LookupUsers returns the known participants among ids.
func (r *Repository) LookupUsers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.User, error) {
	out := make(map[uuid.UUID]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	const q = `SELECT id, email, COALESCE(full_name, ''), role, created_at FROM profiles WHERE id = ANY($1)`
	rows, err := r.pool.Query(ctx, q, ids)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var u models.User
		var role string
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &role, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		u.Role = models.Role(role)
		out[u.ID] = u
	}
	return out, rows.Err()
}

// WithEvent locks the event row with SELECT ... FOR UPDATE and runs fn in the same transaction.
// Concurrent callers for the same event queue on the row lock until commit or rollback.
func (r *Repository) WithEvent(ctx context.Context, eventID uuid.UUID, fn func(tx EventTx) error) (err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	const q = `SELECT ` + events.Columns + `
		FROM events e
		LEFT JOIN event_series s ON s.id = e.series_id
		WHERE e.id = $1
		FOR UPDATE OF e`
	event, err := events.ScanEvent(tx.QueryRow(ctx, q, eventID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrEventNotFound
		}
		return fmt.Errorf("lock event row: %w", err)
	}

	if err = fn(&pgEventTx{tx: tx, event: *event}); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ListByEvent returns the signups of an event.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Reservation, error) {
	const q = `SELECT id, user_id, event_id, COALESCE(signed_up_by, user_id), signed_up_at
		FROM user_events WHERE event_id = $1 ORDER BY signed_up_at ASC`
	return r.list(ctx, q, eventID)
}

// ListByUser returns the signups held by a user.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Reservation, error) {
	const q = `SELECT id, user_id, event_id, COALESCE(signed_up_by, user_id), signed_up_at
		FROM user_events WHERE user_id = $1 ORDER BY signed_up_at ASC`
	return r.list(ctx, q, userID)
}

func (r *Repository) list(ctx context.Context, q string, arg uuid.UUID) ([]models.Reservation, error) {
	rows, err := r.pool.Query(ctx, q, arg)
	if err != nil {
		return nil, fmt.Errorf("list signups: %w", err)
	}
	defer rows.Close()
	var list []models.Reservation
	for rows.Next() {
		var res models.Reservation
		if err := rows.Scan(&res.ID, &res.UserID, &res.EventID, &res.SignedUpBy, &res.SignedUpAt); err != nil {
			return nil, fmt.Errorf("scan signup: %w", err)
		}
		list = append(list, res)
	}
	return list, rows.Err()
}

type pgEventTx struct {
	tx    pgx.Tx
	event models.Event
}

func (t *pgEventTx) Event() models.Event { return t.event }

func (t *pgEventTx) CountReservations(ctx context.Context) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM user_events WHERE event_id = $1`, t.event.ID).Scan(&n)
	return n, err
}

func (t *pgEventTx) FindReservation(ctx context.Context, userID uuid.UUID) (*models.Reservation, error) {
	const q = `SELECT id, user_id, event_id, COALESCE(signed_up_by, user_id), signed_up_at
		FROM user_events WHERE event_id = $1 AND user_id = $2`
	var res models.Reservation
	err := t.tx.QueryRow(ctx, q, t.event.ID, userID).Scan(&res.ID, &res.UserID, &res.EventID, &res.SignedUpBy, &res.SignedUpAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &res, nil
}

func (t *pgEventTx) ReservedUsers(ctx context.Context, userIDs []uuid.UUID) ([]uuid.UUID, error) {
	rows, err := t.tx.Query(ctx, `SELECT user_id FROM user_events WHERE event_id = $1 AND user_id = ANY($2)`, t.event.ID, userIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (t *pgEventTx) InsertReservations(ctx context.Context, rs []models.Reservation) error {
	const q = `INSERT INTO user_events (id, user_id, event_id, signed_up_by, signed_up_at) VALUES ($1, $2, $3, $4, $5)`
	batch := &pgx.Batch{}
	for _, res := range rs {
		batch.Queue(q, res.ID, res.UserID, res.EventID, res.SignedUpBy, res.SignedUpAt)
	}
	br := t.tx.SendBatch(ctx, batch)
	for range rs {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
				return ErrAlreadyReserved
			}
			return err
		}
	}
	return br.Close()
}

func (t *pgEventTx) DeleteReservation(ctx context.Context, id uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM user_events WHERE id = $1 AND event_id = $2`, id, t.event.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgEventTx) DeleteAllReservations(ctx context.Context) (int, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM user_events WHERE event_id = $1`, t.event.ID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
