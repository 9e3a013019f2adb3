package emaillogs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/connect-hub/backend/internal/models"
)

// Store records notification delivery attempts.
type Store interface {
	CreateEmailLog(ctx context.Context, el *models.EmailLog) error
	MarkEmailSent(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkEmailFailed(ctx context.Context, id uuid.UUID, reason string) error
	ListEmailLogsByEvent(ctx context.Context, eventID uuid.UUID) ([]*models.EmailLog, error)
}

// Repository handles email_logs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateEmailLog inserts a pending log row.
func (r *Repository) CreateEmailLog(ctx context.Context, el *models.EmailLog) error {
	if el.Status == "" {
		el.Status = models.EmailLogStatusPending
	}
	const q = `INSERT INTO email_logs (id, event_id, user_id, email_type, recipient_email, subject, status)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, el.EventID, el.UserID, el.EmailType, el.RecipientEmail, el.Subject, el.Status).
		Scan(&el.ID, &el.CreatedAt)
}

// MarkEmailSent records a successful delivery.
func (r *Repository) MarkEmailSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	const q = `UPDATE email_logs SET status = $1, sent_at = $2, error_message = NULL WHERE id = $3`
	_, err := r.pool.Exec(ctx, q, models.EmailLogStatusSent, at, id)
	return err
}

// MarkEmailFailed records a failed delivery attempt.
func (r *Repository) MarkEmailFailed(ctx context.Context, id uuid.UUID, reason string) error {
	const q = `UPDATE email_logs SET status = $1, error_message = $2 WHERE id = $3`
	_, err := r.pool.Exec(ctx, q, models.EmailLogStatusFailed, reason, id)
	return err
}

// ListEmailLogsByEvent returns email logs for an event, newest first.
func (r *Repository) ListEmailLogsByEvent(ctx context.Context, eventID uuid.UUID) ([]*models.EmailLog, error) {
	const q = `SELECT id, event_id, user_id, email_type, recipient_email, subject, status, sent_at, error_message, created_at
		FROM email_logs
		WHERE event_id = $1
		ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.EmailLog
	for rows.Next() {
		var el models.EmailLog
		var subject, errMsg *string
		if err := rows.Scan(&el.ID, &el.EventID, &el.UserID, &el.EmailType, &el.RecipientEmail, &subject, &el.Status, &el.SentAt, &errMsg, &el.CreatedAt); err != nil {
			return nil, err
		}
		if subject != nil {
			el.Subject = *subject
		}
		if errMsg != nil {
			el.ErrorMessage = *errMsg
		}
		list = append(list, &el)
	}
	return list, rows.Err()
}
