package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/connect-hub/backend/internal/models"
)

// CreateEmailLog implements emaillogs.Store.
func (s *Store) CreateEmailLog(_ context.Context, el *models.EmailLog) error {
	el.ID = uuid.New()
	el.CreatedAt = s.now().UTC()
	if el.Status == "" {
		el.Status = models.EmailLogStatusPending
	}
	cp := *el
	s.mu.Lock()
	s.emailLogs = append(s.emailLogs, &cp)
	s.mu.Unlock()
	return nil
}

// MarkEmailSent implements emaillogs.Store.
func (s *Store) MarkEmailSent(_ context.Context, id uuid.UUID, at time.Time) error {
	s.updateEmailLog(id, func(el *models.EmailLog) {
		el.Status = models.EmailLogStatusSent
		el.SentAt = &at
		el.ErrorMessage = ""
	})
	return nil
}

// MarkEmailFailed implements emaillogs.Store.
func (s *Store) MarkEmailFailed(_ context.Context, id uuid.UUID, reason string) error {
	s.updateEmailLog(id, func(el *models.EmailLog) {
		el.Status = models.EmailLogStatusFailed
		el.ErrorMessage = reason
	})
	return nil
}

// ListEmailLogsByEvent implements emaillogs.Store.
func (s *Store) ListEmailLogsByEvent(_ context.Context, eventID uuid.UUID) ([]*models.EmailLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.EmailLog
	for _, el := range s.emailLogs {
		if el.EventID != nil && *el.EventID == eventID {
			cp := *el
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) updateEmailLog(id uuid.UUID, fn func(*models.EmailLog)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, el := range s.emailLogs {
		if el.ID == id {
			fn(el)
			return
		}
	}
}
