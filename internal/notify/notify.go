// Package notify turns signup changes into queued email jobs.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/connect-hub/backend/internal/models"
	"github.com/connect-hub/backend/internal/signups"
	"github.com/connect-hub/backend/pkg/queue"
)

// Enqueuer is the part of the job queue the notifier uses.
type Enqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// QueueNotifier implements signups.Notifier on top of the Redis job queue.
type QueueNotifier struct {
	queue  Enqueuer
	loc    *time.Location
	logger *zap.Logger
}

// NewQueueNotifier creates a notifier. Dates in messages are shown in loc.
func NewQueueNotifier(q Enqueuer, loc *time.Location, logger *zap.Logger) *QueueNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &QueueNotifier{queue: q, loc: loc, logger: logger}
}

// Notify enqueues one email for n.
func (q *QueueNotifier) Notify(ctx context.Context, n signups.Notice) error {
	payload := Compose(n, q.loc)
	if err := q.queue.EnqueueEmail(ctx, payload); err != nil {
		return fmt.Errorf("enqueue %s email: %w", n.Kind, err)
	}
	return nil
}

// Compose renders the email for a notice.
func Compose(n signups.Notice, loc *time.Location) queue.EmailPayload {
	when := n.Event.Date.In(loc).Format("Mon Jan 2, 2006 at 3:04 PM")
	p := queue.EmailPayload{
		EmailType:      n.Kind,
		EventID:        n.Event.ID,
		UserID:         n.Participant.ID,
		RecipientEmail: n.Participant.Email,
		RecipientName:  n.Participant.FullName,
	}
	if n.Actor.ID != uuid.Nil && n.Actor.ID != n.Participant.ID {
		id := n.Actor.ID
		p.ActorID = &id
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", greetingName(n.Participant))
	switch n.Kind {
	case models.EmailTypeGroupSignup:
		p.Subject = "You've been signed up: " + n.Event.Title
		fmt.Fprintf(&b, "%s signed you up for %s on %s.\n", displayName(n.Actor), n.Event.Title, when)
	case models.EmailTypeCancellation:
		p.Subject = "Signup cancelled: " + n.Event.Title
		fmt.Fprintf(&b, "Your signup for %s on %s has been cancelled.\n", n.Event.Title, when)
	default:
		p.Subject = "You're signed up: " + n.Event.Title
		fmt.Fprintf(&b, "You're signed up for %s on %s.\n", n.Event.Title, when)
	}
	if n.Kind != models.EmailTypeCancellation && n.Event.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", n.Event.Location)
	}
	if n.Kind != models.EmailTypeCancellation && n.Event.ArrivalTime != nil {
		fmt.Fprintf(&b, "Please arrive by %s.\n", n.Event.ArrivalTime.In(loc).Format("3:04 PM"))
	}
	p.Body = b.String()
	return p
}

func greetingName(u models.User) string {
	if u.FullName != "" {
		return u.FullName
	}
	return "there"
}

func displayName(u models.User) string {
	switch {
	case u.FullName != "":
		return u.FullName
	case u.Email != "":
		return u.Email
	}
	return "An organizer"
}
