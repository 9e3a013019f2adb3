package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/connect-hub/backend/internal/emaillogs"
	"github.com/connect-hub/backend/internal/models"
	"github.com/connect-hub/backend/pkg/queue"
)

// Message is one outgoing email.
type Message struct {
	FromAddress string
	FromName    string
	To          string
	ToName      string
	Subject     string
	Body        string
}

// Sender delivers an email.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// LogSender writes emails to the log instead of delivering them.
type LogSender struct {
	Logger *zap.Logger
}

// Send implements Sender.
func (s LogSender) Send(_ context.Context, m Message) error {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("email",
		zap.String("to", m.To),
		zap.String("subject", m.Subject),
		zap.Int("body_bytes", len(m.Body)),
	)
	return nil
}

// JobSource is the part of the queue the processor consumes.
type JobSource interface {
	Dequeue(ctx context.Context, key string) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// EmailProcessor processes email jobs: record a log row, send, mark the outcome.
type EmailProcessor struct {
	logs     emaillogs.Store
	sender   Sender
	queue    JobSource
	from     string
	fromName string
	logger   *zap.Logger
	backoff  time.Duration
	now      func() time.Time
}

// NewEmailProcessor creates an email job processor.
func NewEmailProcessor(logs emaillogs.Store, sender Sender, q JobSource, fromAddress, fromName string, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{
		logs:     logs,
		sender:   sender,
		queue:    q,
		from:     fromAddress,
		fromName: fromName,
		logger:   logger,
		backoff:  queue.RetryBackoff,
		now:      time.Now,
	}
}

// Process executes one email job.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEmail {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	eventID, userID := payload.EventID, payload.UserID
	entry := &models.EmailLog{
		EventID:        &eventID,
		UserID:         &userID,
		EmailType:      payload.EmailType,
		RecipientEmail: payload.RecipientEmail,
		Subject:        payload.Subject,
	}
	if err := p.logs.CreateEmailLog(ctx, entry); err != nil {
		return fmt.Errorf("create email log: %w", err)
	}

	err := p.sender.Send(ctx, Message{
		FromAddress: p.from,
		FromName:    p.fromName,
		To:          payload.RecipientEmail,
		ToName:      payload.RecipientName,
		Subject:     payload.Subject,
		Body:        payload.Body,
	})
	if err != nil {
		if markErr := p.logs.MarkEmailFailed(ctx, entry.ID, err.Error()); markErr != nil {
			p.logger.Error("mark email failed", zap.Error(markErr), zap.String("email_log_id", entry.ID.String()))
		}
		return fmt.Errorf("send: %w", err)
	}
	if err := p.logs.MarkEmailSent(ctx, entry.ID, p.now().UTC()); err != nil {
		p.logger.Error("mark email sent", zap.Error(err), zap.String("email_log_id", entry.ID.String()))
	}
	p.logger.Info("email sent",
		zap.String("email_type", payload.EmailType),
		zap.String("event_id", eventID.String()),
		zap.String("user_id", userID.String()),
	)
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx, queue.QueueEmails)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *EmailProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
