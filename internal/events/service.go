package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/connect-hub/backend/internal/capacity"
	"github.com/connect-hub/backend/internal/models"
)

// FeedItem is an event with its live availability and resolved end.
type FeedItem struct {
	models.Event
	Availability capacity.Availability `json:"availability"`
	EndsAt       time.Time             `json:"ends_at"`
}

// CreateInput is a new event as submitted by an organizer.
type CreateInput struct {
	Title            string
	Description      string
	Location         string
	Date             time.Time
	ArrivalTime      *time.Time
	EstimatedEndTime *time.Time
	MaxParticipants  *int
	OrganizationID   *uuid.UUID
	SeriesID         *uuid.UUID
}

// SeriesInput is a new event series.
type SeriesInput struct {
	OrganizationID *uuid.UUID
	Title          string
	EndTime        *models.TimeOfDay
}

// Service serves the event feed and event management.
type Service struct {
	store     Store
	orgs      OrgAccess
	resolver  *Resolver
	publisher capacity.Publisher
	logger    *zap.Logger
	now       func() time.Time
	grace     time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithGracePeriod overrides GracePeriod for the active filter.
func WithGracePeriod(d time.Duration) Option { return func(s *Service) { s.grace = d } }

// WithCapacityPublisher announces availability when an event is deleted.
func WithCapacityPublisher(p capacity.Publisher) Option { return func(s *Service) { s.publisher = p } }

// NewService creates an events service.
func NewService(store Store, orgs OrgAccess, resolver *Resolver, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if resolver == nil {
		resolver = NewResolver(time.UTC, DefaultDuration)
	}
	s := &Service{store: store, orgs: orgs, resolver: resolver, logger: logger, now: time.Now, grace: GracePeriod}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolver returns the window resolver the service uses.
func (s *Service) Resolver() *Resolver { return s.resolver }

// Feed returns the active events, annotated with availability, filtered by opts.
func (s *Service) Feed(ctx context.Context, opts FeedOptions) ([]FeedItem, error) {
	list, err := s.store.ListEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	items, err := s.annotate(ctx, list)
	if err != nil {
		return nil, err
	}
	now := s.now()
	items = Active(items, now, s.grace)
	return ApplyFeedOptions(items, opts, now), nil
}

// Get returns one event with its availability.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*FeedItem, error) {
	e, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.annotate(ctx, []models.Event{*e})
	if err != nil {
		return nil, err
	}
	return &items[0], nil
}

func (s *Service) annotate(ctx context.Context, list []models.Event) ([]FeedItem, error) {
	ids := make([]uuid.UUID, len(list))
	for i := range list {
		ids[i] = list[i].ID
	}
	counts, err := s.store.ReservationCounts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("count signups: %w", err)
	}
	items := make([]FeedItem, len(list))
	for i := range list {
		e := &list[i]
		items[i] = FeedItem{
			Event:        *e,
			Availability: capacity.Ledger(e, counts[e.ID]),
			EndsAt:       s.resolver.End(e),
		}
	}
	return items, nil
}

// CanManage reports whether the caller may manage e: admins always, others
// through an event management role in the owning organization.
func (s *Service) CanManage(ctx context.Context, userID uuid.UUID, role models.Role, e *models.Event) (bool, error) {
	return s.canManageOrg(ctx, userID, role, e.OrganizationID)
}

func (s *Service) canManageOrg(ctx context.Context, userID uuid.UUID, role models.Role, orgID *uuid.UUID) (bool, error) {
	if role.IsAdmin() {
		return true, nil
	}
	if orgID == nil || s.orgs == nil {
		return false, nil
	}
	return s.orgs.CanManageEvents(ctx, *orgID, userID)
}

// Create validates and stores a new event.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, role models.Role, in CreateInput) (*models.Event, error) {
	if err := validateEvent(&in); err != nil {
		return nil, err
	}
	if in.SeriesID != nil {
		series, err := s.store.GetSeries(ctx, *in.SeriesID)
		if err != nil {
			return nil, err
		}
		if in.OrganizationID == nil {
			in.OrganizationID = series.OrganizationID
		}
	}
	ok, err := s.canManageOrg(ctx, userID, role, in.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("check organization access: %w", err)
	}
	if !ok {
		return nil, ErrForbidden
	}

	e := &models.Event{
		Title:            in.Title,
		Description:      in.Description,
		Location:         in.Location,
		Date:             in.Date,
		ArrivalTime:      in.ArrivalTime,
		EstimatedEndTime: in.EstimatedEndTime,
		MaxParticipants:  in.MaxParticipants,
		OrganizationID:   in.OrganizationID,
		SeriesID:         in.SeriesID,
	}
	if err := s.store.CreateEvent(ctx, e); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	s.logger.Info("event created",
		zap.String("event_id", e.ID.String()),
		zap.String("created_by", userID.String()),
	)
	return e, nil
}

// Delete removes an event along with its signups.
func (s *Service) Delete(ctx context.Context, userID uuid.UUID, role models.Role, id uuid.UUID) error {
	e, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return err
	}
	ok, err := s.CanManage(ctx, userID, role, e)
	if err != nil {
		return fmt.Errorf("check organization access: %w", err)
	}
	if !ok {
		return ErrForbidden
	}
	removed, err := s.store.DeleteEvent(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete event: %w", err)
	}
	s.logger.Info("event deleted",
		zap.String("event_id", id.String()),
		zap.String("deleted_by", userID.String()),
		zap.Int("signups_removed", removed),
	)
	if s.publisher != nil {
		s.publisher.PublishCapacity(id, capacity.Ledger(e, 0))
	}
	return nil
}

// CreateSeries validates and stores a new series.
func (s *Service) CreateSeries(ctx context.Context, userID uuid.UUID, role models.Role, in SeriesInput) (*models.EventSeries, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, &ValidationError{Field: "title", Message: "required"}
	}
	ok, err := s.canManageOrg(ctx, userID, role, in.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("check organization access: %w", err)
	}
	if !ok {
		return nil, ErrForbidden
	}
	series := &models.EventSeries{OrganizationID: in.OrganizationID, Title: in.Title, EndTime: in.EndTime}
	if err := s.store.CreateSeries(ctx, series); err != nil {
		return nil, fmt.Errorf("create series: %w", err)
	}
	return series, nil
}

func validateEvent(in *CreateInput) error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return &ValidationError{Field: "title", Message: "required"}
	}
	if in.Date.IsZero() {
		return &ValidationError{Field: "date", Message: "required"}
	}
	if in.EstimatedEndTime != nil && !in.EstimatedEndTime.After(in.Date) {
		return &ValidationError{Field: "estimated_end_time", Message: "must be after date"}
	}
	if in.MaxParticipants != nil && *in.MaxParticipants <= 0 {
		return &ValidationError{Field: "max_participants", Message: "must be positive"}
	}
	return nil
}
