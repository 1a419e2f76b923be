package alerts

import (
	"context"
	"time"

	"fleet_service_backend/internal/events"
	"fleet_service_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	defaultFeedLimit = 100
	maxFeedLimit     = 500
)

// Service records alerts from domain events and serves the feed.
type Service struct {
	store Store
	log   *logger.Logger
	now   func() time.Time
}

// NewService creates the alert service.
func NewService(store Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{store: store, log: log, now: time.Now}
}

// RegisterHandlers subscribes the service to every event that can raise an alert.
func (s *Service) RegisterHandlers(bus events.Bus) {
	h := events.HandlerFunc(s.Record)
	for _, name := range []string{
		events.ServiceRequestCreated{}.EventName(),
		events.ServiceRequestTransitioned{}.EventName(),
		events.SchedulingProposed{}.EventName(),
		events.ServiceRequestScheduled{}.EventName(),
		events.ServiceRequestCompleted{}.EventName(),
		events.BulkScheduled{}.EventName(),
	} {
		bus.Subscribe(name, h)
	}
}

// Record stores the alerts derived from e.
func (s *Service) Record(ctx context.Context, e events.Event) error {
	items := alertsFor(e)
	if len(items) == 0 {
		return nil
	}
	if err := s.store.Insert(ctx, items); err != nil {
		s.log.Error("alert_record_failed", "event", e.EventName(), "error", err)
		return err
	}
	return nil
}

// Feed returns alerts for v created after since. A zero since starts at the beginning.
func (s *Service) Feed(ctx context.Context, v Viewer, since time.Time, limit int) ([]Alert, error) {
	if limit < 1 {
		limit = defaultFeedLimit
	}
	if limit > maxFeedLimit {
		limit = maxFeedLimit
	}
	return s.store.ListFor(ctx, v, since.UTC(), limit)
}

// MarkRead marks an alert as read for v.
func (s *Service) MarkRead(ctx context.Context, v Viewer, id uuid.UUID) error {
	return s.store.MarkRead(ctx, v, id, s.now().UTC())
}
