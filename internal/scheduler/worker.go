package scheduler

import (
	"context"
	"fmt"

	"fleet_service_backend/internal/events"
	"fleet_service_backend/internal/servicerequests/bulk"
	"fleet_service_backend/internal/servicerequests/domain"
	"fleet_service_backend/internal/servicerequests/scheduling"
	"fleet_service_backend/platform/config"
	"fleet_service_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Forcer commits a slot without customer confirmation.
type Forcer interface {
	Force(ctx context.Context, actor domain.Actor, id uuid.UUID, a scheduling.Assignment) (*domain.ServiceRequest, error)
}

// RequestReader loads a service request.
type RequestReader interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.ServiceRequest, error)
}

type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	forcer   Forcer
	requests RequestReader
	bus      events.Bus
	log      *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, forcer Forcer, requests RequestReader, bus events.Bus, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	w := newWorker(forcer, requests, bus, log)
	w.server = asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})
	return w, nil
}

func newWorker(forcer Forcer, requests RequestReader, bus events.Bus, log *logger.Logger) *Worker {
	mux := asynq.NewServeMux()
	w := &Worker{
		mux:      mux,
		forcer:   forcer,
		requests: requests,
		bus:      bus,
		log:      log,
	}

	mux.HandleFunc(TaskBulkScheduleRetry, w.handleBulkScheduleRetry)
	mux.HandleFunc(TaskVisitReminder, w.handleVisitReminder)
	return w
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

// handleBulkScheduleRetry replays a failed bulk item as dispatch against the
// version the bulk call saw. Errors that another attempt cannot fix end the
// task, including a conflict with a newer write.
func (w *Worker) handleBulkScheduleRetry(ctx context.Context, task *asynq.Task) error {
	item, err := ParseBulkScheduleRetryPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	if current, err := w.requests.Get(ctx, item.RequestID); err == nil && alreadyScheduled(current, item) {
		return nil
	}

	if item.ExpectedVersion <= 0 {
		return fmt.Errorf("%w: retry for %s has no expected version", asynq.SkipRetry, item.RequestID)
	}

	lead := item.LeadTechnicianID
	when := item.When
	version := item.ExpectedVersion
	_, err = w.forcer.Force(ctx, domain.SystemActor(item.ActorID), item.RequestID, scheduling.Assignment{
		LeadTechnicianID:  &lead,
		BuddyTechnicianID: item.BuddyTechnicianID,
		When:              &when,
		ExpectedVersion:   &version,
	})
	if err == nil {
		w.log.Info("bulk_schedule_retry_succeeded", "service_request_id", item.RequestID.String())
		return nil
	}

	w.log.Warn("bulk_schedule_retry_failed", "service_request_id", item.RequestID.String(), "error", err)
	if !bulk.Retryable(err) {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	return err
}

func alreadyScheduled(req *domain.ServiceRequest, item bulk.RetryItem) bool {
	if req.Status != domain.StatusScheduled || req.LeadTechnicianID == nil || req.ScheduledAt == nil {
		return false
	}
	return *req.LeadTechnicianID == item.LeadTechnicianID && req.ScheduledAt.Equal(item.When)
}

// handleVisitReminder publishes VisitReminderDue when the request is still
// scheduled for the slot the reminder was queued for.
func (w *Worker) handleVisitReminder(ctx context.Context, task *asynq.Task) error {
	requestID, scheduledAt, err := ParseVisitReminderPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	req, err := w.requests.Get(ctx, requestID)
	if err != nil {
		return err
	}

	if req.Status != domain.StatusScheduled || req.ScheduledAt == nil || !req.ScheduledAt.Equal(scheduledAt) {
		w.log.Debug("visit reminder is stale, skipping", "service_request_id", requestID.String())
		return nil
	}

	if w.bus == nil {
		return nil
	}

	return w.bus.PublishSync(ctx, events.VisitReminderDue{
		BaseEvent:   events.NewBaseEvent(),
		RequestID:   req.ID,
		CustomerID:  req.CustomerID,
		ScheduledAt: *req.ScheduledAt,
		Title:       req.Title,
	})
}
