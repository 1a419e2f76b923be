// Package bulk applies one technician assignment to many service requests
// at once and reports the outcome per request.
package bulk

import (
	"context"
	"time"

	"fleet_service_backend/internal/events"
	"fleet_service_backend/internal/servicerequests/domain"
	"fleet_service_backend/internal/servicerequests/scheduling"
	"fleet_service_backend/platform/apperr"
	"fleet_service_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Forcer commits a slot without customer confirmation.
type Forcer interface {
	Force(ctx context.Context, actor domain.Actor, id uuid.UUID, a scheduling.Assignment) (*domain.ServiceRequest, error)
}

// Reader loads the current state of a request.
type Reader interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.ServiceRequest, error)
}

// RetryItem is one failed force-schedule handed to the retry queue.
// ExpectedVersion is the version the bulk call read; a replay only writes
// over that version.
type RetryItem struct {
	RequestID         uuid.UUID
	ActorID           uuid.UUID
	LeadTechnicianID  uuid.UUID
	BuddyTechnicianID *uuid.UUID
	When              time.Time
	ExpectedVersion   int
	LastError         string
}

// RetryQueue accepts failed items for a later attempt.
type RetryQueue interface {
	EnqueueBulkRetry(ctx context.Context, item RetryItem) error
}

// Request is one bulk-schedule call.
type Request struct {
	IDs               []uuid.UUID
	LeadTechnicianID  *uuid.UUID
	BuddyTechnicianID *uuid.UUID
	When              *time.Time
}

// ItemResult is the outcome for one request id.
type ItemResult struct {
	ID          uuid.UUID     `json:"id"`
	OK          bool          `json:"ok"`
	Status      domain.Status `json:"status,omitempty"`
	Version     int           `json:"version,omitempty"`
	Error       string        `json:"error,omitempty"`
	ErrorCode   string        `json:"errorCode,omitempty"`
	ErrorKind   string        `json:"errorKind,omitempty"`
	RetryQueued bool          `json:"retryQueued,omitempty"`
}

// Result lists every id in request order with the totals.
type Result struct {
	Items       []ItemResult `json:"items"`
	Succeeded   int          `json:"succeeded"`
	Failed      int          `json:"failed"`
	RetryQueued int          `json:"retryQueued"`
}

// Partial reports whether some but not all ids were scheduled.
func (r Result) Partial() bool { return r.Succeeded > 0 && r.Failed > 0 }

// SucceededIDs returns the ids that are now SCHEDULED.
func (r Result) SucceededIDs() []uuid.UUID {
	var out []uuid.UUID
	for _, it := range r.Items {
		if it.OK {
			out = append(out, it.ID)
		}
	}
	return out
}

// FailedIDs returns the ids left unchanged.
func (r Result) FailedIDs() []uuid.UUID {
	var out []uuid.UUID
	for _, it := range r.Items {
		if !it.OK {
			out = append(out, it.ID)
		}
	}
	return out
}

// Coordinator fans a forced assignment out over many requests.
type Coordinator struct {
	forcer Forcer
	reader Reader
	retry  RetryQueue
	bus    events.Bus
	log    *logger.Logger
	limit  int
}

// New creates a coordinator. limit caps concurrent writes; 0 means no cap.
// reader, retry and bus may be nil. Failed items are queued for retry only
// when a reader pinned the version they were attempted against.
func New(forcer Forcer, reader Reader, retry RetryQueue, bus events.Bus, log *logger.Logger, limit int) *Coordinator {
	if log == nil {
		log = logger.Discard()
	}
	return &Coordinator{forcer: forcer, reader: reader, retry: retry, bus: bus, log: log, limit: limit}
}

// ApplyBulk force-schedules every id with the same lead, buddy and time.
// The whole call is rejected without side effects when the lead, the time
// or the ids are missing. Otherwise every id is attempted concurrently and
// the result says exactly which ones changed.
func (c *Coordinator) ApplyBulk(ctx context.Context, actor domain.Actor, req Request) (Result, error) {
	if actor.Role != domain.RoleDispatch {
		return Result{}, apperr.Forbidden("only dispatch may bulk schedule").WithCode(domain.CodeRoleNotPermitted)
	}
	if err := validate(req); err != nil {
		return Result{}, err
	}

	ids := distinct(req.IDs)
	items := make([]ItemResult, len(ids))
	assignment := scheduling.Assignment{
		LeadTechnicianID:  req.LeadTechnicianID,
		BuddyTechnicianID: req.BuddyTechnicianID,
		When:              req.When,
	}

	var g errgroup.Group
	if c.limit > 0 {
		g.SetLimit(c.limit)
	}
	for i, id := range ids {
		g.Go(func() error {
			items[i] = c.applyOne(ctx, actor, id, assignment)
			return nil
		})
	}
	_ = g.Wait()

	result := Result{Items: items}
	for _, it := range items {
		if it.OK {
			result.Succeeded++
		} else {
			result.Failed++
		}
		if it.RetryQueued {
			result.RetryQueued++
		}
	}

	c.log.Info("bulk_schedule_applied",
		"actor_id", actor.UserID.String(),
		"lead_technician_id", req.LeadTechnicianID.String(),
		"requested", len(ids),
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"retry_queued", result.RetryQueued,
	)

	if c.bus != nil {
		c.bus.Publish(ctx, events.BulkScheduled{
			BaseEvent:        events.NewBaseEvent(),
			ActorID:          actor.UserID,
			LeadTechnicianID: *req.LeadTechnicianID,
			ScheduledAt:      req.When.UTC(),
			Succeeded:        result.SucceededIDs(),
			Failed:           result.FailedIDs(),
		})
	}
	return result, nil
}

func (c *Coordinator) applyOne(ctx context.Context, actor domain.Actor, id uuid.UUID, a scheduling.Assignment) ItemResult {
	if c.reader != nil {
		current, err := c.reader.Get(ctx, id)
		if err != nil {
			return failedItem(id, err)
		}
		v := current.Version
		a.ExpectedVersion = &v
	}

	saved, err := c.forcer.Force(ctx, actor, id, a)
	if err == nil {
		return ItemResult{ID: id, OK: true, Status: saved.Status, Version: saved.Version}
	}

	item := failedItem(id, err)
	if c.retry != nil && a.ExpectedVersion != nil && Retryable(err) {
		retryErr := c.retry.EnqueueBulkRetry(ctx, RetryItem{
			RequestID:         id,
			ActorID:           actor.UserID,
			LeadTechnicianID:  *a.LeadTechnicianID,
			BuddyTechnicianID: a.BuddyTechnicianID,
			When:              a.When.UTC(),
			ExpectedVersion:   *a.ExpectedVersion,
			LastError:         err.Error(),
		})
		if retryErr != nil {
			c.log.Error("bulk_schedule_retry_enqueue_failed", "service_request_id", id.String(), "error", retryErr)
		} else {
			item.RetryQueued = true
		}
	}
	return item
}

func failedItem(id uuid.UUID, err error) ItemResult {
	return ItemResult{
		ID:        id,
		Error:     err.Error(),
		ErrorCode: apperr.GetCode(err),
		ErrorKind: apperr.GetKind(err).String(),
	}
}

// Retryable reports whether a failed item may succeed on a later attempt.
// Precondition, permission and missing-record failures will not, and neither
// will a version conflict: someone else changed the request and a replay
// would overwrite their work.
func Retryable(err error) bool {
	switch apperr.GetKind(err) {
	case apperr.KindValidation, apperr.KindForbidden, apperr.KindNotFound, apperr.KindBadRequest, apperr.KindUnauthorized, apperr.KindConflict:
		return false
	default:
		return true
	}
}

func validate(req Request) error {
	var missing []string
	if len(req.IDs) == 0 {
		missing = append(missing, "requestIds")
	}
	if req.LeadTechnicianID == nil || *req.LeadTechnicianID == uuid.Nil {
		missing = append(missing, "leadTechnicianId")
	}
	if req.When == nil || req.When.IsZero() {
		missing = append(missing, "when")
	}
	if len(missing) == 0 {
		return nil
	}
	return apperr.Precondition(domain.CodeBulkRequestInvalid, "bulk schedule needs request ids, a lead technician and a time").
		WithDetails(map[string][]string{"missing": missing})
}

func distinct(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
