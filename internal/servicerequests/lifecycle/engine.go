package lifecycle

import (
	"context"
	"strings"
	"time"

	"fleet_service_backend/internal/events"
	"fleet_service_backend/internal/servicerequests/domain"
	"fleet_service_backend/platform/apperr"
	"fleet_service_backend/platform/logger"
	"fleet_service_backend/platform/sanitize"

	"github.com/google/uuid"
)

// Store persists service requests. Save must write the mutation's request
// and new entries atomically, and only if the stored version still equals
// expectedVersion; otherwise it returns a conflict built by domain.VersionConflict.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.ServiceRequest, error)
	Create(ctx context.Context, req *domain.ServiceRequest) error
	Save(ctx context.Context, m domain.Mutation, expectedVersion int) (*domain.ServiceRequest, error)
	List(ctx context.Context, filter domain.Filter) ([]*domain.ServiceRequest, int, error)
}

// Engine runs lifecycle commands against the store.
type Engine struct {
	store    Store
	decider  *Decider
	registry *domain.Registry
	bus      events.Bus
	log      *logger.Logger
	now      func() time.Time
}

// NewEngine wires an engine. bus may be nil.
func NewEngine(store Store, decider *Decider, bus events.Bus, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Discard()
	}
	if decider == nil {
		decider = NewDecider(nil, "")
	}
	return &Engine{
		store:    store,
		decider:  decider,
		registry: domain.NewRegistry(log),
		bus:      bus,
		log:      log,
		now:      time.Now,
	}
}

// WithClock replaces the engine's time source.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Registry returns the status registry reporting through the engine's logger.
func (e *Engine) Registry() *domain.Registry { return e.registry }

// Decider returns the engine's decider.
func (e *Engine) Decider() *Decider { return e.decider }

// Transition applies cmd to the request with the given id. On any error the
// stored request is unchanged.
func (e *Engine) Transition(ctx context.Context, id uuid.UUID, actor domain.Actor, cmd domain.Command) (*domain.ServiceRequest, error) {
	req, err := e.store.Get(ctx, id)
	if err != nil {
		e.log.Transition(id.String(), string(actor.Role), string(cmd.Action), "", "", err)
		return nil, err
	}
	e.registry.Describe(string(req.Status))

	expected := req.Version
	if v := cmd.Payload.ExpectedVersion; v != nil && *v != req.Version {
		err := domain.VersionConflict(*v)
		e.log.Transition(id.String(), string(actor.Role), string(cmd.Action), string(req.Status), "", err)
		return nil, err
	}

	m, err := e.decider.Decide(req, actor, cmd, e.now())
	if err != nil {
		e.log.Transition(id.String(), string(actor.Role), string(cmd.Action), string(req.Status), "", err)
		return nil, err
	}

	saved, err := e.store.Save(ctx, m, expected)
	if err != nil {
		e.log.Transition(id.String(), string(actor.Role), string(cmd.Action), string(m.From), string(m.To), err)
		return nil, err
	}

	e.log.Transition(id.String(), string(actor.Role), string(cmd.Action), string(m.From), string(m.To), nil)
	e.announce(ctx, actor, m, saved)
	return saved, nil
}

// Create performs intake. Customers always open in NEW on their own account;
// office staff may open in NEW, WAITING_APPROVAL or READY_TO_SCHEDULE.
func (e *Engine) Create(ctx context.Context, actor domain.Actor, in domain.NewRequest) (*domain.ServiceRequest, error) {
	status := domain.StatusNew
	customerID := in.CustomerID

	switch actor.Role {
	case domain.RoleCustomer:
		if actor.CustomerID == nil {
			return nil, apperr.Forbidden("customer account is missing").WithCode(domain.CodeRoleNotPermitted)
		}
		customerID = *actor.CustomerID
	case domain.RoleOffice:
		switch in.InitialStatus {
		case "":
		case domain.StatusNew, domain.StatusWaitingApproval, domain.StatusReadyToSchedule:
			status = in.InitialStatus
		default:
			return nil, apperr.Precondition(domain.CodeTransitionNotAllowed, "invalid initial status").
				WithDetails(map[string]string{"initialStatus": string(in.InitialStatus)})
		}
		if customerID == uuid.Nil {
			return nil, apperr.Validation("customerId is required")
		}
	default:
		return nil, apperr.Forbidden("role may not create service requests").WithCode(domain.CodeRoleNotPermitted)
	}

	title := sanitize.Text(in.Title)
	if title == "" || len(title) > maxTitleLength {
		return nil, apperr.Validation("title must be between 1 and 200 characters")
	}
	description := sanitize.Multiline(in.Description)
	if len(description) > maxDescriptionLength {
		return nil, apperr.Validation("description is too long")
	}

	now := e.now().UTC()
	req := &domain.ServiceRequest{
		ID:          uuid.New(),
		Status:      status,
		CustomerID:  customerID,
		VehicleID:   in.VehicleID,
		Title:       title,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}
	if err := e.store.Create(ctx, req); err != nil {
		return nil, err
	}

	if e.bus != nil {
		e.bus.Publish(ctx, events.ServiceRequestCreated{
			BaseEvent:  events.NewBaseEventAt(now),
			RequestID:  req.ID,
			CustomerID: req.CustomerID,
			Status:     string(req.Status),
			ActorID:    actor.UserID,
			ActorRole:  string(actor.Role),
			Title:      req.Title,
		})
	}
	return req, nil
}

// Get returns a request the actor may see. Customers see their own account;
// technicians see jobs they are assigned to.
func (e *Engine) Get(ctx context.Context, id uuid.UUID, actor domain.Actor) (*domain.ServiceRequest, error) {
	req, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !visible(req, actor) {
		return nil, apperr.NotFound("service request not found")
	}
	e.registry.Describe(string(req.Status))
	return req, nil
}

// List returns requests matching filter, narrowed to what the actor may see.
func (e *Engine) List(ctx context.Context, actor domain.Actor, filter domain.Filter) ([]*domain.ServiceRequest, int, error) {
	switch actor.Role {
	case domain.RoleCustomer:
		if actor.CustomerID == nil {
			return nil, 0, apperr.Forbidden("customer account is missing").WithCode(domain.CodeRoleNotPermitted)
		}
		id := *actor.CustomerID
		filter.CustomerID = &id
	case domain.RoleTechnician:
		id := actor.UserID
		filter.TechnicianID = &id
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 25
	}
	return e.store.List(ctx, filter)
}

func visible(req *domain.ServiceRequest, actor domain.Actor) bool {
	switch actor.Role {
	case domain.RoleCustomer:
		return actor.CustomerID != nil && *actor.CustomerID == req.CustomerID
	case domain.RoleTechnician:
		return req.IsAssigned(actor.UserID)
	default:
		return true
	}
}

func (e *Engine) announce(ctx context.Context, actor domain.Actor, m domain.Mutation, saved *domain.ServiceRequest) {
	if e.bus == nil {
		return
	}
	base := events.NewBaseEventAt(m.At)

	e.bus.Publish(ctx, events.ServiceRequestTransitioned{
		BaseEvent:  base,
		RequestID:  saved.ID,
		CustomerID: saved.CustomerID,
		ActorID:    actor.UserID,
		ActorRole:  string(actor.Role),
		Action:     string(m.Action),
		From:       string(m.From),
		To:         string(m.To),
		Version:    saved.Version,
	})

	switch {
	case m.To == domain.StatusWaitingConfirmation && m.Action == domain.ActionSchedule:
		if saved.LeadTechnicianID == nil || saved.ScheduledAt == nil {
			return
		}
		e.bus.Publish(ctx, events.SchedulingProposed{
			BaseEvent:         base,
			RequestID:         saved.ID,
			CustomerID:        saved.CustomerID,
			LeadTechnicianID:  *saved.LeadTechnicianID,
			BuddyTechnicianID: saved.BuddyTechnicianID,
			ScheduledAt:       *saved.ScheduledAt,
			Title:             saved.Title,
		})
	case m.To == domain.StatusScheduled && saved.LeadTechnicianID != nil:
		e.bus.Publish(ctx, events.ServiceRequestScheduled{
			BaseEvent:         base,
			RequestID:         saved.ID,
			CustomerID:        saved.CustomerID,
			LeadTechnicianID:  *saved.LeadTechnicianID,
			BuddyTechnicianID: saved.BuddyTechnicianID,
			ScheduledAt:       saved.ScheduledAt,
			Title:             saved.Title,
			Forced:            m.Action != domain.ActionConfirm,
		})
	case m.To == domain.StatusCompleted && m.Action == domain.ActionComplete:
		report, _ := saved.LatestInspection()
		findings := make(map[string]string, len(report.Findings))
		for point, s := range report.Findings {
			findings[point] = string(s)
		}
		completedAt := m.At
		if saved.CompletedAt != nil {
			completedAt = *saved.CompletedAt
		}
		e.bus.Publish(ctx, events.ServiceRequestCompleted{
			BaseEvent:         base,
			RequestID:         saved.ID,
			CustomerID:        saved.CustomerID,
			LeadTechnicianID:  saved.LeadTechnicianID,
			BuddyTechnicianID: saved.BuddyTechnicianID,
			CompletedAt:       completedAt,
			Title:             saved.Title,
			Findings:          findings,
			Report:            strings.TrimSpace(report.Body),
		})
	}
}
