// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"fleet_service_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var (
	NewBaseEvent   = events.NewBaseEvent
	NewBaseEventAt = events.NewBaseEventAt
)

// =============================================================================
// Service Request Events
// =============================================================================

// ServiceRequestCreated is published after intake.
type ServiceRequestCreated struct {
	BaseEvent
	RequestID  uuid.UUID `json:"requestId"`
	CustomerID uuid.UUID `json:"customerId"`
	Status     string    `json:"status"`
	ActorID    uuid.UUID `json:"actorId"`
	ActorRole  string    `json:"actorRole"`
	Title      string    `json:"title"`
}

func (e ServiceRequestCreated) EventName() string { return "servicerequests.created" }

// ServiceRequestTransitioned is published after every committed lifecycle action,
// including actions that keep the status.
type ServiceRequestTransitioned struct {
	BaseEvent
	RequestID  uuid.UUID `json:"requestId"`
	CustomerID uuid.UUID `json:"customerId"`
	ActorID    uuid.UUID `json:"actorId"`
	ActorRole  string    `json:"actorRole"`
	Action     string    `json:"action"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Version    int       `json:"version"`
}

func (e ServiceRequestTransitioned) EventName() string { return "servicerequests.transitioned" }

// SchedulingProposed is published when dispatch proposes a slot the customer must confirm.
type SchedulingProposed struct {
	BaseEvent
	RequestID         uuid.UUID  `json:"requestId"`
	CustomerID        uuid.UUID  `json:"customerId"`
	LeadTechnicianID  uuid.UUID  `json:"leadTechnicianId"`
	BuddyTechnicianID *uuid.UUID `json:"buddyTechnicianId,omitempty"`
	ScheduledAt       time.Time  `json:"scheduledAt"`
	Title             string     `json:"title"`
}

func (e SchedulingProposed) EventName() string { return "servicerequests.scheduling_proposed" }

// ServiceRequestScheduled is published when a slot is committed, by force or by confirmation.
type ServiceRequestScheduled struct {
	BaseEvent
	RequestID         uuid.UUID  `json:"requestId"`
	CustomerID        uuid.UUID  `json:"customerId"`
	LeadTechnicianID  uuid.UUID  `json:"leadTechnicianId"`
	BuddyTechnicianID *uuid.UUID `json:"buddyTechnicianId,omitempty"`
	ScheduledAt       *time.Time `json:"scheduledAt,omitempty"`
	Title             string     `json:"title"`
	Forced            bool       `json:"forced"`
}

func (e ServiceRequestScheduled) EventName() string { return "servicerequests.scheduled" }

// ServiceRequestCompleted is published when a technician completes a job.
type ServiceRequestCompleted struct {
	BaseEvent
	RequestID         uuid.UUID         `json:"requestId"`
	CustomerID        uuid.UUID         `json:"customerId"`
	LeadTechnicianID  *uuid.UUID        `json:"leadTechnicianId,omitempty"`
	BuddyTechnicianID *uuid.UUID        `json:"buddyTechnicianId,omitempty"`
	CompletedAt       time.Time         `json:"completedAt"`
	Title             string            `json:"title"`
	Findings          map[string]string `json:"findings"`
	Report            string            `json:"report"`
}

func (e ServiceRequestCompleted) EventName() string { return "servicerequests.completed" }

// BulkScheduled is published once per bulk-schedule call with its per-id outcome.
type BulkScheduled struct {
	BaseEvent
	ActorID          uuid.UUID   `json:"actorId"`
	LeadTechnicianID uuid.UUID   `json:"leadTechnicianId"`
	ScheduledAt      time.Time   `json:"scheduledAt"`
	Succeeded        []uuid.UUID `json:"succeeded"`
	Failed           []uuid.UUID `json:"failed"`
}

func (e BulkScheduled) EventName() string { return "servicerequests.bulk_scheduled" }

// VisitReminderDue is published by the scheduler worker shortly before a committed visit.
type VisitReminderDue struct {
	BaseEvent
	RequestID   uuid.UUID `json:"requestId"`
	CustomerID  uuid.UUID `json:"customerId"`
	ScheduledAt time.Time `json:"scheduledAt"`
	Title       string    `json:"title"`
}

func (e VisitReminderDue) EventName() string { return "servicerequests.visit_reminder_due" }
