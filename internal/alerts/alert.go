// Package alerts keeps the polled alert feed each role reads to learn what
// changed on service requests since its last poll.
package alerts

import (
	"fmt"
	"time"

	"fleet_service_backend/internal/events"
	"fleet_service_backend/internal/servicerequests/domain"

	"github.com/google/uuid"
)

// Kind names what an alert is about.
type Kind string

const (
	KindCreated            Kind = "created"
	KindActionRequired     Kind = "action_required"
	KindReadyToSchedule    Kind = "ready_to_schedule"
	KindSchedulingProposed Kind = "scheduling_proposed"
	KindScheduled          Kind = "scheduled"
	KindAssigned           Kind = "assigned"
	KindDeclined           Kind = "declined"
	KindRescheduleNeeded   Kind = "reschedule_needed"
	KindCompleted          Kind = "completed"
	KindBulkItemFailed     Kind = "bulk_item_failed"
)

// Alert is addressed either to one user (RecipientID) or to every member of
// an audience role. Customer-audience alerts are limited to CustomerID's account.
type Alert struct {
	ID          uuid.UUID   `json:"id"`
	RecipientID *uuid.UUID  `json:"recipientId,omitempty"`
	Audience    domain.Role `json:"audience"`
	CustomerID  *uuid.UUID  `json:"customerId,omitempty"`
	RequestID   uuid.UUID   `json:"requestId"`
	Kind        Kind        `json:"kind"`
	Message     string      `json:"message"`
	CreatedAt   time.Time   `json:"createdAt"`
	ReadAt      *time.Time  `json:"readAt,omitempty"`
}

// Viewer is the caller reading the feed.
type Viewer struct {
	UserID     uuid.UUID
	Role       domain.Role
	CustomerID *uuid.UUID
}

// Visible reports whether v may see a.
func (a Alert) Visible(v Viewer) bool {
	if a.RecipientID != nil {
		return *a.RecipientID == v.UserID
	}
	if a.Audience != v.Role {
		return false
	}
	if a.Audience == domain.RoleCustomer {
		return a.CustomerID != nil && v.CustomerID != nil && *a.CustomerID == *v.CustomerID
	}
	return true
}

// alertsFor derives the alerts an event produces. Events that nobody needs
// to hear about produce none.
func alertsFor(e events.Event) []Alert {
	at := e.OccurredAt().UTC()
	switch ev := e.(type) {
	case events.ServiceRequestCreated:
		return []Alert{audience(domain.RoleOffice, ev.RequestID, nil, KindCreated, at,
			fmt.Sprintf("New service request: %s", ev.Title))}

	case events.ServiceRequestTransitioned:
		return transitionAlerts(ev, at)

	case events.SchedulingProposed:
		return []Alert{audience(domain.RoleCustomer, ev.RequestID, &ev.CustomerID, KindSchedulingProposed, at,
			fmt.Sprintf("A visit for %q is proposed for %s. Please confirm.", ev.Title, ev.ScheduledAt.UTC().Format(time.RFC1123)))}

	case events.ServiceRequestScheduled:
		when := "a time to be announced"
		if ev.ScheduledAt != nil {
			when = ev.ScheduledAt.UTC().Format(time.RFC1123)
		}
		out := []Alert{
			audience(domain.RoleCustomer, ev.RequestID, &ev.CustomerID, KindScheduled, at,
				fmt.Sprintf("%q is scheduled for %s.", ev.Title, when)),
			direct(domain.RoleTechnician, ev.LeadTechnicianID, ev.RequestID, KindAssigned, at,
				fmt.Sprintf("You are lead technician on %q at %s.", ev.Title, when)),
		}
		if ev.BuddyTechnicianID != nil {
			out = append(out, direct(domain.RoleTechnician, *ev.BuddyTechnicianID, ev.RequestID, KindAssigned, at,
				fmt.Sprintf("You are buddy technician on %q at %s.", ev.Title, when)))
		}
		return out

	case events.ServiceRequestCompleted:
		return []Alert{
			audience(domain.RoleCustomer, ev.RequestID, &ev.CustomerID, KindCompleted, at,
				fmt.Sprintf("%q is completed. The inspection report is available.", ev.Title)),
			audience(domain.RoleOffice, ev.RequestID, nil, KindCompleted, at,
				fmt.Sprintf("%q is completed and ready for billing.", ev.Title)),
		}

	case events.BulkScheduled:
		out := make([]Alert, 0, len(ev.Failed))
		for _, id := range ev.Failed {
			out = append(out, direct(domain.RoleDispatch, ev.ActorID, id, KindBulkItemFailed, at,
				"This request could not be scheduled in the bulk assignment."))
		}
		return out
	}
	return nil
}

func transitionAlerts(ev events.ServiceRequestTransitioned, at time.Time) []Alert {
	to := domain.Status(ev.To)
	switch {
	case ev.Action == string(domain.ActionDecline):
		return []Alert{
			audience(domain.RoleOffice, ev.RequestID, nil, KindDeclined, at, "The customer declined the request."),
			audience(domain.RoleDispatch, ev.RequestID, nil, KindDeclined, at, "The customer declined the request."),
		}
	case ev.Action == string(domain.ActionReschedule):
		return []Alert{audience(domain.RoleDispatch, ev.RequestID, nil, KindRescheduleNeeded, at,
			"A technician sent the job back for rescheduling.")}
	case ev.From == ev.To:
		return nil
	case to == domain.StatusReadyToSchedule:
		return []Alert{audience(domain.RoleDispatch, ev.RequestID, nil, KindReadyToSchedule, at,
			"A request is ready to schedule.")}
	case to.IsActionRequired():
		return []Alert{audience(domain.RoleOffice, ev.RequestID, nil, KindActionRequired, at,
			fmt.Sprintf("A request needs attention: %s.", domain.Describe(ev.To).Label))}
	}
	return nil
}

func audience(role domain.Role, requestID uuid.UUID, customerID *uuid.UUID, kind Kind, at time.Time, msg string) Alert {
	a := Alert{ID: uuid.New(), Audience: role, RequestID: requestID, Kind: kind, Message: msg, CreatedAt: at}
	if customerID != nil {
		id := *customerID
		a.CustomerID = &id
	}
	return a
}

func direct(role domain.Role, userID, requestID uuid.UUID, kind Kind, at time.Time, msg string) Alert {
	id := userID
	return Alert{ID: uuid.New(), RecipientID: &id, Audience: role, RequestID: requestID, Kind: kind, Message: msg, CreatedAt: at}
}
