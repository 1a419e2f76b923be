// Package scheduling implements the dispatch/customer handshake for
// committing a visit slot. Propose leaves the request waiting for the
// customer's confirmation; Force commits it directly.
package scheduling

import (
	"context"
	"time"

	"fleet_service_backend/internal/servicerequests/domain"

	"github.com/google/uuid"
)

// Transitioner is the part of the lifecycle engine the negotiator drives.
type Transitioner interface {
	Transition(ctx context.Context, id uuid.UUID, actor domain.Actor, cmd domain.Command) (*domain.ServiceRequest, error)
}

// Assignment is the slot dispatch offers: who goes and when.
type Assignment struct {
	LeadTechnicianID  *uuid.UUID
	BuddyTechnicianID *uuid.UUID
	When              *time.Time
	ExpectedVersion   *int
	Note              string
}

// Negotiator runs the propose/force/confirm handshake.
type Negotiator struct {
	engine Transitioner
}

// New creates a negotiator over engine.
func New(engine Transitioner) *Negotiator {
	return &Negotiator{engine: engine}
}

// Propose offers the slot; the request waits in WAITING_CONFIRMATION for the customer.
// Proposing again on a waiting or scheduled request replaces the offer.
func (n *Negotiator) Propose(ctx context.Context, actor domain.Actor, id uuid.UUID, a Assignment) (*domain.ServiceRequest, error) {
	return n.schedule(ctx, actor, id, a, false)
}

// Force commits the slot without customer confirmation.
func (n *Negotiator) Force(ctx context.Context, actor domain.Actor, id uuid.UUID, a Assignment) (*domain.ServiceRequest, error) {
	return n.schedule(ctx, actor, id, a, true)
}

// Confirm is the customer's acceptance of a proposed slot. keyLocation tells
// the technician where to find the vehicle keys and must not be empty.
func (n *Negotiator) Confirm(ctx context.Context, actor domain.Actor, id uuid.UUID, keyLocation string, expectedVersion *int) (*domain.ServiceRequest, error) {
	return n.engine.Transition(ctx, id, actor, domain.Command{
		Action:  domain.ActionConfirm,
		Payload: domain.Payload{KeyLocation: keyLocation, ExpectedVersion: expectedVersion},
	})
}

// Decline is the customer's refusal; the request is canceled.
func (n *Negotiator) Decline(ctx context.Context, actor domain.Actor, id uuid.UUID, reason string, expectedVersion *int) (*domain.ServiceRequest, error) {
	return n.engine.Transition(ctx, id, actor, domain.Command{
		Action:  domain.ActionDecline,
		Payload: domain.Payload{DeclineReason: reason, ExpectedVersion: expectedVersion},
	})
}

func (n *Negotiator) schedule(ctx context.Context, actor domain.Actor, id uuid.UUID, a Assignment, force bool) (*domain.ServiceRequest, error) {
	return n.engine.Transition(ctx, id, actor, domain.Command{
		Action: domain.ActionSchedule,
		Payload: domain.Payload{
			LeadTechnicianID:  a.LeadTechnicianID,
			BuddyTechnicianID: a.BuddyTechnicianID,
			ScheduledAt:       a.When,
			ForceMode:         force,
			NoteDelta:         a.Note,
			ExpectedVersion:   a.ExpectedVersion,
		},
	})
}
