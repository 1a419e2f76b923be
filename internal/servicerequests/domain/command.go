package domain

import (
	"time"

	"fleet_service_backend/internal/servicerequests/inspection"

	"github.com/google/uuid"
)

// Action names a role-scoped lifecycle operation.
type Action string

const (
	ActionApprove         Action = "approve"
	ActionDecline         Action = "decline"
	ActionConfirm         Action = "confirm"
	ActionEdit            Action = "edit"
	ActionApproveDispatch Action = "approve_dispatch"
	ActionSendToShop      Action = "send_to_shop"
	ActionAddNote         Action = "add_note"
	ActionSchedule        Action = "schedule"
	ActionOverride        Action = "override"
	ActionStart           Action = "start"
	ActionReschedule      Action = "reschedule"
	ActionComplete        Action = "complete"
)

// Payload is the supporting data of a transition. Which fields matter depends on the action.
type Payload struct {
	TargetStatus      *Status
	LeadTechnicianID  *uuid.UUID
	BuddyTechnicianID *uuid.UUID
	ScheduledAt       *time.Time
	ForceMode         bool
	NoteDelta         string
	ShopName          string
	ShopPhone         string
	DeclineReason     string
	RescheduleReason  string
	KeyLocation       string
	Title             *string
	Description       *string
	Findings          inspection.Findings
	ExpectedVersion   *int
}

// Command is one requested transition.
type Command struct {
	Action  Action
	Payload Payload
}

// Mutation is the outcome of deciding a command: the full next state plus
// the entries it adds. It is applied in one write.
type Mutation struct {
	Action     Action
	From       Status
	To         Status
	Request    *ServiceRequest
	NewEntries []Entry
	At         time.Time
}

// StatusChanged reports whether the mutation moves the request.
func (m Mutation) StatusChanged() bool { return m.From != m.To }
