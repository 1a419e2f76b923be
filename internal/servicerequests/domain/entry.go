package domain

import (
	"time"

	"fleet_service_backend/internal/servicerequests/inspection"

	"github.com/google/uuid"
)

// EntryKind tags a typed sub-record of a service request.
type EntryKind string

const (
	EntryApproval         EntryKind = "approval"
	EntryDecline          EntryKind = "decline"
	EntryConfirmation     EntryKind = "confirmation"
	EntryReschedule       EntryKind = "reschedule"
	EntryShopAssignment   EntryKind = "shop_assignment"
	EntryInspectionReport EntryKind = "inspection_report"
	EntryOfficeNote       EntryKind = "office_note"
)

// Entry is an immutable record of a lifecycle event. The same facts are
// also rendered into the notes text for older readers.
type Entry struct {
	ID        uuid.UUID           `json:"id"`
	RequestID uuid.UUID           `json:"requestId"`
	Kind      EntryKind           `json:"kind"`
	ActorID   uuid.UUID           `json:"actorId"`
	ActorRole Role                `json:"actorRole"`
	Body      string              `json:"body,omitempty"`
	Reason    string              `json:"reason,omitempty"`
	Findings  inspection.Findings `json:"findings,omitempty"`
	CreatedAt time.Time           `json:"createdAt"`
}

func (e Entry) clone() Entry {
	e.Findings = e.Findings.Clone()
	return e
}

// LatestInspection returns the most recent inspection report entry.
func (r *ServiceRequest) LatestInspection() (Entry, bool) {
	for i := len(r.Entries) - 1; i >= 0; i-- {
		if r.Entries[i].Kind == EntryInspectionReport {
			return r.Entries[i], true
		}
	}
	return Entry{}, false
}
