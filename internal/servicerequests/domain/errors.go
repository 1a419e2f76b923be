package domain

import "fleet_service_backend/platform/apperr"

// Precondition codes carried on *apperr.Error values returned by the lifecycle.
const (
	CodeLeadTechnicianRequired   = "lead_technician_required"
	CodeBuddyRequiresLead        = "buddy_requires_lead"
	CodeScheduleTimeRequired     = "schedule_time_required"
	CodeKeyLocationRequired      = "key_location_required"
	CodeRescheduleReasonRequired = "reschedule_reason_required"
	CodeInspectionIncomplete     = "inspection_incomplete"
	CodeShopNameRequired         = "shop_name_required"
	CodeJobLocked                = "job_locked"
	CodeTransitionNotAllowed     = "transition_not_allowed"
	CodeUnknownStatus            = "unknown_status"
	CodeNotEditable              = "not_editable"
	CodeNoteRequired             = "note_required"
	CodeNothingToUpdate          = "nothing_to_update"
	CodeBulkRequestInvalid       = "bulk_request_invalid"
	CodeRoleNotPermitted         = "role_not_permitted"
	CodeNotAssigned              = "not_assigned"
	CodeVersionConflict          = "version_conflict"
)

// VersionConflict reports that the request changed since the caller read it.
func VersionConflict(expected int) *apperr.Error {
	return apperr.Conflict("service request was modified by someone else; reload and retry").
		WithCode(CodeVersionConflict).
		WithDetails(map[string]int{"expectedVersion": expected})
}
