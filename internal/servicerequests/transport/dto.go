package transport

import (
	"time"

	"fleet_service_backend/internal/servicerequests/domain"
	"fleet_service_backend/internal/servicerequests/inspection"

	"github.com/google/uuid"
)

// StatusTag is the validation tag for canonical status codes.
const StatusTag = "service_status"

// CreateServiceRequestRequest is the request body for intake
type CreateServiceRequestRequest struct {
	CustomerID    *uuid.UUID `json:"customerId,omitempty"`
	VehicleID     *uuid.UUID `json:"vehicleId,omitempty"`
	Title         string     `json:"title" validate:"required,min=1,max=200"`
	Description   string     `json:"description,omitempty" validate:"max=4000"`
	InitialStatus string     `json:"initialStatus,omitempty" validate:"omitempty,service_status"`
	ActingRole    string     `json:"actingRole,omitempty" validate:"omitempty,oneof=customer office dispatch technician"`
}

// TransitionRequest is the request body for a role-scoped transition.
// Action may be omitted; it is then derived from the role and targetStatus.
type TransitionRequest struct {
	Action            string            `json:"action,omitempty" validate:"omitempty,oneof=approve decline confirm edit approve_dispatch send_to_shop add_note schedule override start reschedule complete"`
	ActingRole        string            `json:"actingRole,omitempty" validate:"omitempty,oneof=customer office dispatch technician"`
	TargetStatus      *string           `json:"targetStatus,omitempty" validate:"omitempty,service_status"`
	LeadTechnicianID  *uuid.UUID        `json:"leadTechnicianId,omitempty"`
	BuddyTechnicianID *uuid.UUID        `json:"buddyTechnicianId,omitempty"`
	ScheduledAt       *time.Time        `json:"scheduledAt,omitempty"`
	ForceMode         bool              `json:"forceMode"`
	NoteDelta         string            `json:"noteDelta,omitempty" validate:"max=4000"`
	ShopName          string            `json:"shopName,omitempty" validate:"max=200"`
	ShopPhone         string            `json:"shopPhone,omitempty" validate:"max=40"`
	DeclineReason     string            `json:"declineReason,omitempty" validate:"max=1000"`
	RescheduleReason  string            `json:"rescheduleReason,omitempty" validate:"max=1000"`
	KeyLocation       string            `json:"keyLocation,omitempty" validate:"max=500"`
	Title             *string           `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description       *string           `json:"description,omitempty" validate:"omitempty,max=4000"`
	Findings          map[string]string `json:"findings,omitempty"`
	ExpectedVersion   *int              `json:"expectedVersion,omitempty" validate:"omitempty,min=1"`
}

// ConfirmRequest is the customer's acceptance of a proposed slot
type ConfirmRequest struct {
	KeyLocation     string `json:"keyLocation" validate:"max=500"`
	ExpectedVersion *int   `json:"expectedVersion,omitempty" validate:"omitempty,min=1"`
}

// BulkScheduleRequest assigns one technician and time to many requests.
// Completeness is checked by the coordinator so the error carries its code.
type BulkScheduleRequest struct {
	RequestIDs        []uuid.UUID `json:"requestIds"`
	LeadTechnicianID  *uuid.UUID  `json:"leadTechnicianId"`
	BuddyTechnicianID *uuid.UUID  `json:"buddyTechnicianId,omitempty"`
	When              *time.Time  `json:"when"`
}

// ListServiceRequestsRequest is the query parameters for listing
type ListServiceRequestsRequest struct {
	Status       []string `form:"status" validate:"omitempty,dive,service_status"`
	Category     string   `form:"category" validate:"omitempty,oneof=ACTION_REQUIRED ACTIVE TERMINAL"`
	CustomerID   string   `form:"customerId" validate:"omitempty,uuid"`
	TechnicianID string   `form:"technicianId" validate:"omitempty,uuid"`
	ActingRole   string   `form:"actingRole" validate:"omitempty,oneof=customer office dispatch technician"`
	Page         int      `form:"page" validate:"omitempty,min=1"`
	PageSize     int      `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

// StatusResponse describes a status for display
type StatusResponse struct {
	Code     string `json:"code"`
	Label    string `json:"label"`
	Category string `json:"category"`
	Known    bool   `json:"known"`
}

// ServiceRequestResponse is the response body for a service request
type ServiceRequestResponse struct {
	ID                uuid.UUID          `json:"id"`
	Status            StatusResponse     `json:"status"`
	CustomerID        uuid.UUID          `json:"customerId"`
	VehicleID         *uuid.UUID         `json:"vehicleId,omitempty"`
	LeadTechnicianID  *uuid.UUID         `json:"leadTechnicianId,omitempty"`
	BuddyTechnicianID *uuid.UUID         `json:"buddyTechnicianId,omitempty"`
	ScheduledAt       *time.Time         `json:"scheduledAt,omitempty"`
	Title             string             `json:"title"`
	Description       string             `json:"description"`
	Notes             string             `json:"notes"`
	OfficeNotes       *string            `json:"officeNotes,omitempty"`
	KeyLocation       *string            `json:"keyLocation,omitempty"`
	ShopName          *string            `json:"shopName,omitempty"`
	ShopPhone         *string            `json:"shopPhone,omitempty"`
	CreatedAt         time.Time          `json:"createdAt"`
	StartedAt         *time.Time         `json:"startedAt,omitempty"`
	CompletedAt       *time.Time         `json:"completedAt,omitempty"`
	UpdatedAt         time.Time          `json:"updatedAt"`
	Version           int                `json:"version"`
	Badges            inspection.Summary `json:"badges"`
	AvailableActions  []domain.Action    `json:"availableActions"`
}

// ServiceRequestListResponse is a page of service requests
type ServiceRequestListResponse struct {
	Items      []ServiceRequestResponse `json:"items"`
	Total      int                      `json:"total"`
	Page       int                      `json:"page"`
	PageSize   int                      `json:"pageSize"`
	TotalPages int                      `json:"totalPages"`
}

// InspectionResponse is the decoded inspection block of a request
type InspectionResponse struct {
	RequestID uuid.UUID           `json:"requestId"`
	Summary   inspection.Summary  `json:"summary"`
	Decoded   inspection.Decoded  `json:"decoded"`
	Findings  inspection.Findings `json:"findings"`
}

// EntryListResponse lists the typed entries of a request
type EntryListResponse struct {
	Items []domain.Entry `json:"items"`
}
