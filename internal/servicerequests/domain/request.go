package domain

import (
	"time"

	"github.com/google/uuid"
)

// ServiceRequest is the shared record all four roles work on.
type ServiceRequest struct {
	ID                uuid.UUID
	Status            Status
	CustomerID        uuid.UUID
	VehicleID         *uuid.UUID
	LeadTechnicianID  *uuid.UUID
	BuddyTechnicianID *uuid.UUID
	ScheduledAt       *time.Time
	Title             string
	Description       string
	Notes             string
	OfficeNotes       string
	KeyLocation       *string
	ShopName          *string
	ShopPhone         *string
	CreatedAt         time.Time
	StartedAt         *time.Time
	CompletedAt       *time.Time
	UpdatedAt         time.Time
	Version           int
	Entries           []Entry
}

// IsAssigned reports whether userID is the lead or buddy technician.
func (r *ServiceRequest) IsAssigned(userID uuid.UUID) bool {
	return (r.LeadTechnicianID != nil && *r.LeadTechnicianID == userID) ||
		(r.BuddyTechnicianID != nil && *r.BuddyTechnicianID == userID)
}

// Clone returns a deep copy; the lifecycle mutates clones only.
func (r *ServiceRequest) Clone() *ServiceRequest {
	if r == nil {
		return nil
	}
	c := *r
	c.VehicleID = cloneUUID(r.VehicleID)
	c.LeadTechnicianID = cloneUUID(r.LeadTechnicianID)
	c.BuddyTechnicianID = cloneUUID(r.BuddyTechnicianID)
	c.ScheduledAt = cloneTime(r.ScheduledAt)
	c.StartedAt = cloneTime(r.StartedAt)
	c.CompletedAt = cloneTime(r.CompletedAt)
	c.KeyLocation = cloneString(r.KeyLocation)
	c.ShopName = cloneString(r.ShopName)
	c.ShopPhone = cloneString(r.ShopPhone)
	if r.Entries != nil {
		c.Entries = make([]Entry, len(r.Entries))
		for i, e := range r.Entries {
			c.Entries[i] = e.clone()
		}
	}
	return &c
}

func cloneUUID(v *uuid.UUID) *uuid.UUID {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// NewRequest is the intake data for a service request.
type NewRequest struct {
	CustomerID    uuid.UUID
	VehicleID     *uuid.UUID
	Title         string
	Description   string
	InitialStatus Status
}

// Filter narrows a listing.
type Filter struct {
	Statuses     []Status
	Category     *Category
	CustomerID   *uuid.UUID
	TechnicianID *uuid.UUID
	Page         int
	PageSize     int
}
