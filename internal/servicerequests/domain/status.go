// Package domain holds the service-request model shared by the lifecycle
// engine, the scheduling handshake and the HTTP surface: the status
// registry, actor roles, typed entries and the transition table.
package domain

import (
	"sort"

	"fleet_service_backend/platform/apperr"
)

// Status is a service-request status code. The canonical values are
// case-sensitive; anything else is a legacy or corrupt value that the
// registry still presents through a fallback.
type Status string

const (
	StatusNew                   Status = "NEW"
	StatusPending               Status = "PENDING"
	StatusProblem               Status = "PROBLEM"
	StatusReadyToSchedule       Status = "READY_TO_SCHEDULE"
	StatusWaitingConfirmation   Status = "WAITING_CONFIRMATION"
	StatusApprovedAndScheduling Status = "APPROVED_AND_SCHEDULING"
	StatusScheduled             Status = "SCHEDULED"
	StatusInProgress            Status = "IN_PROGRESS"
	StatusReschedulePending     Status = "RESCHEDULE_PENDING"
	StatusAttentionRequired     Status = "ATTENTION_REQUIRED"
	StatusWaitingApproval       Status = "WAITING_APPROVAL"
	StatusAtShop                Status = "AT_SHOP"
	StatusCompleted             Status = "COMPLETED"
	StatusCanceled              Status = "CANCELED"
	StatusBilled                Status = "BILLED"
)

// StatusWaiting is a legacy code still found on old records. It is not part
// of the canonical enum; office staff may edit requests that carry it.
const StatusWaiting Status = "WAITING"

// Category groups statuses by who owes the next step.
type Category string

const (
	CategoryActionRequired Category = "ACTION_REQUIRED"
	CategoryActive         Category = "ACTIVE"
	CategoryTerminal       Category = "TERMINAL"
)

// StatusInfo is the display metadata for a status code.
type StatusInfo struct {
	Code     Status   `json:"code"`
	Label    string   `json:"label"`
	Category Category `json:"category"`
	Known    bool     `json:"known"`
}

const fallbackLabel = "Unknown status"

// canonical lists the enum in its published order.
var canonical = []StatusInfo{
	{StatusNew, "New", CategoryActive, true},
	{StatusPending, "Pending", CategoryActionRequired, true},
	{StatusProblem, "Problem", CategoryActionRequired, true},
	{StatusReadyToSchedule, "Ready to schedule", CategoryActionRequired, true},
	{StatusWaitingConfirmation, "Waiting for confirmation", CategoryActive, true},
	{StatusApprovedAndScheduling, "Approved, scheduling", CategoryActive, true},
	{StatusScheduled, "Scheduled", CategoryActive, true},
	{StatusInProgress, "In progress", CategoryActive, true},
	{StatusReschedulePending, "Reschedule pending", CategoryActive, true},
	{StatusAttentionRequired, "Attention required", CategoryActionRequired, true},
	{StatusWaitingApproval, "Waiting for approval", CategoryActionRequired, true},
	{StatusAtShop, "At shop", CategoryActive, true},
	{StatusCompleted, "Completed", CategoryTerminal, true},
	{StatusCanceled, "Canceled", CategoryTerminal, true},
	{StatusBilled, "Billed", CategoryTerminal, true},
}

var byCode = func() map[Status]StatusInfo {
	m := make(map[Status]StatusInfo, len(canonical))
	for _, info := range canonical {
		m[info.Code] = info
	}
	return m
}()

// UnknownStatusReporter receives codes that are not part of the enum.
// *logger.Logger satisfies it.
type UnknownStatusReporter interface {
	UnknownStatus(code string)
}

// Registry describes status codes and reports unknown ones as a data-quality signal.
type Registry struct {
	reporter UnknownStatusReporter
}

// NewRegistry creates a registry. A nil reporter drops unknown-code reports.
func NewRegistry(reporter UnknownStatusReporter) *Registry {
	return &Registry{reporter: reporter}
}

// Describe returns the display metadata for code. It never fails: unknown
// codes get a generic presentation and are reported.
func (r *Registry) Describe(code string) StatusInfo {
	if info, ok := byCode[Status(code)]; ok {
		return info
	}
	if r != nil && r.reporter != nil {
		r.reporter.UnknownStatus(code)
	}
	return StatusInfo{Code: Status(code), Label: fallbackLabel, Category: CategoryActive, Known: false}
}

var silent = NewRegistry(nil)

// Describe is Registry.Describe without reporting.
func Describe(code string) StatusInfo {
	return silent.Describe(code)
}

// IsKnown reports whether code is a canonical status.
func IsKnown(code string) bool {
	_, ok := byCode[Status(code)]
	return ok
}

// ParseStatus converts a client-supplied code to a canonical Status.
func ParseStatus(code string) (Status, error) {
	if !IsKnown(code) {
		return "", apperr.Precondition(CodeUnknownStatus, "unknown status").
			WithDetails(map[string]string{"status": code})
	}
	return Status(code), nil
}

// Info returns the status's display metadata.
func (s Status) Info() StatusInfo { return Describe(string(s)) }

// Category returns the lifecycle category, ACTIVE for unknown codes.
func (s Status) Category() Category { return s.Info().Category }

// IsKnown reports whether s is canonical.
func (s Status) IsKnown() bool { return IsKnown(string(s)) }

// IsTerminal reports whether s is COMPLETED, CANCELED or BILLED.
func (s Status) IsTerminal() bool { return s.IsKnown() && s.Category() == CategoryTerminal }

// IsActionRequired reports whether a customer or office owes the next step.
func (s Status) IsActionRequired() bool {
	return s.IsKnown() && s.Category() == CategoryActionRequired
}

// AllStatuses returns the registry table in canonical order.
func AllStatuses() []StatusInfo {
	out := make([]StatusInfo, len(canonical))
	copy(out, canonical)
	return out
}

// StatusesIn returns the canonical codes of one category, sorted.
func StatusesIn(category Category) []Status {
	var out []Status
	for _, info := range canonical {
		if info.Category == category {
			out = append(out, info.Code)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
