package lifecycle

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"fleet_service_backend/internal/servicerequests/domain"
	"fleet_service_backend/internal/servicerequests/inspection"
	"fleet_service_backend/platform/apperr"

	"github.com/google/uuid"
)

var now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	customerID uuid.UUID
	leadID     uuid.UUID
	buddyID    uuid.UUID
	userID     uuid.UUID
}

func newFixture() fixture {
	return fixture{customerID: uuid.New(), leadID: uuid.New(), buddyID: uuid.New(), userID: uuid.New()}
}

func (f fixture) request(status domain.Status) *domain.ServiceRequest {
	lead := f.leadID
	buddy := f.buddyID
	at := now.Add(-time.Hour)
	return &domain.ServiceRequest{
		ID:                uuid.New(),
		Status:            status,
		CustomerID:        f.customerID,
		LeadTechnicianID:  &lead,
		BuddyTechnicianID: &buddy,
		ScheduledAt:       &at,
		Title:             "Quarterly service",
		Notes:             "Van 12 pulls left",
		CreatedAt:         now.Add(-72 * time.Hour),
		UpdatedAt:         now.Add(-72 * time.Hour),
		Version:           3,
	}
}

func (f fixture) actor(role domain.Role) domain.Actor {
	switch role {
	case domain.RoleCustomer:
		id := f.customerID
		return domain.Actor{UserID: f.userID, Role: role, CustomerID: &id}
	case domain.RoleTechnician:
		return domain.Actor{UserID: f.leadID, Role: role}
	default:
		return domain.Actor{UserID: f.userID, Role: role}
	}
}

func fullReport() inspection.Findings {
	f := inspection.Findings{}
	for i, p := range inspection.DefaultPoints {
		f[p] = inspection.Severities[i%len(inspection.Severities)]
	}
	return f
}

func decide(t *testing.T, req *domain.ServiceRequest, actor domain.Actor, action domain.Action, p domain.Payload) (domain.Mutation, error) {
	t.Helper()
	return NewDecider(nil, "US").Decide(req, actor, domain.Command{Action: action, Payload: p}, now)
}

func expectCode(t *testing.T, err error, code string) {
	t.Helper()
	if apperr.GetCode(err) != code {
		t.Fatalf("expected error code %q, got %v", code, err)
	}
}

func TestDecideIsAllOrNothing(t *testing.T) {
	f := newFixture()
	d := NewDecider(nil, "US")
	target := domain.StatusBilled
	payloads := []domain.Payload{
		{},
		{ForceMode: true, KeyLocation: "lockbox 4", RescheduleReason: "no parts", ShopName: "Main St Garage",
			Findings: fullReport(), TargetStatus: &target, NoteDelta: "ping"},
	}

	for _, info := range domain.AllStatuses() {
		for _, role := range domain.Roles {
			for _, action := range []domain.Action{
				domain.ActionApprove, domain.ActionDecline, domain.ActionConfirm, domain.ActionEdit,
				domain.ActionApproveDispatch, domain.ActionSendToShop, domain.ActionAddNote, domain.ActionSchedule,
				domain.ActionOverride, domain.ActionStart, domain.ActionReschedule, domain.ActionComplete,
			} {
				for _, p := range payloads {
					req := f.request(info.Code)
					before := req.Clone()

					m, err := d.Decide(req, f.actor(role), domain.Command{Action: action, Payload: p}, now)

					if !reflect.DeepEqual(before, req) {
						t.Fatalf("%s %s from %s: input was modified", role, action, info.Code)
					}
					if err != nil {
						if m.Request != nil {
							t.Fatalf("%s %s from %s: error with a mutation", role, action, info.Code)
						}
						continue
					}
					if m.Request.Status != m.To || m.From != info.Code {
						t.Fatalf("%s %s from %s: inconsistent mutation %s -> %s", role, action, info.Code, m.From, m.To)
					}
				}
			}
		}
	}
}

func TestCustomerDeclineFromNew(t *testing.T) {
	f := newFixture()
	req := f.request(domain.StatusNew)

	m, err := decide(t, req, f.actor(domain.RoleCustomer), domain.ActionDecline, domain.Payload{DeclineReason: "Too expensive"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Request.Status != domain.StatusCanceled {
		t.Fatalf("expected CANCELED, got %s", m.Request.Status)
	}
	if !strings.Contains(m.Request.Notes, "❌ DECLINED") || !strings.Contains(m.Request.Notes, "Too expensive") {
		t.Fatalf("expected decline banner with reason, got %q", m.Request.Notes)
	}
	if !strings.HasPrefix(m.Request.Notes, "Van 12 pulls left") {
		t.Fatalf("expected existing notes kept, got %q", m.Request.Notes)
	}
	if len(m.NewEntries) != 1 || m.NewEntries[0].Kind != domain.EntryDecline || m.NewEntries[0].Reason != "Too expensive" {
		t.Fatalf("expected decline entry, got %+v", m.NewEntries)
	}
}

func TestCustomerApproveTargets(t *testing.T) {
	f := newFixture()

	m, err := decide(t, f.request(domain.StatusNew), f.actor(domain.RoleCustomer), domain.ActionApprove, domain.Payload{})
	if err != nil || m.To != domain.StatusApprovedAndScheduling {
		t.Fatalf("expected APPROVED_AND_SCHEDULING, got %s (%v)", m.To, err)
	}
	if !strings.Contains(m.Request.Notes, "✅ APPROVED by customer") {
		t.Fatalf("expected approval banner, got %q", m.Request.Notes)
	}

	m, err = decide(t, f.request(domain.StatusPending), f.actor(domain.RoleCustomer), domain.ActionApprove, domain.Payload{})
	if err != nil || m.To != domain.StatusNew {
		t.Fatalf("expected NEW, got %s (%v)", m.To, err)
	}
}

func TestCustomerCannotTouchOtherAccounts(t *testing.T) {
	f := newFixture()
	other := newFixture()

	_, err := decide(t, f.request(domain.StatusNew), other.actor(domain.RoleCustomer), domain.ActionDecline, domain.Payload{})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConfirmRequiresKeyLocation(t *testing.T) {
	f := newFixture()
	req := f.request(domain.StatusWaitingConfirmation)

	_, err := decide(t, req, f.actor(domain.RoleCustomer), domain.ActionConfirm, domain.Payload{KeyLocation: "   "})
	expectCode(t, err, domain.CodeKeyLocationRequired)
	if req.Status != domain.StatusWaitingConfirmation {
		t.Fatalf("expected status unchanged, got %s", req.Status)
	}

	m, err := decide(t, req, f.actor(domain.RoleCustomer), domain.ActionConfirm, domain.Payload{KeyLocation: "Key box at gate 3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.To != domain.StatusScheduled || *m.Request.KeyLocation != "Key box at gate 3" {
		t.Fatalf("expected SCHEDULED with key location, got %s %v", m.To, m.Request.KeyLocation)
	}
}

func TestTechnicianStartLockedBeforeScheduledTime(t *testing.T) {
	f := newFixture()
	req := f.request(domain.StatusScheduled)
	tomorrow := now.Add(24 * time.Hour)
	req.ScheduledAt = &tomorrow

	_, err := decide(t, req, f.actor(domain.RoleTechnician), domain.ActionStart, domain.Payload{})
	expectCode(t, err, domain.CodeJobLocked)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if req.Status != domain.StatusScheduled || req.StartedAt != nil {
		t.Fatalf("expected request unchanged")
	}
}

func TestTechnicianStartStampsOnce(t *testing.T) {
	f := newFixture()
	req := f.request(domain.StatusScheduled)

	m, err := decide(t, req, f.actor(domain.RoleTechnician), domain.ActionStart, domain.Payload{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.To != domain.StatusInProgress || m.Request.StartedAt == nil || !m.Request.StartedAt.Equal(now) {
		t.Fatalf("expected IN_PROGRESS stamped at now, got %s %v", m.To, m.Request.StartedAt)
	}

	earlier := now.Add(-30 * time.Minute)
	req.StartedAt = &earlier
	m, err = decide(t, req, f.actor(domain.RoleTechnician), domain.ActionStart, domain.Payload{})
	if err != nil || !m.Request.StartedAt.Equal(earlier) {
		t.Fatalf("expected startedAt kept, got %v (%v)", m.Request.StartedAt, err)
	}
}

func TestUnassignedTechnicianIsRejected(t *testing.T) {
	f := newFixture()
	stranger := domain.Actor{UserID: uuid.New(), Role: domain.RoleTechnician}

	_, err := decide(t, f.request(domain.StatusScheduled), stranger, domain.ActionStart, domain.Payload{})
	expectCode(t, err, domain.CodeNotAssigned)

	buddy := domain.Actor{UserID: f.buddyID, Role: domain.RoleTechnician}
	if _, err := decide(t, f.request(domain.StatusScheduled), buddy, domain.ActionStart, domain.Payload{}); err != nil {
		t.Fatalf("expected buddy to start the job, got %v", err)
	}
}

func TestRescheduleClearsAssignment(t *testing.T) {
	f := newFixture()
	req := f.request(domain.StatusScheduled)

	_, err := decide(t, req, f.actor(domain.RoleTechnician), domain.ActionReschedule, domain.Payload{RescheduleReason: " "})
	expectCode(t, err, domain.CodeRescheduleReasonRequired)

	m, err := decide(t, req, f.actor(domain.RoleTechnician), domain.ActionReschedule,
		domain.Payload{RescheduleReason: "wrong parts on truck"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.To != domain.StatusReadyToSchedule {
		t.Fatalf("expected READY_TO_SCHEDULE, got %s", m.To)
	}
	if m.Request.LeadTechnicianID != nil || m.Request.BuddyTechnicianID != nil || m.Request.ScheduledAt != nil {
		t.Fatalf("expected assignment cleared, got %+v", m.Request)
	}
	if !strings.Contains(m.Request.Notes, "wrong parts on truck") {
		t.Fatalf("expected reason in notes, got %q", m.Request.Notes)
	}
}

func TestCompleteRequiresFullReport(t *testing.T) {
	f := newFixture()
	req := f.request(domain.StatusInProgress)
	started := now.Add(-2 * time.Hour)
	req.StartedAt = &started

	partial := fullReport()
	delete(partial, "Exhaust")
	_, err := decide(t, req, f.actor(domain.RoleTechnician), domain.ActionComplete, domain.Payload{Findings: partial})
	expectCode(t, err, domain.CodeInspectionIncomplete)
	if req.Status != domain.StatusInProgress || strings.Contains(req.Notes, inspection.Banner) {
		t.Fatalf("expected no partial report written")
	}

	m, err := decide(t, req, f.actor(domain.RoleTechnician), domain.ActionComplete, domain.Payload{Findings: fullReport()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.To != domain.StatusCompleted || m.Request.CompletedAt == nil || !m.Request.CompletedAt.Equal(now) {
		t.Fatalf("expected COMPLETED stamped now, got %s %v", m.To, m.Request.CompletedAt)
	}
	if m.Request.LeadTechnicianID == nil || *m.Request.LeadTechnicianID != f.leadID || m.Request.BuddyTechnicianID == nil {
		t.Fatalf("expected technicians retained")
	}
	decoded := inspection.Decode(m.Request.Notes).Findings()
	if !reflect.DeepEqual(decoded, fullReport()) {
		t.Fatalf("expected notes to carry the report, got %v", decoded)
	}
	entry, ok := m.Request.LatestInspection()
	if !ok || !reflect.DeepEqual(entry.Findings, fullReport()) {
		t.Fatalf("expected typed inspection entry, got %+v", entry)
	}
}

func TestCompletionNoteStaysOutOfReport(t *testing.T) {
	f := newFixture()
	req := f.request(domain.StatusInProgress)
	started := now.Add(-2 * time.Hour)
	req.StartedAt = &started

	note := "🔴 rear axle seal weeping, recheck next visit"
	m, err := decide(t, req, f.actor(domain.RoleTechnician), domain.ActionComplete,
		domain.Payload{Findings: fullReport(), NoteDelta: note})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	decoded := inspection.Decode(m.Request.Notes).Findings()
	if !reflect.DeepEqual(decoded, fullReport()) {
		t.Fatalf("expected only the submitted report decoded, got %v", decoded)
	}
	noteAt := strings.Index(m.Request.Notes, note)
	if noteAt < 0 || noteAt > strings.Index(m.Request.Notes, inspection.Banner) {
		t.Fatalf("expected the note kept above the report, got %q", m.Request.Notes)
	}
}

func TestFreeTextAfterReportLosesMarkers(t *testing.T) {
	f := newFixture()
	req := f.request(domain.StatusScheduled)
	req.Notes = domain.AppendBlock(req.Notes, inspection.NewCodec(nil).Encode(fullReport()))

	m, err := decide(t, req, f.actor(domain.RoleTechnician), domain.ActionReschedule,
		domain.Payload{RescheduleReason: "🟡 brake pads on back order"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(m.Request.Notes, "brake pads on back order") {
		t.Fatalf("expected reason in notes, got %q", m.Request.Notes)
	}
	if decoded := inspection.Decode(m.Request.Notes).Findings(); !reflect.DeepEqual(decoded, fullReport()) {
		t.Fatalf("expected the earlier report unchanged, got %v", decoded)
	}
}

func TestTimestampsNeverGoBackwards(t *testing.T) {
	f := newFixture()
	req := f.request(domain.StatusInProgress)
	future := now.Add(time.Hour)
	req.StartedAt = &future

	m, err := decide(t, req, f.actor(domain.RoleTechnician), domain.ActionComplete, domain.Payload{Findings: fullReport()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Request.CompletedAt.Before(*m.Request.StartedAt) {
		t.Fatalf("completedAt %v before startedAt %v", m.Request.CompletedAt, m.Request.StartedAt)
	}
}

func TestScheduleProposeAndForce(t *testing.T) {
	f := newFixture()
	lead := uuid.New()
	when := now.Add(48 * time.Hour)

	for _, force := range []bool{false, true} {
		req := f.request(domain.StatusReadyToSchedule)
		req.LeadTechnicianID, req.BuddyTechnicianID, req.ScheduledAt = nil, nil, nil

		m, err := decide(t, req, f.actor(domain.RoleDispatch), domain.ActionSchedule,
			domain.Payload{LeadTechnicianID: &lead, ScheduledAt: &when, ForceMode: force})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := domain.StatusWaitingConfirmation
		if force {
			want = domain.StatusScheduled
		}
		if m.To != want || *m.Request.LeadTechnicianID != lead || !m.Request.ScheduledAt.Equal(when) {
			t.Fatalf("force=%v: expected %s with assignment, got %s", force, want, m.To)
		}
	}
}

func TestScheduleRequiresLead(t *testing.T) {
	f := newFixture()
	req := f.request(domain.StatusReadyToSchedule)
	req.LeadTechnicianID, req.BuddyTechnicianID, req.ScheduledAt = nil, nil, nil
	when := now.Add(time.Hour)
	buddy := uuid.New()

	_, err := decide(t, req, f.actor(domain.RoleDispatch), domain.ActionSchedule, domain.Payload{ScheduledAt: &when, ForceMode: true})
	expectCode(t, err, domain.CodeLeadTechnicianRequired)

	_, err = decide(t, req, f.actor(domain.RoleDispatch), domain.ActionSchedule, domain.Payload{BuddyTechnicianID: &buddy})
	expectCode(t, err, domain.CodeBuddyRequiresLead)

	lead := uuid.New()
	_, err = decide(t, req, f.actor(domain.RoleDispatch), domain.ActionSchedule, domain.Payload{LeadTechnicianID: &lead})
	expectCode(t, err, domain.CodeScheduleTimeRequired)
}

func TestOverrideChecksLeadOnlyForCommittedSlots(t *testing.T) {
	f := newFixture()
	req := f.request(domain.StatusCompleted)
	req.LeadTechnicianID, req.BuddyTechnicianID = nil, nil

	scheduled := domain.StatusScheduled
	_, err := decide(t, req, f.actor(domain.RoleDispatch), domain.ActionOverride, domain.Payload{TargetStatus: &scheduled})
	expectCode(t, err, domain.CodeLeadTechnicianRequired)

	problem := domain.StatusProblem
	m, err := decide(t, req, f.actor(domain.RoleDispatch), domain.ActionOverride, domain.Payload{TargetStatus: &problem})
	if err != nil || m.To != domain.StatusProblem {
		t.Fatalf("expected override to PROBLEM, got %s (%v)", m.To, err)
	}
}

func TestOfficeSendToShop(t *testing.T) {
	f := newFixture()
	req := f.request(domain.StatusAttentionRequired)

	_, err := decide(t, req, f.actor(domain.RoleOffice), domain.ActionSendToShop, domain.Payload{ShopPhone: "650-253-0000"})
	expectCode(t, err, domain.CodeShopNameRequired)

	m, err := decide(t, req, f.actor(domain.RoleOffice), domain.ActionSendToShop,
		domain.Payload{ShopName: "Main St Garage", ShopPhone: "(650) 253-0000"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.To != domain.StatusAtShop || *m.Request.ShopName != "Main St Garage" || *m.Request.ShopPhone != "+16502530000" {
		t.Fatalf("unexpected shop assignment %+v", m.Request)
	}
}

func TestOfficeEditKeepsStatus(t *testing.T) {
	f := newFixture()
	title := "  <b>Brake</b> job "
	m, err := decide(t, f.request(domain.StatusWaiting), f.actor(domain.RoleOffice), domain.ActionEdit,
		domain.Payload{Title: &title, NoteDelta: "Customer called"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.StatusChanged() || m.Request.Title != "Brake job" || m.Request.OfficeNotes != "Customer called" {
		t.Fatalf("unexpected edit result %+v", m.Request)
	}

	_, err = decide(t, f.request(domain.StatusScheduled), f.actor(domain.RoleOffice), domain.ActionEdit, domain.Payload{Title: &title})
	expectCode(t, err, domain.CodeNotEditable)
}

func TestOfficeApproveDispatchClearsAssignment(t *testing.T) {
	f := newFixture()
	m, err := decide(t, f.request(domain.StatusWaitingApproval), f.actor(domain.RoleOffice), domain.ActionApproveDispatch, domain.Payload{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.To != domain.StatusReadyToSchedule || m.Request.LeadTechnicianID != nil {
		t.Fatalf("expected unscheduled pool without technicians, got %+v", m.Request)
	}
}

func TestTargetStatusMustMatchAction(t *testing.T) {
	f := newFixture()
	wrong := domain.StatusScheduled
	_, err := decide(t, f.request(domain.StatusNew), f.actor(domain.RoleCustomer), domain.ActionApprove, domain.Payload{TargetStatus: &wrong})
	expectCode(t, err, domain.CodeTransitionNotAllowed)
}
