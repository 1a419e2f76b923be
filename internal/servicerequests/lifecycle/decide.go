// Package lifecycle is the authority over service-request transitions.
// Decider computes the next state without side effects; Engine loads,
// decides, persists with a version check and announces the result.
package lifecycle

import (
	"strings"
	"time"

	"fleet_service_backend/internal/servicerequests/domain"
	"fleet_service_backend/internal/servicerequests/inspection"
	"fleet_service_backend/platform/apperr"
	"fleet_service_backend/platform/phone"
	"fleet_service_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 4000
)

// Decider applies the transition table and the per-action preconditions.
type Decider struct {
	codec       *inspection.Codec
	phoneRegion string
}

// NewDecider creates a decider. A nil codec uses the default checklist.
func NewDecider(codec *inspection.Codec, phoneRegion string) *Decider {
	if codec == nil {
		codec = inspection.NewCodec(nil)
	}
	if phoneRegion == "" {
		phoneRegion = "US"
	}
	return &Decider{codec: codec, phoneRegion: phoneRegion}
}

// Codec returns the inspection codec used for completions.
func (d *Decider) Codec() *inspection.Codec { return d.codec }

// Decide returns the mutation cmd produces on req, or a typed error. It never
// modifies req: all work happens on a clone, so a rejected command leaves
// nothing behind.
func (d *Decider) Decide(req *domain.ServiceRequest, actor domain.Actor, cmd domain.Command, now time.Time) (domain.Mutation, error) {
	if err := checkScope(req, actor); err != nil {
		return domain.Mutation{}, err
	}

	from := req.Status
	to, err := domain.Check(actor.Role, cmd.Action, from, cmd.Payload)
	if err != nil {
		return domain.Mutation{}, err
	}

	p := cmd.Payload
	if p.TargetStatus != nil && cmd.Action != domain.ActionOverride && *p.TargetStatus != to {
		return domain.Mutation{}, apperr.Precondition(domain.CodeTransitionNotAllowed,
			"requested status does not match the action's outcome").
			WithDetails(map[string]string{"requested": string(*p.TargetStatus), "outcome": string(to)})
	}

	now = now.UTC()
	b := &builder{next: req.Clone(), actor: actor, now: now}

	switch cmd.Action {
	case domain.ActionApprove:
		b.appendNotes(domain.ApprovalBanner(now, actorLabel(actor)))
		b.entry(domain.EntryApproval, "", "")
	case domain.ActionDecline:
		reason := sanitize.Text(p.DeclineReason)
		b.appendNotes(domain.DeclineBanner(now, actorLabel(actor), b.freeText(reason)))
		b.entry(domain.EntryDecline, "", reason)
	case domain.ActionConfirm:
		err = b.confirm(p)
	case domain.ActionEdit:
		err = b.edit(p)
	case domain.ActionAddNote:
		if strings.TrimSpace(p.NoteDelta) == "" {
			err = apperr.Precondition(domain.CodeNoteRequired, "noteDelta is required")
		}
	case domain.ActionSendToShop:
		err = b.sendToShop(p, d.phoneRegion)
	case domain.ActionSchedule:
		err = b.schedule(p)
	case domain.ActionOverride:
		err = b.assign(p)
	case domain.ActionStart:
		if s := req.ScheduledAt; s != nil && s.After(now) {
			err = apperr.Precondition(domain.CodeJobLocked, "job cannot start before its scheduled time").
				WithDetails(map[string]time.Time{"scheduledAt": s.UTC()})
		}
	case domain.ActionReschedule:
		err = b.reschedule(p)
	case domain.ActionComplete:
		// The closing note goes above the report so it stays out of the block Decode reads.
		b.appendNoteDelta(p.NoteDelta)
		err = b.complete(p, d.codec)
	}
	if err != nil {
		return domain.Mutation{}, err
	}

	if cmd.Action != domain.ActionComplete {
		b.appendNoteDelta(p.NoteDelta)
	}

	if err := b.finish(to); err != nil {
		return domain.Mutation{}, err
	}
	b.next.Entries = append(b.next.Entries, b.entries...)

	return domain.Mutation{
		Action:     cmd.Action,
		From:       from,
		To:         to,
		Request:    b.next,
		NewEntries: b.entries,
		At:         now,
	}, nil
}

// checkScope limits customers to their own account and technicians to jobs they are on.
func checkScope(req *domain.ServiceRequest, actor domain.Actor) error {
	switch actor.Role {
	case domain.RoleCustomer:
		if actor.CustomerID == nil || *actor.CustomerID != req.CustomerID {
			return apperr.NotFound("service request not found")
		}
	case domain.RoleTechnician:
		if !req.IsAssigned(actor.UserID) {
			return apperr.Forbidden("technician is not assigned to this request").WithCode(domain.CodeNotAssigned)
		}
	}
	return nil
}

func actorLabel(actor domain.Actor) string {
	return string(actor.Role) + " " + actor.UserID.String()
}

type builder struct {
	next    *domain.ServiceRequest
	actor   domain.Actor
	now     time.Time
	entries []domain.Entry
}

func (b *builder) entry(kind domain.EntryKind, body, reason string) *domain.Entry {
	b.entries = append(b.entries, domain.Entry{
		ID:        uuid.New(),
		RequestID: b.next.ID,
		Kind:      kind,
		ActorID:   b.actor.UserID,
		ActorRole: b.actor.Role,
		Body:      body,
		Reason:    reason,
		CreatedAt: b.now,
	})
	return &b.entries[len(b.entries)-1]
}

func (b *builder) appendNotes(block string) {
	b.next.Notes = domain.AppendBlock(b.next.Notes, block)
}

// freeText drops severity glyphs from text headed for notes once a report is
// on record; anything after the last banner is read as findings.
func (b *builder) freeText(text string) string {
	if !strings.Contains(b.next.Notes, inspection.Banner) {
		return text
	}
	return inspection.StripMarkers(text)
}

func (b *builder) confirm(p domain.Payload) error {
	key := sanitize.Text(p.KeyLocation)
	if key == "" {
		return apperr.Precondition(domain.CodeKeyLocationRequired, "key location is required to confirm the appointment")
	}
	b.next.KeyLocation = &key
	b.entry(domain.EntryConfirmation, key, "")
	return nil
}

func (b *builder) edit(p domain.Payload) error {
	if p.Title == nil && p.Description == nil && strings.TrimSpace(p.NoteDelta) == "" {
		return apperr.Precondition(domain.CodeNothingToUpdate, "nothing to update")
	}
	if p.Title != nil {
		title := sanitize.Text(*p.Title)
		if title == "" || len(title) > maxTitleLength {
			return apperr.Validation("title must be between 1 and 200 characters")
		}
		b.next.Title = title
	}
	if p.Description != nil {
		desc := sanitize.Multiline(*p.Description)
		if len(desc) > maxDescriptionLength {
			return apperr.Validation("description is too long")
		}
		b.next.Description = desc
	}
	return nil
}

func (b *builder) sendToShop(p domain.Payload, region string) error {
	name := sanitize.Text(p.ShopName)
	if name == "" {
		return apperr.Precondition(domain.CodeShopNameRequired, "shop name is required")
	}
	b.next.ShopName = &name
	b.next.ShopPhone = nil
	body := name
	if raw := strings.TrimSpace(p.ShopPhone); raw != "" {
		normalized := phone.NormalizeE164(raw, region)
		b.next.ShopPhone = &normalized
		body += " (" + normalized + ")"
	}
	b.entry(domain.EntryShopAssignment, body, "")
	return nil
}

func (b *builder) schedule(p domain.Payload) error {
	if err := b.assign(p); err != nil {
		return err
	}
	if b.next.ScheduledAt == nil {
		return apperr.Precondition(domain.CodeScheduleTimeRequired, "a schedule time is required")
	}
	return nil
}

// assign applies dispatch's technician and time fields. A new lead replaces
// the pair; a buddy alone joins the existing lead.
func (b *builder) assign(p domain.Payload) error {
	lead := b.next.LeadTechnicianID
	if p.LeadTechnicianID != nil {
		lead = p.LeadTechnicianID
	}
	if p.ScheduledAt != nil && lead == nil {
		return apperr.Precondition(domain.CodeLeadTechnicianRequired, "a lead technician is required to set a schedule time")
	}
	if p.BuddyTechnicianID != nil && lead == nil {
		return apperr.Precondition(domain.CodeBuddyRequiresLead, "a buddy technician requires a lead technician")
	}
	if p.LeadTechnicianID != nil && p.BuddyTechnicianID != nil && *p.LeadTechnicianID == *p.BuddyTechnicianID {
		return apperr.Validation("lead and buddy technician must differ")
	}

	if p.LeadTechnicianID != nil {
		l := *p.LeadTechnicianID
		b.next.LeadTechnicianID = &l
		b.next.BuddyTechnicianID = nil
	}
	if p.BuddyTechnicianID != nil {
		bu := *p.BuddyTechnicianID
		b.next.BuddyTechnicianID = &bu
	}
	if p.ScheduledAt != nil {
		at := p.ScheduledAt.UTC()
		b.next.ScheduledAt = &at
	}
	return nil
}

func (b *builder) reschedule(p domain.Payload) error {
	reason := sanitize.Text(p.RescheduleReason)
	if reason == "" {
		return apperr.Precondition(domain.CodeRescheduleReasonRequired, "a reason is required to reschedule")
	}
	b.appendNotes(domain.RescheduleBanner(b.now, actorLabel(b.actor), b.freeText(reason)))
	b.entry(domain.EntryReschedule, "", reason)
	return nil
}

func (b *builder) complete(p domain.Payload, codec *inspection.Codec) error {
	if err := codec.Checklist().Validate(p.Findings); err != nil {
		return err
	}
	report := codec.Encode(p.Findings)
	b.appendNotes(report)
	e := b.entry(domain.EntryInspectionReport, report, "")
	e.Findings = p.Findings.Clone()
	return nil
}

// appendNoteDelta files free text: office and dispatch write to officeNotes
// with an office_note entry, customers and technicians to notes.
func (b *builder) appendNoteDelta(delta string) {
	note := sanitize.Multiline(delta)
	if note == "" {
		return
	}
	switch b.actor.Role {
	case domain.RoleOffice, domain.RoleDispatch:
		b.next.OfficeNotes = domain.AppendBlock(b.next.OfficeNotes, note)
		b.entry(domain.EntryOfficeNote, note, "")
	default:
		if note = b.freeText(note); note != "" {
			b.appendNotes(note)
		}
	}
}

// finish applies the status-wide rules: the unscheduled pool holds no
// assignment, committed slots need a lead, and timestamps are stamped once
// and never earlier than the stamps before them.
func (b *builder) finish(to domain.Status) error {
	n := b.next
	n.Status = to

	if to == domain.StatusReadyToSchedule {
		n.LeadTechnicianID = nil
		n.BuddyTechnicianID = nil
		n.ScheduledAt = nil
	}

	if (to == domain.StatusScheduled || to == domain.StatusWaitingConfirmation) && n.LeadTechnicianID == nil {
		return apperr.Precondition(domain.CodeLeadTechnicianRequired, "a lead technician is required for "+string(to))
	}
	if n.BuddyTechnicianID != nil && n.LeadTechnicianID == nil {
		return apperr.Precondition(domain.CodeBuddyRequiresLead, "a buddy technician requires a lead technician")
	}

	if to == domain.StatusInProgress && n.StartedAt == nil {
		at := notBefore(b.now, n.CreatedAt)
		n.StartedAt = &at
	}
	if to == domain.StatusCompleted && n.CompletedAt == nil {
		at := notBefore(b.now, n.CreatedAt)
		if n.StartedAt != nil {
			at = notBefore(at, *n.StartedAt)
		}
		n.CompletedAt = &at
	}

	n.UpdatedAt = notBefore(b.now, n.UpdatedAt)
	return nil
}

func notBefore(t, floor time.Time) time.Time {
	if t.Before(floor) {
		return floor
	}
	return t
}
