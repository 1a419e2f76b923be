package domain

import (
	"fleet_service_backend/platform/apperr"
)

// Rule is one row of the transition table: which statuses a role may apply
// an action from and where the action leads.
type Rule struct {
	Role   Role
	Action Action
	// From reports whether the action is legal from a status.
	From func(Status) bool
	// Target computes the resulting status. Nil keeps the status unchanged.
	Target func(from Status, p Payload) (Status, error)
}

type ruleKey struct {
	role   Role
	action Action
}

// officeEditable are the statuses in which office staff may change a request.
var officeEditable = statusSet(StatusNew, StatusWaiting, StatusWaitingApproval, StatusAttentionRequired, StatusAtShop)

var table = map[ruleKey]Rule{}

func init() {
	for _, r := range []Rule{
		{Role: RoleCustomer, Action: ActionApprove, From: customerApprovable, Target: customerApproveTarget},
		{Role: RoleCustomer, Action: ActionDecline, From: customerDeclinable, Target: fixed(StatusCanceled)},
		{Role: RoleCustomer, Action: ActionConfirm, From: statusSet(StatusWaitingConfirmation), Target: fixed(StatusScheduled)},

		{Role: RoleOffice, Action: ActionEdit, From: officeEditable},
		{Role: RoleOffice, Action: ActionApproveDispatch, From: officeEditable, Target: fixed(StatusReadyToSchedule)},
		{Role: RoleOffice, Action: ActionSendToShop, From: officeEditable, Target: fixed(StatusAtShop)},
		{Role: RoleOffice, Action: ActionAddNote, From: anyStatus},

		{Role: RoleDispatch, Action: ActionSchedule, From: dispatchSchedulable, Target: scheduleTarget},
		{Role: RoleDispatch, Action: ActionOverride, From: anyStatus, Target: overrideTarget},
		{Role: RoleDispatch, Action: ActionAddNote, From: anyStatus},

		{Role: RoleTechnician, Action: ActionStart, From: statusSet(StatusScheduled), Target: fixed(StatusInProgress)},
		{Role: RoleTechnician, Action: ActionReschedule, From: statusSet(StatusScheduled), Target: fixed(StatusReadyToSchedule)},
		{Role: RoleTechnician, Action: ActionComplete, From: statusSet(StatusInProgress), Target: fixed(StatusCompleted)},
	} {
		table[ruleKey{r.Role, r.Action}] = r
	}
}

// Lookup returns the rule for (role, action).
func Lookup(role Role, action Action) (Rule, bool) {
	r, ok := table[ruleKey{role, action}]
	return r, ok
}

// Check returns the status the action leads to from the given status, or a
// typed error naming why the table forbids it.
func Check(role Role, action Action, from Status, p Payload) (Status, error) {
	rule, ok := Lookup(role, action)
	if !ok {
		return "", apperr.Forbidden("action is not permitted for this role").
			WithCode(CodeRoleNotPermitted).
			WithDetails(map[string]string{"role": string(role), "action": string(action)})
	}
	if !rule.From(from) {
		code := CodeTransitionNotAllowed
		if rule.Role == RoleOffice && (action == ActionEdit || action == ActionApproveDispatch || action == ActionSendToShop) {
			code = CodeNotEditable
		}
		return "", apperr.Precondition(code, "transition is not allowed from the current status").
			WithDetails(map[string]string{"from": string(from), "action": string(action)})
	}
	if rule.Target == nil {
		return from, nil
	}
	return rule.Target(from, p)
}

// AvailableActions lists what role may do from status, in table order.
func AvailableActions(role Role, from Status) []Action {
	var out []Action
	for _, action := range actionOrder {
		if rule, ok := Lookup(role, action); ok && rule.From(from) {
			out = append(out, action)
		}
	}
	return out
}

var actionOrder = []Action{
	ActionApprove, ActionDecline, ActionConfirm,
	ActionEdit, ActionApproveDispatch, ActionSendToShop, ActionAddNote,
	ActionSchedule, ActionOverride,
	ActionStart, ActionReschedule, ActionComplete,
}

// ResolveAction maps a requested target status to the action a role performs.
// A nil target means a role's default: customer approve, office edit
// (or add_note when only a note is given), dispatch schedule.
func ResolveAction(role Role, target *Status, p Payload) (Action, error) {
	notAllowed := func() (Action, error) {
		details := map[string]string{"role": string(role)}
		if target != nil {
			details["targetStatus"] = string(*target)
		}
		return "", apperr.Precondition(CodeTransitionNotAllowed, "no transition to the requested status for this role").
			WithDetails(details)
	}

	switch role {
	case RoleCustomer:
		if target == nil {
			return ActionApprove, nil
		}
		switch *target {
		case StatusCanceled:
			return ActionDecline, nil
		case StatusScheduled:
			return ActionConfirm, nil
		case StatusApprovedAndScheduling, StatusNew:
			return ActionApprove, nil
		}
	case RoleOffice:
		if target == nil {
			if p.Title == nil && p.Description == nil && p.NoteDelta != "" {
				return ActionAddNote, nil
			}
			return ActionEdit, nil
		}
		switch *target {
		case StatusReadyToSchedule:
			return ActionApproveDispatch, nil
		case StatusAtShop:
			return ActionSendToShop, nil
		}
	case RoleDispatch:
		if target == nil {
			return ActionSchedule, nil
		}
		return ActionOverride, nil
	case RoleTechnician:
		if target == nil {
			return notAllowed()
		}
		switch *target {
		case StatusInProgress:
			return ActionStart, nil
		case StatusReadyToSchedule:
			return ActionReschedule, nil
		case StatusCompleted:
			return ActionComplete, nil
		}
	default:
		return "", apperr.Forbidden("role is not permitted").WithCode(CodeRoleNotPermitted)
	}
	return notAllowed()
}

// customerApproveTarget keeps the existing rule: approving a NEW request
// moves it forward to APPROVED_AND_SCHEDULING, approving from any other
// permitted status sends it back to NEW for office review.
// TODO(product): confirm the non-NEW branch; it is kept as observed, not as designed.
func customerApproveTarget(from Status, _ Payload) (Status, error) {
	if from == StatusNew {
		return StatusApprovedAndScheduling, nil
	}
	return StatusNew, nil
}

func scheduleTarget(_ Status, p Payload) (Status, error) {
	if p.ForceMode {
		return StatusScheduled, nil
	}
	return StatusWaitingConfirmation, nil
}

func overrideTarget(_ Status, p Payload) (Status, error) {
	if p.TargetStatus == nil {
		return "", apperr.Precondition(CodeUnknownStatus, "targetStatus is required for an override")
	}
	return ParseStatus(string(*p.TargetStatus))
}

func customerApprovable(s Status) bool {
	return s == StatusNew || s.IsActionRequired()
}

func customerDeclinable(s Status) bool {
	return s == StatusNew || s == StatusWaitingConfirmation || s.IsActionRequired()
}

func dispatchSchedulable(s Status) bool {
	return s.IsKnown() && !s.IsTerminal() && s != StatusInProgress
}

func anyStatus(Status) bool { return true }

func fixed(to Status) func(Status, Payload) (Status, error) {
	return func(Status, Payload) (Status, error) { return to, nil }
}

func statusSet(statuses ...Status) func(Status) bool {
	set := make(map[Status]struct{}, len(statuses))
	for _, s := range statuses {
		set[s] = struct{}{}
	}
	return func(s Status) bool {
		_, ok := set[s]
		return ok
	}
}
