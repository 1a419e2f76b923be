package domain

import (
	"strings"

	"fleet_service_backend/platform/apperr"

	"github.com/google/uuid"
)

// Role is one of the four parties acting on a service request.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleOffice     Role = "office"
	RoleDispatch   Role = "dispatch"
	RoleTechnician Role = "technician"
)

// Roles lists every lifecycle role.
var Roles = []Role{RoleCustomer, RoleOffice, RoleDispatch, RoleTechnician}

// ParseRole validates a role name.
func ParseRole(value string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	for _, r := range Roles {
		if r == role {
			return role, nil
		}
	}
	return "", apperr.Forbidden("role is not permitted").WithCode(CodeRoleNotPermitted)
}

// Actor is the authenticated party performing an operation.
// CustomerID is set for customers and scopes them to their own fleet account.
type Actor struct {
	UserID     uuid.UUID
	Role       Role
	CustomerID *uuid.UUID
}

// SystemActor is used by background jobs acting on behalf of dispatch.
func SystemActor(userID uuid.UUID) Actor {
	return Actor{UserID: userID, Role: RoleDispatch}
}

// ResolveActor picks the acting role from the caller's roles. When requested
// is empty the caller must hold exactly one lifecycle role.
func ResolveActor(userID uuid.UUID, roles []string, requested string, customerID *uuid.UUID) (Actor, error) {
	held := make(map[Role]bool)
	for _, r := range roles {
		if role, err := ParseRole(r); err == nil {
			held[role] = true
		}
	}

	var role Role
	if strings.TrimSpace(requested) != "" {
		parsed, err := ParseRole(requested)
		if err != nil {
			return Actor{}, err
		}
		if !held[parsed] {
			return Actor{}, apperr.Forbidden("caller does not hold the requested role").WithCode(CodeRoleNotPermitted)
		}
		role = parsed
	} else {
		if len(held) != 1 {
			return Actor{}, apperr.BadRequest("actingRole is required when the caller holds several roles").
				WithCode(CodeRoleNotPermitted)
		}
		for r := range held {
			role = r
		}
	}

	actor := Actor{UserID: userID, Role: role}
	if role == RoleCustomer {
		if customerID == nil {
			return Actor{}, apperr.Forbidden("customer account is missing").WithCode(CodeRoleNotPermitted)
		}
		id := *customerID
		actor.CustomerID = &id
	}
	return actor, nil
}
