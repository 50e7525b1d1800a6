// Package permission resolves allow/deny for one (action, user) pair.
// Check is pure and side-effect free, so it runs on every request in
// parallel with no shared mutable state.
package permission

import (
	"fmt"

	"warden/internal/domain"
	"warden/internal/registry"
)

// UnknownCapability is reported as the required capability when an
// action type has no registry entry.
const UnknownCapability domain.Capability = "unknown"

// Resolver decides whether a user context satisfies the capability
// requirement of an action. Role grants are consulted before direct
// capability grants.
type Resolver struct {
	registry *registry.Registry
}

// New constructs a resolver over a frozen registry.
func New(reg *registry.Registry) *Resolver {
	return &Resolver{registry: reg}
}

// Check resolves the permission decision for action under ctx.
//
// Unregistered action types are always denied: every executable action
// must be explicitly mapped to a capability. Denial reasons name only
// the single missing capability, never the caller's full grant set, so
// audit messages cannot be used to enumerate privileges.
func (r *Resolver) Check(action domain.Action, user domain.UserContext) domain.PermissionDecision {
	required, ok := r.registry.RequiredCapability(action.Type)
	if !ok {
		return domain.PermissionDecision{
			Allowed:            false,
			RequiredCapability: UnknownCapability,
			Reason:             fmt.Sprintf("unknown action type: %s", action.Type),
		}
	}

	for _, name := range user.Roles {
		role, ok := r.registry.Role(name)
		if !ok {
			continue
		}
		for _, capability := range role.Capabilities {
			if capability == required {
				return domain.PermissionDecision{
					Allowed:            true,
					RequiredCapability: required,
					GrantedBy:          domain.GrantByRole,
					GrantedRole:        role.Name,
				}
			}
		}
	}

	for _, capability := range user.Capabilities {
		if capability == required {
			return domain.PermissionDecision{
				Allowed:            true,
				RequiredCapability: required,
				GrantedBy:          domain.GrantByCapability,
			}
		}
	}

	return domain.PermissionDecision{
		Allowed:            false,
		RequiredCapability: required,
		Reason:             fmt.Sprintf("missing required capability: %s", required),
	}
}
