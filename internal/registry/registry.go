// Package registry holds the static action→capability map and the role
// catalog. Both are populated during a one-time builder phase at startup
// and are read-only once frozen, so concurrent permission checks read
// them without locking.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"warden/internal/domain"
)

// ErrFrozen is returned when registration is attempted after the
// registry has been frozen for serving.
var ErrFrozen = errors.New("registry is frozen")

// Registry maps action types to the capability required to run them and
// role names to their capability bundles.
type Registry struct {
	mu      sync.Mutex
	frozen  bool
	actions map[string]domain.Capability
	roles   map[string]domain.Role
}

// New returns an empty, unfrozen registry.
func New() *Registry {
	return &Registry{
		actions: make(map[string]domain.Capability),
		roles:   make(map[string]domain.Role),
	}
}

// RegisterAction maps an action type to its required capability.
// Re-registering an existing type is an error so extension modules
// cannot silently weaken an earlier requirement.
func (r *Registry) RegisterAction(actionType string, capability domain.Capability) error {
	if actionType == "" || capability == "" {
		return fmt.Errorf("action type and capability are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return ErrFrozen
	}
	if existing, ok := r.actions[actionType]; ok {
		return fmt.Errorf("action type %q already requires %q", actionType, existing)
	}
	r.actions[actionType] = capability
	return nil
}

// RegisterRole adds a role to the catalog.
func (r *Registry) RegisterRole(role domain.Role) error {
	if role.Name == "" {
		return fmt.Errorf("role name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return ErrFrozen
	}
	if _, ok := r.roles[role.Name]; ok {
		return fmt.Errorf("role %q already registered", role.Name)
	}
	r.roles[role.Name] = role
	return nil
}

// Freeze ends the builder phase. After Freeze all registration calls
// fail and the lookup methods are safe for unlocked concurrent use.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// RequiredCapability returns the capability gating the given action
// type. The second return is false for unregistered types; callers must
// treat that as a denial (fail-closed).
func (r *Registry) RequiredCapability(actionType string) (domain.Capability, bool) {
	capability, ok := r.actions[actionType]
	return capability, ok
}

// Role returns the named role from the catalog.
func (r *Registry) Role(name string) (domain.Role, bool) {
	role, ok := r.roles[name]
	return role, ok
}

// RoleCapabilities returns the union of the capability sets of the named
// roles. Unknown role names are skipped; order of names is irrelevant.
func (r *Registry) RoleCapabilities(names []string) map[domain.Capability]struct{} {
	union := make(map[domain.Capability]struct{})
	for _, name := range names {
		role, ok := r.roles[name]
		if !ok {
			continue
		}
		for _, capability := range role.Capabilities {
			union[capability] = struct{}{}
		}
	}
	return union
}

// ActionTypes returns the registered action types, for diagnostics.
func (r *Registry) ActionTypes() []string {
	types := make([]string, 0, len(r.actions))
	for t := range r.actions {
		types = append(types, t)
	}
	return types
}
