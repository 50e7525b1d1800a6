package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/internal/domain"
	"warden/internal/registry"
)

func newResolver(t *testing.T) *Resolver {
	t.Helper()
	reg := registry.Default()
	reg.Freeze()
	return New(reg)
}

func TestCheck_UnknownActionType(t *testing.T) {
	r := newResolver(t)

	// Even the broadest grants never allow an unregistered action type.
	admin := domain.UserContext{
		UserID: "u1",
		Roles:  []string{"admin"},
		Capabilities: []domain.Capability{
			registry.CapFileRead, registry.CapFileWrite, registry.CapShellExec,
		},
	}

	decision := r.Check(domain.Action{Type: "unknown.op"}, admin)
	require.False(t, decision.Allowed)
	assert.Equal(t, "unknown action type: unknown.op", decision.Reason)
	assert.Equal(t, UnknownCapability, decision.RequiredCapability)
	assert.Empty(t, decision.GrantedBy)
}

func TestCheck_RoleGrant(t *testing.T) {
	r := newResolver(t)
	viewer := domain.UserContext{UserID: "u1", Roles: []string{"viewer"}}

	decision := r.Check(domain.Action{Type: "file.read"}, viewer)
	require.True(t, decision.Allowed)
	assert.Equal(t, domain.GrantByRole, decision.GrantedBy)
	assert.Equal(t, "viewer", decision.GrantedRole)
	assert.Equal(t, registry.CapFileRead, decision.RequiredCapability)
	assert.Empty(t, decision.Reason)
}

func TestCheck_ViewerDeniedWrite(t *testing.T) {
	r := newResolver(t)
	viewer := domain.UserContext{UserID: "u1", Roles: []string{"viewer"}}

	decision := r.Check(domain.Action{Type: "file.write"}, viewer)
	require.False(t, decision.Allowed)
	assert.Equal(t, registry.CapFileWrite, decision.RequiredCapability)
	assert.Contains(t, decision.Reason, "file.write")
	// The reason names only the missing capability, not what the user holds.
	assert.NotContains(t, decision.Reason, "viewer")
	assert.NotContains(t, decision.Reason, "file.read")
}

func TestCheck_DirectCapabilityFallback(t *testing.T) {
	r := newResolver(t)
	user := domain.UserContext{
		UserID:       "u1",
		Capabilities: []domain.Capability{registry.CapShellExec},
	}

	decision := r.Check(domain.Action{Type: "shell.exec"}, user)
	require.True(t, decision.Allowed)
	assert.Equal(t, domain.GrantByCapability, decision.GrantedBy)
	assert.Empty(t, decision.GrantedRole)
}

func TestCheck_RoleWinsOverDirectCapability(t *testing.T) {
	r := newResolver(t)

	// Both the role and a direct grant would satisfy the requirement; the
	// role is credited because roles are checked first.
	user := domain.UserContext{
		UserID:       "u1",
		Roles:        []string{"viewer"},
		Capabilities: []domain.Capability{registry.CapFileRead},
	}

	decision := r.Check(domain.Action{Type: "file.read"}, user)
	require.True(t, decision.Allowed)
	assert.Equal(t, domain.GrantByRole, decision.GrantedBy)
}

func TestCheck_UnknownRolesSkipped(t *testing.T) {
	r := newResolver(t)
	user := domain.UserContext{
		UserID: "u1",
		Roles:  []string{"ghost", "viewer"},
	}

	decision := r.Check(domain.Action{Type: "knowledge.read"}, user)
	require.True(t, decision.Allowed)
	assert.Equal(t, "viewer", decision.GrantedRole)
}

func TestCheck_OutcomeIndependentOfRoleOrder(t *testing.T) {
	r := newResolver(t)

	forward := domain.UserContext{UserID: "u1", Roles: []string{"viewer", "admin"}}
	backward := domain.UserContext{UserID: "u1", Roles: []string{"admin", "viewer"}}

	action := domain.Action{Type: "file.read"}
	assert.True(t, r.Check(action, forward).Allowed)
	assert.True(t, r.Check(action, backward).Allowed)
}

func TestCheck_EmptyContextDenied(t *testing.T) {
	r := newResolver(t)

	decision := r.Check(domain.Action{Type: "file.read"}, domain.UserContext{UserID: "u1"})
	require.False(t, decision.Allowed)
	assert.Equal(t, "missing required capability: file.read", decision.Reason)
}
