package domain

// Capability is an opaque permission token gating one class of action.
// Tokens are dot-namespaced with an optional ":qualifier" suffix
// (e.g. "shell.exec:read-only") and compared by string equality only.
type Capability string

// Role is a named, immutable bundle of capabilities. Roles are defined
// during startup and never mutated afterwards.
type Role struct {
	Name         string
	Description  string
	Capabilities []Capability
}

// UserContext is the caller identity for one governed request. It is
// supplied by the authentication layer and treated as read-only input;
// the governance pipeline never persists it.
type UserContext struct {
	UserID       string
	TenantID     string
	Capabilities []Capability
	Roles        []string
}

// Action is a request to run one operation against the execution backend.
// Type is the lookup key into the capability registry.
type Action struct {
	Type   string
	Params map[string]any
}

// GrantSource records which mechanism satisfied a permission check.
type GrantSource string

const (
	GrantByRole       GrantSource = "role"
	GrantByCapability GrantSource = "capability"
)

// PermissionDecision is the outcome of resolving one (action, user)
// pair. Produced fresh per request and never persisted on its own; the
// audit entry it feeds records the allowed/reason fields.
type PermissionDecision struct {
	Allowed            bool
	RequiredCapability Capability
	GrantedBy          GrantSource
	GrantedRole        string
	Reason             string
}

// ExecutionResult is the structured outcome of delegating an action to
// the execution backend. Backend errors, including timeouts, are
// converted into a failed result rather than surfaced as errors.
type ExecutionResult struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}
