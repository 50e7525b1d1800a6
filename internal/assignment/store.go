// Package assignment persists which roles and standalone capabilities a
// user holds. It sits outside the governance core: the pipeline only
// ever consumes the UserContext built from a lookup here, it never
// writes back.
package assignment

import (
	"context"
	"errors"
	"time"

	"warden/internal/domain"
)

// ErrNotFound keeps store-specific 404s consistent across the memory
// and postgres implementations.
var ErrNotFound = errors.New("assignment not found")

// Assignment is one user's grant set.
type Assignment struct {
	UserID       string
	Roles        []string
	Capabilities []domain.Capability
	UpdatedAt    time.Time
}

// UserContext builds the read-only request context the permission
// resolver consumes.
func (a Assignment) UserContext(tenantID string) domain.UserContext {
	return domain.UserContext{
		UserID:       a.UserID,
		TenantID:     tenantID,
		Roles:        a.Roles,
		Capabilities: a.Capabilities,
	}
}

// Store is the grant persistence surface.
type Store interface {
	Get(ctx context.Context, userID string) (Assignment, error)
	GrantRoles(ctx context.Context, userID string, roles ...string) error
	GrantCapabilities(ctx context.Context, userID string, capabilities ...domain.Capability) error
	RevokeRole(ctx context.Context, userID, role string) error
}
