package assignment

import (
	"context"
	"slices"
	"sync"
	"time"

	"warden/internal/domain"
)

// InMemoryStore keeps grants in process memory. It backs tests and
// single-node dev deployments; production uses the postgres store.
type InMemoryStore struct {
	mu     sync.RWMutex
	grants map[string]Assignment
	now    func() time.Time
}

// NewInMemoryStore constructs an empty grant store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		grants: make(map[string]Assignment),
		now:    time.Now,
	}
}

func (s *InMemoryStore) Get(_ context.Context, userID string) (Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.grants[userID]
	if !ok {
		return Assignment{}, ErrNotFound
	}
	return a, nil
}

func (s *InMemoryStore) GrantRoles(_ context.Context, userID string, roles ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.grants[userID]
	a.UserID = userID
	for _, role := range roles {
		if !slices.Contains(a.Roles, role) {
			a.Roles = append(a.Roles, role)
		}
	}
	a.UpdatedAt = s.now()
	s.grants[userID] = a
	return nil
}

func (s *InMemoryStore) GrantCapabilities(_ context.Context, userID string, capabilities ...domain.Capability) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.grants[userID]
	a.UserID = userID
	for _, capability := range capabilities {
		if !slices.Contains(a.Capabilities, capability) {
			a.Capabilities = append(a.Capabilities, capability)
		}
	}
	a.UpdatedAt = s.now()
	s.grants[userID] = a
	return nil
}

func (s *InMemoryStore) RevokeRole(_ context.Context, userID, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.grants[userID]
	if !ok {
		return ErrNotFound
	}
	a.Roles = slices.DeleteFunc(a.Roles, func(r string) bool { return r == role })
	a.UpdatedAt = s.now()
	s.grants[userID] = a
	return nil
}
