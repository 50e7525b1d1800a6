package assignment

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"warden/internal/domain"
)

// grant kinds in the user_grants table.
const (
	kindRole       = "role"
	kindCapability = "capability"
)

// Schema for the grants table. Applied by deployment tooling; EnsureSchema
// exists for dev and test environments.
const schema = `
CREATE TABLE IF NOT EXISTS user_grants (
	user_id    TEXT        NOT NULL,
	kind       TEXT        NOT NULL CHECK (kind IN ('role', 'capability')),
	value      TEXT        NOT NULL,
	granted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (user_id, kind, value)
)`

// PostgresStore persists grants in PostgreSQL. The pool lifecycle is
// managed by the caller.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an established pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the grants table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure user_grants schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, userID string) (Assignment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT kind, value, granted_at FROM user_grants WHERE user_id = $1`, userID)
	if err != nil {
		return Assignment{}, fmt.Errorf("query grants: %w", err)
	}
	defer rows.Close()

	a := Assignment{UserID: userID}
	found := false
	for rows.Next() {
		var kind, value string
		var grantedAt time.Time
		if err := rows.Scan(&kind, &value, &grantedAt); err != nil {
			return Assignment{}, fmt.Errorf("scan grant: %w", err)
		}
		found = true
		if grantedAt.After(a.UpdatedAt) {
			a.UpdatedAt = grantedAt
		}
		switch kind {
		case kindRole:
			a.Roles = append(a.Roles, value)
		case kindCapability:
			a.Capabilities = append(a.Capabilities, domain.Capability(value))
		}
	}
	if err := rows.Err(); err != nil {
		return Assignment{}, fmt.Errorf("iterate grants: %w", err)
	}
	if !found {
		return Assignment{}, ErrNotFound
	}
	return a, nil
}

func (s *PostgresStore) GrantRoles(ctx context.Context, userID string, roles ...string) error {
	for _, role := range roles {
		if err := s.insert(ctx, userID, kindRole, role); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) GrantCapabilities(ctx context.Context, userID string, capabilities ...domain.Capability) error {
	for _, capability := range capabilities {
		if err := s.insert(ctx, userID, kindCapability, string(capability)); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) RevokeRole(ctx context.Context, userID, role string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM user_grants WHERE user_id = $1 AND kind = $2 AND value = $3`,
		userID, kindRole, role)
	if err != nil {
		return fmt.Errorf("revoke role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) insert(ctx context.Context, userID, kind, value string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_grants (user_id, kind, value) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, kind, value) DO NOTHING`,
		userID, kind, value)
	if err != nil {
		return fmt.Errorf("insert grant: %w", err)
	}
	return nil
}
