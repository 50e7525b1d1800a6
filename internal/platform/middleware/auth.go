// Package middleware carries the HTTP middleware shared across routes.
// The auth middleware validates the caller's bearer token and builds
// the read-only UserContext the governance pipeline consumes.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"warden/internal/assignment"
	"warden/internal/domain"
)

type contextKeyUserContext struct{}

// UserContextFrom retrieves the authenticated user context placed on
// the request by RequireUser.
func UserContextFrom(ctx context.Context) (domain.UserContext, bool) {
	uc, ok := ctx.Value(contextKeyUserContext{}).(domain.UserContext)
	return uc, ok
}

// WithUserContext injects a user context directly, for tests.
func WithUserContext(ctx context.Context, uc domain.UserContext) context.Context {
	return context.WithValue(ctx, contextKeyUserContext{}, uc)
}

// Claims are the token claims this service understands. The subject is
// the user ID; tenant is optional.
type Claims struct {
	TenantID string `json:"tenant,omitempty"`
	jwt.RegisteredClaims
}

// GrantLookup fetches a user's stored role/capability grants.
type GrantLookup interface {
	Get(ctx context.Context, userID string) (assignment.Assignment, error)
}

// Authenticator validates bearer tokens and resolves grants.
type Authenticator struct {
	signingKey []byte
	grants     GrantLookup
	logger     *slog.Logger
}

// NewAuthenticator constructs the auth middleware.
func NewAuthenticator(signingKey string, grants GrantLookup, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		signingKey: []byte(signingKey),
		grants:     grants,
		logger:     logger,
	}
}

// RequireUser rejects requests without a valid bearer token and
// attaches the caller's UserContext for downstream handlers. A user
// with no stored grants is still authenticated; they simply hold no
// capabilities and every governed action will be denied.
func (a *Authenticator) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			unauthorized(w, "missing bearer token")
			return
		}

		claims, err := a.parse(token)
		if err != nil {
			a.logger.WarnContext(ctx, "rejected invalid token", "error", err)
			unauthorized(w, "invalid or expired token")
			return
		}

		userID := claims.Subject
		if userID == "" {
			unauthorized(w, "token has no subject")
			return
		}

		stored, err := a.grants.Get(ctx, userID)
		if err != nil && !errors.Is(err, assignment.ErrNotFound) {
			a.logger.ErrorContext(ctx, "grant lookup failed", "user_id", userID, "error", err)
			http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
			return
		}
		stored.UserID = userID

		ctx = WithUserContext(ctx, stored.UserContext(claims.TenantID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.signingKey, nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("token invalid")
	}
	return claims, nil
}

func unauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, `{"error":"unauthorized","error_description":%q}`, description)
}
