// Package httptransport is the thin HTTP layer over the governance
// pipeline. Handlers decode, delegate, and encode; business rules live
// in the services.
package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"warden/internal/assignment"
	"warden/internal/domain"
	"warden/internal/ledger"
	"warden/internal/platform/middleware"
	"warden/internal/stream"
)

// Governor is the orchestrator surface the transport needs.
type Governor interface {
	Execute(ctx context.Context, action domain.Action, user domain.UserContext) (domain.ExecutionResult, error)
}

// HealthChecker reports execution-backend readiness.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Handler wires governance endpoints to their services.
type Handler struct {
	governor Governor
	stream   *stream.Broadcaster
	auditDir string
	grants   assignment.Store
	backend  HealthChecker
	logger   *slog.Logger
}

// NewHandler constructs the HTTP handler set.
func NewHandler(governor Governor, broadcaster *stream.Broadcaster, auditDir string, grants assignment.Store, backend HealthChecker, logger *slog.Logger) *Handler {
	return &Handler{
		governor: governor,
		stream:   broadcaster,
		auditDir: auditDir,
		grants:   grants,
		backend:  backend,
		logger:   logger,
	}
}

type executeRequest struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params,omitempty"`
}

// HandleExecute handles POST /actions/execute. Denials and execution
// failures are 200s carrying the structured result; only an audit
// write failure is a 5xx.
func (h *Handler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := middleware.UserContextFrom(ctx)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Type == "" {
		writeError(w, http.StatusBadRequest, "action type is required")
		return
	}

	result, err := h.governor.Execute(ctx, domain.Action{Type: req.Type, Params: req.Params}, user)
	if err != nil {
		// The action may or may not have run; what is certain is that it
		// was not recorded, so the caller must treat it as failed.
		h.logger.ErrorContext(ctx, "governed execution not audited",
			"user_id", user.UserID,
			"action_type", req.Type,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "audit write failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleRecentEvents handles GET /audit/events?limit=N.
func (h *Handler) HandleRecentEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	events := h.stream.Recent(limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// HandleVerify handles POST /audit/verify: replays the full hash chain
// and reports the first broken entry, if any.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	result, err := ledger.Verify(h.auditDir)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "ledger verification failed", "error", err)
		writeError(w, http.StatusInternalServerError, "verification failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type grantsResponse struct {
	UserID       string              `json:"userId"`
	Roles        []string            `json:"roles"`
	Capabilities []domain.Capability `json:"capabilities"`
}

// HandleGetGrants handles GET /grants/{userID}.
func (h *Handler) HandleGetGrants(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	a, err := h.grants.Get(r.Context(), userID)
	if errors.Is(err, assignment.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no grants for user")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "grant lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, grantsResponse{
		UserID:       a.UserID,
		Roles:        a.Roles,
		Capabilities: a.Capabilities,
	})
}

type grantRolesRequest struct {
	Roles []string `json:"roles"`
}

// HandleGrantRoles handles POST /grants/{userID}/roles.
func (h *Handler) HandleGrantRoles(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req grantRolesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Roles) == 0 {
		writeError(w, http.StatusBadRequest, "at least one role is required")
		return
	}
	if err := h.grants.GrantRoles(r.Context(), userID, req.Roles...); err != nil {
		writeError(w, http.StatusInternalServerError, "grant failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleHealth handles GET /healthz, aggregating backend readiness.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok", "backend": "ok"}
	code := http.StatusOK
	if err := h.backend.Health(ctx); err != nil {
		status["status"] = "degraded"
		status["backend"] = err.Error()
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
