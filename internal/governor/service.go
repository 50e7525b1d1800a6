// Package governor sequences the per-request governance pipeline:
// permission check, execution delegation, audit append, broadcast.
// Denials short-circuit before the backend is ever contacted; every
// path, allowed or denied, lands exactly one audit entry.
package governor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"warden/internal/domain"
	"warden/internal/governor/metrics"
	"warden/internal/ledger"
	"warden/internal/permission"
)

// DefaultExecutionTimeout bounds the backend call when no tighter
// deadline is configured.
const DefaultExecutionTimeout = 30 * time.Second

// Executor delegates one action to the execution backend.
type Executor interface {
	Execute(ctx context.Context, action domain.Action) (domain.ExecutionResult, error)
}

// Appender is the ledger surface the governor needs.
type Appender interface {
	Append(ctx context.Context, e ledger.Entry) (ledger.Entry, error)
}

// Broadcaster fans a freshly appended entry out to subscribers.
type Broadcaster interface {
	PublishEntry(entry ledger.Entry)
}

// Service is the governance orchestrator.
type Service struct {
	resolver *permission.Resolver
	ledger   Appender
	stream   Broadcaster
	backend  Executor
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures the Service.
type Option func(*Service)

// WithExecutionTimeout bounds the backend call per request.
func WithExecutionTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithMetrics attaches the prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs the governor.
func New(resolver *permission.Resolver, appender Appender, stream Broadcaster, backend Executor, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		resolver: resolver,
		ledger:   appender,
		stream:   stream,
		backend:  backend,
		timeout:  DefaultExecutionTimeout,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute governs one action on behalf of user.
//
// Denials and execution failures come back as data in the result, never
// as an error. The only error this method returns is an audit-append
// failure after the ledger's retry: an action that cannot be audited
// must not be reported as successfully governed.
func (s *Service) Execute(ctx context.Context, action domain.Action, user domain.UserContext) (domain.ExecutionResult, error) {
	start := time.Now()

	decision := s.resolver.Check(action, user)

	var result domain.ExecutionResult
	if decision.Allowed {
		result = s.delegate(ctx, action)
	} else {
		result = domain.ExecutionResult{
			Success: false,
			Error:   "permission denied: " + decision.Reason,
		}
	}

	latency := time.Since(start)
	entry := ledger.Entry{
		UserID:   user.UserID,
		TenantID: user.TenantID,
		Action: ledger.ActionRecord{
			Type:   action.Type,
			Params: action.Params,
		},
		Result: ledger.ResultRecord{
			Success: result.Success,
			Error:   result.Error,
		},
		Permission: ledger.PermissionRecord{
			Allowed: decision.Allowed,
			Reason:  decision.Reason,
		},
		Metadata: ledger.Metadata{LatencyMs: latency.Milliseconds()},
	}

	written, err := s.ledger.Append(ctx, entry)
	if err != nil {
		s.metrics.IncrementAppendFailure()
		s.logger.ErrorContext(ctx, "audit append failed",
			"user_id", user.UserID,
			"action_type", action.Type,
			"error", err,
		)
		return domain.ExecutionResult{}, fmt.Errorf("audit append: %w", err)
	}

	s.stream.PublishEntry(written)

	s.metrics.IncrementOutcome(outcome(decision, result), action.Type)
	s.metrics.ObserveExecuteLatency(time.Since(start))
	s.logger.InfoContext(ctx, "action governed",
		"user_id", user.UserID,
		"action_type", action.Type,
		"allowed", decision.Allowed,
		"success", result.Success,
		"entry_id", written.ID,
		"duration_ms", latency.Milliseconds(),
	)

	return result, nil
}

// delegate calls the execution backend under the configured timeout and
// converts every failure mode, timeouts and connection errors included,
// into a structured failure result.
func (s *Service) delegate(ctx context.Context, action domain.Action) domain.ExecutionResult {
	execCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.backend.Execute(execCtx, action)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.ExecutionResult{
				Success: false,
				Error:   fmt.Sprintf("execution timed out after %s", s.timeout),
			}
		}
		return domain.ExecutionResult{Success: false, Error: err.Error()}
	}
	return result
}

func outcome(decision domain.PermissionDecision, result domain.ExecutionResult) string {
	switch {
	case !decision.Allowed:
		return "denied"
	case result.Success:
		return "succeeded"
	default:
		return "failed"
	}
}
