// Package gateway is the registration surface offered to extension
// modules: new governed action types, gateway-invokable methods, and
// audit event subscriptions. Action and method registration belong to
// the startup builder phase; once the capability registry is frozen,
// further action registration fails.
package gateway

import (
	"context"
	"fmt"
	"sync"

	"warden/internal/domain"
	"warden/internal/registry"
	"warden/internal/stream"
)

// MethodFunc is an extension-provided method invokable through the
// gateway by name.
type MethodFunc func(ctx context.Context, params map[string]any) (any, error)

// Gateway exposes the extension surface over the registry and stream.
type Gateway struct {
	registry *registry.Registry
	stream   *stream.Broadcaster

	mu      sync.Mutex
	methods map[string]MethodFunc
}

// New constructs the gateway.
func New(reg *registry.Registry, broadcaster *stream.Broadcaster) *Gateway {
	return &Gateway{
		registry: reg,
		stream:   broadcaster,
		methods:  make(map[string]MethodFunc),
	}
}

// RegisterAction maps a new action type to its required capability.
// Returns registry.ErrFrozen once the service is accepting traffic.
func (g *Gateway) RegisterAction(actionType string, capability domain.Capability) error {
	return g.registry.RegisterAction(actionType, capability)
}

// RegisterMethod exposes a named method to gateway callers. Duplicate
// names are an error so modules cannot shadow one another.
func (g *Gateway) RegisterMethod(name string, fn MethodFunc) error {
	if name == "" || fn == nil {
		return fmt.Errorf("method name and function are required")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.methods[name]; ok {
		return fmt.Errorf("method %q already registered", name)
	}
	g.methods[name] = fn
	return nil
}

// Invoke calls a registered method by name.
func (g *Gateway) Invoke(ctx context.Context, name string, params map[string]any) (any, error) {
	g.mu.Lock()
	fn, ok := g.methods[name]
	g.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown gateway method: %s", name)
	}
	return fn(ctx, params)
}

// SubscribeAudit registers a callback for audit stream events and
// returns its unsubscribe handle.
func (g *Gateway) SubscribeAudit(fn func(stream.Event)) (unsubscribe func()) {
	return g.stream.Subscribe(fn)
}
