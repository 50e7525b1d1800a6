// Package stream fans new audit entries and derived alerts out to
// in-process subscribers and an external pub/sub channel. Delivery is
// best-effort and non-blocking: a slow or panicking subscriber never
// delays the audit-append path or starves other subscribers.
package stream

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"warden/internal/ledger"
)

const (
	defaultHistory  = 100
	externalTimeout = 2 * time.Second
)

// Channel names pushed to connected dashboards.
const (
	ChannelUpdate    = "audit-update"
	ChannelAlert     = "audit-alert"
	ChannelAnalytics = "audit-analytics-refresh"
)

// EventType distinguishes entry broadcasts from derived alerts.
type EventType string

const (
	EventNewEntry EventType = "new-entry"
	EventAlert    EventType = "alert"
)

// Severity grades derived alerts for dashboard routing.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event is the ephemeral broadcast payload derived from an audit entry.
// It is retained only in the bounded history ring.
type Event struct {
	Type      EventType     `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	Severity  Severity      `json:"severity,omitempty"`
	Message   string        `json:"message,omitempty"`
	Entry     *ledger.Entry `json:"entry,omitempty"`
}

// Publisher pushes events to an external broadcast channel, e.g. a
// redis pub/sub topic consumed by dashboards. Implementations are
// best-effort; errors are logged, never propagated to the audit path.
type Publisher interface {
	Publish(ctx context.Context, channel string, event Event) error
}

// Broadcaster owns the subscriber list and the recent-event history.
type Broadcaster struct {
	logger   *slog.Logger
	external Publisher
	history  *ring
	now      func() time.Time

	mu     sync.Mutex
	subs   map[int]func(Event)
	nextID int
}

// Option configures the Broadcaster.
type Option func(*Broadcaster)

// WithExternal attaches an external publisher for dashboard delivery.
func WithExternal(p Publisher) Option {
	return func(b *Broadcaster) { b.external = p }
}

// WithHistory overrides the recent-event buffer capacity.
func WithHistory(capacity int) Option {
	return func(b *Broadcaster) { b.history = newRing(capacity) }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Broadcaster) { b.now = now }
}

// New constructs a broadcaster with a bounded history of 100 events.
func New(logger *slog.Logger, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		logger:  logger,
		history: newRing(defaultHistory),
		now:     time.Now,
		subs:    make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a callback for every subsequent event and returns
// its unsubscribe handle. Callbacks run on their own goroutine per
// event; implementations needing ordering must serialize themselves.
func (b *Broadcaster) Subscribe(fn func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// PublishEntry broadcasts a freshly appended entry and emits the alerts
// its contents warrant. Derivation is deterministic and evaluated
// independently per condition: a denial raises one warning alert and a
// failed execution raises one critical alert.
func (b *Broadcaster) PublishEntry(entry ledger.Entry) {
	b.deliver(Event{
		Type:      EventNewEntry,
		Timestamp: b.now(),
		Entry:     &entry,
	}, entry.TenantID, ChannelUpdate, ChannelAnalytics)

	if !entry.Permission.Allowed {
		b.PublishAlert(SeverityWarning, "action denied: "+entry.Permission.Reason, &entry)
	}
	// Execution failures only: a denied action never reached the backend,
	// and its denial already raised the warning above.
	if entry.Permission.Allowed && !entry.Result.Success && entry.Result.Error != "" {
		b.PublishAlert(SeverityCritical, "action failed: "+entry.Result.Error, &entry)
	}
}

// PublishAlert broadcasts an alert, optionally tied to the entry that
// produced it.
func (b *Broadcaster) PublishAlert(severity Severity, message string, entry *ledger.Entry) {
	tenant := ""
	if entry != nil {
		tenant = entry.TenantID
	}
	b.deliver(Event{
		Type:      EventAlert,
		Timestamp: b.now(),
		Severity:  severity,
		Message:   message,
		Entry:     entry,
	}, tenant, ChannelAlert)
}

// Recent returns up to limit of the newest retained events, oldest
// first, so a late subscriber can catch up.
func (b *Broadcaster) Recent(limit int) []Event {
	return b.history.recent(limit)
}

// Dropped reports how many events aged out of the history buffer.
func (b *Broadcaster) Dropped() int64 {
	return b.history.droppedCount()
}

// deliver records the event in the history ring, then pushes it to every
// subscriber and the external channels without blocking the caller.
func (b *Broadcaster) deliver(event Event, tenant string, channels ...string) {
	b.history.add(event)

	b.mu.Lock()
	callbacks := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		callbacks = append(callbacks, fn)
	}
	b.mu.Unlock()

	for _, fn := range callbacks {
		go b.invoke(fn, event)
	}

	if b.external != nil {
		go b.publishExternal(event, tenant, channels)
	}
}

// invoke runs one subscriber callback inside its own failure boundary
// so a broken consumer cannot break delivery to the others.
func (b *Broadcaster) invoke(fn func(Event), event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("audit subscriber panicked", "panic", r, "event_type", event.Type)
		}
	}()
	fn(event)
}

func (b *Broadcaster) publishExternal(event Event, tenant string, channels []string) {
	ctx, cancel := context.WithTimeout(context.Background(), externalTimeout)
	defer cancel()

	for _, channel := range channels {
		if err := b.external.Publish(ctx, channel, event); err != nil {
			b.logger.Warn("external audit publish failed",
				"channel", channel, "error", err)
		}
		// Room-scoped copy for tenant dashboards.
		if tenant != "" {
			scoped := channel + ":" + tenant
			if err := b.external.Publish(ctx, scoped, event); err != nil {
				b.logger.Warn("external audit publish failed",
					"channel", scoped, "error", err)
			}
		}
	}
}
