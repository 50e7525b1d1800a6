package stream

import "sync"

// ring is a bounded, thread-safe history of broadcast events. When full,
// the oldest events are dropped to make room for new ones so a late
// subscriber can catch up on recent activity without unbounded memory.
type ring struct {
	mu       sync.Mutex
	events   []Event
	head     int // next write position
	tail     int // oldest retained event
	count    int
	capacity int
	dropped  int64
}

func newRing(capacity int) *ring {
	if capacity <= 0 {
		capacity = defaultHistory
	}
	return &ring{
		events:   make([]Event, capacity),
		capacity: capacity,
	}
}

// add appends an event, silently dropping the oldest when full.
func (r *ring) add(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count >= r.capacity {
		r.tail = (r.tail + 1) % r.capacity
		r.count--
		r.dropped++
	}
	r.events[r.head] = event
	r.head = (r.head + 1) % r.capacity
	r.count++
}

// recent returns up to limit of the newest retained events, oldest
// first. limit <= 0 returns everything retained.
func (r *ring) recent(limit int) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.count
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Event, n)
	start := (r.head - n + r.capacity) % r.capacity
	for i := 0; i < n; i++ {
		out[i] = r.events[(start+i)%r.capacity]
	}
	return out
}

func (r *ring) droppedCount() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}
