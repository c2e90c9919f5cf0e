// Package dedupe tracks seen delivery ids for idempotency decisions.
//
// Whether a repeated delivery is short-circuited is a policy decision, not a
// property of the tracker: the source may legitimately re-send a delivery
// after a failure, so enforcement is configurable.
package dedupe

import (
	"context"
	"fmt"
	"sync"
)

// Policy decides how a repeated delivery id is treated.
type Policy int

const (
	// PolicyOff ignores delivery ids entirely.
	PolicyOff Policy = iota
	// PolicyObserve records ids and reports duplicates but still processes
	// them. This matches the original behavior of capturing the id without
	// acting on it, made visible.
	PolicyObserve
	// PolicyEnforce short-circuits duplicate deliveries to a success
	// response without reprocessing.
	PolicyEnforce
)

func (p Policy) String() string {
	switch p {
	case PolicyOff:
		return "off"
	case PolicyObserve:
		return "observe"
	case PolicyEnforce:
		return "enforce"
	default:
		return "unknown"
	}
}

// ParsePolicy maps a configuration string onto a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "off":
		return PolicyOff, nil
	case "", "observe":
		return PolicyObserve, nil
	case "enforce":
		return PolicyEnforce, nil
	default:
		return PolicyOff, fmt.Errorf("unknown dedupe policy: %q", s)
	}
}

// Tracker records seen delivery ids.
type Tracker interface {
	// SeenAndRecord atomically checks whether id was seen and records it if
	// not. Returns true if id was already seen.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord removes an id, allowing the delivery to be retried after a
	// processing failure.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// Option applies a configuration option to the in-memory tracker.
type Option func(*inMemoryTracker)

// WithMaxSize bounds the number of retained ids. Oldest ids are evicted
// first once the bound is reached. Zero or negative means unbounded.
func WithMaxSize(n int) Option {
	return func(t *inMemoryTracker) {
		t.maxSize = n
	}
}

// inMemoryTracker is a bounded seen-set with FIFO eviction. Delivery volume
// is one id per webhook call, so a ring of ids alongside the map is enough.
type inMemoryTracker struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	order   []string // insertion order, oldest first
	maxSize int
}

// NewInMemoryTracker creates a tracker with a default bound of 50k ids.
func NewInMemoryTracker(opts ...Option) Tracker {
	t := &inMemoryTracker{
		maxSize: 50_000,
		seen:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *inMemoryTracker) SeenAndRecord(_ context.Context, id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.seen[id]; ok {
		return true
	}

	if t.maxSize > 0 && len(t.seen) >= t.maxSize {
		oldest := t.order[0]
		t.order = t.order[1:]
		delete(t.seen, oldest)
	}

	t.seen[id] = struct{}{}
	t.order = append(t.order, id)
	return false
}

func (t *inMemoryTracker) Unrecord(_ context.Context, id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.seen[id]; !ok {
		return
	}
	delete(t.seen, id)
	for i, v := range t.order {
		if v == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

func (t *inMemoryTracker) Size() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return int64(len(t.seen))
}
