package queue

import (
	"github.com/queuectl/queuectl/internal/clock"
)

// Engine is the queue's facade: enqueue, claim, lifecycle transitions,
// and inspection, all grounded on a Store and a Clock.
type Engine struct {
	store Store
	clock clock.Clock
}

// New returns an Engine over store, using the system clock.
func New(store Store) *Engine {
	return &Engine{store: store, clock: clock.System{}}
}

// NewWithClock returns an Engine using a caller-supplied Clock, for
// tests that need to pin "now".
func NewWithClock(store Store, c clock.Clock) *Engine {
	return &Engine{store: store, clock: c}
}
