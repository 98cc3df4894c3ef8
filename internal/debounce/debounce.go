// Package debounce decides whether a decoded value is a new, reportable scan.
//
// A value is a duplicate when it equals the last accepted value and arrives
// within Window of that acceptance. Anything else is accepted and becomes
// the new reference. The check and the update happen under one lock, so two
// near-simultaneous decodes of the same value cannot both pass.
package debounce

import (
	"sync"
	"time"
)

// Window is the minimum interval before an identical value may be reported again.
const Window = 1200 * time.Millisecond

// State is a snapshot of the deduplicator's memory.
type State struct {
	LastValue      string    `json:"last_value,omitempty"`
	HasLast        bool      `json:"has_last"`
	LastAcceptedAt time.Time `json:"last_accepted_at,omitempty"`
}

// Deduplicator owns the debounce state. The zero value is not usable; call New.
type Deduplicator struct {
	window time.Duration

	mu    sync.Mutex
	state State
}

// New creates a deduplicator using the fixed Window.
func New() *Deduplicator {
	return &Deduplicator{window: Window}
}

// Accept reports whether value observed at now is a new scan. Accepted
// values update the state; rejected values leave it untouched.
func (d *Deduplicator) Accept(value string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state.HasLast && value == d.state.LastValue && now.Sub(d.state.LastAcceptedAt) < d.window {
		return false
	}

	d.state = State{
		LastValue:      value,
		HasLast:        true,
		LastAcceptedAt: now,
	}
	return true
}

// Snapshot returns a copy of the current state.
func (d *Deduplicator) Snapshot() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Reset forgets the last accepted value.
func (d *Deduplicator) Reset() {
	d.mu.Lock()
	d.state = State{}
	d.mu.Unlock()
}
