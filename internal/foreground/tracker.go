// Package foreground counts user-initiated requests that are currently in
// flight. Background work consults the tracker and blocks on its quiet
// signal instead of polling, so pre-warming never competes with a live
// request for the inference gate.
package foreground

import "sync"

type Tracker struct {
	mu    sync.Mutex
	n     int
	quiet chan struct{} // closed while n == 0
}

func NewTracker() *Tracker {
	t := &Tracker{quiet: make(chan struct{})}
	close(t.quiet)
	return t
}

// Enter marks one foreground request active. Each Enter must be paired
// with exactly one Leave.
func (t *Tracker) Enter() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.n == 0 {
		t.quiet = make(chan struct{})
	}
	t.n++
}

// Leave marks one foreground request finished.
func (t *Tracker) Leave() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.n == 0 {
		return
	}
	t.n--
	if t.n == 0 {
		close(t.quiet)
	}
}

// Active reports whether any foreground request is in flight.
func (t *Tracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.n > 0
}

// Quiet returns a channel that is closed while the count is zero. The
// channel is replaced when the count rises again, so callers woken from a
// wait must re-check Active before proceeding.
func (t *Tracker) Quiet() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.quiet
}
