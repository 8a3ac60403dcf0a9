// Package reactor provides the process-wide pieces that, in the C
// predecessor, belonged to the single-threaded timer/IO event loop:
// a cached "current time" and a supervised-goroutine helper. pgqd has
// no fd-multiplexer of its own — each pgqsock.Socket wait runs its
// blocking pgx call on a dedicated goroutine and reports back through
// a channel the owning worker alone reads — but the cached clock and
// the goroutine-supervision discipline below still matter: they are
// what every worker shares instead of re-deriving it independently.
package reactor

import (
	"sync"
	"time"
)

// Clock caches time.Now() and is refreshed on a fixed tick rather than
// once per dispatch pass, since there is no single pass to anchor to
// in a goroutine-per-worker design. All workers read the same snapshot
// between refreshes, which is the property the C loop's "invalidated
// at the start of every dispatch pass" cache existed to provide.
type Clock struct {
	mu  sync.RWMutex
	now time.Time
}

// NewClock returns a Clock seeded with the current time.
func NewClock() *Clock {
	c := &Clock{}
	c.Refresh()
	return c
}

// Now returns the cached time.
func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Refresh takes a fresh snapshot of time.Now().
func (c *Clock) Refresh() {
	c.mu.Lock()
	c.now = time.Now()
	c.mu.Unlock()
}

// Run refreshes the clock every interval until stop is closed.
// Intended to be launched once per process with Supervise.
func (c *Clock) Run(stop <-chan struct{}, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.Refresh()
		case <-stop:
			return
		}
	}
}
