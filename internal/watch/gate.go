package watch

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Gate is a per-path debounce flag. A path is held from Acquire until the window after
// Release has elapsed; events for a held path are dropped.
type Gate struct {
	mu     sync.Mutex
	held   map[string]struct{}
	window time.Duration
	clock  clockwork.Clock
}

// NewGate creates a gate. A nil clock uses the real clock.
func NewGate(window time.Duration, clock clockwork.Clock) *Gate {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Gate{held: make(map[string]struct{}), window: window, clock: clock}
}

// Acquire marks path as held. It returns false when the path is already held.
func (g *Gate) Acquire(path string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.held[path]; ok {
		return false
	}
	g.held[path] = struct{}{}
	return true
}

// Held reports whether events for path are currently suppressed.
func (g *Gate) Held(path string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.held[path]
	return ok
}

// Release frees path once the debounce window has passed.
func (g *Gate) Release(path string) {
	g.clock.AfterFunc(g.window, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.held, path)
	})
}
