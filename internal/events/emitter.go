// Package events provides the string-keyed emitters the module handler uses to announce
// completed recompilations (for example "modify-/pages/index.js").
package events

import (
	"sync"
	"sync/atomic"
)

// Listener receives the event name and its payload, the cleaned module path.
type Listener func(name, payload string)

// Emitter dispatches named events to registered listeners. Listeners run synchronously on
// the emitting goroutine, outside the emitter's lock.
type Emitter struct {
	mu       sync.RWMutex
	named    map[string]map[uint64]Listener
	catchAll map[uint64]Listener
	nextID   atomic.Uint64
}

func NewEmitter() *Emitter {
	return &Emitter{
		named:    make(map[string]map[uint64]Listener),
		catchAll: make(map[uint64]Listener),
	}
}

// On registers fn for one event name and returns its id.
func (e *Emitter) On(name string, fn Listener) uint64 {
	id := e.nextID.Add(1)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.named[name] == nil {
		e.named[name] = make(map[uint64]Listener)
	}
	e.named[name][id] = fn
	return id
}

// OnAny registers fn for every event.
func (e *Emitter) OnAny(fn Listener) uint64 {
	id := e.nextID.Add(1)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.catchAll[id] = fn
	return id
}

// Off removes the listener with id.
func (e *Emitter) Off(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.catchAll, id)
	for name, ls := range e.named {
		if _, ok := ls[id]; ok {
			delete(ls, id)
			if len(ls) == 0 {
				delete(e.named, name)
			}
			return
		}
	}
}

// Emit calls every listener for name and every catch-all listener. It reports whether any
// listener was called.
func (e *Emitter) Emit(name, payload string) bool {
	e.mu.RLock()
	targets := make([]Listener, 0, len(e.named[name])+len(e.catchAll))
	for _, fn := range e.named[name] {
		targets = append(targets, fn)
	}
	for _, fn := range e.catchAll {
		targets = append(targets, fn)
	}
	e.mu.RUnlock()

	for _, fn := range targets {
		fn(name, payload)
	}
	return len(targets) > 0
}

// RemoveAllListeners detaches every listener.
func (e *Emitter) RemoveAllListeners() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.named = make(map[string]map[uint64]Listener)
	e.catchAll = make(map[uint64]Listener)
}

// ListenerCount returns the number of registered listeners.
func (e *Emitter) ListenerCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n := len(e.catchAll)
	for _, ls := range e.named {
		n += len(ls)
	}
	return n
}
