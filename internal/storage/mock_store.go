package storage

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store for tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	calls   MemoryCalls
}

// MemoryCalls tracks method invocations for test verification.
type MemoryCalls struct {
	Get int
	Put int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Get++
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStore) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Put++
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *MemoryStore) Close() error { return nil }

// Calls returns a snapshot of the invocation counters.
func (m *MemoryStore) Calls() MemoryCalls {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}
