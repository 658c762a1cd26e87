// Package artifact keeps the most recently written compiled output of every module so the
// handler can serve new code without re-reading or re-importing files.
package artifact

import (
	"os"
	"sync"

	"git.home.luguber.info/inful/tails/internal/foundation/errors"
)

// Artifact is one written version of a module.
type Artifact struct {
	Key     string
	Path    string
	Source  string
	Version uint64
}

// Registry maps module keys to their latest artifact. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	artifacts map[string]Artifact
	version   uint64
}

func NewRegistry() *Registry {
	return &Registry{artifacts: make(map[string]Artifact)}
}

// Put records a newly written version of key and returns it.
func (r *Registry) Put(key, path, source string) Artifact {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.version++
	a := Artifact{Key: key, Path: path, Source: source, Version: r.version}
	r.artifacts[key] = a
	return a
}

// Get returns the latest artifact for key.
func (r *Registry) Get(key string) (Artifact, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.artifacts[key]
	return a, ok
}

// Load returns the artifact for key, reading path from disk when none is registered yet.
func (r *Registry) Load(key, path string) (Artifact, error) {
	if a, ok := r.Get(key); ok {
		return a, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Artifact{}, errors.WrapError(err, errors.CategoryModule, "failed to import module").
			WithContext("module", key).
			WithContext("path", path).
			Build()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// A concurrent Put wins over the disk copy.
	if a, ok := r.artifacts[key]; ok {
		return a, nil
	}
	r.version++
	a := Artifact{Key: key, Path: path, Source: string(data), Version: r.version}
	r.artifacts[key] = a
	return a, nil
}

// Delete forgets key.
func (r *Registry) Delete(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.artifacts, key)
}

// Len returns the number of registered artifacts.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.artifacts)
}
