// Package storage provides the shared cache that remote modules are kept in between builds.
// Entries are addressed by the SHA-256 of the remote URL, the same digest that names the
// module under the build directory.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrNotFound is returned by Get when no entry exists for a key.
var ErrNotFound = errors.New("object not found")

// Store keeps remote module bodies by key.
type Store interface {
	// Get returns the data for key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put stores data under key, replacing any previous entry.
	Put(ctx context.Context, key string, data []byte) error
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}

// Key returns the content address of a remote URL.
func Key(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

// NopStore stores nothing; every lookup misses.
type NopStore struct{}

func (NopStore) Get(context.Context, string) ([]byte, error)   { return nil, ErrNotFound }
func (NopStore) Put(context.Context, string, []byte) error     { return nil }
func (NopStore) Exists(context.Context, string) (bool, error) { return false, nil }
func (NopStore) Close() error                                 { return nil }
