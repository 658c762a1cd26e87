// Package history keeps a durable log of builds and recompilations.
package history

import (
	"context"
	"time"
)

// Kind separates full builds from watch-triggered recompiles.
type Kind string

const (
	KindBuild     Kind = "build"
	KindRecompile Kind = "recompile"
)

// Record is one build or recompile outcome.
type Record struct {
	ID        int64             `json:"id"`
	BuildID   string            `json:"build_id"`
	Kind      Kind              `json:"kind"`
	Path      string            `json:"path,omitempty"`
	Outcome   string            `json:"outcome"`
	Duration  time.Duration     `json:"duration"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Store persists records.
type Store interface {
	Append(ctx context.Context, r Record) error
	// Recent returns up to n records, newest first.
	Recent(ctx context.Context, n int) ([]Record, error)
	ByBuild(ctx context.Context, buildID string) ([]Record, error)
	Close() error
}

// NopStore discards records.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error              { return nil }
func (NopStore) Recent(context.Context, int) ([]Record, error)      { return nil, nil }
func (NopStore) ByBuild(context.Context, string) ([]Record, error) { return nil, nil }
func (NopStore) Close() error                                      { return nil }
