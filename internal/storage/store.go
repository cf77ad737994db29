package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Store represents the root storage interface.
type Store interface {
	Close() error
	Accumulators() AccumulatorStore
	ThemeCache() ThemeCacheStore
	Sessions() SessionLogStore
}

// AccumulatorStore persists the per-theme accumulator table.
//
// Replace must swap the whole table atomically: a reader (or a process
// restarted after a crash) observes either the previous table or the new one,
// never a mixture.
type AccumulatorStore interface {
	Load(ctx context.Context) ([]Accumulator, error)
	Replace(ctx context.Context, accumulators []Accumulator) error
}

// ThemeCacheStore maps video identifiers to resolved theme labels.
type ThemeCacheStore interface {
	Get(ctx context.Context, videoID string) (*ThemeEntry, error)
	Put(ctx context.Context, entry ThemeEntry) error
	Delete(ctx context.Context, videoID string) error
}

// SessionLogStore is the append-only log of closed viewing sessions.
type SessionLogStore interface {
	Append(ctx context.Context, record SessionRecord) error
	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]SessionRecord, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
}
