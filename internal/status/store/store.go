// Package store holds the TTL-bounded status cache implementations.
package store

import (
	"context"

	"veristat/internal/status/models"
	"veristat/pkg/domain"
	"veristat/pkg/platform/sentinel"
)

// ErrNotFound is returned when no fresh entry exists for a key. A stale
// entry behaves as absent without being deleted; only Put overwrites it.
var ErrNotFound = sentinel.ErrNotFound

// Error Contract:
// All cache methods follow this pattern:
// - Get returns ErrNotFound (wrapped) when the entry is absent or stale
// - nil for successful operations
// - wrapped errors with context for infrastructure failures (Redis outages)
//
// Cache is the freshness-bounded status store. Implementations must make Put
// an atomic per-key replacement; entries are never partially mutated.
type Cache interface {
	// Get returns the cached status only while it is fresh.
	Get(ctx context.Context, id domain.ClientID) (models.StatusInfo, error)

	// Put inserts or overwrites the entry, stamping the current time.
	Put(ctx context.Context, id domain.ClientID, status models.StatusInfo) error

	// Invalidate removes the entry immediately, regardless of freshness.
	Invalidate(ctx context.Context, id domain.ClientID) error

	// Clear removes all entries.
	Clear(ctx context.Context) error

	// Snapshot returns the fresh subset of the requested IDs.
	Snapshot(ctx context.Context, ids []domain.ClientID) (map[domain.ClientID]models.StatusInfo, error)
}
