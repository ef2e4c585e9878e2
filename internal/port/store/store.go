// Package store defines the experience store port (interface).
package store

import (
	"context"

	"github.com/Strob0t/PolicyForge/internal/domain/experience"
)

// Store is the port interface for durable experience persistence.
// Implementations append records in arrival order and return them in the
// same order on load; individual records are never updated or deleted.
type Store interface {
	// Append durably writes one experience record.
	Append(ctx context.Context, e *experience.Experience) error

	// Load returns stored records in insertion order, applying the filter.
	// A malformed individual record is skipped with a warning, never fatal;
	// storage-level failures are fatal for the call.
	Load(ctx context.Context, f experience.Filter) ([]experience.Experience, error)

	// Clear removes all records. Idempotent when the store is already empty.
	Clear(ctx context.Context) error

	// SizeBytes reports the storage footprint of the record set.
	SizeBytes(ctx context.Context) (int64, error)
}
