// Package store persists fetched census artifacts between runs so repeat
// invocations skip the network: raw variable catalogs with a TTL, and
// boundary geometry sets encoded as EWKB.
package store

import (
	"context"
	"time"
)

// CacheStats summarizes cache contents for the cache status command.
type CacheStats struct {
	Path         string
	Catalogs     int   // unexpired catalog documents
	CatalogBytes int64 // total payload size
	BoundarySets int   // cached (year, geography, scope) sets
	Boundaries   int   // geometries across all sets
}

// Store is the persistence interface behind the read-through caches.
// GetCatalog/PutCatalog satisfy census.CatalogStore; GetBoundaries/
// PutBoundaries satisfy tiger.GeometryStore.
type Store interface {
	// Variable catalog cache
	GetCatalog(ctx context.Context, year int, dataset string) ([]byte, bool, error)
	PutCatalog(ctx context.Context, year int, dataset string, payload []byte, ttl time.Duration) error

	// Boundary geometry cache
	GetBoundaries(ctx context.Context, year int, geography, scope string) (map[string][]byte, bool, error)
	PutBoundaries(ctx context.Context, year int, geography, scope string, encoded map[string][]byte) error

	// Housekeeping
	DeleteExpired(ctx context.Context) (int, error)
	Stats(ctx context.Context) (*CacheStats, error)
	Clear(ctx context.Context) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
