package providers

import (
	"context"
	"errors"
	"time"

	"github.com/hk-health-ai/backend/internal/domain/entities"
)

// ErrCacheMiss is returned by CacheProvider.Get when a key is absent
var ErrCacheMiss = errors.New("cache: key not found")

// CacheProvider defines the interface for raw caching operations.
// Backends are swappable (in-memory for single-node, Redis for
// distributed deployments).
type CacheProvider interface {
	// Get retrieves a value from cache; ErrCacheMiss when absent
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists in cache
	Exists(ctx context.Context, key string) (bool, error)
}

// Freshness classifies a freshness-cache read
type Freshness int

const (
	// FreshnessFresh means the entry is within its TTL
	FreshnessFresh Freshness = iota
	// FreshnessStale means the TTL elapsed but the entry is still within
	// the staleness ceiling; the caller decides whether to serve it
	// labeled as stale or trigger a refresh
	FreshnessStale
	// FreshnessUnavailable means there is no servable entry: either none
	// was ever stored or the stored one is past the hard ceiling
	FreshnessUnavailable
)

// FreshnessCache is the typed cache with per-data-type TTLs and a hard
// staleness ceiling. Values past the ceiling are never returned, even
// labeled stale.
type FreshnessCache interface {
	// Get returns the cached value and its freshness. The value is nil
	// iff freshness is FreshnessUnavailable. An entry aged past the hard
	// ceiling reads as unavailable with a STALE_BEYOND_CEILING error.
	Get(ctx context.Context, dataType entities.DataType, key string) ([]byte, Freshness, error)

	// Put stores a value and resets its expiry to now + TTL(dataType)
	Put(ctx context.Context, dataType entities.DataType, key string, value []byte) error

	// Invalidate drops an entry
	Invalidate(ctx context.Context, dataType entities.DataType, key string) error

	// TTL returns the time-to-live for a data type
	TTL(dataType entities.DataType) time.Duration
}
