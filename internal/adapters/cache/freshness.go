package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hk-health-ai/backend/internal/domain/entities"
	"github.com/hk-health-ai/backend/internal/domain/providers"
	"github.com/hk-health-ai/backend/pkg/config"
	apperrors "github.com/hk-health-ai/backend/pkg/errors"
)

// Default per-type TTLs. Unrecognized types fall back to defaultTTL.
const (
	defaultTTL           = 300 * time.Second
	facilitiesTTL        = 300 * time.Second
	aeWaitTimesTTL       = 180 * time.Second
	airQualityTTL        = 600 * time.Second
	healthAdvisoriesTTL  = 1800 * time.Second
	defaultCeilingFactor = 3
)

// envelope wraps a cached value with the instant it was stored, so the
// freshness layer can tell "expired but within the ceiling" apart from
// "gone". The backend expiry runs one TTL past the ceiling; both the TTL
// and ceiling boundaries are computed from StoredAt on read.
type envelope struct {
	StoredAt time.Time `json:"stored_at"`
	Value    []byte    `json:"value"`
}

// FreshnessCache implements providers.FreshnessCache over any
// CacheProvider backend
type FreshnessCache struct {
	backend       providers.CacheProvider
	clock         providers.Clock
	ttls          map[entities.DataType]time.Duration
	ceilingFactor int
}

// NewFreshnessCache builds the freshness cache from configuration.
// Config TTL overrides of zero keep the built-in defaults.
func NewFreshnessCache(backend providers.CacheProvider, clock providers.Clock, cfg *config.CacheConfig) *FreshnessCache {
	if clock == nil {
		clock = providers.SystemClock{}
	}

	ttls := map[entities.DataType]time.Duration{
		entities.DataTypeFacilities:     facilitiesTTL,
		entities.DataTypeAEWaitTimes:    aeWaitTimesTTL,
		entities.DataTypeAirQuality:     airQualityTTL,
		entities.DataTypeHealthAdvisory: healthAdvisoriesTTL,
	}
	ceiling := defaultCeilingFactor

	if cfg != nil {
		for dataType, override := range map[entities.DataType]time.Duration{
			entities.DataTypeFacilities:     cfg.FacilitiesTTL,
			entities.DataTypeAEWaitTimes:    cfg.AEWaitTimesTTL,
			entities.DataTypeAirQuality:     cfg.AirQualityTTL,
			entities.DataTypeHealthAdvisory: cfg.HealthAdvisoryTTL,
		} {
			if override > 0 {
				ttls[dataType] = override
			}
		}
		if cfg.CeilingMultiplier > 0 {
			ceiling = cfg.CeilingMultiplier
		}
	}

	return &FreshnessCache{
		backend:       backend,
		clock:         clock,
		ttls:          ttls,
		ceilingFactor: ceiling,
	}
}

// TTL returns the time-to-live for a data type
func (c *FreshnessCache) TTL(dataType entities.DataType) time.Duration {
	if ttl, ok := c.ttls[dataType]; ok {
		return ttl
	}
	return defaultTTL
}

// Ceiling returns the hard staleness bound for a data type
func (c *FreshnessCache) Ceiling(dataType entities.DataType) time.Duration {
	return time.Duration(c.ceilingFactor) * c.TTL(dataType)
}

func cacheKey(dataType entities.DataType, key string) string {
	return fmt.Sprintf("rt:%s:%s", dataType, key)
}

// Get returns the cached value and its freshness. Backend failures and
// undecodable entries read as unavailable; the cache never invents data.
// An entry found past the hard ceiling is evicted and reported with a
// STALE_BEYOND_CEILING error so callers can tell "had it, too old" apart
// from a plain miss.
func (c *FreshnessCache) Get(ctx context.Context, dataType entities.DataType, key string) ([]byte, providers.Freshness, error) {
	raw, err := c.backend.Get(ctx, cacheKey(dataType, key))
	if err == providers.ErrCacheMiss {
		return nil, providers.FreshnessUnavailable, nil
	}
	if err != nil {
		return nil, providers.FreshnessUnavailable, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// Corrupt entry: drop it rather than serving garbage
		_ = c.backend.Delete(ctx, cacheKey(dataType, key))
		return nil, providers.FreshnessUnavailable, nil
	}

	age := c.clock.Now().Sub(env.StoredAt)
	switch {
	case age < c.TTL(dataType):
		return env.Value, providers.FreshnessFresh, nil
	case age < c.Ceiling(dataType):
		return env.Value, providers.FreshnessStale, nil
	default:
		// Past the hard ceiling: evict, never serve
		_ = c.backend.Delete(ctx, cacheKey(dataType, key))
		return nil, providers.FreshnessUnavailable, apperrors.NewStaleBeyondCeilingError(string(dataType), key)
	}
}

// Put stores a value and resets its expiry to now + TTL. The backend
// entry lives one TTL past the ceiling: within the ceiling it backs
// stale-but-bounded reads, and in the grace window after it lets Get
// report the ceiling instead of a plain miss.
func (c *FreshnessCache) Put(ctx context.Context, dataType entities.DataType, key string, value []byte) error {
	env := envelope{
		StoredAt: c.clock.Now(),
		Value:    value,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return c.backend.Set(ctx, cacheKey(dataType, key), raw, c.Ceiling(dataType)+c.TTL(dataType))
}

// Invalidate drops an entry
func (c *FreshnessCache) Invalidate(ctx context.Context, dataType entities.DataType, key string) error {
	return c.backend.Delete(ctx, cacheKey(dataType, key))
}

var _ providers.FreshnessCache = (*FreshnessCache)(nil)
