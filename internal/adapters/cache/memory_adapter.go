package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hk-health-ai/backend/internal/domain/providers"
)

// MemoryAdapter implements CacheProvider with an in-process map. Used for
// single-node deployments and tests; the Redis adapter serves distributed
// setups.
type MemoryAdapter struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	clock   providers.Clock
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryAdapter creates an in-memory cache backend
func NewMemoryAdapter(clock providers.Clock) *MemoryAdapter {
	if clock == nil {
		clock = providers.SystemClock{}
	}
	return &MemoryAdapter{
		entries: make(map[string]memoryEntry),
		clock:   clock,
	}
}

// Get retrieves a value from cache
func (a *MemoryAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	a.mu.RLock()
	entry, ok := a.entries[key]
	a.mu.RUnlock()

	if !ok {
		return nil, providers.ErrCacheMiss
	}
	if a.clock.Now().After(entry.expiresAt) {
		a.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have renewed it
		if cur, ok := a.entries[key]; ok && a.clock.Now().After(cur.expiresAt) {
			delete(a.entries, key)
		}
		a.mu.Unlock()
		return nil, providers.ErrCacheMiss
	}

	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, nil
}

// Set stores a value in cache with expiration
func (a *MemoryAdapter) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	a.mu.Lock()
	a.entries[key] = memoryEntry{
		value:     stored,
		expiresAt: a.clock.Now().Add(expiration),
	}
	a.mu.Unlock()
	return nil
}

// Delete removes a value from cache
func (a *MemoryAdapter) Delete(ctx context.Context, key string) error {
	a.mu.Lock()
	delete(a.entries, key)
	a.mu.Unlock()
	return nil
}

// Exists checks if a key exists in cache
func (a *MemoryAdapter) Exists(ctx context.Context, key string) (bool, error) {
	_, err := a.Get(ctx, key)
	if err == providers.ErrCacheMiss {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeletePrefix removes all keys with the given prefix
func (a *MemoryAdapter) DeletePrefix(ctx context.Context, prefix string) error {
	a.mu.Lock()
	for key := range a.entries {
		if strings.HasPrefix(key, prefix) {
			delete(a.entries, key)
		}
	}
	a.mu.Unlock()
	return nil
}
