package cache

import "time"

// Cache is the interface for caching expensive-to-build values, loaded
// tapes above all. Costs let heavy entries (a tape is as heavy as its
// event count) evict many light ones.
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns (value, true) if found, (nil, false) if not found.
	Get(key string) (interface{}, bool)

	// Set stores a value with a TTL at unit cost.
	Set(key string, value interface{}, ttl time.Duration) bool

	// SetWithCost stores a value with a TTL and an explicit cost against
	// the cache's capacity budget.
	SetWithCost(key string, value interface{}, cost int64, ttl time.Duration) bool

	// Delete removes a value from the cache.
	Delete(key string)

	// Clear removes all values from the cache.
	Clear()

	// Close closes the cache and releases resources.
	Close()
}
