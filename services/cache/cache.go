// Package cache provides the shared cooldown cache. After the remote
// site throttles a fetch, a cooldown entry blocks further scrapes until
// it expires, so one throttled user cannot burn the whole poller.
package cache

import (
	stderrors "errors"
	"time"
)

// ErrMiss is returned when a key is absent or expired.
var ErrMiss = stderrors.New("cache: miss")

// CacheService represents a generic cache service
type CacheService interface {
	// Get retrieves a value from the cache
	Get(key string) ([]byte, error)

	// Set stores a value in the cache with an expiration time
	Set(key string, value []byte, expiration time.Duration) error

	// Delete removes a value from the cache
	Delete(key string) error
}

// New returns a memcached-backed cache when an address is configured
// and a process-local one otherwise.
func New(memcacheAddr string) CacheService {
	if memcacheAddr == "" {
		return NewMemoryCache()
	}
	return NewMemcacheService(memcacheAddr)
}
