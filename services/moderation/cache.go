package moderation

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// banCache keeps recently read active bans so the hot lookup path
// (connection auth checks) does not hit the store every time.
type banCache struct {
	cache map[uuid.UUID]*cachedBan
	mutex sync.RWMutex
	ttl   time.Duration
}

type cachedBan struct {
	ban       Ban
	timestamp time.Time
}

func newBanCache(ttl time.Duration) *banCache {
	cache := &banCache{
		cache: make(map[uuid.UUID]*cachedBan),
		ttl:   ttl,
	}

	go cache.cleanup()

	return cache
}

// Get returns the cached ban if present and fresh.
func (bc *banCache) Get(playerID uuid.UUID) (Ban, bool) {
	bc.mutex.RLock()
	defer bc.mutex.RUnlock()

	if cached, exists := bc.cache[playerID]; exists {
		if time.Since(cached.timestamp) < bc.ttl {
			return cached.ban, true
		}
	}

	return Ban{}, false
}

// Set stores a copy of the ban.
func (bc *banCache) Set(playerID uuid.UUID, ban Ban) {
	bc.mutex.Lock()
	defer bc.mutex.Unlock()

	bc.cache[playerID] = &cachedBan{
		ban:       ban,
		timestamp: time.Now(),
	}
}

// Delete drops the cached ban after a revoke or expiry.
func (bc *banCache) Delete(playerID uuid.UUID) {
	bc.mutex.Lock()
	defer bc.mutex.Unlock()

	delete(bc.cache, playerID)
}

// cleanup periodically drops stale entries.
func (bc *banCache) cleanup() {
	ticker := time.NewTicker(bc.ttl)
	defer ticker.Stop()

	for range ticker.C {
		bc.mutex.Lock()
		now := time.Now()
		for key, cached := range bc.cache {
			if now.Sub(cached.timestamp) >= bc.ttl {
				delete(bc.cache, key)
			}
		}
		bc.mutex.Unlock()
	}
}
