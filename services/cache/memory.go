package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryService implements CacheService in process with go-cache.
// State is not shared between processes.
type MemoryService struct {
	store *gocache.Cache
}

// NewMemoryService creates an in-process cache that sweeps expired keys every cleanup interval
func NewMemoryService(cleanup time.Duration) *MemoryService {
	return &MemoryService{
		store: gocache.New(gocache.NoExpiration, cleanup),
	}
}

// Get retrieves a value from the cache
func (m *MemoryService) Get(key string) ([]byte, error) {
	v, ok := m.store.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, ErrMiss
	}
	return b, nil
}

// Set stores a copy of value; a zero expiration keeps it until deleted
func (m *MemoryService) Set(key string, value []byte, expiration time.Duration) error {
	if expiration <= 0 {
		expiration = gocache.NoExpiration
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	m.store.Set(key, cp, expiration)
	return nil
}

// Delete removes a value from the cache
func (m *MemoryService) Delete(key string) error {
	m.store.Delete(key)
	return nil
}
