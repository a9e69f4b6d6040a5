package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

func (m *memoryItem) expired() bool {
	return !m.expiresAt.IsZero() && time.Now().After(m.expiresAt)
}

// MemoryCache implements Service with an in-process map. Default cache
// backend; also what tests run against.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]*memoryItem
}

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]*memoryItem)}
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}

	var expiresAt time.Time
	if expiration > 0 {
		expiresAt = time.Now().Add(expiration)
	}

	mc.mu.Lock()
	mc.items[key] = &memoryItem{value: b, expiresAt: expiresAt}
	mc.mu.Unlock()
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mu.RLock()
	item, ok := mc.items[key]
	mc.mu.RUnlock()

	if !ok || item.expired() {
		if ok {
			mc.mu.Lock()
			delete(mc.items, key)
			mc.mu.Unlock()
		}
		return ErrCacheMiss
	}

	return json.Unmarshal(item.value, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	for _, k := range keys {
		delete(mc.items, k)
	}
	mc.mu.Unlock()
	return nil
}

func (mc *MemoryCache) Close() error {
	mc.mu.Lock()
	mc.items = make(map[string]*memoryItem)
	mc.mu.Unlock()
	return nil
}
