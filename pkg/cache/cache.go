// Package cache 提供带 TTL 的泛型内存缓存
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache 只读视角的缓存接口
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V)
	Delete(key K)
	Len() int
}

// InMemoryCache 带 TTL 的内存缓存。
// 读路径惰性淘汰过期项，另有后台清扫防止只写不读的键堆积。
type InMemoryCache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]entry[V]
	ttl     time.Duration

	stopC    chan struct{}
	stopOnce sync.Once
}

// NewInMemoryCache 创建缓存，ttl 为每个条目的存活时长
func NewInMemoryCache[K comparable, V any](ttl time.Duration) *InMemoryCache[K, V] {
	c := &InMemoryCache[K, V]{
		entries: make(map[K]entry[V]),
		ttl:     ttl,
		stopC:   make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// Get 读取未过期的条目
func (c *InMemoryCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || time.Now().After(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set 写入条目（重置 TTL）
func (c *InMemoryCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Delete 删除条目
func (c *InMemoryCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len 返回条目数（含尚未清扫的过期项）
func (c *InMemoryCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stop 停止后台清扫
func (c *InMemoryCache[K, V]) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopC)
	})
}

func (c *InMemoryCache[K, V]) cleanupLoop() {
	interval := c.ttl
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopC:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for k, e := range c.entries {
				if now.After(e.expiresAt) {
					delete(c.entries, k)
				}
			}
			c.mu.Unlock()
		}
	}
}
