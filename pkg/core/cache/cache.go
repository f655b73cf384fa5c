// Package cache 带过期时间的进程内键值缓存
package cache

import (
	"sort"
	"sync"
	"time"
)

// Cache 键值缓存接口（对外导出）
type Cache interface {
	// Set 设置缓存值
	// ttl <= 0 时使用默认有效期
	Set(key string, value any, ttl time.Duration) error

	// Get 获取缓存值
	// 返回: 值和是否存在（已过期视为不存在）
	Get(key string) (any, bool)

	// Delete 删除缓存值
	Delete(key string) error

	// Clear 清空所有缓存
	Clear() error
}

// entry 缓存条目
type entry struct {
	value    any
	expireAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && now.After(e.expireAt)
}

// MemoryCache 内存缓存实现（对外导出）
type MemoryCache struct {
	mu         sync.RWMutex
	items      map[string]*entry
	defaultTTL time.Duration
	now        func() time.Time

	stop chan struct{}
	once sync.Once
}

// NewMemoryCache 创建内存缓存（对外导出）
// defaultTTL: 默认有效期，0 表示永不过期
// cleanInterval: 过期清理间隔，0 表示不启动清理协程（过期条目在读取时剔除）
func NewMemoryCache(defaultTTL, cleanInterval time.Duration) *MemoryCache {
	c := &MemoryCache{
		items:      make(map[string]*entry),
		defaultTTL: defaultTTL,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	if cleanInterval > 0 {
		go c.cleanupExpired(cleanInterval)
	}
	return c
}

// Set 设置缓存值
func (c *MemoryCache) Set(key string, value any, ttl time.Duration) error {
	if key == "" {
		return nil // 空key，忽略
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry{value: value}
	if ttl > 0 {
		e.expireAt = c.now().Add(ttl)
	}
	c.items[key] = e
	return nil
}

// Get 获取缓存值
func (c *MemoryCache) Get(key string) (any, bool) {
	if key == "" {
		return nil, false
	}

	c.mu.RLock()
	e, exists := c.items[key]
	c.mu.RUnlock()
	if !exists {
		return nil, false
	}

	if e.expired(c.now()) {
		c.mu.Lock()
		// 期间可能已被覆盖
		if cur, ok := c.items[key]; ok && cur == e {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// GetString 获取字符串值，不存在或类型不符返回空串
func (c *MemoryCache) GetString(key string) string {
	v, ok := c.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Delete 删除缓存值
func (c *MemoryCache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

// Clear 清空所有缓存
func (c *MemoryCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*entry)
	return nil
}

// Keys 未过期的键（排序）
func (c *MemoryCache) Keys() []string {
	now := c.now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.items))
	for k, e := range c.items {
		if !e.expired(now) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Len 条目数（含尚未清理的过期条目）
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close 停止清理协程
func (c *MemoryCache) Close() {
	c.once.Do(func() { close(c.stop) })
}

// purge 清理过期条目，返回清理数量
func (c *MemoryCache) purge() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for key, e := range c.items {
		if e.expired(now) {
			delete(c.items, key)
			n++
		}
	}
	return n
}

// cleanupExpired 定期清理过期缓存
func (c *MemoryCache) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.purge()
		case <-c.stop:
			return
		}
	}
}
