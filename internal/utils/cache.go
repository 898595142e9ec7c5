package utils

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
)

// CacheItem 包装缓存数据和过期时间
type CacheItem struct {
	Data      interface{}
	ExpiresAt time.Time
}

// Cache 本地 LRU 缓存，条目带 TTL
type Cache struct {
	lruCache *lru.Cache[string, CacheItem]
	now      func() time.Time
}

func NewCache(size int) (*Cache, error) {
	l, err := lru.New[string, CacheItem](size)
	if err != nil {
		return nil, errors.Wrap(err, "create lru cache")
	}
	return &Cache{lruCache: l, now: time.Now}, nil
}

// Set 设置缓存，TTL 为过期时间
func (c *Cache) Set(key string, data interface{}, ttl time.Duration) {
	c.lruCache.Add(key, CacheItem{
		Data:      data,
		ExpiresAt: c.now().Add(ttl),
	})
}

// Get 获取缓存，不存在或已过期时 ok 为 false
func (c *Cache) Get(key string) (interface{}, bool) {
	val, ok := c.lruCache.Get(key)
	if !ok {
		return nil, false
	}
	if c.now().After(val.ExpiresAt) {
		c.lruCache.Remove(key)
		return nil, false
	}
	return val.Data, true
}

func (c *Cache) Delete(keys ...string) {
	for _, k := range keys {
		c.lruCache.Remove(k)
	}
}

func (c *Cache) Len() int {
	return c.lruCache.Len()
}
