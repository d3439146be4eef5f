package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// MemcacheCache backs the Cache interface with memcached.
type MemcacheCache struct {
	client *memcache.Client
	prefix string
}

func NewMemcacheCache(client *memcache.Client, prefix string) *MemcacheCache {
	return &MemcacheCache{client: client, prefix: prefix}
}

func (c *MemcacheCache) Get(_ context.Context, key string) (string, error) {
	item, err := c.client.Get(c.prefix + key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return "", ErrMiss
	}
	if err != nil {
		return "", fmt.Errorf("failed to get from memcached: %w", err)
	}
	return string(item.Value), nil
}

func (c *MemcacheCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	item := &memcache.Item{
		Key:        c.prefix + key,
		Value:      []byte(value),
		Expiration: int32(ttl / time.Second),
	}
	if err := c.client.Set(item); err != nil {
		return fmt.Errorf("failed to set in memcached: %w", err)
	}
	return nil
}
