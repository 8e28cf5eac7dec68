package credstore

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultCacheSize = 16

// CachedStore fronts a Store with a bounded cache whose entries expire after
// a fixed TTL. Writes go straight through and invalidate the cached value.
type CachedStore struct {
	next  Store
	cache *expirable.LRU[string, string]
}

func NewCachedStore(next Store, size int, ttl time.Duration) *CachedStore {
	if size <= 0 {
		size = defaultCacheSize
	}
	return &CachedStore{
		next:  next,
		cache: expirable.NewLRU[string, string](size, nil, ttl),
	}
}

func (c *CachedStore) Set(username, password string) error {
	c.cache.Remove(username)
	if err := c.next.Set(username, password); err != nil {
		return err
	}
	c.cache.Add(username, password)
	return nil
}

func (c *CachedStore) Get(username string) (string, error) {
	if password, ok := c.cache.Get(username); ok {
		return password, nil
	}
	password, err := c.next.Get(username)
	if err != nil {
		return "", err
	}
	c.cache.Add(username, password)
	return password, nil
}

func (c *CachedStore) Delete(username string) error {
	c.cache.Remove(username)
	return c.next.Delete(username)
}

// Purge drops every cached entry.
func (c *CachedStore) Purge() {
	c.cache.Purge()
}

// Len returns the number of live cache entries.
func (c *CachedStore) Len() int {
	return c.cache.Len()
}
