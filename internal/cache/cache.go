// Package cache is a small TTL cache for derived results: index builds,
// forecasts, exchange rates. Entries are keyed by an operation name plus a
// fingerprint of the inputs, so a fresh ingest naturally misses and an
// explicit invalidation can drop one operation without touching the rest.
package cache

import (
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache wraps an expiring LRU. The zero value is not usable; call New.
type Cache[V any] struct {
	lru *expirable.LRU[string, V]
}

// New creates a cache holding up to size entries for at most ttl each.
func New[V any](size int, ttl time.Duration) *Cache[V] {
	return &Cache[V]{lru: expirable.NewLRU[string, V](size, nil, ttl)}
}

func key(op, fingerprint string) string {
	return op + "\x00" + fingerprint
}

// Get returns the cached value for (op, fingerprint) if it is still fresh.
func (c *Cache[V]) Get(op, fingerprint string) (V, bool) {
	return c.lru.Get(key(op, fingerprint))
}

// Set stores a value under (op, fingerprint).
func (c *Cache[V]) Set(op, fingerprint string, v V) {
	c.lru.Add(key(op, fingerprint), v)
}

// Invalidate drops every entry of one operation.
func (c *Cache[V]) Invalidate(op string) {
	prefix := op + "\x00"
	for _, k := range c.lru.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.lru.Remove(k)
		}
	}
}

// Purge drops everything.
func (c *Cache[V]) Purge() {
	c.lru.Purge()
}
