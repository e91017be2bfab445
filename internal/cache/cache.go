// Package cache memoizes values keyed by string in a bounded LRU.
package cache

import (
	lru "github.com/hashicorp/golang-lru"
)

// DefaultSize bounds a cache created with a non-positive size.
const DefaultSize = 4096

// Cache stores values keyed by string. It is safe for concurrent use.
type Cache[T any] struct {
	items *lru.Cache
}

// New creates a cache holding at most size values.
func New[T any](size int) *Cache[T] {
	if size <= 0 {
		size = DefaultSize
	}

	items, err := lru.New(size)
	if err != nil {
		panic(err) // unreachable, size is positive
	}

	return &Cache[T]{items: items}
}

// Get returns a cached value and whether it exists.
func (c *Cache[T]) Get(key string) (T, bool) {
	var zero T
	if c == nil {
		return zero, false
	}

	value, ok := c.items.Get(key)
	if !ok {
		return zero, false
	}

	typed, ok := value.(T)

	return typed, ok
}

// Set stores a value in the cache, evicting the least recently used entry when full.
func (c *Cache[T]) Set(key string, value T) {
	if c == nil {
		return
	}

	c.items.Add(key, value)
}

// Len returns the number of cached values.
func (c *Cache[T]) Len() int {
	if c == nil {
		return 0
	}

	return c.items.Len()
}
