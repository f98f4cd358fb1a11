// Package reconcile holds the shared cache and rollback utilities the view
// components build on. An entity cache is an in-memory ordered copy of one
// entity kind, reconciled from full reads, change events and optimistic
// local edits.
package reconcile

import (
	"sync"
)

// Cache is an ordered, identifier-keyed collection of one entity kind.
// Event application through Upsert/Update/Remove is idempotent and
// order-tolerant. All methods are safe for concurrent use.
type Cache[T any] struct {
	mu    sync.RWMutex
	items []T
	id    func(T) string
}

// NewCache creates a cache keyed by the given identifier function.
func NewCache[T any](id func(T) string) *Cache[T] {
	return &Cache[T]{id: id}
}

// Replace swaps the entire contents for an authoritative baseline.
func (c *Cache[T]) Replace(items []T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append([]T(nil), items...)
}

// Clear empties the cache.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
}

// Snapshot returns a copy of the current contents in order.
func (c *Cache[T]) Snapshot() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]T(nil), c.items...)
}

// Len returns the number of cached items.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Get returns the item with the given identifier.
func (c *Cache[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, item := range c.items {
		if c.id(item) == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Upsert applies an insert event: prepend when the identifier is new,
// replace in place when it is already present (a race with an optimistic
// add must not duplicate the row).
func (c *Cache[T]) Upsert(item T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.id(item)
	for i := range c.items {
		if c.id(c.items[i]) == id {
			c.items[i] = item
			return
		}
	}
	c.items = append([]T{item}, c.items...)
}

// Update applies an update event: replace the row with the matching
// identifier without moving it, so the order never shifts under a reader.
// Unknown identifiers are ignored.
func (c *Cache[T]) Update(item T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.id(item)
	for i := range c.items {
		if c.id(c.items[i]) == id {
			c.items[i] = item
			return true
		}
	}
	return false
}

// Remove applies a delete event. Absence is not an error.
func (c *Cache[T]) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.id(c.items[i]) == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

// Patch mutates the item with the given identifier in place.
func (c *Cache[T]) Patch(id string, fn func(*T)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.id(c.items[i]) == id {
			fn(&c.items[i])
			return true
		}
	}
	return false
}
