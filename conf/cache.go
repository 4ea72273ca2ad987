package conf

import "sync"

// Cache holds the last loaded instance of each configuration type.
//
// Implementations must be safe for concurrent use. The cache holds a
// non-owning reference: callers own what Load returns.
type Cache interface {
	Get(t Type) (any, bool)
	Put(t Type, v any)
}

// MemoryCache is the in-process Cache. Last writer wins.
type MemoryCache struct {
	m sync.Map // Type -> any
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache { return &MemoryCache{} }

// Get implements Cache.
func (c *MemoryCache) Get(t Type) (any, bool) { return c.m.Load(t) }

// Put implements Cache.
func (c *MemoryCache) Put(t Type, v any) { c.m.Store(t, v) }

// Delete drops the entry of t.
func (c *MemoryCache) Delete(t Type) { c.m.Delete(t) }

// Len returns the number of cached types.
func (c *MemoryCache) Len() int {
	n := 0
	c.m.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Reset drops every entry.
func (c *MemoryCache) Reset() {
	c.m.Range(func(k, _ any) bool {
		c.m.Delete(k)
		return true
	})
}
