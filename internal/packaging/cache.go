package packaging

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Cache memoizes resolution results per package and source directory.
// Concurrent misses for the same key run the resolver once.
type Cache struct {
	entries sync.Map // key -> Data
	group   singleflight.Group
	hits    atomic.Uint64
	misses  atomic.Uint64
}

// Entry is one cached result.
type Entry struct {
	Package string
	Dir     string
	Data    Data
}

// NewCache creates an empty cache.
func NewCache() *Cache { return &Cache{} }

// Lookup returns the cached data for ref.
func (c *Cache) Lookup(ref ClassRef) (Data, bool) {
	v, ok := c.entries.Load(cacheKey(ref))
	if !ok {
		return Data{}, false
	}
	return v.(Data), true
}

// Resolve returns the cached data for ref or computes it with fn. fn must not
// panic.
func (c *Cache) Resolve(ref ClassRef, fn func() Data) Data {
	key := cacheKey(ref)
	if v, ok := c.entries.Load(key); ok {
		c.hits.Add(1)
		return v.(Data)
	}
	v, _, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.entries.Load(key); ok {
			return v, nil
		}
		c.misses.Add(1)
		d := fn()
		c.entries.Store(key, d)
		return d, nil
	})
	return v.(Data)
}

// Preload inserts entries without overwriting existing ones.
func (c *Cache) Preload(entries []Entry) {
	for _, e := range entries {
		c.entries.LoadOrStore(e.Package+"\x00"+e.Dir, e.Data)
	}
}

// Entries returns a snapshot of the cache ordered by package and directory.
func (c *Cache) Entries() []Entry {
	var out []Entry
	c.entries.Range(func(k, v any) bool {
		pkg, dir, _ := strings.Cut(k.(string), "\x00")
		out = append(out, Entry{Package: pkg, Dir: dir, Data: v.(Data)})
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Package != out[j].Package {
			return out[i].Package < out[j].Package
		}
		return out[i].Dir < out[j].Dir
	})
	return out
}

// Stats returns hit and miss counters.
func (c *Cache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}
