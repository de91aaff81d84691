package build

import "sync"

type cacheKey struct {
	collection string
	path       string
}

type cacheEntry struct {
	checksum string
	compiled Compiled
}

// FileCache keeps the compiled result of every source file keyed by its
// content checksum, so unchanged files skip the per-file pipeline on the
// next generation. It is safe for concurrent use.
type FileCache struct {
	mu      sync.RWMutex
	entries map[cacheKey]cacheEntry
}

// NewFileCache returns an empty cache.
func NewFileCache() *FileCache {
	return &FileCache{entries: make(map[cacheKey]cacheEntry)}
}

// Get returns the cached result for path when its checksum still matches.
func (c *FileCache) Get(collection, path, checksum string) (Compiled, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[cacheKey{collection, path}]
	if !ok || e.checksum != checksum {
		return Compiled{}, false
	}
	return e.compiled, true
}

// Put stores the result for path.
func (c *FileCache) Put(collection, path, checksum string, compiled Compiled) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{collection, path}] = cacheEntry{checksum: checksum, compiled: compiled}
}

// Retain drops every entry whose path is not in keep.
func (c *FileCache) Retain(keep map[string]bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if !keep[k.path] {
			delete(c.entries, k)
		}
	}
}

// Len returns the number of cached files.
func (c *FileCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
