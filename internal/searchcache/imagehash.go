package searchcache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// hashEntry pairs a cached perceptual hash with the mtime it was computed
// against, so a stale entry (file modified since) is a cache miss.
type hashEntry struct {
	hash  uint64
	mtime float64
}

// DefaultImageHashCacheSize bounds the default perceptual-hash cache.
const DefaultImageHashCacheSize = 4096

// ImageHashCache memoizes per-path perceptual hashes so that rebuilding
// look-alike groups (spec §4.5.4) does not redecode images whose hash is
// already known and still fresh.
type ImageHashCache struct {
	cache *lru.Cache[string, hashEntry]
}

// NewImageHashCache creates a cache of the given size (0 or negative uses
// DefaultImageHashCacheSize).
func NewImageHashCache(size int) *ImageHashCache {
	if size <= 0 {
		size = DefaultImageHashCacheSize
	}
	cache, _ := lru.New[string, hashEntry](size)
	return &ImageHashCache{cache: cache}
}

// Get returns the cached hash for path if present and computed at exactly
// the given mtime.
func (c *ImageHashCache) Get(path string, mtime float64) (uint64, bool) {
	entry, ok := c.cache.Get(path)
	if !ok || entry.mtime != mtime {
		return 0, false
	}
	return entry.hash, true
}

// Put stores the hash computed for path at mtime.
func (c *ImageHashCache) Put(path string, mtime float64, hash uint64) {
	c.cache.Add(path, hashEntry{hash: hash, mtime: mtime})
}
