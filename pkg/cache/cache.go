// Package cache implements the read/write cache layer that sits above the
// object store facade: an LRU keyed by CID with both an entry-count bound
// and a hard aggregate-byte budget, plus a per-entry TTL the underlying
// LRU container doesn't provide on its own.
package cache

import (
	"sync"
	"time"

	cidpkg "github.com/cimkit/ipldstore/pkg/cid"
	lru "github.com/hashicorp/golang-lru/v2"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("cache")

// Entry is a single cached object: its bytes, the codec code it was stored
// under, and bookkeeping used for eviction.
type Entry struct {
	Bytes      []byte
	CodecCode  uint64
	LastAccess time.Time
	Size       int
}

// Stats reports the cache's current occupancy.
type Stats struct {
	Entries  int
	Bytes    int64
	Capacity int
	MaxBytes int64
}

// Cache is an LRU of Entry keyed by CID, bounded by both entry count
// (delegated to the underlying hashicorp LRU) and aggregate byte size
// (tracked here, enforced by evicting least-recently-used entries before
// any insert that would exceed it). All mutation is serialized by mu, so
// the aggregate byte counter is always consistent with the LRU's actual
// contents.
type Cache struct {
	mu           sync.Mutex
	lru          *lru.Cache[string, *Entry]
	ttl          time.Duration
	maxBytes     int64
	currentBytes int64
	capacity     int
}

// New returns a Cache bounded by capacity entries, maxBytes aggregate
// bytes, and ttl per-entry freshness window.
func New(capacity int, maxBytes int64, ttl time.Duration) (*Cache, error) {
	c := &Cache{ttl: ttl, maxBytes: maxBytes, capacity: capacity}
	underlying, err := lru.NewWithEvict[string, *Entry](capacity, func(key string, value *Entry) {
		c.currentBytes -= int64(value.Size)
	})
	if err != nil {
		return nil, err
	}
	c.lru = underlying
	return c, nil
}

// Put inserts bytes under cid, evicting least-recently-used entries first
// if needed to keep the aggregate byte budget within maxBytes. Replacing
// an existing entry correctly accounts for the old entry's size before
// adding the new one.
func (c *Cache) Put(cid cidpkg.Cid, data []byte, codecCode uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cid.String()
	if _, ok := c.lru.Peek(key); ok {
		// Remove fires the eviction callback, which subtracts the old size.
		c.lru.Remove(key)
	}

	size := len(data)
	for c.currentBytes+int64(size) > c.maxBytes && c.lru.Len() > 0 {
		c.lru.RemoveOldest()
	}

	entry := &Entry{
		Bytes:      data,
		CodecCode:  codecCode,
		LastAccess: time.Now(),
		Size:       size,
	}
	c.lru.Add(key, entry)
	c.currentBytes += int64(size)
	log.Debugf("cache: stored %s (%d bytes, total %d/%d)", key, size, c.currentBytes, c.maxBytes)
}

// Get returns a copy of the cached bytes for cid if present and not
// expired, refreshing its last-access time. An expired entry is removed
// atomically with the byte-counter decrement and reported as a miss.
func (c *Cache) Get(cid cidpkg.Cid) ([]byte, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cid.String()
	entry, ok := c.lru.Get(key)
	if !ok {
		return nil, 0, false
	}
	if time.Since(entry.LastAccess) >= c.ttl {
		c.lru.Remove(key)
		log.Debugf("cache: %s expired (ttl %s)", key, c.ttl)
		return nil, 0, false
	}
	entry.LastAccess = time.Now()
	out := make([]byte, len(entry.Bytes))
	copy(out, entry.Bytes)
	return out, entry.CodecCode, true
}

// Remove evicts cid's entry if present.
func (c *Cache) Remove(cid cidpkg.Cid) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(cid.String())
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
	c.currentBytes = 0
}

// Stats reports the cache's current occupancy.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:  c.lru.Len(),
		Bytes:    c.currentBytes,
		Capacity: c.capacity,
		MaxBytes: c.maxBytes,
	}
}
