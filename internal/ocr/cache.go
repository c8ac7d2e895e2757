package ocr

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// DefaultCacheCapacity bounds the recognition cache when no capacity is
// configured.
const DefaultCacheCapacity = 128

// Digest returns the hex-encoded SHA-256 of the exact bytes handed to a
// provider. Cache keys are computed over preprocessed bytes, so two requests
// that normalize to the same image share one entry.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ResultCache maps image digests to recognized text. It holds a bounded
// number of entries and evicts the oldest-inserted entry first; lookups do
// not refresh insertion order. Safe for concurrent use by page workers.
//
// Only successful recognitions are stored, so a hit always replays text a
// provider actually produced for those bytes.
type ResultCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]string
	order    []string
}

// NewResultCache returns a cache bounded to capacity entries. Non-positive
// capacities fall back to DefaultCacheCapacity.
func NewResultCache(capacity int) *ResultCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &ResultCache{
		capacity: capacity,
		entries:  make(map[string]string, capacity),
		order:    make([]string, 0, capacity),
	}
}

// Get returns the text recognized for digest, if present.
func (c *ResultCache) Get(digest string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	text, ok := c.entries[digest]
	return text, ok
}

// Put stores text under digest. Re-putting an existing digest overwrites the
// value in place without touching insertion order; two workers racing to
// store the same recognition is harmless.
func (c *ResultCache) Put(digest, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[digest]; exists {
		c.entries[digest] = text
		return
	}

	if len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[digest] = text
	c.order = append(c.order, digest)
}

// Len reports the current number of cached entries.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
