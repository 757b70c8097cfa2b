// Package lru provides the generic thread-safe, size-bounded LRU cache
// internal/memcache builds its analysis-scope cache on: byte-budget
// eviction plus an optional Bloom pre-filter so a cold key never takes
// the write lock just to learn it is a miss.
package lru

import (
	"sync"
	"sync/atomic"

	"github.com/Sumatoshi-tech/pyanalyze/pkg/alg/bloom"
)

// defaultBloomFPRate is the false-positive rate for the Bloom pre-filter.
// At 1%, 99% of definite cache misses are short-circuited without lock
// acquisition.
const defaultBloomFPRate = 0.01

// entry is a doubly-linked list node holding a key-value pair.
type entry[K comparable, V any] struct {
	key         K
	value       V
	size        int64
	accessCount int64
	prev        *entry[K, V]
	next        *entry[K, V]
}

// Cache is a thread-safe, size-bounded LRU cache with an optional Bloom
// pre-filter on Get.
type Cache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]*entry[K, V]
	head    *entry[K, V] // Most recently used.
	tail    *entry[K, V] // Least recently used.

	maxSize  int64
	curSize  int64
	sizeFunc func(V) int64

	filter     *bloom.Filter
	keyToBytes func(K) []byte

	hits          atomic.Int64
	misses        atomic.Int64
	bloomFiltered atomic.Int64
}

// Option configures a Cache.
type Option[K comparable, V any] func(*Cache[K, V])

// WithMaxBytes sets the maximum total size in bytes and a function to
// compute the size of each value.
func WithMaxBytes[K comparable, V any](maxBytes int64, sizeFunc func(V) int64) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.maxSize = maxBytes
		c.sizeFunc = sizeFunc
	}
}

// WithBloomFilter enables a Bloom pre-filter for Get. keyToBytes converts a
// key to its byte representation; expectedN sizes the filter for the
// expected number of distinct keys ever stored.
func WithBloomFilter[K comparable, V any](keyToBytes func(K) []byte, expectedN uint) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.keyToBytes = keyToBytes

		// Error is structurally impossible: expectedN > 0 enforced below, FP rate is constant.
		bf, err := bloom.NewWithEstimates(max(expectedN, 1), defaultBloomFPRate)
		if err != nil {
			panic("lru: bloom filter initialization failed: " + err.Error())
		}

		c.filter = bf
	}
}

// New creates a new LRU cache. WithMaxBytes must be provided; otherwise New
// panics.
func New[K comparable, V any](opts ...Option[K, V]) *Cache[K, V] {
	c := &Cache[K, V]{
		entries: make(map[K]*entry[K, V]),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.maxSize <= 0 {
		panic("lru: WithMaxBytes is required")
	}

	return c
}

// Len returns the number of entries in the cache.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}
