package memcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pierrec/lz4/v4"

	"github.com/Sumatoshi-tech/pyanalyze/internal/hostapi"
	"github.com/Sumatoshi-tech/pyanalyze/internal/modkey"
	"github.com/Sumatoshi-tech/pyanalyze/internal/pyast"
	"github.com/Sumatoshi-tech/pyanalyze/pkg/alg/lru"
)

// DefaultMaxSize is the default maximum compressed-bytes budget (64 MB).
const DefaultMaxSize = 64 * 1024 * 1024

// estimatedBlobBytes sizes the Bloom pre-filter: a rough per-entry budget
// used only to guess how many distinct modules maxSize is likely to hold,
// not an enforced limit.
const estimatedBlobBytes = 4 * 1024

// minBloomEntries keeps the filter usefully sized even for a tiny cache.
const minBloomEntries = 1024

// blob is what the LRU cache actually stores: LZ4-compressed scope bytes
// plus the original length (lz4.UncompressBlock needs a sized destination).
type blob struct {
	compressed []byte
	rawLen     int
	isPacked   bool // false means compressed holds the raw bytes verbatim.
	storedAt   time.Time
	ttl        time.Duration
}

func blobSize(b blob) int64 { return int64(len(b.compressed)) }

// Cache is the reference hostapi.CacheService: an LRU cache of LZ4-
// compressed analysis scopes keyed by module name+path, the same
// "compress cold bytes, decompress on restore" trade
// internal/cache.LRUBlobCache makes for git blobs applied to analysis
// results instead.
type Cache struct {
	mu    sync.Mutex
	codec Codec
	inner *lru.Cache[modkey.Key, blob]
	ttl   time.Duration
}

// New creates a Cache bounded by maxSize compressed bytes (DefaultMaxSize
// when zero) whose entries expire ttl after they were stored (ttl zero
// means entries never expire).
func New(codec Codec, maxSize int64, ttl time.Duration) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	expectedEntries := max(uint(maxSize/estimatedBlobBytes), minBloomEntries) //nolint:gosec // maxSize is positive here.

	return &Cache{
		codec: codec,
		inner: lru.New(
			lru.WithMaxBytes[modkey.Key, blob](maxSize, blobSize),
			lru.WithBloomFilter[modkey.Key, blob](keyBytes, expectedEntries),
		),
		ttl: ttl,
	}
}

// keyBytes gives the Bloom pre-filter a byte representation of a module
// key: name and file path rarely collide, typeshed-ness alone never
// distinguishes two modules, so it is omitted.
func keyBytes(k modkey.Key) []byte {
	return []byte(k.Name + "\x00" + k.FilePath)
}

func cacheKey(module *pyast.Module) modkey.Key {
	return modkey.New(module.Name, module.FilePath, false)
}

// Exists reports whether a live (non-expired) entry exists for the module.
func (c *Cache) Exists(_ context.Context, name, filePath string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.inner.Get(modkey.New(name, filePath, false))
	if !ok {
		return false
	}

	return !c.expired(b)
}

// Restore decompresses and decodes the cached scope for module, reporting
// a miss if the entry expired; the expired entry stays in the cache.
func (c *Cache) Restore(_ context.Context, module *pyast.Module) (hostapi.GlobalScope, bool, error) {
	c.mu.Lock()
	b, ok := c.inner.Get(cacheKey(module))
	c.mu.Unlock()

	if !ok {
		return nil, false, nil
	}

	if c.expired(b) {
		return nil, false, nil
	}

	raw := b.compressed
	if b.isPacked {
		raw = make([]byte, b.rawLen)

		n, err := lz4.UncompressBlock(b.compressed, raw)
		if err != nil {
			return nil, false, fmt.Errorf("memcache: decompress: %w", err)
		}

		raw = raw[:n]
	}

	scope, err := c.codec.Decode(raw)
	if err != nil {
		return nil, false, fmt.Errorf("memcache: decode: %w", err)
	}

	return scope, true, nil
}

// Store compresses and persists analysis.Scope for module.
func (c *Cache) Store(_ context.Context, module *pyast.Module, analysis hostapi.Analysis) error {
	if analysis.Scope == nil {
		return nil
	}

	raw, err := c.codec.Encode(analysis.Scope)
	if err != nil {
		return fmt.Errorf("memcache: encode: %w", err)
	}

	compressed := make([]byte, lz4.CompressBlockBound(len(raw)))

	n, err := lz4.CompressBlock(raw, compressed, nil)
	if err != nil {
		return fmt.Errorf("memcache: compress: %w", err)
	}

	// Incompressible input (n==0 signals "store uncompressed" per the lz4
	// block API): fall back to storing the raw bytes as-is.
	stored := compressed[:n]
	isPacked := true

	if n == 0 {
		stored = raw
		isPacked = false
	}

	c.mu.Lock()
	c.inner.Put(cacheKey(module), blob{
		compressed: stored,
		rawLen:     len(raw),
		isPacked:   isPacked,
		storedAt:   time.Now(),
		ttl:        c.ttl,
	})
	c.mu.Unlock()

	return nil
}

func (c *Cache) expired(b blob) bool {
	if b.ttl <= 0 {
		return false
	}

	return time.Since(b.storedAt) > b.ttl
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.inner.Clear()
}

// Stats reports the underlying LRU cache's hit/miss/eviction counters, for
// callers that want to log or export cache effectiveness.
func (c *Cache) Stats() lru.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.inner.Stats()
}
