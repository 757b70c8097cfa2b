// Package memcache provides the reference implementation of
// hostapi.CacheService: an in-memory LRU cache of compressed analysis
// blobs, with an optional durable-on-disk manifest variant for
// process-restart survival in the CLI's one-shot mode.
package memcache

import "github.com/Sumatoshi-tech/pyanalyze/internal/hostapi"

// Codec converts between a host's GlobalScope implementation and the byte
// slice the cache compresses and stores. The core treats GlobalScope
// opaquely, so a cache that persists it needs the host to supply the
// (de)serialization; internal/pyhost's ScopeCodec supplies one for its
// reference evaluator's scope type.
type Codec interface {
	Encode(hostapi.GlobalScope) ([]byte, error)
	Decode([]byte) (hostapi.GlobalScope, error)
}
