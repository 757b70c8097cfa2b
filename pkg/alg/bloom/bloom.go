// Package bloom provides a space-efficient probabilistic set membership filter.
//
// A Bloom filter answers "definitely not in set" or "possibly in set" with a
// tunable false-positive rate. It is useful as a pre-filter to avoid expensive
// exact lookups (map access, lock acquisition, disk I/O) — pkg/alg/lru uses it
// to short-circuit Get on keys that were never Put.
//
// This implementation uses the double-hashing technique from Kirsch and
// Mitzenmacher (2006): two base hashes derive k bit positions via
// h(i) = h1 + i*h2 mod m, avoiding k independent hash functions.
package bloom

import (
	"encoding/binary"
	"errors"
	"hash/fnv"
	"math"
	"sync"
)

const (
	// bitsPerWord is the number of bits in each uint64 word.
	bitsPerWord = 64

	// ln2Squared is ln(2) squared, used in the optimal bit-array size formula.
	ln2Squared = math.Ln2 * math.Ln2
)

var (
	// ErrZeroN is returned when n (expected element count) is zero.
	ErrZeroN = errors.New("bloom: n must be positive")

	// ErrInvalidFP is returned when fp is not in the open interval (0, 1).
	ErrInvalidFP = errors.New("bloom: fp must be in the open interval (0, 1)")
)

// Filter is a thread-safe Bloom filter.
type Filter struct {
	mu   sync.RWMutex
	bits []uint64
	m    uint // Total bits.
	k    uint // Number of hash functions.
}

// NewWithEstimates creates a Bloom filter sized for n expected elements at a
// false-positive rate of fp. Returns an error if n is zero or fp is not in the
// open interval (0, 1).
func NewWithEstimates(n uint, fp float64) (*Filter, error) {
	if n == 0 {
		return nil, ErrZeroN
	}

	if fp <= 0 || fp >= 1 {
		return nil, ErrInvalidFP
	}

	m := optimalM(n, fp)
	k := optimalK(m, n)
	words := (m + bitsPerWord - 1) / bitsPerWord

	return &Filter{
		bits: make([]uint64, words),
		m:    m,
		k:    k,
	}, nil
}

// Add inserts data into the filter.
func (f *Filter) Add(data []byte) {
	h1, h2 := hashKernel(data)

	f.mu.Lock()
	setBits(f.bits, f.m, f.k, h1, h2)
	f.mu.Unlock()
}

// Test reports whether data is possibly in the filter. A return value of false
// guarantees the element was never added. A return value of true means the
// element might have been added (subject to the configured false-positive rate).
func (f *Filter) Test(data []byte) bool {
	h1, h2 := hashKernel(data)

	f.mu.RLock()
	defer f.mu.RUnlock()

	return testBits(f.bits, f.m, f.k, h1, h2)
}

// Reset clears the filter without reallocating the bit array.
func (f *Filter) Reset() {
	f.mu.Lock()
	for i := range f.bits {
		f.bits[i] = 0
	}
	f.mu.Unlock()
}

// setBits sets the k bit positions derived from h1 and h2 in the bit array.
func setBits(arr []uint64, m, k uint, h1, h2 uint64) {
	for i := range k {
		pos := (h1 + uint64(i)*h2) % uint64(m)
		arr[pos/bitsPerWord] |= 1 << (pos % bitsPerWord)
	}
}

// testBits returns true if all k bit positions derived from h1 and h2 are set.
func testBits(arr []uint64, m, k uint, h1, h2 uint64) bool {
	for i := range k {
		pos := (h1 + uint64(i)*h2) % uint64(m)
		if arr[pos/bitsPerWord]&(1<<(pos%bitsPerWord)) == 0 {
			return false
		}
	}

	return true
}

// optimalM computes the optimal bit-array size for n elements at false-positive
// rate fp using the formula m = ceil(-n * ln(fp) / ln(2)^2).
func optimalM(n uint, fp float64) uint {
	return uint(math.Ceil(-float64(n) * math.Log(fp) / ln2Squared))
}

// optimalK computes the optimal number of hash functions using the formula
// k = round(m/n * ln(2)).
func optimalK(m, n uint) uint {
	k := uint(math.Round(float64(m) / float64(n) * math.Ln2))
	if k < 1 {
		return 1
	}

	return k
}

// hashKernel computes two independent 64-bit hashes from data using FNV-128a.
// The 128-bit digest is split into two 64-bit halves. The second half is forced
// odd so the step through the bit array is coprime with any even m.
func hashKernel(data []byte) (h1, h2 uint64) {
	h := fnv.New128a()
	_, _ = h.Write(data)
	sum := h.Sum(nil)

	h1 = binary.BigEndian.Uint64(sum[:8])
	h2 = binary.BigEndian.Uint64(sum[8:])

	// Force h2 odd so gcd(h2, m) avoids degenerate cycling.
	h2 |= 1

	return h1, h2
}
