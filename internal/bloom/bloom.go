// Package bloom implements a space-efficient approximate set used to
// accelerate visited-URL checks. It guarantees no false negatives; false
// positives are bounded by the configured rate and resolved by the caller
// against authoritative storage.
package bloom

import (
	"errors"
	"math"
	"math/bits"

	"github.com/spaolacci/murmur3"
)

const (
	// DefaultFPR is the target false-positive rate when none is given.
	DefaultFPR = 0.001

	// DefaultCapacity is the expected item count when none is given.
	DefaultCapacity = 10_000_000
)

// Filter is a classic Bloom filter over a packed bit array, using
// double hashing to derive k probe positions per key.
//
// Filter is not safe for concurrent use; callers serialize access.
type Filter struct {
	m          uint64 // size in bits
	k          uint64 // number of hash probes
	bitArray   []byte
	itemsAdded uint64
}

// Stats describes the state of a Filter.
type Stats struct {
	ItemsAdded   uint64
	SizeBits     uint64
	NumHashes    uint64
	MemoryBytes  int
	FillRatio    float64
	EstimatedFPR float64
	SetBits      uint64
}

// OptimalParams returns the bit-array size m and hash count k minimizing
// the false-positive rate for n expected items at target rate p.
func OptimalParams(n int, p float64) (m, k uint64, err error) {
	if n <= 0 || p <= 0 || p >= 1 {
		return 0, 0, errors.New("bloom: capacity must be positive and rate in (0, 1)")
	}
	mf := -float64(n) * math.Log(p) / (math.Ln2 * math.Ln2)
	kf := mf / float64(n) * math.Ln2
	return uint64(math.Ceil(mf)), uint64(math.Ceil(kf)), nil
}

// New creates a filter sized for n expected items at false-positive rate p.
func New(n int, p float64) (*Filter, error) {
	m, k, err := OptimalParams(n, p)
	if err != nil {
		return nil, err
	}
	return &Filter{
		m:        m,
		k:        k,
		bitArray: make([]byte, (m+7)/8),
	}, nil
}

// NewWithParams creates a filter with an explicit bit size and hash count.
func NewWithParams(m, k uint64) (*Filter, error) {
	if m == 0 || k == 0 {
		return nil, errors.New("bloom: m and k must be positive")
	}
	return &Filter{
		m:        m,
		k:        k,
		bitArray: make([]byte, (m+7)/8),
	}, nil
}

// positions computes the k probe indices for key x via double hashing:
// index_i = (h1 + i*h2) mod m.
func (f *Filter) positions(x string) []uint64 {
	data := []byte(x)
	h1 := murmur3.Sum32WithSeed(data, 0)
	h2 := murmur3.Sum32WithSeed(data, h1)
	pos := make([]uint64, f.k)
	for i := uint64(0); i < f.k; i++ {
		pos[i] = (uint64(h1) + i*uint64(h2)) % f.m
	}
	return pos
}

// Add inserts x into the filter.
func (f *Filter) Add(x string) {
	for _, p := range f.positions(x) {
		f.bitArray[p/8] |= 1 << (p % 8)
	}
	f.itemsAdded++
}

// AddBatch inserts every item of xs.
func (f *Filter) AddBatch(xs []string) {
	for _, x := range xs {
		f.Add(x)
	}
}

// Contains reports whether x may have been added. A false return is
// definitive; a true return may be a false positive.
func (f *Filter) Contains(x string) bool {
	for _, p := range f.positions(x) {
		if f.bitArray[p/8]&(1<<(p%8)) == 0 {
			return false
		}
	}
	return true
}

// ContainsBatch evaluates Contains for every item of xs.
func (f *Filter) ContainsBatch(xs []string) []bool {
	results := make([]bool, len(xs))
	for i, x := range xs {
		results[i] = f.Contains(x)
	}
	return results
}

// Len returns the number of items added.
func (f *Filter) Len() uint64 { return f.itemsAdded }

// Stats returns sizing and saturation statistics.
func (f *Filter) Stats() Stats {
	var setBits uint64
	for _, b := range f.bitArray {
		setBits += uint64(bits.OnesCount8(b))
	}
	fillRatio := 0.0
	if f.m > 0 {
		fillRatio = float64(setBits) / float64(f.m)
	}
	estimatedFPR := 0.0
	if f.itemsAdded > 0 {
		estimatedFPR = math.Pow(fillRatio, float64(f.k))
	}
	return Stats{
		ItemsAdded:   f.itemsAdded,
		SizeBits:     f.m,
		NumHashes:    f.k,
		MemoryBytes:  len(f.bitArray),
		FillRatio:    fillRatio,
		EstimatedFPR: estimatedFPR,
		SetBits:      setBits,
	}
}
