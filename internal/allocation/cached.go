package allocation

import (
	"slices"

	"github.com/doppelganger-go/doppelganger/internal/cache"
	"github.com/doppelganger-go/doppelganger/internal/synth"
)

const countsNamespace = "counts"

// CachedAllocator memoizes Counts of another allocator. Persons and households
// are generated in separate passes over the same serial numbers, so the second
// pass is served from the cache. Failed lookups are not cached.
type CachedAllocator struct {
	synth.Allocator
	cache cache.Cache[[]synth.TractCount]

	hits   int
	misses int
}

// NewCachedAllocator wraps inner with c.
func NewCachedAllocator(inner synth.Allocator, c cache.Cache[[]synth.TractCount]) *CachedAllocator {
	return &CachedAllocator{Allocator: inner, cache: c}
}

// Counts returns the cached allocation or asks the wrapped allocator.
func (a *CachedAllocator) Counts(serialNumber string) ([]synth.TractCount, error) {
	key := cache.Key(countsNamespace, serialNumber)
	if counts, ok := a.cache.Get(key); ok {
		a.hits++
		return slices.Clone(counts), nil
	}

	counts, err := a.Allocator.Counts(serialNumber)
	if err != nil {
		return nil, err
	}
	a.misses++
	a.cache.Set(key, slices.Clone(counts), cache.DefaultTTL)
	return counts, nil
}

// Stats returns cache hits and misses so far.
func (a *CachedAllocator) Stats() (hits, misses int) {
	return a.hits, a.misses
}
