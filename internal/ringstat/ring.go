// Package ringstat provides a bounded sample ring with on-demand percentile
// computation, shared by the pipeline's callback-latency tracking and the
// execution router's metrics aggregator. Percentiles are computed via linear
// interpolation over a sorted copy of the ring; the ring itself is never
// kept sorted on insert.
package ringstat

import (
	"sort"
	"sync"
)

// Ring is a fixed-capacity, overwrite-oldest ring of float64 samples.
type Ring struct {
	mu     sync.Mutex
	buf    []float64
	cap    int
	head   int
	size   int
	total  uint64
}

// New creates a ring holding at most capacity samples.
func New(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring{buf: make([]float64, capacity), cap: capacity}
}

// Add records a sample, evicting the oldest if the ring is full.
func (r *Ring) Add(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := (r.head + r.size) % r.cap
	r.buf[idx] = v
	if r.size < r.cap {
		r.size++
	} else {
		r.head = (r.head + 1) % r.cap
	}
	r.total++
}

// Len returns the number of samples currently retained.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// TotalObserved returns the lifetime count of samples added, including
// those since evicted.
func (r *Ring) TotalObserved() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// snapshotSorted copies and sorts the current contents. Must be called
// without holding r.mu.
func (r *Ring) snapshotSorted() []float64 {
	r.mu.Lock()
	out := make([]float64, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.head+i)%r.cap]
	}
	r.mu.Unlock()
	sort.Float64s(out)
	return out
}

// Percentile returns the p-th percentile (0-100) via linear interpolation
// on a sorted snapshot. Returns 0 if the ring is empty.
func (r *Ring) Percentile(p float64) float64 {
	sorted := r.snapshotSorted()
	return interpolate(sorted, p)
}

// Percentiles computes several percentiles from a single sorted snapshot,
// avoiding a repeat sort-and-copy per call.
func (r *Ring) Percentiles(ps ...float64) map[float64]float64 {
	sorted := r.snapshotSorted()
	out := make(map[float64]float64, len(ps))
	for _, p := range ps {
		out[p] = interpolate(sorted, p)
	}
	return out
}

func interpolate(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[n-1]
	}
	rank := (p / 100) * float64(n-1)
	lo := int(rank)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
