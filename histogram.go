package farmz

import (
	"slices"
	"sync/atomic"
)

// HistogramValue is one buffer's share of a histogram: a frequency per
// bucket plus the running sum of observed values. It holds no pointers, the
// boundaries are passed in by the caller.
type HistogramValue struct {
	freqs [MaxBuckets + 1]int64
	sum   int64
}

// Observe records v against b.
func (h *HistogramValue) Observe(v int64, b Boundaries) {
	atomic.AddInt64(&h.freqs[b.index(v)], 1)
	atomic.AddInt64(&h.sum, v)
}

// Merge adds other into h. Both must have been observed against b.
func (h *HistogramValue) Merge(other *HistogramValue, b Boundaries) {
	for i := 0; i <= b.Len(); i++ {
		if f := atomic.LoadInt64(&other.freqs[i]); f != 0 {
			atomic.AddInt64(&h.freqs[i], f)
		}
	}
	atomic.AddInt64(&h.sum, atomic.LoadInt64(&other.sum))
}

// Freq returns the frequency of bucket i. Bucket b.Len() is the overflow
// bucket.
func (h *HistogramValue) Freq(i int) int64 {
	return atomic.LoadInt64(&h.freqs[i])
}

// Sum returns the total of all observed values.
func (h *HistogramValue) Sum() int64 {
	return atomic.LoadInt64(&h.sum)
}

func (h *HistogramValue) load() (freqs [MaxBuckets + 1]int64) {
	for i := range h.freqs {
		freqs[i] = atomic.LoadInt64(&h.freqs[i])
	}
	return freqs
}

// HistogramInfo describes a registered histogram.
type HistogramInfo struct {
	key     Key
	desc    string
	subType string
	bounds  Boundaries
}

// Key returns the histogram's name.
func (h *HistogramInfo) Key() Key { return h.key }

// Description returns the human readable description.
func (h *HistogramInfo) Description() string { return h.desc }

// SubType returns the sub-type, possibly empty.
func (h *HistogramInfo) SubType() string { return h.subType }

// Label returns the description with the sub-type suffix, if any.
func (h *HistogramInfo) Label() string { return label(h.desc, h.subType) }

// Boundaries returns the histogram's bucket edges.
func (h *HistogramInfo) Boundaries() Boundaries { return h.bounds }

// Count returns the number of observations in v.
func (h *HistogramInfo) Count(v *HistogramValue) int64 {
	var n int64
	for i := 0; i <= h.bounds.Len(); i++ {
		n += v.Freq(i)
	}
	return n
}

// Average returns the mean observed value truncated to an integer, or 0 when
// v is empty.
func (h *HistogramInfo) Average(v *HistogramValue) float64 {
	n := h.Count(v)
	if n == 0 {
		return 0
	}
	return float64(v.Sum() / n)
}

// Percentile estimates the p-th percentile of v.
//
// The target rank is floor(count*p/100). The estimate is the lower edge of
// the bucket holding that rank plus ((rank - cum[i-1]) * i) / freq[i], in
// integer arithmetic, where i is the bucket index. The bucket index, not its
// width, scales the interpolation; callers comparing against other systems
// should expect that. An empty histogram, or a rank landing on an empty
// bucket, yields 0. p is clamped to [0, 100].
func (h *HistogramInfo) Percentile(v *HistogramValue, p float64) float64 {
	switch {
	case !(p >= 0): // negative or NaN
		p = 0
	case p > 100:
		p = 100
	}
	freqs := v.load()

	var cum [MaxBuckets + 1]int64
	var total int64
	for i, f := range freqs {
		total += f
		cum[i] = total
	}

	pn := int64(float64(total) * p / 100)
	i, _ := slices.BinarySearch(cum[:], pn)
	if freqs[i] == 0 {
		return 0
	}

	var prev int64
	if i > 0 {
		prev = cum[i-1]
	}
	return float64(h.bounds.lower(i) + ((pn-prev)*int64(i))/freqs[i])
}
