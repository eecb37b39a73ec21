package farmz

import (
	"fmt"
	"slices"
)

// MaxBuckets is the largest number of boundaries a histogram may have. Every
// histogram value reserves MaxBuckets+1 slots, the last for overflow.
const MaxBuckets = 64

// Boundaries is an ordered, immutable set of histogram bucket edges. A value
// v lands in the first bucket whose edge is >= v; values above the last edge
// land in the overflow bucket. The last edge should sit above the expected
// value domain.
type Boundaries struct {
	edges []int64
}

// Standard boundary sets.
var (
	// DefaultBuckets is a latency ladder in microseconds, 10us to 60s.
	DefaultBuckets = MustBoundaries(
		10, 20, 50, 100, 200, 500,
		1_000, 2_000, 5_000, 10_000, 20_000, 50_000,
		100_000, 200_000, 500_000,
		1_000_000, 2_000_000, 5_000_000, 10_000_000, 30_000_000, 60_000_000,
	)

	// SizeBuckets provides reasonable size buckets in bytes.
	SizeBuckets = MustBoundaries(
		64, 256, 1024, 4096, 16384, 65536, 262144, 1048576, 4194304, 16777216,
	)
)

// NewBoundaries validates and copies edges. Edges must be non-empty, at most
// MaxBuckets long and strictly ascending.
func NewBoundaries(edges ...int64) (Boundaries, error) {
	if len(edges) == 0 {
		return Boundaries{}, fmt.Errorf("%w: no edges", ErrInvalidBoundaries)
	}
	if len(edges) > MaxBuckets {
		return Boundaries{}, fmt.Errorf("%w: %d edges exceeds %d", ErrInvalidBoundaries, len(edges), MaxBuckets)
	}
	for i := 1; i < len(edges); i++ {
		if edges[i] <= edges[i-1] {
			return Boundaries{}, fmt.Errorf("%w: edge %d (%d) not above %d", ErrInvalidBoundaries, i, edges[i], edges[i-1])
		}
	}
	return Boundaries{edges: slices.Clone(edges)}, nil
}

// MustBoundaries is NewBoundaries that panics on invalid input.
func MustBoundaries(edges ...int64) Boundaries {
	b, err := NewBoundaries(edges...)
	if err != nil {
		panic(err)
	}
	return b
}

// Len returns the number of edges, excluding the overflow bucket.
func (b Boundaries) Len() int {
	return len(b.edges)
}

// At returns edge i.
func (b Boundaries) At(i int) int64 {
	return b.edges[i]
}

// Edges returns a copy of the edges.
func (b Boundaries) Edges() []int64 {
	return slices.Clone(b.edges)
}

// IsZero reports whether b is the zero value.
func (b Boundaries) IsZero() bool {
	return b.edges == nil
}

// index returns the bucket for v: the first edge >= v, or Len for overflow.
func (b Boundaries) index(v int64) int {
	i, _ := slices.BinarySearch(b.edges, v)
	return i
}

// lower returns the lower edge of bucket i, 0 for the first bucket.
func (b Boundaries) lower(i int) int64 {
	if i == 0 {
		return 0
	}
	return b.edges[i-1]
}
