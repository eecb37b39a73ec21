// Package aggregator provides a generic write-local buffer with merge-on-read.
//
// Each writer acquires its own Slot and mutates the slot's value without
// touching any shared state. Readers ask the Aggregator for a merged value:
// Now merges every live slot plus the retired total, Delayed returns the
// result of the last merge. When a writer is done it releases its slot, and
// the slot's value is folded into the retired total before the slot is
// dropped, so contributions survive the writer.
//
// The Aggregator does not know how T is laid out. Callers supply a factory
// producing an empty T and a merge function that adds src into dst. The merge
// function is called with src pointing at a slot that may still be written
// concurrently, so it must read src with atomic loads; dst is always private
// to the aggregator.
//
//	agg := aggregator.New(newTotals, mergeTotals)
//	slot := agg.Acquire()
//	defer slot.Release()
//	atomic.AddInt64(&slot.Value().hits, 1)
//
//	total := agg.Now()
package aggregator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/clockz"
)

// MergeFunc adds src into dst.
type MergeFunc[T any] func(dst, src *T)

// Option configures an Aggregator.
type Option func(*options)

type options struct {
	clock clockz.Clock
}

// WithClock sets the clock driving Run. Defaults to clockz.RealClock.
func WithClock(clock clockz.Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// Stats describes the aggregator's bookkeeping at a point in time.
type Stats struct {
	Live    int    // slots currently acquired
	Retired uint64 // slots folded into the retired total
	Merges  uint64 // completed Now merges
}

// Aggregator owns the live slots and the retired total for one T.
type Aggregator[T any] struct {
	factory func() *T
	merge   MergeFunc[T]
	clock   clockz.Clock

	mu      sync.Mutex
	slots   map[*Slot[T]]struct{}
	retired *T
	nretire uint64

	latest atomic.Pointer[T]
	merges atomic.Uint64
}

// New creates an Aggregator. factory must return a zeroed T; merge must be
// associative and commutative.
func New[T any](factory func() *T, merge MergeFunc[T], opts ...Option) *Aggregator[T] {
	o := options{clock: clockz.RealClock}
	for _, opt := range opts {
		opt(&o)
	}
	return &Aggregator[T]{
		factory: factory,
		merge:   merge,
		clock:   o.clock,
		slots:   make(map[*Slot[T]]struct{}),
		retired: factory(),
	}
}

// Acquire registers and returns a new slot owned by the caller.
func (a *Aggregator[T]) Acquire() *Slot[T] {
	s := &Slot[T]{agg: a, value: a.factory()}
	a.mu.Lock()
	a.slots[s] = struct{}{}
	a.mu.Unlock()
	return s
}

// Now merges the retired total and every live slot into a fresh T. The
// result is cached for Delayed and must not be modified by the caller.
func (a *Aggregator[T]) Now() *T {
	out := a.factory()

	a.mu.Lock()
	a.merge(out, a.retired)
	for s := range a.slots {
		a.merge(out, s.value)
	}
	// Publish under the lock so concurrent merges land in order and
	// Delayed never moves backwards.
	a.latest.Store(out)
	a.merges.Add(1)
	a.mu.Unlock()
	return out
}

// Delayed returns the result of the most recent merge without merging
// again. The first call merges.
func (a *Aggregator[T]) Delayed() *T {
	if v := a.latest.Load(); v != nil {
		return v
	}
	return a.Now()
}

// Run merges every interval until ctx is done, keeping Delayed fresh.
func (a *Aggregator[T]) Run(ctx context.Context, interval time.Duration) error {
	ticker := a.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			a.Now()
		}
	}
}

// Stats reports slot and merge counts.
func (a *Aggregator[T]) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Stats{
		Live:    len(a.slots),
		Retired: a.nretire,
		Merges:  a.merges.Load(),
	}
}

func (a *Aggregator[T]) release(s *Slot[T]) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.slots[s]; !ok {
		return
	}
	a.merge(a.retired, s.value)
	delete(a.slots, s)
	a.nretire++
}
