package aggregator_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"
	"go.uber.org/goleak"

	"github.com/zoobzio/farmz/aggregator"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type tally struct {
	n int64
}

func newTally() *tally { return &tally{} }

func mergeTally(dst, src *tally) {
	atomic.AddInt64(&dst.n, atomic.LoadInt64(&src.n))
}

func TestNowMergesLiveSlots(t *testing.T) {
	agg := aggregator.New(newTally, mergeTally)

	a := agg.Acquire()
	b := agg.Acquire()
	atomic.AddInt64(&a.Value().n, 3)
	atomic.AddInt64(&b.Value().n, 4)

	assert.Equal(t, int64(7), agg.Now().n)
	assert.Equal(t, 2, agg.Stats().Live)
}

func TestReleaseRetainsContribution(t *testing.T) {
	agg := aggregator.New(newTally, mergeTally)

	s := agg.Acquire()
	atomic.AddInt64(&s.Value().n, 10)
	s.Release()
	s.Release()

	require.Equal(t, int64(10), agg.Now().n)

	st := agg.Stats()
	assert.Equal(t, 0, st.Live)
	assert.Equal(t, uint64(1), st.Retired)
}

func TestDelayedReturnsLastMerge(t *testing.T) {
	agg := aggregator.New(newTally, mergeTally)
	s := agg.Acquire()
	defer s.Release()

	atomic.AddInt64(&s.Value().n, 1)
	first := agg.Delayed()
	require.Equal(t, int64(1), first.n)

	atomic.AddInt64(&s.Value().n, 1)
	assert.Same(t, first, agg.Delayed(), "Delayed must not merge again")
	assert.Equal(t, int64(2), agg.Now().n)
	assert.Equal(t, int64(2), agg.Delayed().n)
}

func TestConcurrentWritersAndRetirement(t *testing.T) {
	agg := aggregator.New(newTally, mergeTally)

	const writers = 32
	const perWriter = 5000

	stop := make(chan struct{})
	var readers sync.WaitGroup
	readers.Add(1)
	go func() {
		defer readers.Done()
		var last int64
		for {
			select {
			case <-stop:
				return
			default:
			}
			n := agg.Now().n
			if n < last {
				t.Errorf("merged total went backwards: %d after %d", n, last)
				return
			}
			last = n
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := agg.Acquire()
			defer s.Release()
			for i := 0; i < perWriter; i++ {
				atomic.AddInt64(&s.Value().n, 1)
			}
		}()
	}
	wg.Wait()
	close(stop)
	readers.Wait()

	assert.Equal(t, int64(writers*perWriter), agg.Now().n)
	assert.Equal(t, uint64(writers), agg.Stats().Retired)
}

func TestRunRefreshesDelayed(t *testing.T) {
	clock := clockz.NewFakeClock()
	agg := aggregator.New(newTally, mergeTally, aggregator.WithClock(clock))
	s := agg.Acquire()
	defer s.Release()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- agg.Run(ctx, time.Second) }()

	require.Equal(t, int64(0), agg.Now().n)
	atomic.AddInt64(&s.Value().n, 5)
	require.Eventually(t, func() bool {
		clock.Advance(time.Second)
		return atomic.LoadInt64(&agg.Delayed().n) == 5
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	err := <-done
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestConcurrentNowKeepsDelayedMonotonic(t *testing.T) {
	agg := aggregator.New(newTally, mergeTally)
	s := agg.Acquire()
	defer s.Release()

	stop := make(chan struct{})
	var writer sync.WaitGroup
	writer.Add(1)
	go func() {
		defer writer.Done()
		for {
			select {
			case <-stop:
				return
			default:
				atomic.AddInt64(&s.Value().n, 1)
			}
		}
	}()

	const mergers = 8
	const rounds = 2000

	var wg sync.WaitGroup
	for m := 0; m < mergers; m++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				seen := agg.Now().n
				if d := agg.Delayed().n; d < seen {
					t.Errorf("Delayed returned %d after Now returned %d", d, seen)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(stop)
	writer.Wait()

	assert.Equal(t, uint64(mergers*rounds), agg.Stats().Merges)
}
