package farmz_test

import (
	"math"
	"testing"

	"github.com/zoobzio/farmz"
	farmztesting "github.com/zoobzio/farmz/testing"
)

func TestCounterValue_IncrementDecrement(t *testing.T) {
	var c farmz.CounterValue

	if c.Get() != 0 {
		t.Errorf("Initial counter value should be 0, got %d", c.Get())
	}

	c.Increment(1)
	c.Increment(5)
	c.Decrement(2)

	if c.Get() != 4 {
		t.Errorf("Expected 4, got %d", c.Get())
	}
}

func TestCounterValue_Wraps(t *testing.T) {
	var c farmz.CounterValue
	c.Increment(math.MaxInt64)
	c.Increment(1)

	if c.Get() != math.MinInt64 {
		t.Errorf("Expected wrap to MinInt64, got %d", c.Get())
	}
}

func TestCounterValue_Merge(t *testing.T) {
	var a, b farmz.CounterValue
	a.Increment(3)
	b.Increment(4)

	if got := a.Merge(&b); got != 7 {
		t.Errorf("Merge returned %d, want 7", got)
	}
	if a.Get() != 7 || b.Get() != 4 {
		t.Errorf("After merge a=%d b=%d, want 7 and 4", a.Get(), b.Get())
	}
}

func TestCounterValue_MergeOrderIndependent(t *testing.T) {
	values := []int64{5, -3, 11, 0, 42, -17}

	forward := farmz.CounterValue{}
	for _, v := range values {
		var c farmz.CounterValue
		c.Increment(v)
		forward.Merge(&c)
	}

	backward := farmz.CounterValue{}
	for i := len(values) - 1; i >= 0; i-- {
		var c farmz.CounterValue
		c.Increment(values[i])
		backward.Merge(&c)
	}

	// ((v0+v1)+(v2+v3))+(v4+v5)
	pairs := make([]farmz.CounterValue, 3)
	for i := range pairs {
		pairs[i].Increment(values[2*i])
		pairs[i].Increment(values[2*i+1])
	}
	grouped := farmz.CounterValue{}
	pairs[0].Merge(&pairs[1])
	grouped.Merge(&pairs[2])
	grouped.Merge(&pairs[0])

	if forward.Get() != backward.Get() || forward.Get() != grouped.Get() {
		t.Errorf("Merge order changed the result: %d, %d, %d", forward.Get(), backward.Get(), grouped.Get())
	}
}

func TestGroup_CounterIncrementDecrement(t *testing.T) {
	g := farmztesting.NewTestGroup(t, "counters")
	c := g.RegisterCounter(TestCounterKey, "Counter")

	g.CounterIncrement(c, 10)
	g.CounterDecrement(c, 3)

	if v := g.Result(true).Counters[0].Value; v != 7 {
		t.Errorf("Expected 7, got %d", v)
	}
}

func TestGroup_ConcurrentStripedCounter(t *testing.T) {
	g := farmztesting.NewTestGroup(t, "striped", farmz.WithStripes(4))
	c := g.RegisterCounter(TestCounterKey, "Counter")

	const goroutines = 64
	const operations = 1000

	farmztesting.GenerateLoad(t, farmztesting.LoadConfig{
		Workers:    goroutines,
		Operations: operations,
		Operation: func(_, _ int) {
			g.CounterIncrement(c, 1)
		},
	})

	if v := g.Result(true).Counters[0].Value; v != goroutines*operations {
		t.Errorf("Expected %d, got %d", goroutines*operations, v)
	}
}
