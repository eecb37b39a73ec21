package farmz_test

import (
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/zoobzio/farmz"
	farmztesting "github.com/zoobzio/farmz/testing"
)

func TestWriter_ContributionsSurviveClose(t *testing.T) {
	g := farmztesting.NewTestGroup(t, "durable")
	c := g.RegisterCounter(TestCounterKey, "Counter")
	h := g.RegisterHistogram(TestHistKey, "Latency", smallBuckets)

	const workers = 16
	const amount = 7
	const observes = 20

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := g.Writer()
			defer w.Close()

			w.CounterIncrement(c, amount)
			for j := 0; j < observes; j++ {
				w.HistogramObserve(h, 42)
			}
		}()
	}
	wg.Wait()

	stats := g.Stats()
	if stats.Retired != workers {
		t.Errorf("Expected %d retired writers, got %d", workers, stats.Retired)
	}

	r := g.Result(true)
	if got := r.Counters[0].Value; got != workers*amount {
		t.Errorf("Counter = %d, want %d", got, workers*amount)
	}
	if got := r.Histograms[0].Count; got != workers*observes {
		t.Errorf("Histogram count = %d, want %d", got, workers*observes)
	}
}

func TestWriter_LiveAndRetiredAreBothVisible(t *testing.T) {
	g := farmztesting.NewTestGroup(t, "mixed")
	c := g.RegisterCounter(TestCounterKey, "Counter")

	done := g.Writer()
	done.CounterIncrement(c, 3)
	done.Close()

	live := g.Writer()
	defer live.Close()
	live.CounterIncrement(c, 4)

	g.CounterIncrement(c, 5)

	if got := g.Result(true).Counters[0].Value; got != 12 {
		t.Errorf("Counter = %d, want 12", got)
	}
}

func TestWriter_Decrement(t *testing.T) {
	g := farmztesting.NewTestGroup(t, "decrement")
	c := g.RegisterCounter(TestCounterKey, "In flight", farmz.AsGauge())

	w := g.Writer()
	w.CounterIncrement(c, 10)
	w.CounterDecrement(c, 4)
	w.Close()

	if got := g.Result(true).Counters[0].Value; got != 6 {
		t.Errorf("Counter = %d, want 6", got)
	}
}

func TestWriter_CloseIsIdempotent(t *testing.T) {
	g := farmztesting.NewTestGroup(t, "idempotent")
	c := g.RegisterCounter(TestCounterKey, "Counter")

	w := g.Writer()
	w.CounterIncrement(c, 1)
	w.Close()
	w.Close()

	if stats := g.Stats(); stats.Retired != 1 {
		t.Errorf("Double close retired %d slots, want 1", stats.Retired)
	}
	if got := g.Result(true).Counters[0].Value; got != 1 {
		t.Errorf("Double close changed the total to %d", got)
	}
}

func TestWriter_UnusedAcquiresNothing(t *testing.T) {
	g := farmztesting.NewTestGroup(t, "lazy", farmz.WithStripes(1))
	g.RegisterCounter(TestCounterKey, "Counter")

	w := g.Writer()
	if live := g.Stats().Live; live != 1 {
		t.Errorf("Unused writer should not hold a slot, live = %d", live)
	}
	w.Close()
	if retired := g.Stats().Retired; retired != 0 {
		t.Errorf("Unused writer should retire nothing, retired = %d", retired)
	}
}

func TestWriter_DroppedWithoutCloseIsRetired(t *testing.T) {
	g := farmztesting.NewTestGroup(t, "dropped", farmz.WithStripes(1))
	c := g.RegisterCounter(TestCounterKey, "Counter")

	func() {
		w := g.Writer()
		w.CounterIncrement(c, 3)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for g.Stats().Retired != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("Dropped writer was never retired: %+v", g.Stats())
		}
		runtime.GC()
		time.Sleep(time.Millisecond)
	}
	if live := g.Stats().Live; live != 1 {
		t.Errorf("Dropped writer still holds a slot, live = %d", live)
	}
	if got := g.Result(true).Counters[0].Value; got != 3 {
		t.Errorf("Dropped writer lost its counts, got %d", got)
	}
}

func TestWriter_UseAfterClosePanics(t *testing.T) {
	g := farmztesting.NewTestGroup(t, "closed")
	c := g.RegisterCounter(TestCounterKey, "Counter")
	ga := g.RegisterGauge(TestGaugeKey, "Gauge")

	w := g.Writer()
	w.Close()

	expectPanic(t, farmz.ErrWriterClosed, func() {
		w.CounterIncrement(c, 1)
	})
	expectPanic(t, farmz.ErrWriterClosed, func() {
		w.GaugeUpdate(ga, 1)
	})
}

func TestWriter_ForeignHandlePanics(t *testing.T) {
	a := farmztesting.NewTestGroup(t, "a")
	b := farmztesting.NewTestGroup(t, "b")
	ha := a.RegisterHistogram(TestHistKey, "Latency", smallBuckets)
	b.RegisterHistogram(TestHistKey, "Latency", smallBuckets)

	w := b.Writer()
	defer w.Close()

	expectPanic(t, farmz.ErrForeignHandle, func() {
		w.HistogramObserve(ha, 1)
	})
}

func TestWriter_ReadsDuringWrites(t *testing.T) {
	g := farmztesting.NewTestGroup(t, "monotonic")
	c := g.RegisterCounter(TestCounterKey, "Counter")

	const workers = 8
	const ops = 2000

	stop := make(chan struct{})
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		var last int64
		for {
			select {
			case <-stop:
				return
			default:
			}
			v := g.Result(true).Counters[0].Value
			if v < last {
				t.Errorf("Counter went backwards: %d after %d", v, last)
				return
			}
			last = v
		}
	}()

	farmztesting.GenerateWriterLoad(t, g, farmztesting.WriterLoadConfig{
		Workers:    workers,
		Operations: ops,
		Operation: func(w *farmz.Writer, _, _ int) {
			w.CounterIncrement(c, 1)
		},
	})
	close(stop)
	<-readerDone

	if got := g.Result(true).Counters[0].Value; got != workers*ops {
		t.Errorf("Counter = %d, want %d", got, workers*ops)
	}
}
