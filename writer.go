package farmz

import (
	"runtime"

	"github.com/zoobzio/farmz/aggregator"
)

// Writer is a goroutine's private buffer in a group. Its updates touch no
// memory shared with other writers. A Writer must not be used from more than
// one goroutine at a time.
//
// Close the Writer when the goroutine is done: its counts move into the
// group's retired total and stay visible to every later read. A Writer that
// is dropped without Close is retired when the garbage collector reclaims it.
type Writer struct {
	g      *Group
	st     *sealed
	slot   *aggregator.Slot[Snapshot]
	closed bool
}

func (w *Writer) buf() *Snapshot {
	if w.closed {
		panic(ErrWriterClosed)
	}
	if w.slot == nil {
		w.slot = w.st.agg.Acquire()
		runtime.AddCleanup(w, (*aggregator.Slot[Snapshot]).Release, w.slot)
	}
	return w.slot.Value()
}

// CounterIncrement adds v to a counter.
func (w *Writer) CounterIncrement(id CounterID, v int64) {
	idx := w.g.counterIndex(id)
	w.buf().Counter(idx).Increment(v)
}

// CounterDecrement subtracts v from a counter.
func (w *Writer) CounterDecrement(id CounterID, v int64) {
	idx := w.g.counterIndex(id)
	w.buf().Counter(idx).Decrement(v)
}

// HistogramObserve records v.
func (w *Writer) HistogramObserve(id HistogramID, v int64) {
	idx := w.g.histogramIndex(id)
	w.buf().Histogram(idx).Observe(v, w.st.bounds[idx])
}

// GaugeUpdate stores v in a gauge. Gauges are shared, so this is the same as
// Group.GaugeUpdate.
func (w *Writer) GaugeUpdate(id GaugeID, v int64) {
	if w.closed {
		panic(ErrWriterClosed)
	}
	idx := w.g.gaugeIndex(id)
	w.st.gauges[idx].gauge.Update(v)
}

// Time starts a stopwatch recording into a histogram of this writer.
func (w *Writer) Time(id HistogramID) *Stopwatch {
	idx := w.g.histogramIndex(id)
	return newStopwatch(w.g.clock, func(us int64) {
		w.buf().Histogram(idx).Observe(us, w.st.bounds[idx])
	})
}

// Close retires the writer. Closing twice is a no-op.
func (w *Writer) Close() {
	if w.closed {
		return
	}
	w.closed = true
	if w.slot != nil {
		w.slot.Release()
		w.slot = nil
	}
}
