package farmz

// Snapshot holds counter and histogram values for one buffer, or the merged
// values of a whole group. Gauges are not part of it.
type Snapshot struct {
	counters   []CounterValue
	histograms []HistogramValue
}

func newSnapshot(ncounters, nhistograms int) *Snapshot {
	return &Snapshot{
		counters:   make([]CounterValue, ncounters),
		histograms: make([]HistogramValue, nhistograms),
	}
}

// Counter returns the value at index i.
func (s *Snapshot) Counter(i int) *CounterValue {
	return &s.counters[i]
}

// Histogram returns the value at index i.
func (s *Snapshot) Histogram(i int) *HistogramValue {
	return &s.histograms[i]
}

// NumCounters returns the number of counters in s.
func (s *Snapshot) NumCounters() int { return len(s.counters) }

// NumHistograms returns the number of histograms in s.
func (s *Snapshot) NumHistograms() int { return len(s.histograms) }

// mergeSnapshot adds src into dst. bounds[i] are the boundaries of
// histogram i. src may be a live buffer; it is only read.
func mergeSnapshot(dst, src *Snapshot, bounds []Boundaries) {
	for i := range dst.counters {
		dst.counters[i].Merge(&src.counters[i])
	}
	for i := range dst.histograms {
		dst.histograms[i].Merge(&src.histograms[i], bounds[i])
	}
}
