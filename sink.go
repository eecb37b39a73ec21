package farmz

// Sink receives every metric of a group during Publish. Values passed to a
// Sink belong to a merged snapshot and must not be retained or modified.
type Sink interface {
	PublishCounter(group string, info *CounterInfo, value int64)
	PublishGauge(group string, info *GaugeInfo, value int64)
	PublishHistogram(group string, info *HistogramInfo, value *HistogramValue)
}

// SinkFuncs adapts plain functions to a Sink. Nil functions are skipped.
type SinkFuncs struct {
	Counter   func(group string, info *CounterInfo, value int64)
	Gauge     func(group string, info *GaugeInfo, value int64)
	Histogram func(group string, info *HistogramInfo, value *HistogramValue)
}

// PublishCounter calls f.Counter.
func (f SinkFuncs) PublishCounter(group string, info *CounterInfo, value int64) {
	if f.Counter != nil {
		f.Counter(group, info, value)
	}
}

// PublishGauge calls f.Gauge.
func (f SinkFuncs) PublishGauge(group string, info *GaugeInfo, value int64) {
	if f.Gauge != nil {
		f.Gauge(group, info, value)
	}
}

// PublishHistogram calls f.Histogram.
func (f SinkFuncs) PublishHistogram(group string, info *HistogramInfo, value *HistogramValue) {
	if f.Histogram != nil {
		f.Histogram(group, info, value)
	}
}
