// Package farmz provides an in-process metrics engine for high-throughput
// services: counters, gauges and latency histograms that many goroutines can
// update without contending, and a reporting path that merges everything into
// a consistent snapshot on demand.
//
// # Groups and Keys
//
// Metrics are declared on a Group. Every metric name is a Key, and
// registration returns a typed handle that update calls take directly, so
// the hot path is an index into a slice:
//
//	const (
//	    CacheHits     = farmz.Key("cache_hits")
//	    QueueDepth    = farmz.Key("queue_depth")
//	    LookupLatency = farmz.Key("lookup_latency")
//	)
//
//	g := farmz.NewGroup("cache")
//	hits := g.RegisterCounter(CacheHits, "Cache hits", farmz.WithSubType("read"))
//	depth := g.RegisterGauge(QueueDepth, "Queue depth")
//	lat := g.RegisterHistogram(LookupLatency, "Lookup latency", farmz.DefaultBuckets)
//	farmz.Default().Register(g)
//
// Keys are resolved per group. Two groups may register the same Key without
// interfering, and a handle only works with the group that issued it.
//
// # Writers
//
// Counters and histograms are partitioned: each Writer owns a private buffer
// and updates it with uncontended atomic adds. A goroutine doing sustained
// work should hold its own Writer and Close it on exit; closing folds the
// buffer into the group's retired total so nothing is lost:
//
//	w := g.Writer()
//	defer w.Close()
//	w.CounterIncrement(hits, 1)
//	w.HistogramObserve(lat, 120)
//
// Call sites that cannot carry a Writer use the Group methods directly, which
// spread updates across a fixed set of shared stripes.
//
// Gauges are not partitioned. A gauge is a single atomic cell, last write
// wins.
//
// # Reading
//
// Group.Result and Farm.Result merge all buffers. With needLatest set they
// merge immediately; otherwise they reuse the last merge, which Farm.Run
// refreshes periodically. Results can be rendered as JSON or fed to a Sink;
// the export/prometheus and export/otel packages are Sinks for those
// ecosystems.
package farmz

// Key names a metric within a group.
type Key string

// CounterID is the handle returned by RegisterCounter.
type CounterID struct {
	g   *Group
	idx int
}

// GaugeID is the handle returned by RegisterGauge.
type GaugeID struct {
	g   *Group
	idx int
}

// HistogramID is the handle returned by RegisterHistogram.
type HistogramID struct {
	g   *Group
	idx int
}

// Index returns the registration position of the counter within its group.
func (id CounterID) Index() int { return id.idx }

// Index returns the registration position of the gauge within its group.
func (id GaugeID) Index() int { return id.idx }

// Index returns the registration position of the histogram within its group.
func (id HistogramID) Index() int { return id.idx }

// PublishAs hints how a counter should be exposed by exporters.
type PublishAs int

const (
	// PublishAsCounter exposes the metric as a counter.
	PublishAsCounter PublishAs = iota
	// PublishAsGauge exposes the metric as a gauge, for counters that are
	// decremented.
	PublishAsGauge
)

// MetricOption configures a metric at registration.
type MetricOption func(*metricOptions)

type metricOptions struct {
	subType   string
	publishAs PublishAs
}

// WithSubType sets a sub-type that disambiguates metrics sharing a
// description. It is appended to the label as "<desc> - <sub_type>".
func WithSubType(subType string) MetricOption {
	return func(o *metricOptions) {
		o.subType = subType
	}
}

// AsGauge marks a counter to be published as a gauge. It has no effect on
// gauges and histograms.
func AsGauge() MetricOption {
	return func(o *metricOptions) {
		o.publishAs = PublishAsGauge
	}
}

func applyMetricOptions(opts []MetricOption) metricOptions {
	var o metricOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func label(desc, subType string) string {
	if subType == "" {
		return desc
	}
	return desc + " - " + subType
}
