package integration

import "github.com/zoobzio/farmz"

// Shared metric keys for all integration tests.
const (
	// Common service metrics.
	RequestsKey farmz.Key = "requests"
	ErrorsKey   farmz.Key = "errors"
	LatencyKey  farmz.Key = "latency"
	InFlightKey farmz.Key = "in_flight"

	// Race test specific keys.
	TestCounterKey   farmz.Key = "test_counter"
	TestGaugeKey     farmz.Key = "test_gauge"
	TestHistogramKey farmz.Key = "test_histogram"

	// Shared test keys.
	SharedCounterKey farmz.Key = "shared_counter"
	SharedGaugeKey   farmz.Key = "shared_gauge"
	SharedHistKey    farmz.Key = "shared_hist"
)

// latencyBuckets are the edges used for latency histograms in these tests.
var latencyBuckets = farmz.MustBoundaries(100, 500, 1_000, 5_000, 10_000)

// counterValue merges g now and returns the counter's total.
func counterValue(g *farmz.Group, id farmz.CounterID) int64 {
	return g.Snapshot(true).Counter(id.Index()).Get()
}

// histogramCount merges g now and returns the number of observations.
func histogramCount(g *farmz.Group, id farmz.HistogramID) int64 {
	return g.HistogramInfo(id).Count(g.Snapshot(true).Histogram(id.Index()))
}
