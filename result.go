package farmz

import (
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Section names of a group's JSON document.
const (
	SectionCounters   = "Counters"
	SectionGauges     = "Gauges"
	SectionHistograms = "Histograms percentiles (usecs) avg/50/95/99"
)

// CounterResult pairs a counter with its merged value.
type CounterResult struct {
	Info  *CounterInfo
	Value int64
}

// GaugeResult pairs a gauge with its value at read time.
type GaugeResult struct {
	Info  *GaugeInfo
	Value int64
}

// HistogramResult pairs a histogram with its merged value and the derived
// quantities reported for it.
type HistogramResult struct {
	Info    *HistogramInfo
	Value   *HistogramValue
	Count   int64
	Average float64
	P50     float64
	P95     float64
	P99     float64
}

func newHistogramResult(h *HistogramInfo, v *HistogramValue) HistogramResult {
	return HistogramResult{
		Info:    h,
		Value:   v,
		Count:   h.Count(v),
		Average: h.Average(v),
		P50:     h.Percentile(v, 50),
		P95:     h.Percentile(v, 95),
		P99:     h.Percentile(v, 99),
	}
}

// Summary formats the histogram as "<avg> / <p50> / <p95> / <p99>".
func (r HistogramResult) Summary() string {
	var b strings.Builder
	b.WriteString(formatFloat(r.Average))
	b.WriteString(" / ")
	b.WriteString(formatFloat(r.P50))
	b.WriteString(" / ")
	b.WriteString(formatFloat(r.P95))
	b.WriteString(" / ")
	b.WriteString(formatFloat(r.P99))
	return b.String()
}

// formatFloat prints v with six significant digits, trailing zeros dropped.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// GroupResult is the derived view of one group at one point in time.
type GroupResult struct {
	Name       string
	Counters   []CounterResult
	Gauges     []GaugeResult
	Histograms []HistogramResult
}

// Document returns the result as nested maps keyed by section and label.
// Metrics sharing a label collapse to the last one registered.
func (r *GroupResult) Document() map[string]map[string]any {
	counters := make(map[string]any, len(r.Counters))
	for _, c := range r.Counters {
		counters[c.Info.Label()] = c.Value
	}

	gauges := make(map[string]any, len(r.Gauges))
	for _, g := range r.Gauges {
		gauges[g.Info.Label()] = g.Value
	}

	histograms := make(map[string]any, len(r.Histograms))
	for _, h := range r.Histograms {
		histograms[h.Info.Label()] = h.Summary()
	}

	return map[string]map[string]any{
		SectionCounters:   counters,
		SectionGauges:     gauges,
		SectionHistograms: histograms,
	}
}

// MarshalJSON renders Document. Map keys are sorted, so equal results
// produce identical bytes.
func (r *GroupResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Document())
}
