// Package prometheus exposes a farmz.Farm as a prometheus.Collector.
//
// Every scrape publishes the latest merge of each group. Counters become
// Prometheus counters, or gauges when registered with farmz.AsGauge; gauges
// become gauges; histograms become const histograms with cumulative buckets.
// Metric names are <namespace>_<group>_<key> and every series carries a
// "type" label holding the metric's sub-type.
//
// Names must be unique across the farm. A counter and a gauge sharing a key
// in one group map to one name, as do joins like "a_b"+"c" and "a"+"b_c".
// Within a scrape the first metric to claim a name wins and every later
// claimant is reported as an invalid metric wrapping ErrNameCollision, so
// Gather fails loudly instead of merging unrelated series.
//
//	reg := prometheus.NewRegistry()
//	reg.MustRegister(farmzprom.NewCollector(farmz.Default(), farmzprom.WithNamespace("svc")))
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
package prometheus

import (
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zoobzio/farmz"
)

// TypeLabel is the label carrying a metric's sub-type.
const TypeLabel = "type"

// ErrNameCollision is reported when two metrics map to the same name.
var ErrNameCollision = errors.New("prometheus: metric name collision")

// Option configures a Collector.
type Option func(*Collector)

// WithNamespace prefixes every metric name.
func WithNamespace(namespace string) Option {
	return func(c *Collector) {
		c.namespace = namespace
	}
}

// Collector publishes a farm on every Collect. It is unchecked: the set of
// groups changes at runtime, so Describe sends nothing.
type Collector struct {
	farm      *farmz.Farm
	namespace string
}

// NewCollector creates a collector for farm.
func NewCollector(farm *farmz.Farm, opts ...Option) *Collector {
	c := &Collector{farm: farm}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(chan<- *prometheus.Desc) {}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.farm.Publish(&sink{namespace: c.namespace, ch: ch, owners: make(map[string]string)})
}

type sink struct {
	namespace string
	ch        chan<- prometheus.Metric
	// owners maps each name sent this scrape to the metric that claimed it.
	owners map[string]string
}

// desc builds the descriptor for a metric. It returns a non-nil error when
// the name was already claimed by a different metric in this scrape.
func (s *sink) desc(kind, group string, key farmz.Key, help string) (*prometheus.Desc, error) {
	if help == "" {
		help = string(key)
	}
	name := MetricName(s.namespace, group, string(key))
	desc := prometheus.NewDesc(name, help, []string{TypeLabel}, nil)

	owner := kind + " " + group + "/" + string(key)
	if prev, ok := s.owners[name]; ok && prev != owner {
		return desc, fmt.Errorf("%w: %s and %s both map to %q", ErrNameCollision, prev, owner, name)
	}
	s.owners[name] = owner
	return desc, nil
}

func (s *sink) send(desc *prometheus.Desc, m prometheus.Metric, err error) {
	if err != nil {
		s.ch <- prometheus.NewInvalidMetric(desc, err)
		return
	}
	s.ch <- m
}

func (s *sink) PublishCounter(group string, info *farmz.CounterInfo, value int64) {
	vt := prometheus.CounterValue
	if info.PublishAs() == farmz.PublishAsGauge {
		vt = prometheus.GaugeValue
	}
	desc, err := s.desc("counter", group, info.Key(), info.Description())
	if err != nil {
		s.send(desc, nil, err)
		return
	}
	m, err := prometheus.NewConstMetric(desc, vt, float64(value), info.SubType())
	s.send(desc, m, err)
}

func (s *sink) PublishGauge(group string, info *farmz.GaugeInfo, value int64) {
	desc, err := s.desc("gauge", group, info.Key(), info.Description())
	if err != nil {
		s.send(desc, nil, err)
		return
	}
	m, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, float64(value), info.SubType())
	s.send(desc, m, err)
}

func (s *sink) PublishHistogram(group string, info *farmz.HistogramInfo, value *farmz.HistogramValue) {
	b := info.Boundaries()
	buckets := make(map[float64]uint64, b.Len())
	var cum uint64
	for i := 0; i < b.Len(); i++ {
		cum += uint64(value.Freq(i))
		buckets[float64(b.At(i))] = cum
	}
	count := cum + uint64(value.Freq(b.Len()))

	desc, err := s.desc("histogram", group, info.Key(), info.Description())
	if err != nil {
		s.send(desc, nil, err)
		return
	}
	m, err := prometheus.NewConstHistogram(desc, count, float64(value.Sum()), buckets, info.SubType())
	s.send(desc, m, err)
}

// MetricName joins the non-empty parts with underscores and replaces every
// character Prometheus does not allow in a metric name.
func MetricName(parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('_')
		}
		for _, r := range p {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == ':':
				b.WriteRune(r)
			default:
				b.WriteByte('_')
			}
		}
	}
	name := b.String()
	if name != "" && name[0] >= '0' && name[0] <= '9' {
		name = "_" + name
	}
	return name
}
