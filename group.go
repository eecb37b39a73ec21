package farmz

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/zoobzio/clockz"

	"github.com/zoobzio/farmz/aggregator"
)

var groupSeq atomic.Uint64

// GroupOption configures a Group.
type GroupOption func(*Group)

// WithClock sets the clock used by stopwatches and the aggregator.
func WithClock(clock clockz.Clock) GroupOption {
	return func(g *Group) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// WithStripes sets how many shared buffers back the Group update methods.
// It is rounded up to a power of two. Defaults to GOMAXPROCS.
func WithStripes(n int) GroupOption {
	return func(g *Group) {
		g.nstripes = n
	}
}

// WithGroupLogger sets the group's logger.
func WithGroupLogger(logger *slog.Logger) GroupOption {
	return func(g *Group) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// Group is a named set of metrics sharing one aggregator.
//
// Metrics are registered first. The group is then sealed, either by a Farm
// registering it or by its first use, which sizes the aggregator; no metric
// can be added afterwards. Registration order defines each metric's index
// and indices never change.
type Group struct {
	name     string
	clock    clockz.Clock
	nstripes int
	logger   *slog.Logger

	mu            sync.Mutex
	counters      []*CounterInfo
	gauges        []*GaugeInfo
	histograms    []*HistogramInfo
	counterKeys   map[Key]int
	gaugeKeys     map[Key]int
	histogramKeys map[Key]int

	sealOnce sync.Once
	state    atomic.Pointer[sealed]
}

// sealed is the frozen view of a group once its aggregator exists.
type sealed struct {
	agg        *aggregator.Aggregator[Snapshot]
	stripes    stripes
	counters   []*CounterInfo
	gauges     []*GaugeInfo
	histograms []*HistogramInfo
	bounds     []Boundaries
}

// NewGroup creates an unsealed group. An empty name is replaced by
// "metrics_group_<n>".
func NewGroup(name string, opts ...GroupOption) *Group {
	if name == "" {
		name = fmt.Sprintf("metrics_group_%d", groupSeq.Add(1)-1)
	}
	g := &Group{
		name:          name,
		clock:         clockz.RealClock,
		nstripes:      runtime.GOMAXPROCS(0),
		logger:        slog.Default(),
		counterKeys:   make(map[Key]int),
		gaugeKeys:     make(map[Key]int),
		histogramKeys: make(map[Key]int),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name returns the group's name.
func (g *Group) Name() string {
	return g.name
}

// RegisterCounter adds a counter and returns its handle. It panics if the
// group is sealed or key is already a counter in this group.
func (g *Group) RegisterCounter(key Key, desc string, opts ...MetricOption) CounterID {
	o := applyMetricOptions(opts)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.mustBeOpen(key)
	if _, ok := g.counterKeys[key]; ok {
		panic(fmt.Errorf("%w: counter %q in group %q", ErrDuplicateMetric, key, g.name))
	}

	g.counters = append(g.counters, &CounterInfo{
		key:       key,
		desc:      desc,
		subType:   o.subType,
		publishAs: o.publishAs,
	})
	idx := len(g.counters) - 1
	g.counterKeys[key] = idx
	return CounterID{g: g, idx: idx}
}

// RegisterGauge adds a gauge and returns its handle. It panics if the group
// is sealed or key is already a gauge in this group.
func (g *Group) RegisterGauge(key Key, desc string, opts ...MetricOption) GaugeID {
	o := applyMetricOptions(opts)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.mustBeOpen(key)
	if _, ok := g.gaugeKeys[key]; ok {
		panic(fmt.Errorf("%w: gauge %q in group %q", ErrDuplicateMetric, key, g.name))
	}

	g.gauges = append(g.gauges, &GaugeInfo{
		key:     key,
		desc:    desc,
		subType: o.subType,
	})
	idx := len(g.gauges) - 1
	g.gaugeKeys[key] = idx
	return GaugeID{g: g, idx: idx}
}

// RegisterHistogram adds a histogram and returns its handle. Zero
// boundaries select DefaultBuckets. It panics if the group is sealed or key
// is already a histogram in this group.
func (g *Group) RegisterHistogram(key Key, desc string, bounds Boundaries, opts ...MetricOption) HistogramID {
	o := applyMetricOptions(opts)
	if bounds.IsZero() {
		bounds = DefaultBuckets
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.mustBeOpen(key)
	if _, ok := g.histogramKeys[key]; ok {
		panic(fmt.Errorf("%w: histogram %q in group %q", ErrDuplicateMetric, key, g.name))
	}

	g.histograms = append(g.histograms, &HistogramInfo{
		key:     key,
		desc:    desc,
		subType: o.subType,
		bounds:  bounds,
	})
	idx := len(g.histograms) - 1
	g.histogramKeys[key] = idx
	return HistogramID{g: g, idx: idx}
}

// mustBeOpen panics if the group is sealed. Caller holds g.mu.
func (g *Group) mustBeOpen(key Key) {
	if g.state.Load() != nil {
		panic(fmt.Errorf("%w: cannot register %q in group %q", ErrGroupSealed, key, g.name))
	}
}

// CounterID looks up a counter handle by key.
func (g *Group) CounterID(key Key) (CounterID, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	idx, ok := g.counterKeys[key]
	if !ok {
		return CounterID{}, false
	}
	return CounterID{g: g, idx: idx}, true
}

// GaugeID looks up a gauge handle by key.
func (g *Group) GaugeID(key Key) (GaugeID, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	idx, ok := g.gaugeKeys[key]
	if !ok {
		return GaugeID{}, false
	}
	return GaugeID{g: g, idx: idx}, true
}

// HistogramID looks up a histogram handle by key.
func (g *Group) HistogramID(key Key) (HistogramID, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	idx, ok := g.histogramKeys[key]
	if !ok {
		return HistogramID{}, false
	}
	return HistogramID{g: g, idx: idx}, true
}

// Seal sizes the group's aggregator. It is called by Farm.Register and by
// the first update or read; calling it again does nothing.
func (g *Group) Seal() {
	g.sealOnce.Do(func() {
		g.mu.Lock()
		defer g.mu.Unlock()

		st := &sealed{
			counters:   g.counters,
			gauges:     g.gauges,
			histograms: g.histograms,
			bounds:     make([]Boundaries, len(g.histograms)),
		}
		for i, h := range g.histograms {
			st.bounds[i] = h.bounds
		}

		nc, nh := len(st.counters), len(st.histograms)
		st.agg = aggregator.New(
			func() *Snapshot { return newSnapshot(nc, nh) },
			func(dst, src *Snapshot) { mergeSnapshot(dst, src, st.bounds) },
			aggregator.WithClock(g.clock),
		)
		st.stripes = newStripes(st.agg, g.nstripes)
		g.state.Store(st)

		g.logger.Debug("metrics group sealed",
			slog.String("group", g.name),
			slog.Int("counters", nc),
			slog.Int("gauges", len(st.gauges)),
			slog.Int("histograms", nh),
			slog.Int("stripes", len(st.stripes.slots)),
		)
	})
}

// Sealed reports whether the group has been sealed.
func (g *Group) Sealed() bool {
	return g.state.Load() != nil
}

func (g *Group) frozen() *sealed {
	if st := g.state.Load(); st != nil {
		return st
	}
	g.Seal()
	return g.state.Load()
}

func (g *Group) counterIndex(id CounterID) int {
	if id.g != g {
		panic(fmt.Errorf("%w: counter %d used with group %q", ErrForeignHandle, id.idx, g.name))
	}
	return id.idx
}

func (g *Group) gaugeIndex(id GaugeID) int {
	if id.g != g {
		panic(fmt.Errorf("%w: gauge %d used with group %q", ErrForeignHandle, id.idx, g.name))
	}
	return id.idx
}

func (g *Group) histogramIndex(id HistogramID) int {
	if id.g != g {
		panic(fmt.Errorf("%w: histogram %d used with group %q", ErrForeignHandle, id.idx, g.name))
	}
	return id.idx
}

// Writer returns a new Writer for the calling goroutine.
func (g *Group) Writer() *Writer {
	return &Writer{g: g, st: g.frozen()}
}

// CounterIncrement adds v to a counter through a shared stripe.
func (g *Group) CounterIncrement(id CounterID, v int64) {
	idx := g.counterIndex(id)
	g.frozen().stripes.pick().Counter(idx).Increment(v)
}

// CounterDecrement subtracts v from a counter through a shared stripe.
func (g *Group) CounterDecrement(id CounterID, v int64) {
	idx := g.counterIndex(id)
	g.frozen().stripes.pick().Counter(idx).Decrement(v)
}

// HistogramObserve records v through a shared stripe.
func (g *Group) HistogramObserve(id HistogramID, v int64) {
	idx := g.histogramIndex(id)
	st := g.frozen()
	st.stripes.pick().Histogram(idx).Observe(v, st.bounds[idx])
}

// GaugeUpdate stores v in a gauge.
func (g *Group) GaugeUpdate(id GaugeID, v int64) {
	idx := g.gaugeIndex(id)
	g.frozen().gauges[idx].gauge.Update(v)
}

// Gauge returns a gauge's current value.
func (g *Group) Gauge(id GaugeID) int64 {
	idx := g.gaugeIndex(id)
	return g.frozen().gauges[idx].Get()
}

// Time starts a stopwatch that records into a histogram through a shared
// stripe.
func (g *Group) Time(id HistogramID) *Stopwatch {
	idx := g.histogramIndex(id)
	st := g.frozen()
	return newStopwatch(g.clock, func(us int64) {
		st.stripes.pick().Histogram(idx).Observe(us, st.bounds[idx])
	})
}

// CounterInfo returns a counter's descriptor.
func (g *Group) CounterInfo(id CounterID) *CounterInfo {
	idx := g.counterIndex(id)
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.counters[idx]
}

// GaugeInfo returns a gauge's descriptor.
func (g *Group) GaugeInfo(id GaugeID) *GaugeInfo {
	idx := g.gaugeIndex(id)
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gauges[idx]
}

// HistogramInfo returns a histogram's descriptor.
func (g *Group) HistogramInfo(id HistogramID) *HistogramInfo {
	idx := g.histogramIndex(id)
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.histograms[idx]
}

// Snapshot returns merged counter and histogram values. With needLatest the
// group merges now; otherwise the last merge is reused. The result is shared
// and must not be modified.
func (g *Group) Snapshot(needLatest bool) *Snapshot {
	st := g.frozen()
	if needLatest {
		return st.agg.Now()
	}
	return st.agg.Delayed()
}

// Refresh merges now so the next delayed read sees current values.
func (g *Group) Refresh() {
	g.frozen().agg.Now()
}

// Stats reports the group's aggregator bookkeeping.
func (g *Group) Stats() aggregator.Stats {
	return g.frozen().agg.Stats()
}

// gather walks every metric with its merged value.
func (g *Group) gather(
	needLatest bool,
	counterFn func(*CounterInfo, *CounterValue),
	gaugeFn func(*GaugeInfo),
	histogramFn func(*HistogramInfo, *HistogramValue),
) {
	st := g.frozen()
	snap := g.Snapshot(needLatest)

	for i, c := range st.counters {
		counterFn(c, snap.Counter(i))
	}
	for _, gi := range st.gauges {
		gaugeFn(gi)
	}
	for i, h := range st.histograms {
		histogramFn(h, snap.Histogram(i))
	}
}

// Result merges the group and derives one value per metric.
func (g *Group) Result(needLatest bool) *GroupResult {
	st := g.frozen()
	r := &GroupResult{
		Name:       g.name,
		Counters:   make([]CounterResult, 0, len(st.counters)),
		Gauges:     make([]GaugeResult, 0, len(st.gauges)),
		Histograms: make([]HistogramResult, 0, len(st.histograms)),
	}

	g.gather(needLatest,
		func(c *CounterInfo, v *CounterValue) {
			r.Counters = append(r.Counters, CounterResult{Info: c, Value: v.Get()})
		},
		func(gi *GaugeInfo) {
			r.Gauges = append(r.Gauges, GaugeResult{Info: gi, Value: gi.Get()})
		},
		func(h *HistogramInfo, v *HistogramValue) {
			r.Histograms = append(r.Histograms, newHistogramResult(h, v))
		},
	)
	return r
}

// JSON renders Result as the group's JSON document.
func (g *Group) JSON(needLatest bool) ([]byte, error) {
	return g.Result(needLatest).MarshalJSON()
}

// Publish feeds the latest value of every metric to sink.
func (g *Group) Publish(sink Sink) {
	g.gather(true,
		func(c *CounterInfo, v *CounterValue) {
			sink.PublishCounter(g.name, c, v.Get())
		},
		func(gi *GaugeInfo) {
			sink.PublishGauge(g.name, gi, gi.Get())
		},
		func(h *HistogramInfo, v *HistogramValue) {
			sink.PublishHistogram(g.name, h, v)
		},
	)
}
