package farmz

import "sync/atomic"

// GaugeValue is a single shared cell. Gauges are not partitioned per writer;
// every update is an atomic store and the last one wins.
type GaugeValue struct {
	value atomic.Int64
}

// Update stores v.
func (g *GaugeValue) Update(v int64) {
	g.value.Store(v)
}

// Get returns the most recently stored value.
func (g *GaugeValue) Get() int64 {
	return g.value.Load()
}

// GaugeInfo describes a registered gauge and owns its value.
type GaugeInfo struct {
	key     Key
	desc    string
	subType string
	gauge   GaugeValue
}

// Key returns the gauge's name.
func (g *GaugeInfo) Key() Key { return g.key }

// Description returns the human readable description.
func (g *GaugeInfo) Description() string { return g.desc }

// SubType returns the sub-type, possibly empty.
func (g *GaugeInfo) SubType() string { return g.subType }

// Label returns the description with the sub-type suffix, if any.
func (g *GaugeInfo) Label() string { return label(g.desc, g.subType) }

// Get returns the gauge's current value.
func (g *GaugeInfo) Get() int64 { return g.gauge.Get() }
