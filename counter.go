package farmz

import "sync/atomic"

// CounterValue is one buffer's share of a counter. Updates use atomic adds so
// a concurrent merge can read the value while its owner keeps writing.
type CounterValue struct {
	value int64
}

// Increment adds v. Overflow wraps.
func (c *CounterValue) Increment(v int64) {
	atomic.AddInt64(&c.value, v)
}

// Decrement subtracts v. Overflow wraps.
func (c *CounterValue) Decrement(v int64) {
	atomic.AddInt64(&c.value, -v)
}

// Get returns the current value.
func (c *CounterValue) Get() int64 {
	return atomic.LoadInt64(&c.value)
}

// Merge adds other into c and returns the new total.
func (c *CounterValue) Merge(other *CounterValue) int64 {
	return atomic.AddInt64(&c.value, other.Get())
}

// CounterInfo describes a registered counter.
type CounterInfo struct {
	key       Key
	desc      string
	subType   string
	publishAs PublishAs
}

// Key returns the counter's name.
func (c *CounterInfo) Key() Key { return c.key }

// Description returns the human readable description.
func (c *CounterInfo) Description() string { return c.desc }

// SubType returns the sub-type, possibly empty.
func (c *CounterInfo) SubType() string { return c.subType }

// PublishAs returns the exporter hint.
func (c *CounterInfo) PublishAs() PublishAs { return c.publishAs }

// Label returns the description with the sub-type suffix, if any.
func (c *CounterInfo) Label() string { return label(c.desc, c.subType) }
