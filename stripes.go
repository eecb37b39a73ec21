package farmz

import (
	"math/bits"
	"math/rand/v2"

	"github.com/zoobzio/farmz/aggregator"
)

// stripes is a fixed set of buffers shared by every goroutine that updates a
// group without a Writer. Updates are atomic adds, so sharing only costs
// contention, and spreading goroutines across stripes keeps that low. The
// stripes are never released.
type stripes struct {
	slots []*aggregator.Slot[Snapshot]
	mask  uint32
}

func newStripes(agg *aggregator.Aggregator[Snapshot], n int) stripes {
	if n < 1 {
		n = 1
	}
	size := 1 << bits.Len(uint(n-1))
	s := stripes{
		slots: make([]*aggregator.Slot[Snapshot], size),
		mask:  uint32(size - 1),
	}
	for i := range s.slots {
		s.slots[i] = agg.Acquire()
	}
	return s
}

func (s stripes) pick() *Snapshot {
	return s.slots[rand.Uint32()&s.mask].Value()
}
