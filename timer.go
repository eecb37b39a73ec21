package farmz

import (
	"time"

	"github.com/zoobzio/clockz"
)

// Stopwatch measures one operation and records its duration, in
// microseconds, into a histogram.
type Stopwatch struct {
	start  time.Time
	clock  clockz.Clock
	record func(us int64)
}

func newStopwatch(clock clockz.Clock, record func(int64)) *Stopwatch {
	return &Stopwatch{
		start:  clock.Now(),
		clock:  clock,
		record: record,
	}
}

// Stop records the elapsed time since the stopwatch started and returns it.
// Uses the group's clock, so tests can drive it with a fake clock.
func (s *Stopwatch) Stop() time.Duration {
	elapsed := s.clock.Now().Sub(s.start)
	s.record(elapsed.Microseconds())
	return elapsed
}
