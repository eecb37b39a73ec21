// Package testing provides helpers for tests of code instrumented with farmz.
package testing

import (
	"log/slog"
	"strconv"
	"testing"

	"github.com/zoobzio/clockz"
	"github.com/zoobzio/farmz"
)

// quietLogger drops everything; test output stays readable.
var quietLogger = slog.New(slog.DiscardHandler)

// NewTestFarm creates an isolated farm. Every group still registered when
// the test ends is deregistered by t.Cleanup.
func NewTestFarm(t *testing.T) *farmz.Farm {
	f := farmz.NewFarm(farmz.WithFarmLogger(quietLogger))
	t.Cleanup(func() {
		for _, g := range f.Groups() {
			_ = f.Deregister(g)
		}
	})
	return f
}

// NewTestGroup creates an unsealed group with a silent logger.
func NewTestGroup(t *testing.T, name string, opts ...farmz.GroupOption) *farmz.Group {
	t.Helper()
	opts = append([]farmz.GroupOption{farmz.WithGroupLogger(quietLogger)}, opts...)
	return farmz.NewGroup(name, opts...)
}

// NewTestGroupWithClock creates an unsealed group driven by clock. Used for
// deterministic stopwatch tests with a FakeClock.
func NewTestGroupWithClock(t *testing.T, name string, clock clockz.Clock) *farmz.Group {
	t.Helper()
	return NewTestGroup(t, name, farmz.WithClock(clock))
}

// RegisterTestGroup registers g with f and fails the test on error.
func RegisterTestGroup(t *testing.T, f *farmz.Farm, g *farmz.Group) {
	t.Helper()
	if err := f.Register(g); err != nil {
		t.Fatalf("register group %q: %v", g.Name(), err)
	}
}

// NewTestGroups creates count unsealed groups named prefix_0 … prefix_n.
func NewTestGroups(t *testing.T, prefix string, count int) []*farmz.Group {
	t.Helper()
	groups := make([]*farmz.Group, count)
	for i := range groups {
		groups[i] = NewTestGroup(t, prefix+"_"+strconv.Itoa(i))
	}
	return groups
}
