package farmz

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/zoobzio/clockz"
)

// FarmOption configures a Farm.
type FarmOption func(*Farm)

// WithFarmLogger sets the farm's logger.
func WithFarmLogger(logger *slog.Logger) FarmOption {
	return func(f *Farm) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithFarmClock sets the clock driving Run.
func WithFarmClock(clock clockz.Clock) FarmOption {
	return func(f *Farm) {
		if clock != nil {
			f.clock = clock
		}
	}
}

// Farm is a set of live groups reported together.
type Farm struct {
	logger *slog.Logger
	clock  clockz.Clock

	mu     sync.RWMutex
	groups map[*Group]struct{}
}

var (
	defaultFarm     *Farm
	defaultFarmOnce sync.Once
)

// Default returns the process-wide farm.
func Default() *Farm {
	defaultFarmOnce.Do(func() {
		defaultFarm = NewFarm()
	})
	return defaultFarm
}

// NewFarm creates an empty farm.
func NewFarm(opts ...FarmOption) *Farm {
	f := &Farm{
		logger: slog.Default(),
		clock:  clockz.RealClock,
		groups: make(map[*Group]struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Register seals g and adds it to the farm. Registering a group that is
// already present returns ErrAlreadyRegistered and changes nothing. A nil
// group panics.
func (f *Farm) Register(g *Group) error {
	if g == nil {
		panic(ErrNilGroup)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.groups[g]; ok {
		f.logger.Warn("metrics group registered twice", slog.String("group", g.name))
		return fmt.Errorf("%w: %q", ErrAlreadyRegistered, g.name)
	}
	g.Seal()
	f.groups[g] = struct{}{}

	f.logger.Debug("metrics group registered", slog.String("group", g.name))
	return nil
}

// Deregister removes g from the farm. Reads already holding g complete
// normally. Removing a group that is not present returns ErrNotRegistered.
// A nil group panics.
func (f *Farm) Deregister(g *Group) error {
	if g == nil {
		panic(ErrNilGroup)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.groups[g]; !ok {
		f.logger.Warn("metrics group not registered", slog.String("group", g.name))
		return fmt.Errorf("%w: %q", ErrNotRegistered, g.name)
	}
	delete(f.groups, g)

	f.logger.Debug("metrics group deregistered", slog.String("group", g.name))
	return nil
}

// Groups returns the registered groups ordered by name.
func (f *Farm) Groups() []*Group {
	f.mu.RLock()
	groups := make([]*Group, 0, len(f.groups))
	for g := range f.groups {
		groups = append(groups, g)
	}
	f.mu.RUnlock()

	slices.SortFunc(groups, func(a, b *Group) int {
		return strings.Compare(a.name, b.name)
	})
	return groups
}

// Result returns every group's result, ordered by group name.
func (f *Farm) Result(needLatest bool) []*GroupResult {
	groups := f.Groups()
	results := make([]*GroupResult, 0, len(groups))
	for _, g := range groups {
		results = append(results, g.Result(needLatest))
	}
	return results
}

// JSON renders every group's document nested under its name. Group names
// should be unique; a repeated name keeps only one of the groups.
func (f *Farm) JSON(needLatest bool) ([]byte, error) {
	doc := make(map[string]map[string]map[string]any)
	for _, r := range f.Result(needLatest) {
		doc[r.Name] = r.Document()
	}
	return json.Marshal(doc)
}

// JSONString is JSON as a string. Encoding errors yield "{}".
func (f *Farm) JSONString(needLatest bool) string {
	b, err := f.JSON(needLatest)
	if err != nil {
		f.logger.Error("render metrics farm", slog.Any("error", err))
		return "{}"
	}
	return string(b)
}

// Publish feeds the latest values of every group to sink.
func (f *Farm) Publish(sink Sink) {
	for _, g := range f.Groups() {
		g.Publish(sink)
	}
}

// Run refreshes every group's delayed snapshot each interval until ctx is
// done, so reads with needLatest unset stay at most one interval old.
func (f *Farm) Run(ctx context.Context, interval time.Duration) error {
	ticker := f.clock.NewTicker(interval)
	defer ticker.Stop()

	f.logger.Debug("metrics farm refresh started", slog.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			f.logger.Debug("metrics farm refresh stopped")
			return ctx.Err()
		case <-ticker.C():
			for _, g := range f.Groups() {
				g.Refresh()
			}
		}
	}
}
