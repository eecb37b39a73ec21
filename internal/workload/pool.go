// Package workload is a synthetic job pool instrumented with farmz. Every
// worker owns a Writer for its lifetime and is recycled after a fixed number
// of jobs, so the retirement path is exercised continuously.
package workload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/zoobzio/farmz"
)

// Metric keys registered by New.
const (
	QueueDepthKey     farmz.Key = "queue_depth"
	ActiveWorkersKey  farmz.Key = "active_workers"
	JobsTotalKey      farmz.Key = "jobs_total"
	JobsSuccessKey    farmz.Key = "jobs_success"
	JobsErrorKey      farmz.Key = "jobs_error"
	JobsDroppedKey    farmz.Key = "jobs_dropped"
	WorkerRestartsKey farmz.Key = "worker_restarts"
)

// JobTypes are the kinds of job the pool accepts. Each gets its own counter
// and duration histogram, distinguished by sub-type.
var JobTypes = []string{"process_order", "send_email", "generate_report", "sync_data"}

// baseCost is the simulated cost of one unit of each job type.
var baseCost = map[string]time.Duration{
	"process_order":   2 * time.Millisecond,
	"send_email":      time.Millisecond,
	"generate_report": 10 * time.Millisecond,
	"sync_data":       5 * time.Millisecond,
}

var (
	ErrPoolFull       = errors.New("worker pool queue is full")
	ErrPoolShutdown   = errors.New("worker pool is shutting down")
	ErrUnknownJobType = errors.New("unknown job type")

	errJobFailed = errors.New("simulated job failure")
)

// Job is a unit of work. Size scales its simulated cost.
type Job struct {
	ID   int64
	Type string
	Size int
}

// WorkFunc performs a job.
type WorkFunc func(ctx context.Context, job Job) error

// Config sizes the pool.
type Config struct {
	Workers   int
	QueueSize int
	// Interval between generated jobs. Zero disables the generator; jobs
	// then arrive only through Submit.
	Interval time.Duration
	// Recycle is how many jobs a worker handles before it is replaced.
	// Zero keeps workers for the pool's lifetime.
	Recycle int
	// FailEvery makes every n-th job fail in the default WorkFunc.
	FailEvery int
}

// Option configures a Pool.
type Option func(*Pool)

// WithClock sets the clock driving the generator and simulated work.
func WithClock(clock clockz.Clock) Option {
	return func(p *Pool) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithLogger sets the pool's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithWork replaces the simulated work.
func WithWork(fn WorkFunc) Option {
	return func(p *Pool) {
		if fn != nil {
			p.work = fn
		}
	}
}

type jobMetrics struct {
	count    farmz.CounterID
	duration farmz.HistogramID
}

// Pool runs jobs on a fixed number of workers.
type Pool struct {
	cfg    Config
	g      *farmz.Group
	clock  clockz.Clock
	logger *slog.Logger
	work   WorkFunc

	mu     sync.RWMutex
	closed bool
	jobs   chan Job
	seq    atomic.Int64

	depth     farmz.GaugeID
	active    farmz.CounterID
	submitted farmz.CounterID
	succeeded farmz.CounterID
	failed    farmz.CounterID
	dropped   farmz.CounterID
	restarts  farmz.CounterID
	byType    map[string]jobMetrics
}

// New registers the pool's metrics on g, which must not be sealed yet.
func New(g *farmz.Group, cfg Config, opts ...Option) *Pool {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}

	p := &Pool{
		cfg:    cfg,
		g:      g,
		clock:  clockz.RealClock,
		logger: slog.Default(),
		jobs:   make(chan Job, cfg.QueueSize),
		byType: make(map[string]jobMetrics, len(JobTypes)),
	}
	p.work = p.simulate
	for _, opt := range opts {
		opt(p)
	}

	p.depth = g.RegisterGauge(QueueDepthKey, "Queue depth")
	p.active = g.RegisterCounter(ActiveWorkersKey, "Active workers", farmz.AsGauge())
	p.submitted = g.RegisterCounter(JobsTotalKey, "Jobs submitted")
	p.succeeded = g.RegisterCounter(JobsSuccessKey, "Jobs succeeded")
	p.failed = g.RegisterCounter(JobsErrorKey, "Jobs failed")
	p.dropped = g.RegisterCounter(JobsDroppedKey, "Jobs dropped")
	p.restarts = g.RegisterCounter(WorkerRestartsKey, "Worker restarts")
	for _, typ := range JobTypes {
		p.byType[typ] = jobMetrics{
			count:    g.RegisterCounter(farmz.Key("jobs_"+typ), "Jobs", farmz.WithSubType(typ)),
			duration: g.RegisterHistogram(farmz.Key("job_duration_"+typ), "Job duration", farmz.DefaultBuckets, farmz.WithSubType(typ)),
		}
	}
	return p
}

// Submit queues job without blocking. A zero ID is replaced by the next
// sequence number.
func (p *Pool) Submit(job Job) error {
	if _, ok := p.byType[job.Type]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownJobType, job.Type)
	}
	if job.ID == 0 {
		job.ID = p.seq.Add(1)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolShutdown
	}

	select {
	case p.jobs <- job:
		p.g.CounterIncrement(p.submitted, 1)
		p.g.CounterIncrement(p.byType[job.Type].count, 1)
		p.g.GaugeUpdate(p.depth, int64(len(p.jobs)))
		return nil
	default:
		p.g.CounterIncrement(p.dropped, 1)
		return ErrPoolFull
	}
}

// Run starts the workers and, if configured, the job generator. When ctx is
// done the queue is closed, queued jobs are drained and Run returns
// ctx.Err(). Run must be called at most once.
func (p *Pool) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := range p.cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx, i)
		}()
	}
	p.logger.Info("workload started",
		slog.String("group", p.g.Name()),
		slog.Int("workers", p.cfg.Workers),
		slog.Int("recycle", p.cfg.Recycle),
	)

	if p.cfg.Interval > 0 {
		p.generate(ctx)
	} else {
		<-ctx.Done()
	}

	p.mu.Lock()
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	wg.Wait()
	p.logger.Info("workload stopped", slog.String("group", p.g.Name()))
	return ctx.Err()
}

func (p *Pool) worker(ctx context.Context, id int) {
	for p.lifetime(ctx) {
		p.g.CounterIncrement(p.restarts, 1)
		p.logger.Debug("worker recycled", slog.Int("worker", id))
	}
}

// lifetime runs one Writer's worth of jobs. It reports whether the worker
// should be replaced; false means the queue is closed.
func (p *Pool) lifetime(ctx context.Context) bool {
	w := p.g.Writer()
	defer w.Close()

	for handled := 0; p.cfg.Recycle == 0 || handled < p.cfg.Recycle; handled++ {
		job, ok := <-p.jobs
		if !ok {
			return false
		}
		w.GaugeUpdate(p.depth, int64(len(p.jobs)))
		p.process(ctx, w, job)
	}
	return true
}

func (p *Pool) process(ctx context.Context, w *farmz.Writer, job Job) {
	m := p.byType[job.Type]

	w.CounterIncrement(p.active, 1)
	sw := w.Time(m.duration)
	err := p.work(ctx, job)
	sw.Stop()
	w.CounterDecrement(p.active, 1)

	switch {
	case err == nil:
		w.CounterIncrement(p.succeeded, 1)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		w.CounterIncrement(p.dropped, 1)
	default:
		w.CounterIncrement(p.failed, 1)
		p.logger.Debug("job failed", slog.Int64("job", job.ID), slog.String("type", job.Type), slog.Any("error", err))
	}
}

func (p *Pool) generate(ctx context.Context) {
	ticker := p.clock.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			job := Job{
				Type: JobTypes[rand.IntN(len(JobTypes))],
				Size: 1 + rand.IntN(10),
			}
			if err := p.Submit(job); err != nil {
				p.logger.Debug("job rejected", slog.String("type", job.Type), slog.Any("error", err))
			}
		}
	}
}

// simulate waits for the job's cost on the pool's clock.
func (p *Pool) simulate(ctx context.Context, job Job) error {
	cost := baseCost[job.Type] * time.Duration(max(job.Size, 1))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.clock.After(cost):
	}
	if p.cfg.FailEvery > 0 && job.ID%int64(p.cfg.FailEvery) == 0 {
		return fmt.Errorf("job %d: %w", job.ID, errJobFailed)
	}
	return nil
}
