package benchmarks

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zoobzio/farmz"
	farmzprom "github.com/zoobzio/farmz/export/prometheus"
	"github.com/zoobzio/farmz/internal/workload"
)

// Real-world scenario benchmark keys.
const (
	HTTPRequestsKey farmz.Key = "http_requests_total"
	HTTPLatencyKey  farmz.Key = "http_request_duration"
	HTTPErrorsKey   farmz.Key = "http_errors_total"
	HTTPActiveKey   farmz.Key = "http_active_requests"
)

// BenchmarkHTTPRequestTracking simulates per-request writers in a gateway.
func BenchmarkHTTPRequestTracking(b *testing.B) {
	g := farmz.NewGroup("gateway")
	requests := g.RegisterCounter(HTTPRequestsKey, "Requests")
	latency := g.RegisterHistogram(HTTPLatencyKey, "Latency", farmz.DefaultBuckets)
	errors := g.RegisterCounter(HTTPErrorsKey, "Errors")
	active := g.RegisterCounter(HTTPActiveKey, "Active requests", farmz.AsGauge())
	g.Seal()

	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		w := g.Writer()
		defer w.Close()
		for pb.Next() {
			w.CounterIncrement(requests, 1)
			w.CounterIncrement(active, 1)

			sw := w.Time(latency)
			_ = rand.Float64()
			sw.Stop()

			if rand.Float64() < 0.05 {
				w.CounterIncrement(errors, 1)
			}
			w.CounterDecrement(active, 1)
		}
	})
}

// BenchmarkWorkerPoolMetrics runs the instrumented worker pool with
// instantaneous jobs.
func BenchmarkWorkerPoolMetrics(b *testing.B) {
	g := farmz.NewGroup("workload")
	pool := workload.New(g, workload.Config{
		Workers:   8,
		QueueSize: 1024,
		Recycle:   1000,
	}, workload.WithWork(func(context.Context, workload.Job) error { return nil }))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		job := workload.Job{Type: workload.JobTypes[i%len(workload.JobTypes)], Size: 1}
		for pool.Submit(job) != nil {
			time.Sleep(time.Microsecond)
		}
	}

	b.StopTimer()
	cancel()
	<-done
}

// BenchmarkPrometheusScrape gathers a farm with many groups.
func BenchmarkPrometheusScrape(b *testing.B) {
	f := farmz.NewFarm()
	for _, name := range []string{"api", "auth", "db", "cache", "queue"} {
		g := farmz.NewGroup(name)
		c := g.RegisterCounter(HTTPRequestsKey, "Requests")
		h := g.RegisterHistogram(HTTPLatencyKey, "Latency", farmz.DefaultBuckets)
		if err := f.Register(g); err != nil {
			b.Fatal(err)
		}
		for i := range 1000 {
			g.CounterIncrement(c, 1)
			g.HistogramObserve(h, int64(i*37))
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(farmzprom.NewCollector(f, farmzprom.WithNamespace("bench")))

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := reg.Gather(); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkFarmJSON renders the farm document.
func BenchmarkFarmJSON(b *testing.B) {
	f := farmz.NewFarm()
	for _, name := range []string{"api", "auth", "db"} {
		g := farmz.NewGroup(name)
		g.RegisterCounter(HTTPRequestsKey, "Requests")
		g.RegisterGauge(HTTPActiveKey, "Active")
		g.RegisterHistogram(HTTPLatencyKey, "Latency", farmz.DefaultBuckets)
		if err := f.Register(g); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := f.JSON(true); err != nil {
			b.Fatal(err)
		}
	}
}
