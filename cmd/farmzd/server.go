package main

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zoobzio/farmz"
	farmzprom "github.com/zoobzio/farmz/export/prometheus"
	"github.com/zoobzio/farmz/internal/config"
)

// HTTPGroup is the group instrumenting farmzd's own endpoints.
const HTTPGroup = config.ReservedGroup

type endpoint struct {
	pattern string
	path    string
	key     farmz.Key
}

var endpoints = []endpoint{
	{"GET /metrics", "/metrics", "requests_metrics"},
	{"GET /metrics.json", "/metrics.json", "requests_metrics_json"},
	{"GET /healthz", "/healthz", "requests_healthz"},
}

type server struct {
	farm     *farmz.Farm
	reg      *prometheus.Registry
	logger   *slog.Logger
	group    *farmz.Group
	requests map[string]farmz.CounterID
	latency  map[string]farmz.HistogramID
	failures farmz.CounterID
}

// newServer registers the HTTP group with farm and a collector for farm
// with a fresh Prometheus registry.
func newServer(farm *farmz.Farm, namespace string, logger *slog.Logger) (*server, error) {
	g := farmz.NewGroup(HTTPGroup, farmz.WithGroupLogger(logger))
	s := &server{
		farm:     farm,
		reg:      prometheus.NewRegistry(),
		logger:   logger,
		group:    g,
		requests: make(map[string]farmz.CounterID, len(endpoints)),
		latency:  make(map[string]farmz.HistogramID, len(endpoints)),
	}
	for _, ep := range endpoints {
		s.requests[ep.path] = g.RegisterCounter(ep.key, "HTTP requests", farmz.WithSubType(ep.path))
		s.latency[ep.path] = g.RegisterHistogram("latency_"+ep.key, "HTTP latency", farmz.DefaultBuckets, farmz.WithSubType(ep.path))
	}
	s.failures = g.RegisterCounter("failures", "HTTP failures")

	if err := farm.Register(g); err != nil {
		return nil, err
	}
	if err := s.reg.Register(farmzprom.NewCollector(farm, farmzprom.WithNamespace(namespace))); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *server) Handler() http.Handler {
	handlers := map[string]http.Handler{
		"/metrics":      promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}),
		"/metrics.json": http.HandlerFunc(s.serveJSON),
		"/healthz": http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}),
	}

	mux := http.NewServeMux()
	for _, ep := range endpoints {
		mux.Handle(ep.pattern, s.instrument(ep.path, handlers[ep.path]))
	}
	return mux
}

func (s *server) instrument(path string, next http.Handler) http.Handler {
	requests, latency := s.requests[path], s.latency[path]
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := s.group.Time(latency)
		defer sw.Stop()
		s.group.CounterIncrement(requests, 1)
		next.ServeHTTP(w, r)
	})
}

// serveJSON writes the farm document. ?latest=true merges now instead of
// reusing the last periodic merge.
func (s *server) serveJSON(w http.ResponseWriter, r *http.Request) {
	var latest bool
	if v := r.URL.Query().Get("latest"); v != "" {
		var err error
		if latest, err = strconv.ParseBool(v); err != nil {
			s.group.CounterIncrement(s.failures, 1)
			http.Error(w, "latest: "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	b, err := s.farm.JSON(latest)
	if err != nil {
		s.group.CounterIncrement(s.failures, 1)
		s.logger.Error("render metrics", slog.Any("error", err))
		http.Error(w, "render metrics", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
}
