// Package otel exposes a farmz.Farm through OpenTelemetry observable
// instruments. A single callback publishes the latest merge of every group
// whenever the SDK collects.
package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/zoobzio/farmz"
)

// Instrument names.
const (
	CounterName        = "farmz.counter"
	GaugeName          = "farmz.gauge"
	HistogramCountName = "farmz.histogram.count"
	HistogramSumName   = "farmz.histogram.sum"
	PercentileName     = "farmz.histogram.percentile"
)

// Attribute keys attached to every observation.
const (
	GroupKey    = attribute.Key("group")
	NameKey     = attribute.Key("name")
	TypeKey     = attribute.Key("type")
	QuantileKey = attribute.Key("quantile")
)

// Quantiles reported for every histogram, as percentiles.
var Quantiles = []float64{50, 95, 99}

// Exporter holds the callback registration for one farm.
type Exporter struct {
	reg metric.Registration

	counter    metric.Int64ObservableUpDownCounter
	gauge      metric.Int64ObservableGauge
	count      metric.Int64ObservableGauge
	sum        metric.Int64ObservableGauge
	percentile metric.Float64ObservableGauge
}

// NewExporter creates the instruments on meter and registers the callback
// that reports farm.
func NewExporter(meter metric.Meter, farm *farmz.Farm) (*Exporter, error) {
	e := &Exporter{}
	var err error

	if e.counter, err = meter.Int64ObservableUpDownCounter(CounterName,
		metric.WithDescription("farmz counter value")); err != nil {
		return nil, fmt.Errorf("farmz/otel: create %s: %w", CounterName, err)
	}
	if e.gauge, err = meter.Int64ObservableGauge(GaugeName,
		metric.WithDescription("farmz gauge value")); err != nil {
		return nil, fmt.Errorf("farmz/otel: create %s: %w", GaugeName, err)
	}
	if e.count, err = meter.Int64ObservableGauge(HistogramCountName,
		metric.WithDescription("farmz histogram observation count")); err != nil {
		return nil, fmt.Errorf("farmz/otel: create %s: %w", HistogramCountName, err)
	}
	if e.sum, err = meter.Int64ObservableGauge(HistogramSumName,
		metric.WithDescription("farmz histogram sum of observed values")); err != nil {
		return nil, fmt.Errorf("farmz/otel: create %s: %w", HistogramSumName, err)
	}
	if e.percentile, err = meter.Float64ObservableGauge(PercentileName,
		metric.WithDescription("farmz histogram percentile estimate"),
		metric.WithUnit("us")); err != nil {
		return nil, fmt.Errorf("farmz/otel: create %s: %w", PercentileName, err)
	}

	e.reg, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		farm.Publish(&sink{e: e, o: o})
		return nil
	}, e.counter, e.gauge, e.count, e.sum, e.percentile)
	if err != nil {
		return nil, fmt.Errorf("farmz/otel: register callback: %w", err)
	}
	return e, nil
}

// Close unregisters the callback. The instruments stay on the meter but
// report nothing afterwards.
func (e *Exporter) Close() error {
	return e.reg.Unregister()
}

type sink struct {
	e *Exporter
	o metric.Observer
}

func attrs(group string, key farmz.Key, subType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		GroupKey.String(group),
		NameKey.String(string(key)),
		TypeKey.String(subType),
	}
}

func (s *sink) PublishCounter(group string, info *farmz.CounterInfo, value int64) {
	s.o.ObserveInt64(s.e.counter, value, metric.WithAttributes(attrs(group, info.Key(), info.SubType())...))
}

func (s *sink) PublishGauge(group string, info *farmz.GaugeInfo, value int64) {
	s.o.ObserveInt64(s.e.gauge, value, metric.WithAttributes(attrs(group, info.Key(), info.SubType())...))
}

func (s *sink) PublishHistogram(group string, info *farmz.HistogramInfo, value *farmz.HistogramValue) {
	kv := attrs(group, info.Key(), info.SubType())
	s.o.ObserveInt64(s.e.count, info.Count(value), metric.WithAttributes(kv...))
	s.o.ObserveInt64(s.e.sum, value.Sum(), metric.WithAttributes(kv...))
	for _, q := range Quantiles {
		s.o.ObserveFloat64(s.e.percentile, info.Percentile(value, q),
			metric.WithAttributes(append(kv, QuantileKey.Float64(q/100))...))
	}
}
