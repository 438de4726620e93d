package otel

import (
	"context"
	"errors"
	"fmt"

	mfaflow "github.com/MrEthical07/mfaflow"
	"github.com/MrEthical07/mfaflow/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// metricsSource is the read surface the exporter needs from the flow engine.
type metricsSource interface {
	MetricsSnapshot() mfaflow.MetricsSnapshot
	AuditDropped() uint64
}

// histogramInstruments exposes one latency histogram as per-bound cumulative
// bucket gauges plus a sample count.
type histogramInstruments struct {
	buckets [8]metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// OTelExporter bridges the engine's in-process metric registry into an
// OpenTelemetry meter. Every instrument is observable: nothing is pushed,
// the SDK pulls a fresh snapshot on each collection cycle.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration

	counters   map[mfaflow.MetricID]metric.Int64ObservableCounter
	histograms map[mfaflow.MetricID]histogramInstruments
	dropped    metric.Int64ObservableCounter
}

// NewOTelExporter registers the flow engine's metrics on the meter.
func NewOTelExporter(meter metric.Meter, engine *mfaflow.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

// NewOTelExporterFromSource registers a custom metrics source on the meter.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{
		source:     source,
		counters:   make(map[mfaflow.MetricID]metric.Int64ObservableCounter, len(internaldefs.CounterDefs)),
		histograms: make(map[mfaflow.MetricID]histogramInstruments, len(internaldefs.HistogramDefs)),
	}

	observables := make([]metric.Observable, 0, len(internaldefs.CounterDefs)+len(internaldefs.HistogramDefs)*9+1)

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.Name, err)
		}
		e.counters[def.ID] = ins
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		var h histogramInstruments
		for i, suffix := range internaldefs.HistogramBoundSuffix {
			ins, err := meter.Int64ObservableGauge(
				def.Name+"_bucket_le_"+suffix,
				metric.WithDescription("Cumulative histogram bucket count."),
			)
			if err != nil {
				return nil, fmt.Errorf("histogram bucket %s: %w", def.Name, err)
			}
			h.buckets[i] = ins
			observables = append(observables, ins)
		}
		count, err := meter.Int64ObservableGauge(
			def.Name+"_count",
			metric.WithDescription("Histogram total sample count."),
		)
		if err != nil {
			return nil, fmt.Errorf("histogram count %s: %w", def.Name, err)
		}
		h.count = count
		observables = append(observables, count)
		e.histograms[def.ID] = h
	}

	dropped, err := meter.Int64ObservableCounter(
		"mfaflow_audit_dropped_total",
		metric.WithDescription("Dropped audit events due to dispatcher backpressure."),
	)
	if err != nil {
		return nil, fmt.Errorf("audit dropped counter: %w", err)
	}
	e.dropped = dropped
	observables = append(observables, dropped)

	registration, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = registration
	return e, nil
}

func (e *OTelExporter) observe(_ context.Context, observer metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()

	for id, ins := range e.counters {
		observer.ObserveInt64(ins, int64(snapshot.Counters[id]))
	}
	for id, h := range e.histograms {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[id]))
		for i := range cumulative {
			observer.ObserveInt64(h.buckets[i], int64(cumulative[i]))
		}
		observer.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]))
	}
	observer.ObserveInt64(e.dropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
