package prometheus

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	mfaflow "github.com/MrEthical07/mfaflow"
	"github.com/MrEthical07/mfaflow/metrics/export/internaldefs"
)

// metricsSource is the read surface the exporter needs from the flow engine.
type metricsSource interface {
	MetricsSnapshot() mfaflow.MetricsSnapshot
	AuditDropped() uint64
}

// PrometheusExporter renders the flow engine's counters and the registration
// latency histogram in Prometheus text exposition format. The exporter holds
// no state of its own; every render reads a fresh snapshot.
type PrometheusExporter struct {
	source metricsSource
}

// NewPrometheusExporter creates a Prometheus exporter that reads from the given [mfaflow.Engine].
func NewPrometheusExporter(engine *mfaflow.Engine) *PrometheusExporter {
	return &PrometheusExporter{source: engine}
}

// NewPrometheusExporterFromSource creates a Prometheus exporter from a
// custom metrics source.
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = p.WriteTo(w)
	})
}

// Render returns the current metrics in Prometheus text exposition format.
func (p *PrometheusExporter) Render() string {
	var b strings.Builder
	_, _ = p.WriteTo(&b)
	return b.String()
}

// WriteTo streams the exposition text. An engine with no recorded samples
// writes nothing, so an idle instance exposes an empty page rather than a
// wall of zeros.
func (p *PrometheusExporter) WriteTo(w io.Writer) (int64, error) {
	if p == nil || p.source == nil {
		return 0, nil
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return 0, nil
	}

	ew := &expositionWriter{w: w}
	for _, def := range internaldefs.CounterDefs {
		ew.counter(def.Name, def.Help, snapshot.Counters[def.ID])
	}
	for _, def := range internaldefs.HistogramDefs {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[def.ID]))
		ew.histogram(def.Name, def.Help, cumulative)
	}
	ew.counter("mfaflow_audit_dropped_total", "Dropped audit events due to dispatcher backpressure.", dropped)

	return ew.n, ew.err
}

// expositionWriter tracks bytes written and sticks on the first write error.
type expositionWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (e *expositionWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	n, err := fmt.Fprintf(e.w, format, args...)
	e.n += int64(n)
	e.err = err
}

func (e *expositionWriter) counter(name, help string, value uint64) {
	e.printf("# HELP %s %s\n# TYPE %s counter\n%s %d\n", name, escapeHelp(help), name, name, value)
}

func (e *expositionWriter) histogram(name, help string, cumulative [8]uint64) {
	e.printf("# HELP %s %s\n# TYPE %s histogram\n", name, escapeHelp(help), name)
	for i, le := range internaldefs.HistogramBounds {
		e.printf("%s_bucket{le=%q} %d\n", name, le, cumulative[i])
	}
	e.printf("%s_count %d\n", name, cumulative[len(cumulative)-1])
	// The core histogram tracks bucket counts only; expose a zero sum so
	// scrapers that expect the full triplet keep working.
	e.printf("%s_sum 0\n", name)
}

func escapeHelp(help string) string {
	return strings.NewReplacer("\\", "\\\\", "\n", "\\n").Replace(help)
}
